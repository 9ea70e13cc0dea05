package runtime

import (
	"strconv"
	"strings"

	"github.com/drblury/socketbus/internal/runtime/handle"
	"github.com/drblury/socketbus/internal/runtime/hashing"
)

// maxRecycledPayload caps the payload buffer kept by a recycled envelope.
const maxRecycledPayload = 64 << 10

// Descriptor identifies the schema of a payload. The bus carries it untouched;
// consumers compare descriptors by identity to decide how to decode.
type Descriptor interface {
	DescriptorName() string
}

// URL addresses a socket and, optionally, an entity behind it. Path and
// Fragment are 64-bit string hashes chosen by the consumer.
type URL struct {
	Socket   handle.Handle
	Path     uint64
	Fragment uint64
}

// Message is the envelope handed to dispatch callbacks. It and its Payload are
// only valid until the callback returns; copy anything that must outlive it.
type Message struct {
	ID         uint64
	Sender     URL
	Receiver   URL
	Descriptor Descriptor
	Payload    []byte
}

// Len is the payload length in bytes.
func (m *Message) Len() int { return len(m.Payload) }

type envelope struct {
	Message
	next *envelope
}

type postOptions struct {
	sender     URL
	path       uint64
	fragment   uint64
	descriptor Descriptor
}

// PostOption customises a single Post call.
type PostOption func(*postOptions)

// WithSender records who posted the message.
func WithSender(sender URL) PostOption {
	return func(o *postOptions) { o.sender = sender }
}

// WithReceiver fills the path and fragment of the receiver URL. The receiver
// socket is always the handle passed to Post.
func WithReceiver(path, fragment uint64) PostOption {
	return func(o *postOptions) {
		o.path = path
		o.fragment = fragment
	}
}

// WithDescriptor attaches a schema identity to the message.
func WithDescriptor(d Descriptor) PostOption {
	return func(o *postOptions) { o.descriptor = d }
}

func (r *Registry) newEnvelope(h handle.Handle, id uint64, payload []byte, o postOptions) *envelope {
	env, _ := r.envelopes.Get().(*envelope)
	if env == nil {
		env = &envelope{}
	}
	env.ID = id
	env.Sender = o.sender
	env.Receiver = URL{Socket: h, Path: o.path, Fragment: o.fragment}
	env.Descriptor = o.descriptor
	if len(payload) > 0 {
		env.Payload = append(env.Payload[:0], payload...)
	} else {
		env.Payload = env.Payload[:0]
	}
	return env
}

func (r *Registry) releaseEnvelope(env *envelope) {
	payload := env.Payload[:0]
	if cap(payload) > maxRecycledPayload {
		payload = nil
	}
	*env = envelope{}
	env.Payload = payload
	r.envelopes.Put(env)
}

// FormatURL renders u as "socket:path#fragment". Hashes that the reverse table
// does not know are printed as placeholders; a stale socket prints as
// "<unknown>".
func (r *Registry) FormatURL(u URL, reverse *hashing.ReverseTable) string {
	var b strings.Builder
	if name, ok := r.GetSocketName(u.Socket); ok {
		b.WriteString(name)
	} else {
		b.WriteString("<unknown>")
	}
	b.WriteByte(':')
	if u.Path != 0 {
		b.WriteString(reverse.ReverseSafe64(u.Path))
	}
	if u.Fragment != 0 {
		b.WriteByte('#')
		b.WriteString(reverse.ReverseSafe64(u.Fragment))
	}
	return b.String()
}

func formatID(id uint64) string {
	return strconv.FormatUint(id, 10)
}
