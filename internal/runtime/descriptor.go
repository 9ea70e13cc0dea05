package runtime

import (
	"errors"
	"fmt"
	"reflect"

	errspkg "github.com/drblury/socketbus/internal/runtime/errors"
	"github.com/drblury/socketbus/internal/runtime/handle"
	"github.com/drblury/socketbus/internal/runtime/hashing"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// ProtoDescriptor adapts a protobuf message descriptor to Descriptor.
type ProtoDescriptor struct {
	md protoreflect.MessageDescriptor
}

// ProtoDescriptorOf returns the descriptor of m's message type.
func ProtoDescriptorOf(m proto.Message) ProtoDescriptor {
	return ProtoDescriptor{md: m.ProtoReflect().Descriptor()}
}

// DescriptorName is the fully qualified protobuf message name.
func (d ProtoDescriptor) DescriptorName() string {
	return string(d.md.FullName())
}

func (d ProtoDescriptor) MessageDescriptor() protoreflect.MessageDescriptor {
	return d.md
}

// ProtoMessageID is the message id PostProto uses for m's type.
func ProtoMessageID(m proto.Message) uint64 {
	return hashing.String64(string(m.ProtoReflect().Descriptor().FullName()))
}

// PostProto marshals m and posts it to receiver with a ProtoDescriptor.
func PostProto(r *Registry, receiver URL, m proto.Message, opts ...PostOption) error {
	if m == nil {
		return fmt.Errorf("%w: nil proto message", errspkg.ErrMalformedPayload)
	}
	payload, err := proto.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", m.ProtoReflect().Descriptor().FullName(), err)
	}
	opts = append(opts, WithDescriptor(ProtoDescriptorOf(m)))
	return r.PostTo(receiver, ProtoMessageID(m), payload, opts...)
}

// UnmarshalProto decodes msg into target when msg carries target's type.
func UnmarshalProto(msg *Message, target proto.Message) error {
	d, ok := msg.Descriptor.(ProtoDescriptor)
	want := target.ProtoReflect().Descriptor().FullName()
	if !ok || d.md.FullName() != want {
		return fmt.Errorf("%w: want %s", errspkg.ErrDescriptorMismatch, want)
	}
	return proto.Unmarshal(msg.Payload, target)
}

// NewProtoMessage instantiates a zero-value protobuf message of type T.
func NewProtoMessage[T proto.Message]() (T, error) {
	var zero T
	typ := reflect.TypeOf(zero)
	if typ == nil || typ.Kind() != reflect.Ptr {
		return zero, fmt.Errorf("proto prototype %v is not a message pointer", typ)
	}
	typed, ok := reflect.New(typ.Elem()).Interface().(T)
	if !ok {
		return zero, fmt.Errorf("unexpected prototype type %s", typ)
	}
	return typed, nil
}

// DispatchProto dispatches h and decodes each message of type T into a fresh
// value. Messages of other types go to other, which may be nil. The first
// decode failure is returned after the whole batch has been handled.
func DispatchProto[T proto.Message](r *Registry, h handle.Handle, fn func(*Message, T), other func(*Message)) (uint32, error) {
	if fn == nil {
		return 0, errspkg.ErrCallbackRequired
	}
	var decodeErr error
	n, err := r.Dispatch(h, func(m *Message) {
		target, err := NewProtoMessage[T]()
		if err == nil {
			err = UnmarshalProto(m, target)
		}
		switch {
		case err == nil:
			fn(m, target)
		case errors.Is(err, errspkg.ErrDescriptorMismatch):
			if other != nil {
				other(m)
			}
		case decodeErr == nil:
			decodeErr = err
		}
	})
	if err != nil {
		return n, err
	}
	return n, decodeErr
}
