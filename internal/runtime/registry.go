package runtime

import (
	"fmt"
	"strings"
	"sync"
	"time"

	errspkg "github.com/drblury/socketbus/internal/runtime/errors"
	"github.com/drblury/socketbus/internal/runtime/handle"
	"github.com/drblury/socketbus/internal/runtime/hashing"
	"github.com/drblury/socketbus/internal/runtime/indexpool"
	loggingpkg "github.com/drblury/socketbus/internal/runtime/logging"
)

// DefaultCapacity is the number of socket slots of a registry built without
// WithCapacity.
const DefaultCapacity = 128

// DeletePolicy decides what DeleteSocket does with messages still queued.
type DeletePolicy int

const (
	// DeletePolicyDrop discards queued messages and logs a warning.
	DeletePolicyDrop DeletePolicy = iota
	// DeletePolicyReject refuses the deletion with ErrSocketHasPending.
	DeletePolicyReject
)

// ShutdownPolicy decides what Shutdown does with sockets still open.
type ShutdownPolicy int

const (
	// ShutdownPolicyForce closes every open socket with a warning.
	ShutdownPolicyForce ShutdownPolicy = iota
	// ShutdownPolicyReject refuses to shut down with ErrSocketsOpen.
	ShutdownPolicyReject
)

// Option configures a Registry.
type Option func(*Registry)

// WithCapacity sets the fixed number of socket slots.
func WithCapacity(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.capacity = n
		}
	}
}

// WithLogger sets the logger used for warnings about discarded messages.
func WithLogger(logger loggingpkg.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithHooks appends lifecycle hooks. It may be given more than once.
func WithHooks(h Hooks) Option {
	return func(r *Registry) { r.hooks = r.hooks.Merge(h) }
}

// WithMetrics feeds the registry lifecycle into m.
func WithMetrics(m *Metrics) Option {
	return func(r *Registry) {
		if m != nil {
			r.hooks = r.hooks.Merge(m.Hooks())
		}
	}
}

// WithDeletePolicy sets the policy for deleting sockets with queued messages.
func WithDeletePolicy(p DeletePolicy) Option {
	return func(r *Registry) { r.deletePolicy = p }
}

// WithShutdownPolicy sets the policy for shutting down with open sockets.
func WithShutdownPolicy(p ShutdownPolicy) Option {
	return func(r *Registry) { r.shutdownPolicy = p }
}

// WithMaxPayloadSize rejects larger payloads with ErrPayloadTooLarge. Zero
// means unlimited.
func WithMaxPayloadSize(n int) Option {
	return func(r *Registry) {
		if n >= 0 {
			r.maxPayload = n
		}
	}
}

// Registry is a fixed-capacity table of named sockets.
//
// mu guards the slot table, the free-slot pool and the closed flag. Post and
// Dispatch hold it for reading while they resolve a handle and touch the
// socket's own mutex; NewSocket, DeleteSocket and Shutdown hold it for
// writing. Dispatch callbacks run with no lock held.
type Registry struct {
	mu     sync.RWMutex
	slots  []*socket
	pool   *indexpool.Pool
	closed bool

	capacity       int
	logger         loggingpkg.Logger
	hooks          Hooks
	deletePolicy   DeletePolicy
	shutdownPolicy ShutdownPolicy
	maxPayload     int

	envelopes sync.Pool
}

// NewRegistry returns an initialised registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		capacity: DefaultCapacity,
		logger:   loggingpkg.NopLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.slots = make([]*socket, r.capacity)
	r.pool = indexpool.New(r.capacity)
	return r
}

var (
	defaultRegistryOnce sync.Once
	defaultRegistry     *Registry
)

// DefaultRegistry returns a process-wide registry with default options,
// creating it on first use.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewSocket creates a socket called name.
func (r *Registry) NewSocket(name string) (handle.Handle, error) {
	if err := validateSocketName(name); err != nil {
		return handle.Handle{}, err
	}
	hash := hashing.String32(name)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return handle.Handle{}, errspkg.ErrRegistryClosed
	}
	if _, s := r.findLocked(name, hash); s != nil {
		r.mu.Unlock()
		return handle.Handle{}, fmt.Errorf("%w: %q", errspkg.ErrSocketExists, name)
	}
	slot, ok := r.pool.Pop()
	if !ok {
		r.mu.Unlock()
		return handle.Handle{}, fmt.Errorf("%w: all %d slots in use", errspkg.ErrOutOfResources, r.capacity)
	}
	s := &socket{
		name:      name,
		nameHash:  hash,
		version:   handle.NextVersion(),
		createdAt: time.Now(),
	}
	r.slots[slot] = s
	r.mu.Unlock()

	h := handle.Encode(slot, s.version)
	r.hooks.socketCreated(SocketEvent{Socket: name, Handle: h, At: s.createdAt})
	return h, nil
}

// DeleteSocket removes the socket behind h and frees its slot. Queued
// messages are handled according to the registry's DeletePolicy.
func (r *Registry) DeleteSocket(h handle.Handle) error {
	r.mu.Lock()
	s, err := r.resolveLocked(h)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	if r.deletePolicy == DeletePolicyReject {
		if n := s.pending(); n > 0 {
			r.mu.Unlock()
			return fmt.Errorf("%w: %q has %d queued", errspkg.ErrSocketHasPending, s.name, n)
		}
	}
	dropped := r.removeLocked(h.Slot(), s)
	r.mu.Unlock()

	if dropped > 0 {
		r.logger.Warn("Deleted socket with pending messages", loggingpkg.LogFields{
			"socket":  s.name,
			"dropped": dropped,
		})
		r.hooks.dropped(DropEvent{Socket: s.name, Handle: h, Count: dropped, Reason: DropReasonSocketDeleted})
	}
	r.hooks.socketDeleted(SocketEvent{Socket: s.name, Handle: h, At: time.Now()})
	return nil
}

// GetSocket looks a live socket up by exact name.
func (r *Registry) GetSocket(name string) (handle.Handle, bool) {
	hash := hashing.String32(name)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return handle.Handle{}, false
	}
	slot, s := r.findLocked(name, hash)
	if s == nil {
		return handle.Handle{}, false
	}
	return handle.Encode(slot, s.version), true
}

// GetSocketName returns the name of the socket behind h.
func (r *Registry) GetSocketName(h handle.Handle) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, err := r.resolveLocked(h)
	if err != nil {
		return "", false
	}
	return s.name, true
}

// IsSocketValid reports whether h still refers to a live socket.
func (r *Registry) IsSocketValid(h handle.Handle) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, err := r.resolveLocked(h)
	return err == nil
}

// Sockets returns a snapshot of every live socket ordered by slot.
func (r *Registry) Sockets() []SocketInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]SocketInfo, 0, r.pool.InUse())
	for i, s := range r.slots {
		if s != nil {
			infos = append(infos, s.info(uint32(i)))
		}
	}
	return infos
}

// Len is the number of live sockets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pool.InUse()
}

// Capacity is the fixed number of socket slots.
func (r *Registry) Capacity() int {
	return r.capacity
}

// Shutdown closes the registry. With ShutdownPolicyReject it fails while any
// socket is open; with ShutdownPolicyForce it closes them, warning once per
// socket. Calling Shutdown on a closed registry is a no-op.
func (r *Registry) Shutdown() error {
	type closedSocket struct {
		s       *socket
		h       handle.Handle
		dropped int
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	var open []string
	for _, s := range r.slots {
		if s != nil {
			open = append(open, s.name)
		}
	}
	if len(open) > 0 && r.shutdownPolicy == ShutdownPolicyReject {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", errspkg.ErrSocketsOpen, strings.Join(open, ", "))
	}
	closed := make([]closedSocket, 0, len(open))
	for i, s := range r.slots {
		if s == nil {
			continue
		}
		slot := uint32(i)
		h := handle.Encode(slot, s.version)
		closed = append(closed, closedSocket{s: s, h: h, dropped: r.removeLocked(slot, s)})
	}
	r.closed = true
	r.mu.Unlock()

	now := time.Now()
	for _, c := range closed {
		r.logger.Warn("Closing socket at shutdown", loggingpkg.LogFields{
			"socket":  c.s.name,
			"dropped": c.dropped,
		})
		if c.dropped > 0 {
			r.hooks.dropped(DropEvent{Socket: c.s.name, Handle: c.h, Count: c.dropped, Reason: DropReasonShutdown})
		}
		r.hooks.socketDeleted(SocketEvent{Socket: c.s.name, Handle: c.h, At: now})
	}
	return nil
}

// resolveLocked maps h to its socket. The caller holds mu.
func (r *Registry) resolveLocked(h handle.Handle) (*socket, error) {
	if r.closed {
		return nil, errspkg.ErrRegistryClosed
	}
	slot, version := handle.Decode(h)
	if version == 0 || int(slot) >= len(r.slots) {
		return nil, errspkg.ErrSocketNotFound
	}
	s := r.slots[slot]
	if s == nil || s.version != version {
		return nil, errspkg.ErrSocketNotFound
	}
	return s, nil
}

// findLocked scans every slot. A hash match is confirmed against the full
// name so two names sharing a hash never alias. The caller holds mu.
func (r *Registry) findLocked(name string, hash uint32) (uint32, *socket) {
	for i, s := range r.slots {
		if s != nil && s.nameHash == hash && s.name == name {
			return uint32(i), s
		}
	}
	return 0, nil
}

// removeLocked frees slot and discards the socket's queue, returning how many
// messages were discarded. The caller holds mu for writing.
func (r *Registry) removeLocked(slot uint32, s *socket) int {
	r.slots[slot] = nil
	r.pool.Push(slot)
	head, n := s.detach()
	for env := head; env != nil; {
		next := env.next
		r.releaseEnvelope(env)
		env = next
	}
	return n
}

func validateSocketName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", errspkg.ErrInvalidSocketName)
	}
	if strings.ContainsAny(name, "#:") {
		return fmt.Errorf("%w: %q contains a URL separator", errspkg.ErrInvalidSocketName, name)
	}
	return nil
}
