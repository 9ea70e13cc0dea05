package runtime

import (
	"fmt"
	"time"

	errspkg "github.com/drblury/socketbus/internal/runtime/errors"
	"github.com/drblury/socketbus/internal/runtime/handle"
)

// Post copies payload into a new message and appends it to the socket behind
// h. It never blocks on a dispatcher and may be called from any goroutine.
func (r *Registry) Post(h handle.Handle, id uint64, payload []byte, opts ...PostOption) error {
	if r.maxPayload > 0 && len(payload) > r.maxPayload {
		return fmt.Errorf("%w: %d bytes, limit %d", errspkg.ErrPayloadTooLarge, len(payload), r.maxPayload)
	}
	var o postOptions
	for _, opt := range opts {
		opt(&o)
	}
	env := r.newEnvelope(h, id, payload, o)

	r.mu.RLock()
	s, err := r.resolveLocked(h)
	if err != nil {
		r.mu.RUnlock()
		r.releaseEnvelope(env)
		return err
	}
	pending := s.push(env)
	name := s.name
	r.mu.RUnlock()

	r.hooks.posted(PostEvent{
		Socket:    name,
		Handle:    h,
		MessageID: id,
		Size:      len(payload),
		Pending:   pending,
	})
	return nil
}

// PostTo posts to receiver.Socket, carrying its path and fragment along.
func (r *Registry) PostTo(receiver URL, id uint64, payload []byte, opts ...PostOption) error {
	opts = append([]PostOption{WithReceiver(receiver.Path, receiver.Fragment)}, opts...)
	return r.Post(receiver.Socket, id, payload, opts...)
}

// HasMessages reports whether the socket behind h has anything queued. A
// stale handle has nothing queued.
func (r *Registry) HasMessages(h handle.Handle) bool {
	n, err := r.Pending(h)
	return err == nil && n > 0
}

// Pending returns the number of queued messages.
func (r *Registry) Pending(h handle.Handle) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, err := r.resolveLocked(h)
	if err != nil {
		return 0, err
	}
	return s.pending(), nil
}

// Dispatch hands every message queued on h to fn in posting order and
// returns how many were delivered. The batch is detached before the first
// callback, so messages posted from inside fn (to this socket or any other)
// wait for the next Dispatch. fn runs with no lock held; the *Message it
// receives is recycled once fn returns.
//
// A socket has a single dispatcher. Concurrent Dispatch calls on the same
// handle each receive a disjoint part of the queue with no ordering between
// them.
func (r *Registry) Dispatch(h handle.Handle, fn func(*Message)) (uint32, error) {
	if fn == nil {
		return 0, errspkg.ErrCallbackRequired
	}
	return r.drain(h, fn)
}

// DispatchWith is Dispatch with a caller context threaded through to fn.
func DispatchWith[C any](r *Registry, h handle.Handle, fn func(*Message, C), c C) (uint32, error) {
	if fn == nil {
		return 0, errspkg.ErrCallbackRequired
	}
	return r.drain(h, func(m *Message) { fn(m, c) })
}

// Consume discards everything queued on h and returns how many messages
// were dropped.
func (r *Registry) Consume(h handle.Handle) (uint32, error) {
	return r.drain(h, nil)
}

func (r *Registry) drain(h handle.Handle, fn func(*Message)) (uint32, error) {
	r.mu.RLock()
	s, err := r.resolveLocked(h)
	if err != nil {
		r.mu.RUnlock()
		return 0, err
	}
	head, _ := s.detach()
	name := s.name
	r.mu.RUnlock()

	start := time.Now()
	var count uint32
	for env := head; env != nil; {
		next := env.next
		if fn != nil {
			fn(&env.Message)
		}
		r.releaseEnvelope(env)
		count++
		env = next
	}
	s.dispatched.Add(uint64(count))

	r.hooks.dispatched(DispatchEvent{
		Socket:    name,
		Handle:    h,
		Count:     count,
		StartedAt: start,
		Duration:  time.Since(start),
		Discarded: fn == nil,
	})
	return count, nil
}
