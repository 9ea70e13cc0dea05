package runtime

import (
	"time"

	"github.com/drblury/socketbus/internal/runtime/handle"
	loggingpkg "github.com/drblury/socketbus/internal/runtime/logging"
)

// DropReason says why queued messages were discarded without a callback.
type DropReason string

const (
	DropReasonSocketDeleted DropReason = "socket_deleted"
	DropReasonShutdown      DropReason = "shutdown"
	DropReasonConsumed      DropReason = "consumed"
)

// SocketEvent describes a socket being created or deleted.
type SocketEvent struct {
	Socket string
	Handle handle.Handle
	At     time.Time
}

// PostEvent describes a message accepted by Post.
type PostEvent struct {
	Socket    string
	Handle    handle.Handle
	MessageID uint64
	Size      int
	// Pending is the queue length right after the append.
	Pending int
}

// DispatchEvent describes one completed Dispatch or Consume call.
type DispatchEvent struct {
	Socket    string
	Handle    handle.Handle
	Count     uint32
	StartedAt time.Time
	Duration  time.Duration
	// Discarded is true for Consume, which drains without callbacks.
	Discarded bool
}

// DropEvent describes queued messages discarded by DeleteSocket or Shutdown.
type DropEvent struct {
	Socket string
	Handle handle.Handle
	Count  int
	Reason DropReason
}

// Hooks are optional callbacks around the socket lifecycle. They run on the
// goroutine that triggered them, after every registry and socket lock has
// been released, so they may call back into the registry.
type Hooks struct {
	OnSocketCreated func(SocketEvent)
	OnSocketDeleted func(SocketEvent)
	OnPost          func(PostEvent)
	OnDispatch      func(DispatchEvent)
	OnDrop          func(DropEvent)
}

// Merge combines two Hooks. The hooks from other run after the hooks from h.
func (h Hooks) Merge(other Hooks) Hooks {
	return Hooks{
		OnSocketCreated: chainHook(h.OnSocketCreated, other.OnSocketCreated),
		OnSocketDeleted: chainHook(h.OnSocketDeleted, other.OnSocketDeleted),
		OnPost:          chainHook(h.OnPost, other.OnPost),
		OnDispatch:      chainHook(h.OnDispatch, other.OnDispatch),
		OnDrop:          chainHook(h.OnDrop, other.OnDrop),
	}
}

func chainHook[E any](a, b func(E)) func(E) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(e E) {
		a(e)
		b(e)
	}
}

func (h Hooks) socketCreated(e SocketEvent) {
	if h.OnSocketCreated != nil {
		h.OnSocketCreated(e)
	}
}

func (h Hooks) socketDeleted(e SocketEvent) {
	if h.OnSocketDeleted != nil {
		h.OnSocketDeleted(e)
	}
}

func (h Hooks) posted(e PostEvent) {
	if h.OnPost != nil {
		h.OnPost(e)
	}
}

func (h Hooks) dispatched(e DispatchEvent) {
	if h.OnDispatch != nil {
		h.OnDispatch(e)
	}
}

func (h Hooks) dropped(e DropEvent) {
	if h.OnDrop != nil {
		h.OnDrop(e)
	}
}

// LoggingHooks returns hooks that trace the socket lifecycle on logger.
// Post and dispatch are logged at trace level since they run every frame.
func LoggingHooks(logger loggingpkg.Logger) Hooks {
	return Hooks{
		OnSocketCreated: func(e SocketEvent) {
			logger.Debug("Socket created", loggingpkg.LogFields{
				"socket": e.Socket,
				"handle": e.Handle.String(),
			})
		},
		OnSocketDeleted: func(e SocketEvent) {
			logger.Debug("Socket deleted", loggingpkg.LogFields{
				"socket": e.Socket,
				"handle": e.Handle.String(),
			})
		},
		OnPost: func(e PostEvent) {
			logger.Trace("Message posted", loggingpkg.LogFields{
				"socket":     e.Socket,
				"message_id": e.MessageID,
				"size":       e.Size,
				"pending":    e.Pending,
			})
		},
		OnDispatch: func(e DispatchEvent) {
			if e.Count == 0 {
				return
			}
			logger.Trace("Messages dispatched", loggingpkg.LogFields{
				"socket":      e.Socket,
				"count":       e.Count,
				"discarded":   e.Discarded,
				"duration_us": e.Duration.Microseconds(),
			})
		},
	}
}
