// Package system routes messages posted to the "@system" socket to an engine.
package system

import (
	"github.com/drblury/socketbus/internal/runtime"
	"github.com/drblury/socketbus/internal/runtime/ddf"
	"github.com/drblury/socketbus/internal/runtime/hashing"
	loggingpkg "github.com/drblury/socketbus/internal/runtime/logging"
)

// SocketName is the socket system messages are posted to.
const SocketName = "@system"

// Engine receives decoded system commands. Methods are called on the
// goroutine that dispatches the system socket.
type Engine interface {
	Exit(code int32)
	Reboot(args []string)
	ToggleProfile()
	TogglePhysicsDebug()
	StartRecord(StartRecord) error
	StopRecord() error
	SetUpdateFrequency(hz uint32)
	HideApp()
	SetVsync(swapInterval uint32)
	RunScript(RunScript) error
}

// Option configures a Handler.
type Option func(*Handler)

// WithDebug enables commands that are only honoured in debug builds.
func WithDebug(debug bool) Option {
	return func(h *Handler) { h.debug = debug }
}

// WithReverseTable makes diagnostics print the strings behind URL hashes.
func WithReverseTable(t *hashing.ReverseTable) Option {
	return func(h *Handler) { h.reverse = t }
}

// WithLogger sets the logger for diagnostics and dropped messages.
func WithLogger(logger loggingpkg.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// Handler routes "@system" messages to an Engine.
type Handler struct {
	engine   Engine
	registry *runtime.Registry
	logger   loggingpkg.Logger
	reverse  *hashing.ReverseTable
	debug    bool
}

// NewHandler returns a handler that names sender URLs through r.
func NewHandler(r *runtime.Registry, engine Engine, opts ...Option) *Handler {
	h := &Handler{
		engine:   engine,
		registry: r,
		logger:   loggingpkg.NopLogger{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle decodes one system message and forwards it to the engine. Messages
// it cannot decode or does not recognise are logged and dropped.
func (h *Handler) Handle(m *runtime.Message) {
	if m.Descriptor == nil {
		h.logger.Warn("Only system messages can be sent to the socket", h.diagnostics(m, nil))
		return
	}
	d, ok := m.Descriptor.(*ddf.Descriptor)
	if !ok {
		h.unknown(m)
		return
	}

	switch d {
	case ExitDescriptor:
		var msg Exit
		if h.decode(m, &msg) {
			h.engine.Exit(msg.Code)
		}
	case RebootDescriptor:
		var msg Reboot
		if h.decode(m, &msg) {
			h.engine.Reboot(msg.Arguments())
		}
	case ToggleProfileDescriptor:
		h.engine.ToggleProfile()
	case TogglePhysicsDebugDescriptor:
		if h.debug {
			h.engine.TogglePhysicsDebug()
		}
	case StartRecordDescriptor:
		var msg StartRecord
		if h.decode(m, &msg) {
			if err := h.engine.StartRecord(msg); err != nil {
				h.logger.Error("Unable to start recording", err, loggingpkg.LogFields{"file_name": msg.FileName})
			}
		}
	case StopRecordDescriptor:
		if err := h.engine.StopRecord(); err != nil {
			h.logger.Error("Unable to stop recording", err, nil)
		}
	case SetUpdateFrequencyDescriptor:
		var msg SetUpdateFrequency
		if h.decode(m, &msg) {
			h.engine.SetUpdateFrequency(msg.Frequency)
		}
	case HideAppDescriptor:
		h.engine.HideApp()
	case SetVsyncDescriptor:
		var msg SetVsync
		if h.decode(m, &msg) {
			h.engine.SetVsync(msg.SwapInterval)
		}
	case RunScriptDescriptor:
		var msg RunScript
		if h.decode(m, &msg) {
			if err := h.engine.RunScript(msg); err != nil {
				h.logger.Error("Unable to run script", err, loggingpkg.LogFields{"module": msg.Module})
			}
		}
	default:
		h.unknown(m)
	}
}

func (h *Handler) decode(m *runtime.Message, dst ddf.Decoder) bool {
	if err := ddf.Unmarshal(m.Payload, dst); err != nil {
		h.logger.Error("Malformed system message", err, h.diagnostics(m, m.Descriptor))
		return false
	}
	return true
}

func (h *Handler) unknown(m *runtime.Message) {
	h.logger.Warn("Unknown system message", h.diagnostics(m, m.Descriptor))
}

func (h *Handler) diagnostics(m *runtime.Message, d runtime.Descriptor) loggingpkg.LogFields {
	fields := loggingpkg.LogFields{
		"sender":     h.registry.FormatURL(m.Sender, h.reverse),
		"message_id": m.ID,
	}
	if d != nil {
		fields["descriptor"] = d.DescriptorName()
	}
	return fields
}

// Post encodes msg and posts it to the system socket behind receiver.
func Post(r *runtime.Registry, receiver runtime.URL, sender runtime.URL, msg ddf.Message) error {
	payload, err := ddf.Marshal(msg)
	if err != nil {
		return err
	}
	d := msg.DDFDescriptor()
	return r.PostTo(receiver, d.NameHash, payload,
		runtime.WithSender(sender),
		runtime.WithDescriptor(d),
	)
}
