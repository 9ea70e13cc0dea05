package cli

import (
	"context"
	"errors"
	"sync"

	loggingpkg "github.com/drblury/socketbus/internal/runtime/logging"
	"github.com/drblury/socketbus/internal/runtime/system"
)

var errHeadless = errors.New("not available in a headless service")

type updateFrequencySetter interface {
	SetUpdateFrequency(hz uint32)
}

// headlessEngine serves the system socket of a service without a window or
// renderer. Exit stops the service; commands that need a display are logged
// and ignored.
type headlessEngine struct {
	logger  loggingpkg.Logger
	cancel  context.CancelFunc
	updates updateFrequencySetter

	mu       sync.Mutex
	exitCode int32
	exited   bool
}

var _ system.Engine = (*headlessEngine)(nil)

func newHeadlessEngine(logger loggingpkg.Logger, cancel context.CancelFunc) *headlessEngine {
	return &headlessEngine{logger: logger, cancel: cancel}
}

func (e *headlessEngine) Exit(code int32) {
	e.mu.Lock()
	e.exitCode = code
	e.exited = true
	e.mu.Unlock()
	e.logger.Info("Exit requested", loggingpkg.LogFields{"code": code})
	e.cancel()
}

// ExitCode reports the code of the last Exit command.
func (e *headlessEngine) ExitCode() (int32, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exitCode, e.exited
}

func (e *headlessEngine) Reboot(args []string) {
	e.logger.Warn("Ignoring reboot request", loggingpkg.LogFields{"args": args})
}

func (e *headlessEngine) ToggleProfile() {
	e.logger.Debug("Ignoring profiler toggle", nil)
}

func (e *headlessEngine) TogglePhysicsDebug() {
	e.logger.Debug("Ignoring physics debug toggle", nil)
}

func (e *headlessEngine) StartRecord(system.StartRecord) error { return errHeadless }
func (e *headlessEngine) StopRecord() error                    { return errHeadless }

func (e *headlessEngine) SetUpdateFrequency(hz uint32) {
	if e.updates == nil || hz == 0 {
		e.logger.Warn("Ignoring update frequency", loggingpkg.LogFields{"frequency": hz})
		return
	}
	e.updates.SetUpdateFrequency(hz)
	e.logger.Info("Update frequency changed", loggingpkg.LogFields{"frequency": hz})
}

func (e *headlessEngine) HideApp() {
	e.logger.Debug("Ignoring hide request", nil)
}

func (e *headlessEngine) SetVsync(swapInterval uint32) {
	e.logger.Debug("Ignoring vsync change", loggingpkg.LogFields{"swap_interval": swapInterval})
}

func (e *headlessEngine) RunScript(system.RunScript) error { return errHeadless }
