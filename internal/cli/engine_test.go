package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/socketbus/internal/runtime"
	"github.com/drblury/socketbus/internal/runtime/config"
	"github.com/drblury/socketbus/internal/runtime/ddf"
	loggingpkg "github.com/drblury/socketbus/internal/runtime/logging"
	"github.com/drblury/socketbus/internal/runtime/system"
)

func newTestSystemService(t *testing.T) (*runtime.Service, *headlessEngine, context.Context) {
	t.Helper()
	conf, err := config.Defaults()
	require.NoError(t, err)
	conf.MetricsPort = 0

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	svc, engine, err := newSystemService(ctx, conf, loggingpkg.NopLogger{}, cancel)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })
	return svc, engine, ctx
}

func postSystem(t *testing.T, svc *runtime.Service, msg ddf.Message) {
	t.Helper()
	h, ok := svc.Registry().GetSocket(system.SocketName)
	require.True(t, ok)
	require.NoError(t, system.Post(svc.Registry(), runtime.URL{Socket: h}, runtime.URL{}, msg))
}

func TestSystemServiceExit(t *testing.T) {
	svc, engine, ctx := newTestSystemService(t)

	postSystem(t, svc, &system.Exit{Code: 4})
	assert.Equal(t, uint32(1), svc.Update(ctx))

	code, ok := engine.ExitCode()
	assert.True(t, ok)
	assert.Equal(t, int32(4), code)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestSystemServiceUpdateFrequency(t *testing.T) {
	svc, engine, ctx := newTestSystemService(t)

	postSystem(t, svc, &system.SetUpdateFrequency{Frequency: 15})
	svc.Update(ctx)
	assert.Equal(t, uint32(15), svc.UpdateFrequency())

	postSystem(t, svc, &system.SetUpdateFrequency{Frequency: 0})
	svc.Update(ctx)
	assert.Equal(t, uint32(15), svc.UpdateFrequency())

	_, exited := engine.ExitCode()
	assert.False(t, exited)
	assert.NoError(t, ctx.Err())
}

func TestHeadlessEngineUnsupported(t *testing.T) {
	engine := newHeadlessEngine(loggingpkg.NopLogger{}, func() {})

	assert.ErrorIs(t, engine.StartRecord(system.StartRecord{FileName: "a.webm"}), errHeadless)
	assert.ErrorIs(t, engine.StopRecord(), errHeadless)
	assert.ErrorIs(t, engine.RunScript(system.RunScript{Module: "m"}), errHeadless)

	// No service attached; logged and ignored.
	engine.SetUpdateFrequency(30)
	engine.Reboot([]string{"game.projectc"})
	engine.ToggleProfile()
	engine.TogglePhysicsDebug()
	engine.HideApp()
	engine.SetVsync(1)

	_, exited := engine.ExitCode()
	assert.False(t, exited)
}

func TestDescriptorResolver(t *testing.T) {
	r, err := ddf.NewRegistry(system.Descriptors()...)
	require.NoError(t, err)
	resolve := descriptorResolver(r)

	d, ok := resolve("system.Exit")
	require.True(t, ok)
	assert.Same(t, system.ExitDescriptor, d)

	d, ok = resolve("system.Missing")
	assert.False(t, ok)
	assert.Nil(t, d)
}
