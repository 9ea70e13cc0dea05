package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/drblury/socketbus/internal/runtime"
	"github.com/drblury/socketbus/internal/runtime/config"
	"github.com/drblury/socketbus/internal/runtime/ddf"
	loggingpkg "github.com/drblury/socketbus/internal/runtime/logging"
	"github.com/drblury/socketbus/internal/runtime/system"

	// Transports register themselves with transport.DefaultRegistry.
	_ "github.com/drblury/socketbus/transport/aws"
	_ "github.com/drblury/socketbus/transport/channel"
	_ "github.com/drblury/socketbus/transport/http"
	_ "github.com/drblury/socketbus/transport/kafka"
	_ "github.com/drblury/socketbus/transport/nats"
	_ "github.com/drblury/socketbus/transport/rabbitmq"
)

const shutdownTimeout = 10 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	ConfigFile string
}

// NewServeCommand runs a service until it is interrupted or told to exit.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a socket bus service",
		Long: `Run a socket bus service.

Settings come from SOCKETBUS_* variables, a .env file in the working
directory, and optionally a YAML file. The "@system" socket accepts the
commands sent by "socketbus system"; exit stops the service with the given
code.

Example:
  socketbus serve
  SOCKETBUS_PUBSUB_SYSTEM=nats SOCKETBUS_NATS_URL=nats://localhost:4222 socketbus serve
  socketbus serve --config socketbus.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigFile, "config", "c", "", "YAML configuration file")

	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

func newLogger(w io.Writer, verbose bool, format string) loggingpkg.Logger {
	level := slog.LevelInfo
	if verbose {
		level = loggingpkg.LevelTrace
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return loggingpkg.NewSlogLogger(slog.New(slog.NewJSONHandler(w, handlerOpts)))
	}
	return loggingpkg.NewSlogLogger(slog.New(slog.NewTextHandler(w, handlerOpts)))
}

// descriptorResolver restores system descriptors on bridged and API posts.
func descriptorResolver(r *ddf.Registry) runtime.DescriptorResolver {
	return func(name string) (runtime.Descriptor, bool) {
		d, ok := r.Lookup(name)
		if !ok {
			return nil, false
		}
		return d, true
	}
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	conf, err := loadConfig(opts.ConfigFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose, opts.Format)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	svc, engine, err := newSystemService(ctx, conf, logger, cancel)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create service", err)
	}

	runErr := svc.Start(ctx)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := errors.Join(runErr, svc.Shutdown(shutdownCtx)); err != nil {
		return WrapExitError(ExitFailure, "service stopped with errors", err)
	}

	if code, ok := engine.ExitCode(); ok && code != 0 {
		return NewExitError(int(code), fmt.Sprintf("exit requested with code %d", code))
	}
	return nil
}

// newSystemService builds a service whose "@system" socket drives a headless
// engine. Exit commands call cancel.
func newSystemService(ctx context.Context, conf *config.Config, logger loggingpkg.Logger, cancel context.CancelFunc) (*runtime.Service, *headlessEngine, error) {
	descriptors, err := ddf.NewRegistry(system.Descriptors()...)
	if err != nil {
		return nil, nil, err
	}

	engine := newHeadlessEngine(logger, cancel)
	var systemHandler *system.Handler
	svc, err := runtime.NewService(ctx, conf, logger, runtime.ServiceDependencies{
		Consumers: []runtime.Consumer{{
			Socket: system.SocketName,
			Handle: func(m *runtime.Message) { systemHandler.Handle(m) },
		}},
		Descriptors: descriptorResolver(descriptors),
	})
	if err != nil {
		return nil, nil, err
	}
	systemHandler = system.NewHandler(svc.Registry(), engine,
		system.WithDebug(conf.DebugMode),
		system.WithReverseTable(svc.ReverseTable()),
		system.WithLogger(logger),
	)
	engine.updates = svc
	return svc, engine, nil
}
