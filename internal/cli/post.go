package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/drblury/socketbus/internal/runtime"
	"github.com/drblury/socketbus/internal/runtime/ddf"
	"github.com/drblury/socketbus/internal/runtime/system"
)

// PostOptions holds flags for the post command.
type PostOptions struct {
	*RootOptions
	Message    string
	ID         uint64
	Descriptor string
	Path       string
	Fragment   string
	Data       string
	DataFile   string
}

// NewPostCommand posts a raw message to a socket of a running service.
func NewPostCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PostOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "post <socket>",
		Short: "Post a message to a socket of a running service",
		Long: `Post a message to a socket of a running service.

The message id is the hash of --message, or --id as given. --path and
--fragment address an entity behind the socket.

Example:
  socketbus post main --message hello --data world
  socketbus post @render --id 42 --path camera --data-file frame.bin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postMessage(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Message, "message", "", "message name, hashed into the message id")
	cmd.Flags().Uint64Var(&opts.ID, "id", 0, "raw message id")
	cmd.Flags().StringVar(&opts.Descriptor, "descriptor", "", "descriptor name known to the service")
	cmd.Flags().StringVar(&opts.Path, "path", "", "receiver path")
	cmd.Flags().StringVar(&opts.Fragment, "fragment", "", "receiver fragment")
	cmd.Flags().StringVar(&opts.Data, "data", "", "payload")
	cmd.Flags().StringVar(&opts.DataFile, "data-file", "", "read the payload from a file")
	cmd.MarkFlagsMutuallyExclusive("message", "id")
	cmd.MarkFlagsMutuallyExclusive("data", "data-file")

	return cmd
}

func postMessage(cmd *cobra.Command, opts *PostOptions, socket string) error {
	payload := []byte(opts.Data)
	if opts.DataFile != "" {
		raw, err := os.ReadFile(opts.DataFile)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read payload", err)
		}
		payload = raw
	}

	req := runtime.PostRequest{
		MessageID:  opts.ID,
		Message:    opts.Message,
		Descriptor: opts.Descriptor,
		Path:       opts.Path,
		Fragment:   opts.Fragment,
		Payload:    payload,
	}
	if err := newAPIClient(opts.Addr).Post(cmd.Context(), socket, req); err != nil {
		return WrapExitError(ExitFailure, "failed to post message", err)
	}
	return newOutput(cmd, opts.RootOptions).Success(
		map[string]any{"socket": socket, "bytes": len(payload)},
		fmt.Sprintf("posted %d bytes to %s", len(payload), socket),
	)
}

// NewSystemCommand groups the commands understood by the "@system" socket.
func NewSystemCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "system",
		Short: "Send a command to the system socket of a running service",
	}

	var code int32
	exit := systemCommand(opts, "exit", "Stop the service", cobra.NoArgs, func([]string) (ddf.Message, error) {
		return &system.Exit{Code: code}, nil
	})
	exit.Flags().Int32Var(&code, "code", 0, "process exit code")

	var record system.StartRecord
	startRecord := systemCommand(opts, "start-record <file>", "Start recording", cobra.ExactArgs(1), func(args []string) (ddf.Message, error) {
		msg := record
		msg.FileName = args[0]
		return &msg, nil
	})
	startRecord.Flags().Int32Var(&record.FramePeriod, "frame-period", 2, "record every nth frame")
	startRecord.Flags().Int32Var(&record.FPS, "fps", 30, "frames per second of the recording")

	cmd.AddCommand(
		exit,
		systemCommand(opts, "reboot [args...]", "Restart the engine with new arguments", cobra.MaximumNArgs(system.RebootArgs), func(args []string) (ddf.Message, error) {
			var msg system.Reboot
			copy(msg.Args[:], args)
			return &msg, nil
		}),
		systemCommand(opts, "toggle-profile", "Toggle the profiler", cobra.NoArgs, func([]string) (ddf.Message, error) {
			return &system.ToggleProfile{}, nil
		}),
		systemCommand(opts, "toggle-physics-debug", "Toggle physics debug drawing (debug builds)", cobra.NoArgs, func([]string) (ddf.Message, error) {
			return &system.TogglePhysicsDebug{}, nil
		}),
		startRecord,
		systemCommand(opts, "stop-record", "Stop recording", cobra.NoArgs, func([]string) (ddf.Message, error) {
			return &system.StopRecord{}, nil
		}),
		systemCommand(opts, "set-update-frequency <hz>", "Change the update frequency", cobra.ExactArgs(1), func(args []string) (ddf.Message, error) {
			hz, err := parseUint32(args[0])
			if err != nil {
				return nil, err
			}
			return &system.SetUpdateFrequency{Frequency: hz}, nil
		}),
		systemCommand(opts, "hide-app", "Hide the application window", cobra.NoArgs, func([]string) (ddf.Message, error) {
			return &system.HideApp{}, nil
		}),
		systemCommand(opts, "set-vsync <swap-interval>", "Change the swap interval", cobra.ExactArgs(1), func(args []string) (ddf.Message, error) {
			n, err := parseUint32(args[0])
			if err != nil {
				return nil, err
			}
			return &system.SetVsync{SwapInterval: n}, nil
		}),
		systemCommand(opts, "run-script <module> <file>", "Load a script module", cobra.ExactArgs(2), func(args []string) (ddf.Message, error) {
			source, err := os.ReadFile(args[1])
			if err != nil {
				return nil, err
			}
			return &system.RunScript{Module: args[0], Source: string(source)}, nil
		}),
	)
	return cmd
}

func systemCommand(opts *RootOptions, use, short string, args cobra.PositionalArgs, build func([]string) (ddf.Message, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := build(args)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid arguments", err)
			}
			req, err := systemRequest(msg)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to encode command", err)
			}
			if err := newAPIClient(opts.Addr).Post(cmd.Context(), system.SocketName, req); err != nil {
				return WrapExitError(ExitFailure, "failed to send command", err)
			}
			name := msg.DDFDescriptor().DescriptorName()
			return newOutput(cmd, opts).Success(map[string]string{"command": name}, "sent "+name)
		},
	}
}

// systemRequest encodes msg the way system.Post does in-process.
func systemRequest(msg ddf.Message) (runtime.PostRequest, error) {
	payload, err := ddf.Marshal(msg)
	if err != nil {
		return runtime.PostRequest{}, err
	}
	d := msg.DDFDescriptor()
	return runtime.PostRequest{
		MessageID:  d.NameHash,
		Descriptor: d.DescriptorName(),
		Payload:    payload,
	}, nil
}

func parseUint32(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%q is not an unsigned 32-bit integer", s)
	}
	return uint32(n), nil
}
