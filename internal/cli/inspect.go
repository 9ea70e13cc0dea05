package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/drblury/socketbus/internal/runtime"
)

// NewSocketsCommand lists the sockets of a running service.
func NewSocketsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sockets",
		Short: "List the sockets of a running service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sockets, err := newAPIClient(opts.Addr).Sockets(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list sockets", err)
			}
			return newOutput(cmd, opts).Success(sockets, formatSockets(sockets))
		},
	}
}

// NewStatusCommand prints the status of a running service.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the status of a running service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := newAPIClient(opts.Addr).Status(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read status", err)
			}
			return newOutput(cmd, opts).Success(status, formatStatus(status))
		},
	}
}

func formatSockets(sockets []runtime.SocketInfo) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tHANDLE\tPENDING\tPOSTED\tDISPATCHED")
	for _, s := range sockets {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n", s.Name, s.Handle, s.Pending, s.Posted, s.Dispatched)
	}
	_ = w.Flush()
	return strings.TrimRight(b.String(), "\n")
}

func formatStatus(s runtime.ServiceStatus) string {
	transport := s.Transport
	if transport == "" {
		transport = "none"
	}
	return fmt.Sprintf("sockets: %d/%d\nupdate frequency: %d Hz\ntransport: %s\nuptime: %s\ncpu: %.1f%%\nheap: %d bytes\ngoroutines: %d",
		s.Sockets, s.Capacity, s.UpdateFrequency, transport, s.Uptime,
		s.Process.CPUPercent, s.Process.HeapBytes, s.Process.Goroutines)
}
