// Package cli implements the socketbus command line.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// DefaultAPIAddress is where serve exposes the inspection API by default.
const DefaultAPIAddress = "http://localhost:8081"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Addr    string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command of the socketbus CLI.
func NewRootCommand(version string) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "socketbus",
		Short: "socketbus - in-process message bus",
		Long:  "Run a socket bus service and talk to a running one through its inspection API.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Addr, "addr", DefaultAPIAddress, "inspection API of a running service")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewPostCommand(opts))
	cmd.AddCommand(NewSystemCommand(opts))
	cmd.AddCommand(NewSocketsCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts, version))

	return cmd
}

// NewVersionCommand prints the build version.
func NewVersionCommand(opts *RootOptions, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the socketbus version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return newOutput(cmd, opts).Success(map[string]string{"version": version}, version)
		},
	}
}
