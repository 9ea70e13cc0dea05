// Command socketbus runs a socket bus service and talks to running ones.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/drblury/socketbus/internal/cli"
)

var version = "dev"

func main() {
	cmd := cli.NewRootCommand(version)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
