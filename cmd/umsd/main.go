package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/marmos91/umsd/cmd/umsd/commands"
	"github.com/marmos91/umsd/pkg/server"
)

// Build-time variables injected via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		var be *server.BootstrapError
		if errors.As(err, &be) {
			// Exit codes are unsigned; the magnitude of the status is used.
			fmt.Fprintf(os.Stderr, "bootstrap status: %d\n", be.Status)
			os.Exit(int(-be.Status))
		}
		os.Exit(1)
	}
}
