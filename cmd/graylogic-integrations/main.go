// Gray Logic Integrations - device setup and polling service
//
// This is the main entry point for the integrations service. It hosts the
// setup flows and pollers for devices that Gray Logic does not reach over
// its building bus, such as Minecraft servers and Landis+Gyr heat meters
// read through an optical probe.
//
// Usage:
//
//	graylogic-integrations                  # run the service (same as serve)
//	graylogic-integrations resolve <addr>   # show the identity of a server address
//	graylogic-integrations ports            # list serial ports
//	graylogic-integrations token <subject>  # mint an API token
//	graylogic-integrations setup <domain>   # set up a device in the terminal
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/gray-logic-integrations/internal/cli"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	// Cancel on Ctrl+C and SIGTERM so serve can shut down cleanly
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root := cli.NewRootCommand(cli.BuildInfo{Version: version, Commit: commit, Date: date})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}
