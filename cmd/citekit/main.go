// Command citekit indexes documents into knowledge bases and serves
// citation-anchored hybrid search from the command line and over MCP.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/citekit/internal/adapters/driving/cli"
	"github.com/custodia-labs/citekit/internal/logger"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cli.SetBootstrap(bootstrap)
	err := cli.Execute(ctx, version)

	stop()
	logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}
