package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/citekit/internal/adapters/driving/mcp"
	"github.com/custodia-labs/citekit/internal/logger"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

By default, the server communicates over stdio using JSON-RPC and can be
used with MCP-compatible AI assistants. The server exposes the search and
cite tools plus knowledge base and citation record resources.

While serving, edits to the configuration file are picked up: valid search
settings are applied to subsequent searches, invalid ones are logged and
ignored.

Use --port to start an HTTP server instead, which enables:
  - Testing with MCP Inspector web UI
  - Remote access via HTTP

Examples:
  # Stdio mode (default)
  citekit mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  citekit mcp serve --port 8080

Client configuration:
  {
    "mcpServers": {
      "citekit": {
        "command": "/path/to/citekit",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	ports := &mcp.Ports{
		Search:        searchService,
		Citation:      citationService,
		KnowledgeBase: knowledgeBaseService,
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()
	startConfigReload(ctx)

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(ctx, addr)
	}

	return server.Run(ctx)
}

// startConfigReload applies reloaded search settings until ctx ends.
func startConfigReload(ctx context.Context) {
	if services == nil || services.WatchConfig == nil || services.ApplySearchSettings == nil || settingsService == nil {
		return
	}

	go func() {
		err := services.WatchConfig(ctx, reloadSearchSettings)
		if err != nil && ctx.Err() == nil {
			logger.Warn("Config watcher stopped: %v", err)
		}
	}()
}

// reloadSearchSettings re-resolves settings and swaps in the search section.
// An invalid configuration leaves the running settings untouched.
func reloadSearchSettings() error {
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("reloading settings: %w", err)
	}
	if err := services.ApplySearchSettings(settings.Search); err != nil {
		return fmt.Errorf("applying search settings: %w", err)
	}
	logger.Info("Search settings reloaded")
	return nil
}
