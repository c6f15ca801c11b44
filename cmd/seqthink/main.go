// Command seqthink is the process entrypoint: it wires
// internal/config → internal/provider → internal/mcp → internal/httpapi
// and starts the HTTP server named in spec §6.
//
// Wiring order grounded on the teacher's cmd/omega/main.go (load .env,
// build LLM client, build MCP manager, build and start the server);
// command-line surface grounded on the rest of the pack's spf13/cobra
// CLIs (e.g. janhq-server's cmd/jan-cli) rather than the teacher's own
// flag-free main, since the teacher has no subcommands worth keeping
// and cobra is already a pack dependency this engine exercises nowhere
// else.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/seqthink/engine/internal/config"
	"github.com/seqthink/engine/internal/httpapi"
	"github.com/seqthink/engine/internal/mcp"
	"github.com/seqthink/engine/internal/store"
)

func main() {
	root := &cobra.Command{
		Use:   "seqthink",
		Short: "Sequential-thinking MCP orchestration engine",
	}
	root.AddCommand(serveCmd())
	root.AddCommand(mcpCmd())

	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("seqthink")
	}
}

func serveCmd() *cobra.Command {
	var maxRounds, maxRetries int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(maxRounds, maxRetries)
		},
	}
	cmd.Flags().IntVar(&maxRounds, "max-rounds", 5, "maximum reasoning rounds per request (spec §4.E max_rounds)")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 3, "formatter extraction retries on the final round")
	return cmd
}

func runServe(maxRounds, maxRetries int) error {
	config.LoadEnv()

	cfg, err := config.NewEngineConfigFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	zerolog.SetGlobalLevel(parseLevel(cfg.LogLevel))

	mgr := mcp.NewManager(cfg.MCPConfigPath)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, statErr := os.Stat(cfg.MCPConfigPath); statErr == nil {
		n, errs := mgr.ConnectAll(ctx)
		for _, e := range errs {
			log.Warn().Err(e).Msg("mcp server failed to start")
		}
		log.Info().Int("ready_servers", n).Msg("mcp manager started")
	} else {
		log.Info().Str("path", cfg.MCPConfigPath).Msg("no mcp config found, starting with zero servers")
	}
	defer mgr.CloseAll()

	handler := &httpapi.Handler{
		Manager: mgr,
		Providers: httpapi.ProviderKeys{
			OpenAIAPIKey:    cfg.OpenAIAPIKey,
			AnthropicAPIKey: cfg.AnthropicAPIKey,
			GeminiAPIKey:    cfg.GeminiAPIKey,
		},
		Store:      store.New(),
		MaxRounds:  maxRounds,
		MaxRetries: maxRetries,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpapi.NewMux(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("seqthink listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Info().Msg("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// mcpCmd groups operator-facing inspection of the shared MCP Manager's
// catalog, separate from `serve` so a config can be sanity-checked
// without binding an HTTP port.
func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Inspect and reload MCP server configuration",
	}
	cmd.AddCommand(mcpListCmd())
	cmd.AddCommand(mcpReloadCmd())
	return cmd
}

func mcpListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Connect to every configured MCP server and print the resolved tool catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			config.LoadEnv()
			cfg, err := config.NewEngineConfigFromEnv()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			mgr := mcp.NewManager(cfg.MCPConfigPath)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			n, errs := mgr.ConnectAll(ctx)
			for _, e := range errs {
				fmt.Fprintf(cmd.OutOrStdout(), "server failed: %v\n", e)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d server(s) ready\n", n)

			for _, t := range mgr.AvailableTools(nil) {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\t(%s / %s)\n", t.WireName, t.ServerName, t.ToolName)
			}
			mgr.CloseAll()
			return nil
		},
	}
}

func mcpReloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Re-read mcp.json and reconcile server connections without a running server process",
		RunE: func(cmd *cobra.Command, args []string) error {
			config.LoadEnv()
			cfg, err := config.NewEngineConfigFromEnv()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			mgr := mcp.NewManager(cfg.MCPConfigPath)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if _, errs := mgr.ConnectAll(ctx); len(errs) > 0 {
				for _, e := range errs {
					fmt.Fprintf(cmd.OutOrStdout(), "initial connect: %v\n", e)
				}
			}
			summary, err := mgr.Reload(ctx)
			mgr.CloseAll()
			if err != nil {
				return fmt.Errorf("reload: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), summary)
			return nil
		},
	}
}

func parseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
