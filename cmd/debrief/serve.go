package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/mwhitby/debrief/internal/api"
	"github.com/mwhitby/debrief/internal/config"
	"github.com/mwhitby/debrief/internal/ledger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the processing ledger over HTTP and MCP (foreground)",
	Long: `Expose the processing ledger as a read-only HTTP API and an MCP server
on stdio, so other tools can query which meetings have been processed and
how recent runs went.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mcpEnabled, _ := cmd.Flags().GetBool("mcp")
		return runServer(mcpEnabled)
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", true, "also serve MCP on stdio")
}

func runServer(mcpEnabled bool) error {
	fmt.Fprintf(os.Stderr, "debrief version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := ledger.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing ledger: %v\n", err)
		}
	}()

	handler := api.NewAppHandler(api.AppDeps{
		Store: store,
		Token: cfg.Server.Token,
	})
	if cfg.Server.Token == "" {
		slog.Warn("server token not configured, API auth disabled")
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	if mcpEnabled {
		mcpSrv := api.NewMCPServer(api.MCPDeps{Store: store})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "debrief listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
