package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserverpkg "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/levchenko/complychat/internal/config"
	"github.com/levchenko/complychat/internal/devserver"
	"github.com/levchenko/complychat/internal/mcpserver"
)

var devserverAddr string

var devserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run a local stub of the ComplianceAI backend",
	Long: `Run an in-memory stub implementing the backend contract: auth, document
ingestion, querying, history, and the demo document. Useful for trying the
client without a deployment; all state is lost on exit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg.Log.Level)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv := &http.Server{
			Addr:    devserverAddr,
			Handler: devserver.New().Handler(),
		}

		errCh := make(chan error, 1)
		go func() {
			slog.Info("devserver listening", "addr", devserverAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		slog.Info("shutting down devserver")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the compliance assistant over MCP on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.requireLogin(); err != nil {
			return err
		}

		ctl, store, err := a.openController()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv := mcpserver.New(mcpserver.Deps{Controller: ctl})
		stdio := mcpserverpkg.NewStdioServer(srv)
		if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	devserverCmd.Flags().StringVar(&devserverAddr, "addr", "127.0.0.1:8000", "listen address")
}
