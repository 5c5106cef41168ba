package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	playbookhttp "github.com/aretw0/playbook/pkg/adapters/http"
	"github.com/aretw0/playbook/pkg/adapters/mcp"
)

const shutdownGrace = 5 * time.Second

// Serve runs the HTTP operator API until ctx ends, then drains requests.
func Serve(ctx context.Context, app *App, port string) error {
	handler := playbookhttp.NewHandler(app.Engine,
		playbookhttp.WithStreams(app.Streams),
		playbookhttp.WithGatherer(app.Gatherer()),
		playbookhttp.WithLogger(app.Logger),
	)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		app.Logger.Info("Starting playbook server", "addr", srv.Addr, "metrics", app.Registry != nil)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		app.Logger.Info("Start shutdown...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.Logger.Warn("Graceful shutdown did not complete", "grace", shutdownGrace, "err", err)
			if err := srv.Close(); err != nil {
				return fmt.Errorf("error killing server: %w", err)
			}
		}
		app.Logger.Info("playbook server stopped gracefully")
		return nil
	}
}

// ServeMCP exposes the engine as an MCP server over stdio or SSE.
func ServeMCP(ctx context.Context, app *App, transport string, port int) error {
	srv := mcp.NewServer(app.Engine)

	switch transport {
	case "stdio":
		// Keep stdout free for JSON-RPC.
		log.SetOutput(os.Stderr)
		app.Logger.Info("Starting playbook MCP Server (Stdio)...")
		return srv.ServeStdio()
	case "sse":
		app.Logger.Info("Starting playbook MCP Server (SSE)", "port", port)
		if err := srv.ServeSSE(ctx, port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		app.Logger.Info("MCP Server stopped gracefully")
		return nil
	}
	return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
}
