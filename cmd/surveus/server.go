package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/surveus/surveus/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the surveus HTTP and MCP servers (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(true)
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server on stdio only",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(false)
	},
}

func runServer(withHTTP bool) error {
	fmt.Fprintf(os.Stderr, "surveus version %s\n", version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mode := "mcp"
	if withHTTP {
		mode = "serve"
	}
	a, err := newApp(ctx, mode)
	if err != nil {
		return err
	}
	defer a.Close()

	g, gctx := errgroup.WithContext(ctx)

	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Store:  a.store,
		Runner: a.runner,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	g.Go(func() error {
		if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	})
	a.logger.Info("MCP server started (stdio transport)")

	if withHTTP {
		handler := api.NewHandler(api.Deps{
			Store:  a.store,
			Runner: a.runner,
			Token:  a.cfg.Server.APIToken,
		})
		addr := fmt.Sprintf("127.0.0.1:%d", a.cfg.Server.Port)
		srv := &http.Server{
			Addr:    addr,
			Handler: handler,
		}

		g.Go(func() error {
			a.logger.Info("surveus listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	fmt.Fprintln(os.Stderr, "shutting down...")
	return nil
}
