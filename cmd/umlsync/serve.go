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

	"github.com/aretw0/umlsync"
	"github.com/aretw0/umlsync/internal/cli"
	httpadapter "github.com/aretw0/umlsync/pkg/adapters/http"
	"github.com/aretw0/umlsync/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with session persistence and event streams",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics := observability.NewMetrics(reg)

		ed, cfg, logger, err := cli.NewEditor(runOptions(cmd), umlsync.WithMetrics(metrics))
		if err != nil {
			return err
		}
		defer ed.Close()

		if addr == "" {
			addr = cfg.HTTP.Addr
		}

		server := httpadapter.NewServer(httpadapter.Config{
			Dispatcher: ed.Dispatcher(),
			Parser:     ed.Parser(),
			NewEngine:  ed.NewEngine,
			Sessions:   ed.Sessions(),
			Gatherer:   reg,
			Logger:     logger,
		})
		defer server.Close()

		srv := &http.Server{
			Addr:              addr,
			Handler:           server.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			fmt.Fprintf(cmd.ErrOrStderr(), "umlsync listening on %s\n", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (default from config, :8080)")
}
