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

	"github.com/dgallion1/docstruct/internal/api"
	"github.com/dgallion1/docstruct/internal/merge"
	"github.com/dgallion1/docstruct/internal/pipeline"
	"github.com/spf13/cobra"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the extraction HTTP API",
	Long: `Serve accepts uploads on POST /api/extract, runs them on a worker pool and
serves job status and results. Prometheus metrics are exposed on /metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Port = servePort
		}
		if err := cfg.Validate(); err != nil {
			log.Error("invalid configuration", "error", err)
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		// External merge is available per request whenever a key is set.
		var stats *merge.Stats
		var merger merge.Merger
		if cfg.MergeAPIKey() != "" {
			store, err := pipeline.OpenCache(ctx, cfg, log)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}
			stats = merge.NewStats(cfg.StatsWindow)
			if merger, err = pipeline.NewMerger(cfg, store, stats, log); err != nil {
				return err
			}
		}

		ex, err := pipeline.NewExtractor(cfg, merger, log)
		if err != nil {
			return err
		}

		// Initialize pipeline.
		orch := pipeline.NewOrchestrator(cfg, ex, log)
		orch.Start(ctx)

		// Initialize HTTP server.
		srv := api.NewServer(orch, stats, log, cfg)

		httpServer := &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      srv,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		// Graceful shutdown.
		go func() {
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			log.Info("shutting down...")

			orch.Stop()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			_ = httpServer.Shutdown(shutdownCtx)
		}()

		log.Info("starting docstruct",
			"port", cfg.Port,
			"workers", cfg.WorkerCount,
			"merge", cfg.MergeMode,
			"external_merge", merger != nil,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "Listen port (default $PORT or 8090)")

	rootCmd.AddCommand(serveCmd)
}
