package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pricestream/pricestream/server/internal/api"
	"github.com/pricestream/pricestream/server/internal/config"
	"github.com/pricestream/pricestream/server/internal/hub"
	"github.com/pricestream/pricestream/server/internal/metrics"
	"github.com/pricestream/pricestream/server/internal/price"
	"github.com/pricestream/pricestream/server/internal/sse"
	"github.com/pricestream/pricestream/server/internal/ws"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "path to YAML config file; empty uses defaults and environment")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the config; ignored if missing")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("pricestream-server starting", "config", *configPath)

	if err := config.LoadDotEnv(*envFile); err != nil {
		slog.Error("failed to load env file", "err", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level.Set(cfg.Log.SlogLevel())

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"static_dir", cfg.Server.StaticDir,
		"endpoint", cfg.Source.Endpoint,
		"symbol", cfg.Source.Symbol,
		"refresh_interval", cfg.Refresh.Interval,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	h := hub.New(price.NewBinance(cfg.Source), cfg.Refresh.Interval)

	mux := http.NewServeMux()
	mux.Handle("/events", sse.New(h, cfg.Server.WriteTimeout, cfg.Server.KeepAliveInterval))
	mux.Handle("/ws/stream", ws.New(h, cfg.Server.WriteTimeout))
	mux.Handle("/api/", api.New(h))
	mux.Handle("/metrics", metrics.Handler(h))
	mux.Handle("/", http.FileServer(http.Dir(cfg.Server.StaticDir)))

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		h.Run(gctx)
		return nil
	})

	g.Go(func() error {
		slog.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("pricestream-server shutting down")
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()
		return srv.Shutdown(sctx)
	})

	if *configPath != "" {
		// Only the log level is applied live; the refresh ticker is never reset.
		g.Go(func() error {
			err := config.Watch(gctx, *configPath, func(updated *config.Config) {
				level.Set(updated.Log.SlogLevel())
				slog.Info("config hot-reloaded", "log_level", updated.Log.Level)
			})
			if err != nil {
				slog.Error("config watcher stopped", "err", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		slog.Error("pricestream-server stopped", "err", err)
		os.Exit(1)
	}
}
