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

	"github.com/gyaneshwarpardhi/circuitflow/internal/api"
	"github.com/gyaneshwarpardhi/circuitflow/internal/config"
	"github.com/gyaneshwarpardhi/circuitflow/internal/engine"
	"github.com/gyaneshwarpardhi/circuitflow/internal/store"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address (overrides server.addr)")
	cfgPath := flag.String("config", "configs/circuitflow.yaml", "Path to YAML config")
	flag.Parse()

	var level slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &level}))
	slog.SetDefault(logger)

	// ── Load config ──────────────────────────────────────────────────────────
	loader, err := config.NewLoader(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	level.Set(cfg.Log.SlogLevel())
	if *addr == "" {
		*addr = cfg.Server.Addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Store and engine ─────────────────────────────────────────────────────
	st, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		slog.Error("failed to open graph store", "backend", cfg.Store.Backend, "err", err)
		os.Exit(1)
	}
	defer st.Close()

	eng := engine.New(ctx, cfg.Engine, st, logger)

	// ── Hot-reload watcher ───────────────────────────────────────────────────
	loader.OnChange(func(newCfg *config.Config) {
		level.Set(newCfg.Log.SlogLevel())
		eng.SetTickInterval(newCfg.Engine.TickInterval())
		if err := eng.SetHistoryCapacity(ctx, newCfg.Engine.HistoryCapacity); err != nil {
			slog.Warn("history capacity not applied", "err", err)
		}
		if newCfg.Store != cfg.Store {
			slog.Warn("store settings changed; restart to apply", "backend", newCfg.Store.Backend)
		}
		slog.Info("config hot-reloaded", "tick_interval", newCfg.Engine.TickInterval())
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── HTTP server ──────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         *addr,
		Handler:      api.New(eng, loader),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(gctx) })
	g.Go(func() error {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	// ── Graceful shutdown ────────────────────────────────────────────────────
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down…")
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutCancel()
		return srv.Shutdown(shutCtx)
	})

	err = g.Wait()
	eng.Shutdown()
	if err != nil {
		slog.Error("server error", "err", err)
		st.Close()
		os.Exit(1)
	}
	slog.Info("goodbye")
}
