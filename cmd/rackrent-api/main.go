package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rackrent/internal/api"
	"rackrent/internal/config"
	"rackrent/internal/db"
	"rackrent/internal/engine"
	"rackrent/internal/notify"
	"rackrent/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadAPIFromEnv()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	snapshots, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("open snapshot store failed", "err", err)
		os.Exit(1)
	}
	defer snapshots.Close()

	eng := engine.New(cfg.Engine, logger)
	if snap, found, err := snapshots.Load(ctx); err != nil {
		logger.Error("load snapshot failed", "err", err)
		os.Exit(1)
	} else if found {
		eng.RestoreFrom(snap)
		logger.Info("game restored", "saved_at", snap.SavedAt)
	} else {
		logger.Info("starting a fresh game", "company", cfg.Engine.CompanyName)
	}

	hub := notify.NewHub(ctx, logger)
	hub.Attach(eng)

	go eng.Run(ctx)
	go autosave(ctx, snapshots, eng, cfg.SaveEvery, logger)

	server := api.New(cfg, logger, eng, hub)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("rackrent api listening", "addr", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}

	// Final save after the listener drains.
	saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := snapshots.Save(saveCtx, eng.Snapshot()); err != nil {
		logger.Error("final save failed", "err", err)
		os.Exit(1)
	}
	logger.Info("game saved, bye")
}

func openStore(ctx context.Context, cfg config.APIConfig, logger *slog.Logger) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Info("using file snapshot store", "path", cfg.SavePath)
		return store.NewFileStore(cfg.SavePath, logger), nil
	}
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	logger.Info("using postgres snapshot store")
	return store.NewPostgresStore(ctx, pool, logger)
}

func autosave(ctx context.Context, snapshots store.Store, eng *engine.Engine, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			saveCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := snapshots.Save(saveCtx, eng.Snapshot())
			cancel()
			if err != nil {
				logger.Error("autosave failed", "err", err)
				continue
			}
			logger.Info("autosave complete")
		}
	}
}
