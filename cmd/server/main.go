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

	"go.uber.org/zap"

	"turngames/internal/config"
	"turngames/internal/game"
	"turngames/internal/game/tictactoe"
	"turngames/internal/server"
	"turngames/internal/session"
	"turngames/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := cfg.Logger()
	if err != nil {
		return err
	}
	defer log.Sync()

	store, err := storage.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	registry := game.NewRegistry()
	registry.Register(tictactoe.TicTacToe{})

	mgr := session.NewManager(registry, store, log)
	if err := mgr.Restore(); err != nil {
		log.Warn("restore sessions", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go mgr.CleanupLoop(ctx, cfg.CleanupInterval, cfg.SessionMaxAge)

	httpSrv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: server.New(registry, mgr, os.DirFS(cfg.WebDir), log),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn("shutdown", zap.Error(err))
		}
	}()

	log.Info("listening", zap.String("addr", cfg.Addr()), zap.String("db", cfg.DBPath))
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
