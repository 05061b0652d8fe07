// Photo Hunt server - hosts game sessions over HTTP with a websocket signal stream
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MJE43/photohunt/internal/api"
	"github.com/MJE43/photohunt/internal/app"
	"github.com/MJE43/photohunt/internal/auth"
	"github.com/MJE43/photohunt/internal/config"
	"github.com/MJE43/photohunt/internal/events"
	"github.com/MJE43/photohunt/internal/game"
)

func main() {
	envFile := flag.String("env", ".env", "optional .env file")
	printToken := flag.Bool("print-admin-token", false, "print the admin token and exit")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	tokens := auth.NewTokenStore("photohunt", "server", cfg.TokenPath)
	token, err := tokens.Ensure()
	if err != nil {
		slog.Error("admin token unavailable, admin endpoints disabled", "error", err)
	}
	if *printToken {
		if token == "" {
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := app.Open(ctx, cfg, logger)
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer func() { _ = rt.Close() }()

	hub := events.NewHub(events.DefaultBuffer, logger)
	mgr := game.NewManager(cfg.Game, rt.Deps(hub), cfg.MaxSessions)

	opts := api.Options{
		Manager:        mgr,
		Hub:            hub,
		Scores:         rt.Scores,
		GameID:         cfg.Game.GameID,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
	}
	if rt.DB != nil {
		opts.Results = rt.DB
	}
	if token != "" {
		opts.Tokens = tokens
	}
	srv := api.NewServer(opts)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("photohunt server starting",
			"http", cfg.HTTPAddr,
			"dataset", datasetSource(cfg),
			"persistent_scores", rt.Scores.Persistent(),
			"version", api.EngineVersion,
		)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	srv.Close()
	mgr.Close()
	slog.Info("shutdown complete")
}

func datasetSource(cfg *config.Config) string {
	if cfg.DatasetURL != "" {
		return cfg.DatasetURL
	}
	return cfg.DatasetPath
}
