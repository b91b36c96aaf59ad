package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dgallion1/redraft/internal/api"
	"github.com/dgallion1/redraft/internal/config"
	"github.com/dgallion1/redraft/internal/docstore"
	"github.com/dgallion1/redraft/internal/editor"
	"github.com/dgallion1/redraft/internal/pipeline"
)

func main() {
	godotenv.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize clients.
	clients, err := editor.NewClients(cfg)
	if err != nil {
		log.Error("backend setup failed", "error", err)
		os.Exit(1)
	}
	dispatcher := editor.NewDispatcher(clients, log)
	ds := docstore.NewClient(cfg.DocstoreURL, cfg.DocstoreAPIKey)

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, dispatcher, ds, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, dispatcher, log, cfg)

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
		httpServer.Shutdown(shutdownCtx)

		ds.Close()
	}()

	log.Info("starting redraft", "port", cfg.Port, "backends", len(clients))
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
