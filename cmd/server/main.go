package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/examdrill/backend/internal/api"
	"github.com/examdrill/backend/internal/infrastructure/config"
	"github.com/examdrill/backend/internal/service"
	"github.com/examdrill/backend/internal/store"
)

func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// ── Dependencies ────────────────────────────────────────────────
	db, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	drill := service.NewDrillService(db, logger, cfg.AdvanceDelay)

	// Banks are optional at startup; an empty server accepts imports
	// over the API.
	loaded, err := drill.LoadBanksFromDir(cfg.BanksDir)
	if err != nil {
		logger.Error("failed to scan banks directory", "dir", cfg.BanksDir, "error", err)
	}
	if loaded > 0 {
		if err := drill.Restore(); err != nil {
			logger.Error("failed to restore progress", "error", err)
			os.Exit(1)
		}
	}
	logger.Info("banks ready", "loaded", loaded)

	handler := api.NewHandler(drill, logger)

	// ── Routes ──────────────────────────────────────────────────────
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "ok"}`))
	})

	api.RegisterRoutes(mux, handler)

	// ── Middleware chain: Logging → CORS → mux ──────────────────────
	logged := api.Logging(logger)(api.CORS(mux))

	// ── Server ──────────────────────────────────────────────────────
	server := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           logged,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		logger.Info("shutting down server")
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("server forced to shutdown", "error", err)
		}
	}()

	logger.Info("starting server", "address", cfg.ServerAddress)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed to start", "error", err)
		os.Exit(1)
	}

	// Final save: the active set's progress must survive the restart.
	drill.Shutdown()
	logger.Info("progress saved")
}
