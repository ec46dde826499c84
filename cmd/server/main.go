/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the ledger engine sync server. Handles
  configuration, dependency wiring, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and configuration
  2. Build the logger
  3. Open the SQLite document store
  4. Start the write-behind syncer
  5. Configure the HTTP router
  6. Serve with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests (configurable timeout)
  3. Flush every pending document snapshot
  4. Close the database

CONFIGURATION (env vars or .env file):
  APP_ENV, LOG_LEVEL, HTTP_HOST, HTTP_PORT, DB_PATH, SYNC_DEBOUNCE_MS,
  SHUTDOWN_TIMEOUT_SECONDS

SEE ALSO:
  - config/config.go: configuration loading
  - api/server.go: router configuration
  - syncer/syncer.go: write-behind persistence
*/
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sitebook/ledger-engine/api"
	"github.com/sitebook/ledger-engine/config"
	"github.com/sitebook/ledger-engine/logger"
	"github.com/sitebook/ledger-engine/store/sqlite"
	"github.com/sitebook/ledger-engine/syncer"
)

func main() {
	_ = godotenv.Load() // .env is optional

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Env, cfg.App.LogLevel)

	st, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DB.Path).Msg("failed to open document store")
	}
	defer st.Close()

	sy := syncer.New(st, cfg.Sync.Debounce, log)
	handler := api.NewHandler(st, sy, log)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr()).Str("env", cfg.App.Env).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	if err := sy.Close(ctx); err != nil {
		log.Error().Err(err).Msg("final flush failed")
	}

	log.Info().Msg("server stopped")
}
