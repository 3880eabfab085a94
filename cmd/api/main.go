package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Lifelog/internal/auth"
	"Lifelog/internal/calorie"
	"Lifelog/internal/clinician"
	"Lifelog/internal/config"
	"Lifelog/internal/database"
	"Lifelog/internal/patient"
	"Lifelog/internal/server"
	"Lifelog/internal/utility"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func gracefulShutdown(apiServer *http.Server, stopBroadcaster context.CancelFunc, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Info().Msg("shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown
	stopBroadcaster()

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func setupLogger(cfg *config.Config) {
	zerolog.SetGlobalLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = time.RFC3339
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	setupLogger(cfg)

	ctx := context.Background()

	dbService, err := database.NewService(ctx, cfg.ConnString())
	if err != nil {
		log.Fatal().Err(err).Msg("could not connect to database")
	}
	defer dbService.Close()

	if err := dbService.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("could not apply schema")
	}

	if err := calorie.InitDefault(cfg.EstimatorCacheSize); err != nil {
		log.Fatal().Err(err).Msg("could not build calorie estimator")
	}

	queries := dbService.Queries()
	utility.InitSessions(cfg.SessionSecret, cfg.IsProduction())
	if err := auth.InitAuth(queries, cfg); err != nil {
		log.Fatal().Err(err).Msg("could not initialize authentication")
	}
	patient.InitPatientPackage(queries)
	clinician.InitClinicianPackage(queries)

	broadcastCtx, stopBroadcaster := context.WithCancel(ctx)
	go clinician.StartDashboardBroadcaster(broadcastCtx, queries, cfg.DashboardRefresh)

	apiServer := server.NewServer(cfg, dbService)

	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(apiServer, stopBroadcaster, done)

	log.Info().Str("addr", apiServer.Addr).Str("env", cfg.AppEnv).Msg("Lifelog server starting")
	err = apiServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server error")
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Info().Msg("Graceful shutdown complete.")
}
