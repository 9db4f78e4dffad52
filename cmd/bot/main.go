package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/careline/roompool-bot/internal/bot"
	"github.com/careline/roompool-bot/internal/config"
	"github.com/careline/roompool-bot/internal/database"
	"github.com/careline/roompool-bot/internal/muc"
	"github.com/careline/roompool-bot/internal/redis"
	"github.com/careline/roompool-bot/internal/repository"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(pingCtx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	roomRepo := repository.NewRoomRepository(db.DB)
	chatRepo := repository.NewChatRepository(db.DB)
	tokenRepo := repository.NewTokenRepository(redisClient)

	client := muc.NewClient(cfg.ServiceURL, cfg.BotJID, cfg.BotSecret, log.Logger)
	worker := bot.New(cfg, client, roomRepo, chatRepo, tokenRepo, log.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(worker.Health())
	})

	health := &http.Server{
		Addr:        cfg.HealthAddr(),
		Handler:     r,
		ReadTimeout: config.HealthReadTimeout,
	}
	go func() {
		log.Info().Str("addr", cfg.HealthAddr()).Msg("health endpoint listening")
		if err := health.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.HealthShutdownTimeout)
		defer shutdownCancel()
		if err := health.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("health server forced to shutdown")
		}
	}()

	log.Info().Str("service", cfg.ServiceURL).Msg("starting room pool worker")
	if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("worker stopped")
	}
	log.Info().Msg("worker stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
