package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	jwtauth "github.com/parley-im/parley/internal/adapter/driven/auth/jwt"
	"github.com/parley-im/parley/internal/adapter/driven/directory/memory"
	redispresence "github.com/parley-im/parley/internal/adapter/driven/presence/redis"
	handler "github.com/parley-im/parley/internal/adapter/driving/http"
	"github.com/parley-im/parley/internal/core/port"
	"github.com/parley-im/parley/internal/core/service"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type config struct {
	port          string
	jwtSecret     string
	allowedOrigin string
	gatewayID     string
	redisAddr     string
	redisPassword string
	redisDB       int
	presenceTTL   time.Duration
}

func loadConfig() config {
	return config{
		port:          getenv("PORT", "8080"),
		jwtSecret:     getenv("JWT_SECRET", "secret_jwt"),
		allowedOrigin: getenv("FRONTEND_ORIGIN", "http://localhost:5173"),
		gatewayID:     getenv("GATEWAY_ID", "parley-gw-1"),
		redisAddr:     getenv("REDIS_ADDR", ""),
		redisPassword: getenv("REDIS_PASSWORD", ""),
		redisDB:       getenvInt("REDIS_DB", 0),
		presenceTTL:   getenvDuration("PRESENCE_TTL", 2*time.Hour),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func main() {
	w := zerolog.ConsoleWriter{Out: os.Stdout}
	l := zerolog.New(w).With().Timestamp().Caller().Logger()
	log.Logger = l

	cfg := loadConfig()

	// The in-memory directory stands in for the CRUD service that owns
	// memberships and profiles.
	directory := memory.NewDirectory()
	l.Warn().Msg("Using in-memory membership directory")

	verifier := jwtauth.NewVerifier([]byte(cfg.jwtSecret))
	presence := service.NewRegistry()
	rooms := service.NewRooms(directory)
	relay := service.NewRelay(directory, directory, rooms)

	var mirror port.PresenceMirror
	if cfg.redisAddr != "" {
		m, err := redispresence.NewMirror(redispresence.Config{
			Addr:      cfg.redisAddr,
			Password:  cfg.redisPassword,
			DB:        cfg.redisDB,
			GatewayID: cfg.gatewayID,
			TTL:       cfg.presenceTTL,
		})
		if err != nil {
			l.Error().Err(err).Str("addr", cfg.redisAddr).Msg("Presence mirror unavailable, continuing without it")
		} else {
			defer m.Close()
			mirror = m
			l.Info().Str("addr", cfg.redisAddr).Msg("Presence mirror enabled")
		}
	}

	gateway := service.NewGateway(verifier, presence, rooms, relay, mirror)
	h := handler.NewHandler(gateway, cfg.allowedOrigin)

	srv := &http.Server{
		Addr:    ":" + cfg.port,
		Handler: h.NewRouter(),
	}

	go func() {
		l.Info().Str("port", cfg.port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	l.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		l.Error().Err(err).Msg("Server forced to shutdown")
	}

	l.Info().Msg("Server exited")
}
