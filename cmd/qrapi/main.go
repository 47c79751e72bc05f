package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"attendtrack/internal/api"
	"attendtrack/internal/config"
	"attendtrack/internal/httpmiddleware"
	"attendtrack/internal/logger"
	"attendtrack/internal/qr"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get().With().Str("service", "qrapi").Logger()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine, err := qr.NewEngine(cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("engine init failed")
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/api/qr-scanner/health", "/metrics"},
	}))
	r.Use(api.CORS())
	r.Use(api.SecurityHeaders())
	r.Use(httpmiddleware.RateLimit(newLimiter(cfg)))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	api.NewQRHandler(engine, cfg).Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.QRPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		students, sessions, records := engine.Counts()
		log.Info().
			Str("port", cfg.QRPort).
			Int("students", students).
			Int("sessions", sessions).
			Int("records", records).
			Msg("starting QR scanner API")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}

func newLimiter(cfg config.App) httpmiddleware.Limiter {
	if cfg.RateLimitBackend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  1 * time.Second,
			WriteTimeout: 1 * time.Second,
		})
		return httpmiddleware.NewRedisWindow(client, "qrapi", cfg.RateLimitPerMin)
	}
	return httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
}
