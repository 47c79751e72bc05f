package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"attendtrack/internal/api"
	"attendtrack/internal/config"
	"attendtrack/internal/face"
	"attendtrack/internal/faceclient"
	"attendtrack/internal/httpmiddleware"
	"attendtrack/internal/logger"
	"attendtrack/internal/store"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get().With().Str("service", "faceapi").Logger()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	detector := faceclient.New(cfg.FaceServiceURL, cfg.FaceSkip)
	if !cfg.FaceSkip {
		if err := detector.Health(context.Background()); err != nil {
			log.Warn().Err(err).Msg("face service not available, detection requests will fail until it is")
		} else {
			log.Info().Str("url", cfg.FaceServiceURL).Msg("face service connected")
		}
	}

	file, err := store.NewFile(filepath.Join(cfg.DataDir, "face_students.json"))
	if err != nil {
		log.Fatal().Err(err).Msg("data dir init failed")
	}
	engine, err := face.NewEngine(detector, file, cfg.MatchThreshold)
	if err != nil {
		log.Fatal().Err(err).Msg("engine init failed")
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/api/face-recognition/health", "/metrics"},
	}))
	r.Use(api.CORS())
	r.Use(api.SecurityHeaders())
	r.Use(httpmiddleware.RateLimit(newLimiter(cfg)))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	api.NewFaceHandler(engine, cfg).Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.FacePort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.FacePort).Int("students", engine.Count()).Msg("starting face recognition API")
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
		return httpmiddleware.NewRedisWindow(client, "faceapi", cfg.RateLimitPerMin)
	}
	return httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
}
