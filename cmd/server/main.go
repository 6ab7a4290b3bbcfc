// Package main runs the case reporting HTTP server with sighting alerts and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/findthem/backend/config"
	"github.com/findthem/backend/internal/alerts"
	"github.com/findthem/backend/internal/auth"
	"github.com/findthem/backend/internal/cases"
	"github.com/findthem/backend/internal/middleware"
	"github.com/findthem/backend/internal/organizations"
	"github.com/findthem/backend/internal/photomatch"
	"github.com/findthem/backend/internal/server"
	"github.com/findthem/backend/internal/sightings"
	"github.com/findthem/backend/internal/worker"
	"github.com/findthem/backend/pkg/database"
	"github.com/findthem/backend/pkg/queue"
	"github.com/findthem/backend/pkg/redis"
	"github.com/findthem/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			PhotosBucket:         cfg.AWS.PhotosBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
			s3Client = nil
		}
	}

	// Alerts
	redisPubSub := alerts.NewRedisPubSub(rdb.Client, logger)
	hub := alerts.NewHub(logger, redisPubSub, redisPubSub)
	defer hub.Close()

	// Auth
	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.ExpireHours)
	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, jwtService, cfg.Auth.DemoPasswordBypass, logger)
	authHandler := auth.NewHandler(authService, auth.CookieOptions{Name: cfg.Auth.CookieName, Secure: cfg.Server.Secure()}, logger)
	resolver := auth.NewResolver(jwtService, authRepo, logger)

	// Organizations
	orgHandler := organizations.NewHandler(organizations.NewRepository(pool), logger)

	// Sightings
	sightingRepo := sightings.NewRepository(pool)
	sightingService := sightings.NewService(sightingRepo, hub, logger)
	sightingHandler := sightings.NewHandler(sightingService, logger)

	// Cases
	jobQueue := queue.NewQueue(rdb.Client, logger)
	caseRepo := cases.NewRepository(pool)
	caseOpts := []cases.Option{cases.WithEmbeddingQueue(jobQueue), cases.WithSightingFeed(sightingRepo)}
	if s3Client != nil {
		caseOpts = append(caseOpts, cases.WithPhotoStore(s3Client))
	}
	caseHandler := cases.NewHandler(cases.NewService(caseRepo, logger, caseOpts...), sightingService, logger)

	// Photo match
	embeddingRepo := photomatch.NewRepository(pool)
	embedder := photomatch.NewEmbedder(cfg.Match.EmbeddingServiceURL)
	var matcher photomatch.Matcher
	if cfg.Match.Mode == "stub" {
		logger.Warn("photo match running in stub mode; scores are random")
		matcher = photomatch.NewStubMatcher(caseRepo, time.Now().UnixNano())
	} else {
		matcher = photomatch.NewEmbeddingMatcher(embedder, embeddingRepo, caseRepo, cfg.Match.MinScore, cfg.Match.Limit)
	}
	matchHandler := photomatch.NewHandler(photomatch.NewService(matcher, cfg.Match.MaxUploadBytes, logger), logger)

	router := server.NewRouter(server.Options{
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		CookieName:         cfg.Auth.CookieName,
		Resolver:           resolver,
		Logger:             logger,
	}, server.Handlers{
		Auth:          authHandler,
		Organizations: orgHandler,
		Cases:         caseHandler,
		Sightings:     sightingHandler,
		PhotoMatch:    matchHandler,
		Alerts:        alerts.ServeWs(hub, alerts.Upgrader(middleware.ParseOrigins(cfg.Server.CORSAllowedOrigins)), logger),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (photo embeddings)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if s3Client != nil {
		processor := worker.NewEmbeddingProcessor(jobQueue, s3Client, embedder, embeddingRepo, logger)
		go processor.Run(workerCtx)
		logger.Info("embedding worker started")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("env", cfg.Server.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
