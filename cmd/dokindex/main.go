package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/civora/dokindex/internal/chunk"
	"github.com/civora/dokindex/internal/config"
	dbRedis "github.com/civora/dokindex/internal/db/redis"
	"github.com/civora/dokindex/internal/extract"
	logpkg "github.com/civora/dokindex/internal/logger"
	"github.com/civora/dokindex/internal/metrics"
	documentrepo "github.com/civora/dokindex/internal/repository/document"
	jobrepo "github.com/civora/dokindex/internal/repository/job"
	"github.com/civora/dokindex/internal/repository/objectstore"
	vectorrepo "github.com/civora/dokindex/internal/repository/vector"
	chiTransport "github.com/civora/dokindex/internal/transport/chi"
	openaiEmb "github.com/civora/dokindex/internal/transport/openai"
	"github.com/civora/dokindex/internal/usecase/embedding"
	healthuc "github.com/civora/dokindex/internal/usecase/health"
	ingestuc "github.com/civora/dokindex/internal/usecase/ingest"
	retrievaluc "github.com/civora/dokindex/internal/usecase/retrieval"
	"github.com/civora/dokindex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting dokindex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register domain metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterIngestMetrics()

	// Build embedder chain — composition root
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:       cfg.Embedding.APIKey,
		BaseURL:      cfg.Embedding.BaseURL,
		Model:        cfg.Embedding.Model,
		Dimensions:   cfg.Embedding.Dimensions,
		MaxBatchSize: cfg.Embedding.MaxBatchSize,
		Provider:     "openai",
		Timeout:      time.Duration(cfg.Embedding.RequestTimeoutSec) * time.Second,
		Logger:       logger,
	})
	retrying := embedding.NewRetryingEmbedder(
		base,
		cfg.Embedding.MaxRetries,
		time.Duration(cfg.Embedding.RetryBaseDelayMs)*time.Millisecond,
		logger,
	)
	embedder := embedding.NewInstrumentedEmbedder(
		retrying, "openai", cfg.Embedding.Model,
		cfg.Embedding.CostPerMillionTokens, logger,
	)
	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	// Create repositories
	vectorRepo := vectorrepo.New(store, vectorrepo.Config{
		KeyPrefix:       cfg.Storage.KeyPrefix,
		Dimensions:      cfg.Embedding.Dimensions,
		HNSWM:           cfg.Index.HNSWM,
		HNSWEFConstruct: cfg.Index.HNSWEFConstruct,
	})
	if err := vectorRepo.EnsureCollection(ctx); err != nil {
		logger.Fatal("Failed to create chunk index", zap.Error(err))
	}

	docRepo := documentrepo.New(store, cfg.Storage.KeyPrefix)
	jobRepo := jobrepo.New(store, cfg.Storage.KeyPrefix)
	downloader := objectstore.New(objectstore.Config{
		Timeout:     time.Duration(cfg.Ingest.DownloadTimeoutSec) * time.Second,
		MaxFileSize: int64(cfg.Ingest.MaxFileSizeMB) * 1024 * 1024,
	})

	// Create use case services
	splitter := chunk.NewSplitter(chunk.Config{
		ChunkSize:          cfg.Chunking.ChunkSize,
		ChunkOverlap:       cfg.Chunking.ChunkOverlap,
		MinChunkSize:       cfg.Chunking.MinChunkSize,
		PreserveParagraphs: cfg.Chunking.PreserveParagraphs,
	})
	coordinator := ingestuc.NewCoordinator(
		docRepo, vectorRepo, downloader, extract.DefaultRegistry(),
		splitter, embedder, cfg.Embedding.Model, logger,
	)
	queue, err := ingestuc.NewQueue(coordinator, jobRepo, ingestuc.QueueConfig{
		Workers: cfg.Ingest.Workers,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create ingest queue", zap.Error(err))
	}

	retriever := retrievaluc.New(embedder, vectorRepo, retrievaluc.Config{
		MaxSources:   cfg.Retrieval.MaxSources,
		DefaultLimit: cfg.Retrieval.DefaultLimit,
	}, logger)

	healthSvc := healthuc.New(store, store, vectorRepo.IndexName(), base)

	// Create chi server
	server := chiTransport.NewServer(queue, docRepo, coordinator, retriever, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	// Let in-flight ingestion jobs finish before the store closes.
	queue.Release()

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
