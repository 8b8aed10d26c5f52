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

	"github.com/archivio/semsearch/internal/config"
	"github.com/archivio/semsearch/internal/domain"
	"github.com/archivio/semsearch/internal/domain/search/scale"
	"github.com/archivio/semsearch/internal/embed/cache"
	openaiEmb "github.com/archivio/semsearch/internal/embed/openai"
	"github.com/archivio/semsearch/internal/index"
	indexRedis "github.com/archivio/semsearch/internal/index/redis"
	logpkg "github.com/archivio/semsearch/internal/logger"
	"github.com/archivio/semsearch/internal/metrics"
	chiTransport "github.com/archivio/semsearch/internal/transport/chi"
	"github.com/archivio/semsearch/internal/usecase/catalog"
	healthuc "github.com/archivio/semsearch/internal/usecase/health"
	"github.com/archivio/semsearch/internal/usecase/hybrid"
	"github.com/archivio/semsearch/internal/usecase/similarity"
	"github.com/archivio/semsearch/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting semsearch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("index_addrs", cfg.Database.Addrs),
	)

	store, err := indexRedis.NewStore(indexRedis.Config{
		Addrs:     cfg.Database.Addrs,
		Username:  cfg.Database.Username,
		Password:  cfg.Database.Password,
		KeyPrefix: cfg.Storage.KeyPrefix,
	})
	if err != nil {
		logger.Fatal("Failed to create index store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Index backend not ready", zap.Error(err))
	}
	logger.Info("Connected to index backend")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	for _, col := range cfg.Collections {
		err := store.EnsureIndex(ctx, &index.Definition{
			Collection:  col.Name,
			VectorDim:   cfg.Embedding.Dimensions,
			HNSWM:       cfg.Index.HNSWM,
			EFConstruct: cfg.Index.HNSWEFConstruct,
		})
		if err != nil {
			logger.Fatal("Failed to ensure index", zap.String("collection", col.Name), zap.Error(err))
		}
	}

	// Embedder chain: OpenAI provider wrapped by the LRU cache.
	provider := openaiEmb.NewEmbedder(openaiEmb.Config{
		APIKey:        cfg.Embedding.APIKey,
		BaseURL:       cfg.Embedding.BaseURL,
		Model:         cfg.Embedding.Model,
		Dimensions:    cfg.Embedding.Dimensions,
		MaxInputChars: cfg.Embedding.MaxInputChars,
		Provider:      cfg.Embedding.Provider,
		Logger:        logger,
	})
	embCache := cache.New(cfg.Cache.Capacity, metrics.EmbeddingCacheTotal, logger)
	embedder := cache.NewEmbedder(provider, embCache)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Int("cache_capacity", cfg.Cache.Capacity),
	)

	// One similarity service per collection; hybrid fans out across them.
	similarByName := make(map[string]chiTransport.SimilarSearcher, len(cfg.Collections))
	searchers := make(map[domain.Kind]hybrid.CollectionSearcher, len(cfg.Collections))
	collectionsByKind := make(map[domain.Kind]string, len(cfg.Collections))
	for _, col := range cfg.Collections {
		kind := domain.Kind(col.Kind)
		svc := similarity.New(similarity.Config{
			Collection:       col.Name,
			Kind:             kind,
			Scale:            scaleOf(col, logger),
			Filterable:       col.Filterable,
			DefaultThreshold: cfg.Threshold(col),
		}, store, embedder, logger)

		similarByName[col.Name] = svc
		searchers[kind] = svc
		collectionsByKind[kind] = col.Name
	}

	hybridSvc := hybrid.New(searchers,
		time.Duration(cfg.Search.CollectionTimeoutMS)*time.Millisecond, logger)
	catalogSvc := catalog.New(collectionsByKind, store, embedder, embedder, logger)
	healthSvc := healthuc.New(store, provider)

	server := chiTransport.NewServer(similarByName, hybridSvc, catalogSvc, healthSvc, logger)

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

	logger.Info("Server stopped gracefully")
}

func scaleOf(col config.CollectionConfig, logger *zap.Logger) scale.Scale {
	s, err := scale.Parse(col.Scale)
	if err != nil {
		// Validate already rejected unknown scales; double failure means a bug.
		logger.Fatal("Invalid score scale", zap.String("collection", col.Name), zap.Error(err))
	}
	return s
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

			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

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
