// cmd/api/main.go
// Main entry point for the matching API
// This file bootstraps all components and starts the server

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/imadgeboyega/kiekky-matchmaker/internal/auth"
	"github.com/imadgeboyega/kiekky-matchmaker/internal/common/database"
	"github.com/imadgeboyega/kiekky-matchmaker/internal/common/logging"
	"github.com/imadgeboyega/kiekky-matchmaker/internal/common/utils"
	"github.com/imadgeboyega/kiekky-matchmaker/internal/config"
	"github.com/imadgeboyega/kiekky-matchmaker/internal/matching"
)

var startTime = time.Now()

func main() {
	// 1. Load environment variables
	envErr := godotenv.Load()

	// 2. Load and validate configuration
	cfg := config.Load()
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if envErr != nil {
		logging.Info().Msg("no .env file found, using environment variables")
	}
	if err := cfg.Validate(); err != nil {
		logging.Fatal().Err(err).Msg("configuration validation failed")
	}

	logging.Info().
		Str("environment", cfg.Environment).
		Str("store", cfg.StoreDriver).
		Msg("starting Kiekky matching API")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Storage
	repo, profiles, closeStore := openStore(ctx, cfg)
	defer closeStore()

	// 4. Feed snapshots: Redis when available, in-process otherwise
	var feeds matching.FeedCache
	var tasks []matching.Task
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedisClientFromURL(ctx, cfg.RedisURL)
		if err != nil {
			logging.Warn().Err(err).Msg("Redis unavailable, continuing with in-memory feed snapshots")
		} else {
			defer redisClient.Close()
			feeds = matching.NewRedisFeedCache(redisClient)
			logging.Info().Msg("connected to Redis")
		}
	}
	if feeds == nil {
		memFeeds := matching.NewMemoryFeedCache()
		feeds = memFeeds
		tasks = append(tasks, matching.Task{
			Name:     "sweep_feed_snapshots",
			Interval: cfg.FeedSnapshotTTL,
			Run:      memFeeds.Sweep,
		})
	}

	// 5. Notifications
	hub := matching.NewHub()
	go hub.Run(ctx)

	sinks := matching.MultiSink{hub}
	if cfg.EnableSNSNotifications {
		sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.AWSRegion)})
		if err != nil {
			logging.Fatal().Err(err).Msg("failed to create AWS session")
		}
		sinks = append(sinks, matching.NewSNSSink(sns.New(sess), cfg.SNSTopicARN))
		logging.Info().Str("topic", cfg.SNSTopicARN).Msg("SNS match notifications enabled")
	}

	// 6. Matching service
	service, err := matching.NewService(repo, profiles, feeds, sinks, matching.Options{
		LearningRate:         cfg.LearningRate,
		WeightClipMin:        cfg.WeightClipMin,
		WeightClipMax:        cfg.WeightClipMax,
		HistoryLimit:         cfg.HistoryLimit,
		PoolLimit:            cfg.PoolLimit,
		DefaultPageSize:      cfg.DefaultPageSize,
		MaxPageSize:          cfg.MaxPageSize,
		SnapshotTTL:          cfg.FeedSnapshotTTL,
		DefaultMaxDistanceKm: cfg.DefaultMaxDistanceKm,
		Retry: matching.RetryConfig{
			InitialInterval: cfg.RetryInitialInterval,
			MaxInterval:     cfg.RetryMaxInterval,
			MaxElapsedTime:  cfg.RetryMaxElapsed,
		},
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create matching service")
	}

	matching.NewScheduler(tasks...).Start(ctx)

	// 7. Router
	router := mux.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(loggingMiddleware)
	router.Use(corsMiddleware)

	router.HandleFunc("/health", healthCheck).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	authMiddleware := auth.NewMiddleware(cfg.JWTSecret)
	matching.RegisterRoutes(router, matching.NewHandler(service), hub, authMiddleware)

	// 8. Serve
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	logging.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("server forced to shutdown")
		return
	}
	logging.Info().Msg("server exited gracefully")
}

// openStore connects the configured backend and returns a cleanup func.
func openStore(ctx context.Context, cfg *config.Config) (matching.Repository, matching.ProfileSource, func()) {
	if cfg.StoreDriver == "memory" {
		logging.Warn().Msg("using in-memory store, data is lost on restart")
		store := matching.NewMemoryStore()
		return store, store, func() {}
	}

	db, err := database.NewPostgresDBFromURL(ctx, cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to connect to PostgreSQL")
	}
	logging.Info().Msg("connected to PostgreSQL")

	if err := matching.Migrate(ctx, db); err != nil {
		logging.Fatal().Err(err).Msg("failed to run migrations")
	}

	return matching.NewPostgresRepository(db), matching.NewPostgresProfileSource(db), func() { db.Close() }
}

// healthCheck returns server health status
func healthCheck(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(startTime).String(),
	})
}

// loggingMiddleware logs all requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ctx := logging.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r.WithContext(ctx))

		logging.Ctx(ctx).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.statusCode).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets WebSocket upgrades pass through the wrapper.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return hj.Hijack()
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
