// cmd/api/main.go
// Main entry point: bootstraps all components and starts the HTTP server.

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/swellmates/swellmates-backend/internal/common/database"
	"github.com/swellmates/swellmates-backend/internal/common/logger"
	"github.com/swellmates/swellmates-backend/internal/common/utils"
	"github.com/swellmates/swellmates-backend/internal/config"
	"github.com/swellmates/swellmates-backend/internal/geo"
	"github.com/swellmates/swellmates-backend/internal/matching"
)

func main() {
	// .env is optional; real deployments configure via the environment.
	godotenv.Load()

	cfg := config.Load()
	log := logger.NewStructured(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		log.Error("configuration validation failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	db, err := database.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to PostgreSQL", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	defer db.Close()
	log.Info("connected to PostgreSQL", nil)

	// Redis is optional; without it normalization results are only memoized
	// within a single run.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Warn("continuing without Redis", map[string]interface{}{"error": err.Error()})
			redisClient = nil
		} else {
			defer redisClient.Close()
			log.Info("connected to Redis", nil)
		}
	}

	if err := runMigrations(db.DB); err != nil {
		log.Error("failed to run migrations", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	log.Info("database migrations completed", nil)

	var strategy matching.NormalizationStrategy
	switch cfg.NormalizerProvider {
	case "http":
		strategy = geo.NewHTTPStrategy(cfg.NormalizerEndpoint, cfg.NormalizerTimeout)
	default:
		strategy = geo.NewLexiconStrategy()
	}
	if redisClient != nil {
		strategy = geo.NewCachedStrategy(strategy, redisClient, cfg.NormalizerCacheTTL, log)
	}

	repo := matching.NewPostgresRepository(db)
	service := matching.NewService(repo, strategy, matching.Options{
		Workers:             cfg.MatchWorkers,
		ExclusionInlineMax:  cfg.ExclusionInlineMax,
		CandidateFetchLimit: cfg.CandidateFetchLimit,
		AreaPriorityBoost:   cfg.AreaPriorityBoost,
		NormalizerTimeout:   cfg.NormalizerTimeout,
		RunTimeout:          cfg.MatchRunTimeout,
	}, log)
	handler := matching.NewHandler(service)

	router := mux.NewRouter()
	router.Use(requestLogging(log))

	matching.RegisterRoutes(router, handler)
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/health", healthCheck).Methods("GET")

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server listening", map[string]interface{}{"port": cfg.Port})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", map[string]interface{}{"error": err.Error()})
	}
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// requestLogging tags each request with an id and logs its outcome.
func requestLogging(log logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			requestID := uuid.New().String()
			w.Header().Set("X-Request-ID", requestID)

			rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			log.Debug("request handled", map[string]interface{}{
				"request_id": requestID,
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     rw.status,
				"elapsed_ms": time.Since(started).Milliseconds(),
			})
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
