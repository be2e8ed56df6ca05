package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/to-ny/medsearch-sub001/internal/adapters/cache"
	"github.com/to-ny/medsearch-sub001/internal/adapters/database"
	"github.com/to-ny/medsearch-sub001/internal/adapters/snapshot"
	"github.com/to-ny/medsearch-sub001/internal/api/handlers"
	"github.com/to-ny/medsearch-sub001/internal/api/routes"
	"github.com/to-ny/medsearch-sub001/internal/application/services"
	"github.com/to-ny/medsearch-sub001/internal/domain/providers"
	"github.com/to-ny/medsearch-sub001/internal/domain/repositories"
	"github.com/to-ny/medsearch-sub001/internal/infrastructure/clients/postgres"
	"github.com/to-ny/medsearch-sub001/internal/infrastructure/clients/redis"
	"github.com/to-ny/medsearch-sub001/internal/infrastructure/observability"
	"github.com/to-ny/medsearch-sub001/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	index, closeIndex, err := openIndex(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Search.Backend).Msg("failed to open search index")
	}
	defer closeIndex()

	engine := services.NewSearchEngine(index, services.SearchEngineConfig{
		PerKindCap:     cfg.Search.PerKindCap,
		DefaultLimit:   cfg.Search.DefaultLimit,
		MinQueryLength: cfg.Search.MinQueryLength,
		PartialResults: cfg.Search.PartialResults,
	})

	var cacheProvider providers.CacheProvider
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(&cfg.Redis)
		if err != nil {
			// Search works without the cache, only slower
			log.Warn().Err(err).Msg("Redis unavailable, serving without response cache")
		} else {
			defer redisClient.Close()
			cacheProvider = cache.NewRedisAdapter(redisClient, "medsearch:")
		}
	}
	search := services.NewCachedSearchService(engine, cacheProvider, cfg.Search.CacheTTL, cfg.Search.DefaultLimit)

	router := routes.NewRouter(
		handlers.NewSearchHandler(search, cfg.Search.MaxLimit),
		handlers.NewHealthHandler(index),
		cfg.Server.AllowedOrigins,
		metrics,
	)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupRoutes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Str("backend", cfg.Search.Backend).Msg("starting search API")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server")
	case err := <-serverErr:
		log.Error().Err(err).Msg("server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}
	log.Info().Msg("server stopped")
}

// openIndex connects the configured index backend and returns a release func
func openIndex(ctx context.Context, cfg *config.Config) (repositories.EntityIndexRepository, func(), error) {
	switch cfg.Search.Backend {
	case config.BackendSnapshot:
		index, err := snapshot.Load(cfg.Search.SnapshotPath)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("path", cfg.Search.SnapshotPath).Int("rows", len(index.Rows())).Msg("snapshot index loaded")
		return index, func() {}, nil

	case config.BackendPostgres:
		client, err := postgres.NewClient(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				log.Error().Err(err).Msg("error closing PostgreSQL client")
			}
		}
		return database.NewEntityIndexAdapter(client, cfg.Database.TablePrefix), closeFn, nil
	}
	return nil, nil, fmt.Errorf("unknown search backend %q", cfg.Search.Backend)
}
