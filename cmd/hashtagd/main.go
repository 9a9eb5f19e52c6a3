package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wikihashtags/hashtagd/config"
	appmodel "github.com/wikihashtags/hashtagd/internal/app/model"
	apprepository "github.com/wikihashtags/hashtagd/internal/app/repository"
	appserver "github.com/wikihashtags/hashtagd/internal/app/server"
	appservice "github.com/wikihashtags/hashtagd/internal/app/service"
	"github.com/wikihashtags/hashtagd/internal/infra/logger"
	infraPostgres "github.com/wikihashtags/hashtagd/internal/infra/postgres"
	infraPrometheus "github.com/wikihashtags/hashtagd/internal/infra/prometheus"
	infraRedis "github.com/wikihashtags/hashtagd/internal/infra/redis"
	"github.com/wikihashtags/hashtagd/internal/mediawiki"
	"github.com/wikihashtags/hashtagd/internal/stream"
	"go.uber.org/zap"

	redisclient "github.com/redis/go-redis/v9"
)

func main() {
	noHistorical := flag.Bool("no-historical", false,
		"connect at the stream's live head even when stored data exists, skipping the backlog")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	isDev := os.Getenv("APP_ENV") != "production"
	log := logger.MustInit(logger.Config{
		Development: isDev,
		Level:       os.Getenv("LOG_LEVEL"),
	})
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Configuration loaded successfully",
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.Int("postgres_port", cfg.Postgres.Port),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.String("stream_url", cfg.Stream.URL),
		zap.Bool("enricher_enabled", cfg.Enricher.Enabled),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
		zap.Bool("no_historical", *noHistorical),
	)

	gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to open GORM connection", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := infraPostgres.AutoMigrate(ctx, gormDB, &appmodel.Hashtag{}); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer pool.Close()

	log.Info("Connected to Postgres successfully")

	var redisClient *redisclient.Client
	if cfg.Redis.Enabled {
		redisClient, err = infraRedis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		log.Info("Connected to Redis successfully")
	}

	if !isDev {
		promServer := infraPrometheus.NewServer(cfg.Prometheus, log)
		go func() {
			log.Info("Starting Prometheus metrics server",
				zap.String("addr", promServer.Addr))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	} else {
		log.Info("Skipping Prometheus metrics server in development mode")
	}

	hashtagRepo := apprepository.NewHashtagRepository(gormDB)

	collector, err := buildPipeline(ctx, cfg, redisClient, hashtagRepo, log)
	if err != nil {
		log.Fatal("Failed to build ingestion pipeline", zap.Error(err))
	}

	httpServer := appserver.New(appserver.Dependencies{
		Logger:   log,
		Postgres: pool,
		Hashtags: hashtagRepo,
	})
	go func() {
		addr := fiberAddr(cfg.HTTP.Port)
		log.Info("Starting read API server", zap.String("addr", addr))
		if err := httpServer.Listen(addr); err != nil {
			log.Error("Read API server exited", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("Failed to shut down read API server", zap.Error(err))
		}
	}()

	consumer := stream.NewConsumer(stream.Config{
		URL:            cfg.Stream.URL,
		RetryDelay:     cfg.Stream.RetryDelay,
		MaxRetries:     cfg.Stream.MaxRetries,
		ConnectTimeout: cfg.Stream.ConnectTimeout,
		ReadTimeout:    cfg.Stream.ReadTimeout,
		NoHistorical:   *noHistorical,
	}, collector, hashtagRepo, log)

	// The consumer owns the process: it blocks until shutdown or an
	// unrecoverable failure. A non-zero exit hands recovery to the
	// supervisor, which restarts us back into the resume logic.
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("Stream consumer failed", zap.Error(err))
	}

	log.Info("Shutting down")
}

// buildPipeline assembles filter, guard and enricher into a collector, and
// seeds the duplicate guard from the resume window.
func buildPipeline(
	ctx context.Context,
	cfg *config.Config,
	redisClient *redisclient.Client,
	repo apprepository.HashtagRepository,
	log *zap.Logger,
) (*appservice.Collector, error) {
	filter, err := appservice.NewCommentFilter(appservice.DefaultFilterConfig())
	if err != nil {
		return nil, err
	}

	guard := appservice.NewDuplicateGuard(repo, redisClient, cfg.Redis.KeyTTL, log)
	if since, err := repo.LatestTimestamp(ctx); err != nil {
		return nil, err
	} else if since != nil {
		if err := guard.Seed(ctx, *since); err != nil {
			return nil, err
		}
	}

	var enricher appservice.MediaEnricher = appservice.NoopEnricher{}
	if cfg.Enricher.Enabled {
		enricher = appservice.NewMediaEnricher(
			mediawiki.NewClient(cfg.Enricher.Timeout), log)
	}

	return appservice.NewCollector(filter, guard, enricher, repo, log), nil
}

func fiberAddr(port int) string {
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf(":%d", port)
}
