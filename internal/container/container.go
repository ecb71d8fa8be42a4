package container

import (
	"context"
	"fmt"
	"time"

	"samstore/ingest/internal/api"
	"samstore/ingest/internal/cache"
	"samstore/ingest/internal/config"
	"samstore/ingest/internal/database"
	"samstore/ingest/internal/fetch"
	"samstore/ingest/internal/monitoring"
	"samstore/ingest/internal/repository"
	"samstore/ingest/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Container holds all initialized components
type Container struct {
	Config       *config.Config
	Categories   repository.CategoryRepository
	Products     repository.ProductRepository
	Home         repository.HomeRepository
	CatalogCache cache.CatalogCache
	Fetcher      fetch.Fetcher
	Metrics      *monitoring.Metrics

	Service *service.Service
	Server  *api.Server

	db    *pgxpool.Pool
	redis *redis.Client
}

// New creates a new container with all dependencies initialized
func New(cfg *config.Config) (*Container, error) {
	container := &Container{
		Config: cfg,
	}

	if err := database.Migrate(cfg.Database.DSN()); err != nil {
		return nil, err
	}

	db, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	container.db = db

	container.Categories = repository.NewCategoryRepository(db)
	container.Products = repository.NewProductRepository(db)
	container.Home = repository.NewHomeRepository(db)

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.Database,
	})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	container.redis = rdb
	log.Info("Connected to Redis successfully")

	container.CatalogCache = cache.NewRedisCatalogCache(rdb, time.Duration(cfg.Redis.TreeTTL)*time.Second)
	container.Fetcher = fetch.NewFetcher(cfg.Ingest)
	container.Metrics = monitoring.NewMetrics()

	container.Service = service.NewService(
		container.Categories,
		container.Products,
		container.CatalogCache,
		container.Metrics,
	)

	container.Server = api.NewServer(
		cfg.Server,
		container.Service,
		container.Categories,
		container.Products,
		container.Home,
		container.CatalogCache,
		cfg.Ingest.InferCategoryContext,
	)

	return container, nil
}

// Run starts the HTTP API and blocks until it stops.
func (c *Container) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Server.Start()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return c.Server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// IngestSource loads a capture from a file path or URL and runs one
// ingestion pass.
func (c *Container) IngestSource(ctx context.Context, source string) (*service.IngestResult, error) {
	data, err := c.Fetcher.Fetch(ctx, source)
	if err != nil {
		return nil, err
	}
	return c.Service.Ingest(ctx, data, service.Options{
		InferCategoryContext: c.Config.Ingest.InferCategoryContext,
	})
}

// Close performs cleanup when shutting down
func (c *Container) Close() error {
	log.Info("Shutting down container...")

	c.db.Close()
	c.redis.Close()

	log.Info("Container shut down successfully")
	return nil
}
