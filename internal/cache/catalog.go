// Package cache keeps the assembled category tree and the latest ingest
// summary in Redis so the storefront endpoints do not rebuild them on
// every request.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// IngestSummary is the persisted record of the most recent ingest run.
type IngestSummary struct {
	Categories     int       `json:"categories"`
	Products       int       `json:"products"`
	Mappings       int       `json:"mappings"`
	SkippedEntries int       `json:"skipped_entries"`
	FinishedAt     time.Time `json:"finished_at"`
}

type CatalogCache interface {
	// Tree returns the cached tree payload, or nil when the cache is
	// cold.
	Tree(ctx context.Context) ([]byte, error)
	SetTree(ctx context.Context, payload []byte) error
	// Invalidate drops the cached tree after a committed ingest.
	Invalidate(ctx context.Context) error
	SetLastIngest(ctx context.Context, summary IngestSummary) error
	LastIngest(ctx context.Context) (*IngestSummary, error)
}

type redisCatalogCache struct {
	redisClient *redis.Client
	keyPrefix   string
	treeTTL     time.Duration
}

func NewRedisCatalogCache(redisClient *redis.Client, treeTTL time.Duration) CatalogCache {
	return &redisCatalogCache{
		redisClient: redisClient,
		keyPrefix:   "samstore:catalog:",
		treeTTL:     treeTTL,
	}
}

func (c *redisCatalogCache) treeKey() string       { return c.keyPrefix + "tree" }
func (c *redisCatalogCache) lastIngestKey() string { return c.keyPrefix + "last_ingest" }

func (c *redisCatalogCache) Tree(ctx context.Context) ([]byte, error) {
	payload, err := c.redisClient.Get(ctx, c.treeKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached category tree: %w", err)
	}
	return payload, nil
}

func (c *redisCatalogCache) SetTree(ctx context.Context, payload []byte) error {
	if err := c.redisClient.Set(ctx, c.treeKey(), payload, c.treeTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache category tree: %w", err)
	}
	return nil
}

func (c *redisCatalogCache) Invalidate(ctx context.Context) error {
	if err := c.redisClient.Del(ctx, c.treeKey()).Err(); err != nil {
		return fmt.Errorf("failed to invalidate category tree cache: %w", err)
	}
	log.Debug("Category tree cache invalidated")
	return nil
}

func (c *redisCatalogCache) SetLastIngest(ctx context.Context, summary IngestSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to serialize ingest summary: %w", err)
	}
	if err := c.redisClient.Set(ctx, c.lastIngestKey(), payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to store ingest summary: %w", err)
	}
	return nil
}

func (c *redisCatalogCache) LastIngest(ctx context.Context) (*IngestSummary, error) {
	payload, err := c.redisClient.Get(ctx, c.lastIngestKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ingest summary: %w", err)
	}

	var summary IngestSummary
	if err := json.Unmarshal(payload, &summary); err != nil {
		return nil, fmt.Errorf("failed to parse ingest summary: %w", err)
	}
	return &summary, nil
}
