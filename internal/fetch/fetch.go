// Package fetch loads capture documents for the CLI ingest mode, either
// from a local file or over HTTP from an export URL.
package fetch

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"samstore/ingest/internal/config"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

type Fetcher interface {
	Fetch(ctx context.Context, source string) ([]byte, error)
}

type fetcher struct {
	rl         ratelimit.Limiter
	httpClient *resty.Client
}

func NewFetcher(cfg config.IngestConfig) Fetcher {
	client := resty.New().
		SetTimeout(time.Duration(cfg.FetchTimeout)*time.Second).
		SetRetryCount(cfg.FetchRetries).
		SetRetryWaitTime(2*time.Second).
		SetRetryMaxWaitTime(10*time.Second).
		SetHeader("Accept", "application/json")

	return &fetcher{
		rl:         ratelimit.New(cfg.MaxRequestsPerSecond),
		httpClient: client,
	}
}

// Fetch reads source as a URL when it carries an http scheme, otherwise
// as a local file path.
func (f *fetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return f.fetchURL(ctx, source)
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture file %s: %w", source, err)
	}
	return data, nil
}

func (f *fetcher) fetchURL(ctx context.Context, url string) ([]byte, error) {
	f.rl.Take()

	resp, err := f.httpClient.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch capture from %s: %w", url, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("failed to fetch capture from %s: HTTP %d %s", url, resp.StatusCode(), resp.Status())
	}

	body := resp.String()
	log.Debugf("Fetched %d bytes of capture data from %s", len(body), url)
	return []byte(body), nil
}
