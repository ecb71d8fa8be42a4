// Package service wires the capture pipeline together: parse, extract,
// reconcile against the persisted hierarchy, expand the category
// closure, and persist everything in one transaction.
package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"samstore/ingest/internal/cache"
	"samstore/ingest/internal/closure"
	"samstore/ingest/internal/domain"
	"samstore/ingest/internal/extract"
	"samstore/ingest/internal/har"
	"samstore/ingest/internal/monitoring"
	"samstore/ingest/internal/repository"

	log "github.com/sirupsen/logrus"
)

// Options controls a single ingestion call.
type Options struct {
	// InferCategoryContext associates each listing's products with the
	// first front category id of its request body.
	InferCategoryContext bool
}

// IngestResult reports what one committed ingestion run produced.
type IngestResult struct {
	Categories     int  `json:"categories"`
	Products       int  `json:"products"`
	Mappings       int  `json:"mappings"`
	SkippedEntries int  `json:"skipped_entries"`
	Committed      bool `json:"committed"`
}

type Service struct {
	categories repository.CategoryRepository
	products   repository.ProductRepository
	cache      cache.CatalogCache
	metrics    *monitoring.Metrics
}

func NewService(
	categories repository.CategoryRepository,
	products repository.ProductRepository,
	catalogCache cache.CatalogCache,
	metrics *monitoring.Metrics,
) *Service {
	return &Service{
		categories: categories,
		products:   products,
		cache:      catalogCache,
		metrics:    metrics,
	}
}

// Ingest runs the full pipeline over one capture. Extraction problems on
// individual entries are skipped and counted; a malformed capture
// document or a persistence failure aborts the call. The product and
// mapping write is all-or-nothing.
func (s *Service) Ingest(ctx context.Context, captureData []byte, opts Options) (*IngestResult, error) {
	entries, err := har.Parse(captureData)
	if err != nil {
		s.countIngest("format_error")
		return nil, err
	}

	// The two extractors are independent scans over the same entries;
	// both must finish before closures are built.
	var catResult extract.CategoryResult
	var prodResult extract.ProductResult

	g := new(errgroup.Group)
	g.Go(func() error {
		catResult = extract.Categories(entries)
		return nil
	})
	g.Go(func() error {
		prodResult = extract.Products(entries, opts.InferCategoryContext)
		return nil
	})
	_ = g.Wait()

	skipped := catResult.Skipped + prodResult.Skipped
	if s.metrics != nil {
		s.metrics.AddEntriesSkipped(skipped)
	}

	categories, err := s.resolveDangling(ctx, catResult.Categories)
	if err != nil {
		s.countIngest("persistence_error")
		return nil, err
	}

	// Categories go in first so the ancestor walk below sees any nodes
	// this capture discovered.
	if err := s.categories.UpsertCategories(ctx, categories); err != nil {
		s.countIngest("persistence_error")
		return nil, err
	}

	direct := directMappings(prodResult.Products)
	mappings, err := closure.Build(ctx, s.categories, direct)
	if err != nil {
		s.countIngest("persistence_error")
		return nil, err
	}

	if err := s.products.UpsertCatalog(ctx, prodResult.Products, mappings); err != nil {
		s.countIngest("persistence_error")
		return nil, err
	}

	result := &IngestResult{
		Categories:     len(categories),
		Products:       len(prodResult.Products),
		Mappings:       len(mappings),
		SkippedEntries: skipped,
		Committed:      true,
	}

	s.countIngest("committed")
	if s.metrics != nil {
		s.metrics.AddRowsPersisted("categories", result.Categories)
		s.metrics.AddRowsPersisted("products", result.Products)
		s.metrics.AddRowsPersisted("mappings", result.Mappings)
	}
	s.refreshCache(ctx, result)

	log.Infof("Ingest committed: %d categories, %d products, %d mappings (%d entries skipped)",
		result.Categories, result.Products, result.Mappings, result.SkippedEntries)
	return result, nil
}

// ParseProducts runs only the product extraction over a capture, for
// preview before an import is confirmed.
func (s *Service) ParseProducts(captureData []byte, opts Options) ([]domain.Product, error) {
	entries, err := har.Parse(captureData)
	if err != nil {
		return nil, err
	}
	result := extract.Products(entries, opts.InferCategoryContext)
	return result.Products, nil
}

// IsPersistenceError reports whether err came from the storage layer, as
// opposed to a capture-format problem.
func IsPersistenceError(err error) bool {
	var perr *repository.PersistenceError
	return errors.As(err, &perr)
}

// resolveDangling drops extracted categories whose parent exists neither
// in the extracted set nor in the persisted store, so the store never
// retains a dangling parent link. Dropping a category orphans its own
// descendants, hence the fixpoint loop.
func (s *Service) resolveDangling(ctx context.Context, categories []domain.Category) ([]domain.Category, error) {
	known := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		known[c.ID] = struct{}{}
	}
	persisted := make(map[string]bool)

	parentKnown := func(id string) (bool, error) {
		if _, ok := known[id]; ok {
			return true, nil
		}
		if verdict, checked := persisted[id]; checked {
			return verdict, nil
		}
		_, found, err := s.categories.ParentID(ctx, id)
		if err != nil {
			return false, err
		}
		persisted[id] = found
		return found, nil
	}

	for {
		kept := categories[:0]
		dropped := false
		for _, c := range categories {
			if c.ParentID == nil {
				kept = append(kept, c)
				continue
			}
			ok, err := parentKnown(*c.ParentID)
			if err != nil {
				return nil, err
			}
			if !ok {
				log.Warnf("Dropping category %s (%q): parent %s is unknown", c.ID, c.Name, *c.ParentID)
				delete(known, c.ID)
				dropped = true
				continue
			}
			kept = append(kept, c)
		}
		categories = kept
		if !dropped {
			return categories, nil
		}
	}
}

// directMappings collects the context associations carried by extracted
// products.
func directMappings(products []domain.Product) []domain.Mapping {
	var direct []domain.Mapping
	for _, p := range products {
		if p.CategoryID == "" {
			continue
		}
		direct = append(direct, domain.Mapping{SpuID: p.SpuID, CategoryID: p.CategoryID})
	}
	return direct
}

func (s *Service) countIngest(outcome string) {
	if s.metrics != nil {
		s.metrics.IncIngestsTotal(outcome)
	}
}

// refreshCache is best-effort: a cold cache only costs the next reader a
// rebuild.
func (s *Service) refreshCache(ctx context.Context, result *IngestResult) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		log.Warnf("Failed to invalidate catalog cache: %v", err)
	}
	summary := cache.IngestSummary{
		Categories:     result.Categories,
		Products:       result.Products,
		Mappings:       result.Mappings,
		SkippedEntries: result.SkippedEntries,
		FinishedAt:     time.Now().UTC(),
	}
	if err := s.cache.SetLastIngest(ctx, summary); err != nil {
		log.Warnf("Failed to store ingest summary: %v", err)
	}
}
