package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"samstore/ingest/internal/domain"
	"samstore/ingest/internal/har"
	"samstore/ingest/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCategoryRepo keeps the persisted hierarchy in memory.
type fakeCategoryRepo struct {
	stored map[string]domain.Category
}

func newFakeCategoryRepo() *fakeCategoryRepo {
	return &fakeCategoryRepo{stored: make(map[string]domain.Category)}
}

func (f *fakeCategoryRepo) UpsertCategories(_ context.Context, categories []domain.Category) error {
	for _, c := range categories {
		if existing, ok := f.stored[c.ID]; ok {
			// Mirrors the conflict clause: the parent link keeps its
			// first-ingested value.
			c.ParentID = existing.ParentID
		}
		f.stored[c.ID] = c
	}
	return nil
}

func (f *fakeCategoryRepo) ParentID(_ context.Context, id string) (*string, bool, error) {
	c, ok := f.stored[id]
	if !ok {
		return nil, false, nil
	}
	return c.ParentID, true, nil
}

func (f *fakeCategoryRepo) ListAll(context.Context) ([]domain.Category, error)            { return nil, nil }
func (f *fakeCategoryRepo) ListByLevel(context.Context, int) ([]domain.Category, error)   { return nil, nil }
func (f *fakeCategoryRepo) ListChildren(context.Context, string) ([]domain.Category, error) {
	return nil, nil
}
func (f *fakeCategoryRepo) Tree(context.Context) ([]*domain.CategoryTreeNode, error) { return nil, nil }

// fakeProductRepo persists atomically: on a forced failure nothing is
// recorded, matching the transactional contract.
type fakeProductRepo struct {
	products map[string]domain.Product
	mappings map[domain.Mapping]struct{}
	failWith error
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{
		products: make(map[string]domain.Product),
		mappings: make(map[domain.Mapping]struct{}),
	}
}

func (f *fakeProductRepo) UpsertCatalog(_ context.Context, products []domain.Product, mappings []domain.Mapping) error {
	if f.failWith != nil {
		return &repository.PersistenceError{Op: "mapping upsert", Err: f.failWith}
	}
	for _, p := range products {
		f.products[p.SpuID+"-"+p.StoreID] = p
	}
	for _, m := range mappings {
		f.mappings[m] = struct{}{}
	}
	return nil
}

func (f *fakeProductRepo) List(context.Context, repository.ProductFilter) (*repository.ProductPage, error) {
	return &repository.ProductPage{}, nil
}

// capture builds a HAR document around the given entries.
func capture(t *testing.T, entries ...map[string]any) []byte {
	t.Helper()
	data, err := json.Marshal(map[string]any{"log": map[string]any{"entries": entries}})
	require.NoError(t, err)
	return data
}

func homeEntry(t *testing.T) map[string]any {
	t.Helper()
	content, err := json.Marshal(map[string]any{
		"data": []map[string]string{
			{"title": "Fruit", "jumpLink": "/pages/category?firstCategoryId=1", "picUrl": "fruit.png"},
		},
	})
	require.NoError(t, err)
	body, err := json.Marshal(map[string]any{
		"data": map[string]any{
			"moduleList": []map[string]string{
				{"moduleType": "kingkong", "moduleContent": string(content)},
			},
		},
	})
	require.NoError(t, err)
	return map[string]any{
		"request":  map[string]any{"url": "https://store.example.com/home/portal/v3/get"},
		"response": map[string]any{"content": map[string]string{"text": string(body)}},
	}
}

func childrenEntry(t *testing.T, parentID string, nodes []domain.CategoryNode) map[string]any {
	t.Helper()
	req, err := json.Marshal(map[string]string{"groupingId": parentID})
	require.NoError(t, err)
	resp, err := json.Marshal(map[string]any{"data": nodes})
	require.NoError(t, err)
	return map[string]any{
		"request": map[string]any{
			"url":      "https://store.example.com/goods-portal/grouping/queryChildren",
			"postData": map[string]string{"text": string(req)},
		},
		"response": map[string]any{"content": map[string]string{"text": string(resp)}},
	}
}

func listingEntry(t *testing.T, categoryID, spuID, storeID, title string) map[string]any {
	t.Helper()
	req, err := json.Marshal(map[string]any{"frontCategoryIds": []string{categoryID}})
	require.NoError(t, err)
	resp, err := json.Marshal(map[string]any{
		"data": map[string]any{
			"dataList": []map[string]any{{
				"spuId":     spuID,
				"storeId":   storeID,
				"title":     title,
				"priceInfo": []map[string]any{{"priceType": 1, "price": "500"}},
				"stockInfo": map[string]any{"stockQuantity": 3},
			}},
		},
	})
	require.NoError(t, err)
	return map[string]any{
		"request": map[string]any{
			"url":      "https://store.example.com/goods-portal/grouping/list",
			"postData": map[string]string{"text": string(req)},
		},
		"response": map[string]any{"content": map[string]string{"text": string(resp)}},
	}
}

func TestIngestEndToEnd(t *testing.T) {
	categoryRepo := newFakeCategoryRepo()
	productRepo := newFakeProductRepo()
	svc := NewService(categoryRepo, productRepo, nil, nil)

	data := capture(t,
		homeEntry(t),
		childrenEntry(t, "1", []domain.CategoryNode{{GroupingID: "11", Title: "Apples", Level: 2}}),
		listingEntry(t, "11", "P1", "S1", "Green Apple"),
	)

	result, err := svc.Ingest(context.Background(), data, Options{InferCategoryContext: true})
	require.NoError(t, err)

	assert.True(t, result.Committed)
	assert.Equal(t, 2, result.Categories)
	assert.Equal(t, 1, result.Products)
	assert.Equal(t, 2, result.Mappings)
	assert.Zero(t, result.SkippedEntries)

	require.Contains(t, categoryRepo.stored, "1")
	require.Contains(t, categoryRepo.stored, "11")
	assert.Nil(t, categoryRepo.stored["1"].ParentID)
	require.NotNil(t, categoryRepo.stored["11"].ParentID)
	assert.Equal(t, "1", *categoryRepo.stored["11"].ParentID)

	require.Contains(t, productRepo.products, "P1-S1")
	assert.Equal(t, "500", productRepo.products["P1-S1"].Price)

	// Direct mapping plus the inferred ancestor mapping.
	assert.Contains(t, productRepo.mappings, domain.Mapping{SpuID: "P1", CategoryID: "11"})
	assert.Contains(t, productRepo.mappings, domain.Mapping{SpuID: "P1", CategoryID: "1"})
	assert.Len(t, productRepo.mappings, 2)
}

func TestIngestIdempotent(t *testing.T) {
	categoryRepo := newFakeCategoryRepo()
	productRepo := newFakeProductRepo()
	svc := NewService(categoryRepo, productRepo, nil, nil)

	data := capture(t,
		homeEntry(t),
		childrenEntry(t, "1", []domain.CategoryNode{{GroupingID: "11", Title: "Apples", Level: 2}}),
		listingEntry(t, "11", "P1", "S1", "Green Apple"),
	)

	first, err := svc.Ingest(context.Background(), data, Options{InferCategoryContext: true})
	require.NoError(t, err)
	second, err := svc.Ingest(context.Background(), data, Options{InferCategoryContext: true})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, categoryRepo.stored, 2)
	assert.Len(t, productRepo.products, 1)
	assert.Len(t, productRepo.mappings, 2)
}

func TestIngestMalformedCapture(t *testing.T) {
	categoryRepo := newFakeCategoryRepo()
	productRepo := newFakeProductRepo()
	svc := NewService(categoryRepo, productRepo, nil, nil)

	_, err := svc.Ingest(context.Background(), []byte(`{"log":`), Options{})
	require.Error(t, err)

	var formatErr *har.FormatError
	assert.True(t, errors.As(err, &formatErr))
	assert.False(t, IsPersistenceError(err))
	assert.Empty(t, categoryRepo.stored)
	assert.Empty(t, productRepo.products)
}

func TestIngestPersistenceFailure(t *testing.T) {
	categoryRepo := newFakeCategoryRepo()
	productRepo := newFakeProductRepo()
	productRepo.failWith = errors.New("deadlock detected")
	svc := NewService(categoryRepo, productRepo, nil, nil)

	data := capture(t,
		homeEntry(t),
		listingEntry(t, "1", "P1", "S1", "Green Apple"),
	)

	_, err := svc.Ingest(context.Background(), data, Options{InferCategoryContext: true})
	require.Error(t, err)
	assert.True(t, IsPersistenceError(err))
	assert.Empty(t, productRepo.products)
	assert.Empty(t, productRepo.mappings)
}

func TestIngestDropsDanglingCategories(t *testing.T) {
	categoryRepo := newFakeCategoryRepo()
	productRepo := newFakeProductRepo()
	svc := NewService(categoryRepo, productRepo, nil, nil)

	// The children entry references a parent this capture never defines
	// and the store has never seen; its subtree must not be persisted.
	data := capture(t,
		homeEntry(t),
		childrenEntry(t, "99", []domain.CategoryNode{
			{
				GroupingID: "991",
				Title:      "Orphan",
				Level:      2,
				Children:   []domain.CategoryNode{{GroupingID: "9911", Title: "Orphan Child", Level: 3}},
			},
		}),
	)

	result, err := svc.Ingest(context.Background(), data, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Categories)
	assert.Contains(t, categoryRepo.stored, "1")
	assert.NotContains(t, categoryRepo.stored, "991")
	assert.NotContains(t, categoryRepo.stored, "9911")
}

func TestIngestKeepsChildOfPersistedParent(t *testing.T) {
	categoryRepo := newFakeCategoryRepo()
	require.NoError(t, categoryRepo.UpsertCategories(context.Background(), []domain.Category{
		{ID: "7", Name: "Bakery", Level: 1},
	}))
	productRepo := newFakeProductRepo()
	svc := NewService(categoryRepo, productRepo, nil, nil)

	data := capture(t,
		childrenEntry(t, "7", []domain.CategoryNode{{GroupingID: "71", Title: "Bread", Level: 2}}),
	)

	result, err := svc.Ingest(context.Background(), data, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Categories)
	assert.Contains(t, categoryRepo.stored, "71")
}

func TestIngestEmptyCapture(t *testing.T) {
	svc := NewService(newFakeCategoryRepo(), newFakeProductRepo(), nil, nil)

	result, err := svc.Ingest(context.Background(), capture(t), Options{InferCategoryContext: true})
	require.NoError(t, err)

	assert.True(t, result.Committed)
	assert.Zero(t, result.Categories)
	assert.Zero(t, result.Products)
	assert.Zero(t, result.Mappings)
}

func TestParseProducts(t *testing.T) {
	svc := NewService(newFakeCategoryRepo(), newFakeProductRepo(), nil, nil)

	data := capture(t, listingEntry(t, "11", "P1", "S1", "Green Apple"))
	products, err := svc.ParseProducts(data, Options{InferCategoryContext: true})
	require.NoError(t, err)

	require.Len(t, products, 1)
	assert.Equal(t, "P1", products[0].SpuID)
	assert.Equal(t, "11", products[0].CategoryID)
}
