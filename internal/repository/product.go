package repository

import (
	"context"
	"fmt"
	"strings"

	"samstore/ingest/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// PersistenceError marks a failed catalog write. The surrounding
// transaction has been rolled back: no partial product or mapping rows
// survive.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("catalog write failed during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ProductFilter narrows and orders a product listing query.
type ProductFilter struct {
	Search      string
	SortBy      string
	SortOrder   string
	IsImport    *bool
	IsAvailable *bool
	CategoryID  string
	MinPrice    *float64
	MaxPrice    *float64
	Page        int
	PageSize    int
}

// ProductPage is one page of a filtered product listing.
type ProductPage struct {
	Data     []domain.Product `json:"data"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
}

type ProductRepository interface {
	// UpsertCatalog persists the product set and the mapping closure as
	// one atomic unit.
	UpsertCatalog(ctx context.Context, products []domain.Product, mappings []domain.Mapping) error
	List(ctx context.Context, filter ProductFilter) (*ProductPage, error)
}

type productRepository struct {
	db *pgxpool.Pool
}

func NewProductRepository(db *pgxpool.Pool) ProductRepository {
	return &productRepository{
		db: db,
	}
}

const upsertProductSQL = `
	INSERT INTO products (spu_id, store_id, title, sub_title, image_url, price,
	                      stock_quantity, is_available, is_import)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (spu_id, store_id)
	DO UPDATE SET title = EXCLUDED.title, sub_title = EXCLUDED.sub_title,
	              image_url = EXCLUDED.image_url, price = EXCLUDED.price,
	              stock_quantity = EXCLUDED.stock_quantity,
	              is_available = EXCLUDED.is_available,
	              is_import = EXCLUDED.is_import,
	              updated_at = now()`

const upsertMappingSQL = `
	INSERT INTO product_to_category_map (product_spu_id, category_id)
	VALUES ($1, $2)
	ON CONFLICT (product_spu_id, category_id) DO NOTHING`

// UpsertCatalog runs both batch upserts inside one transaction and rolls
// everything back on any failure. Empty inputs are a valid no-op call.
func (r *productRepository) UpsertCatalog(ctx context.Context, products []domain.Product, mappings []domain.Mapping) error {
	if len(products) == 0 && len(mappings) == 0 {
		log.Debug("Nothing to persist, skipping catalog transaction")
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return &PersistenceError{Op: "begin", Err: err}
	}
	defer tx.Rollback(ctx)

	if len(products) > 0 {
		batch := &pgx.Batch{}
		for _, p := range products {
			batch.Queue(upsertProductSQL, p.SpuID, p.StoreID, p.Title, p.SubTitle,
				p.ImageURL, p.Price, p.StockQuantity, p.IsAvailable, p.IsImport)
		}
		if err := flushBatch(ctx, tx, batch); err != nil {
			return &PersistenceError{Op: "product upsert", Err: err}
		}
	}

	if len(mappings) > 0 {
		batch := &pgx.Batch{}
		for _, m := range mappings {
			batch.Queue(upsertMappingSQL, m.SpuID, m.CategoryID)
		}
		if err := flushBatch(ctx, tx, batch); err != nil {
			return &PersistenceError{Op: "mapping upsert", Err: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return &PersistenceError{Op: "commit", Err: err}
	}

	log.Debugf("Persisted %d products and %d mappings", len(products), len(mappings))
	return nil
}

// sortColumns whitelists the orderable columns of a product listing.
var sortColumns = map[string]struct{}{
	"spu_id":         {},
	"price":          {},
	"stock_quantity": {},
	"title":          {},
}

func (r *productRepository) List(ctx context.Context, filter ProductFilter) (*ProductPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 10
	}

	base := `FROM products p`
	var where []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.CategoryID != "" {
		base += ` JOIN product_to_category_map pcm ON p.spu_id = pcm.product_spu_id`
		where = append(where, "pcm.category_id = "+arg(filter.CategoryID))
	}
	if filter.Search != "" {
		where = append(where, "p.title ILIKE "+arg("%"+filter.Search+"%"))
	}
	if filter.IsImport != nil {
		where = append(where, "p.is_import = "+arg(*filter.IsImport))
	}
	if filter.IsAvailable != nil {
		where = append(where, "p.is_available = "+arg(*filter.IsAvailable))
	}
	if filter.MinPrice != nil {
		where = append(where, "CAST(p.price AS numeric) >= "+arg(*filter.MinPrice))
	}
	if filter.MaxPrice != nil {
		where = append(where, "CAST(p.price AS numeric) <= "+arg(*filter.MaxPrice))
	}

	if len(where) > 0 {
		base += " WHERE " + strings.Join(where, " AND ")
	}

	countSQL := `SELECT COUNT(DISTINCT (p.spu_id, p.store_id)) ` + base
	var total int
	if err := r.db.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	listSQL := `SELECT p.spu_id, p.store_id, p.title, p.sub_title, p.image_url,
	                   p.price, p.stock_quantity, p.is_available, p.is_import ` + base

	sortBy := filter.SortBy
	if _, ok := sortColumns[sortBy]; !ok {
		sortBy = "spu_id"
	}
	orderExpr := "p." + sortBy
	if sortBy == "price" {
		orderExpr = "CAST(p.price AS numeric)"
	}
	direction := "ASC"
	if strings.EqualFold(filter.SortOrder, "desc") {
		direction = "DESC"
	}
	listSQL += fmt.Sprintf(" ORDER BY %s %s", orderExpr, direction)
	listSQL += " LIMIT " + arg(filter.PageSize) + " OFFSET " + arg((filter.Page-1)*filter.PageSize)

	rows, err := r.db.Query(ctx, listSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.SpuID, &p.StoreID, &p.Title, &p.SubTitle, &p.ImageURL,
			&p.Price, &p.StockQuantity, &p.IsAvailable, &p.IsImport); err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read product rows: %w", err)
	}

	return &ProductPage{
		Data:     products,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}, nil
}
