package repository

import (
	"context"
	"fmt"

	"samstore/ingest/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type HomeRepository interface {
	// Data returns every level-1 category with its newest products,
	// gathered across the category's whole subtree.
	Data(ctx context.Context) ([]domain.HomeCategory, error)
}

type homeRepository struct {
	db *pgxpool.Pool
}

func NewHomeRepository(db *pgxpool.Pool) HomeRepository {
	return &homeRepository{
		db: db,
	}
}

const homeProductsSQL = `
	WITH RECURSIVE category_tree AS (
		SELECT id FROM product_categories WHERE id = $1
		UNION ALL
		SELECT pc.id FROM product_categories pc
		JOIN category_tree ct ON pc.parent_id = ct.id
	)
	SELECT p.spu_id, p.title, p.sub_title, trunc(CAST(p.price AS numeric))::int,
	       p.image_url, p.stock_quantity
	FROM products p
	WHERE p.spu_id IN (
		SELECT product_spu_id FROM product_to_category_map
		WHERE category_id IN (SELECT id FROM category_tree)
	)
	ORDER BY p.updated_at DESC
	LIMIT $2`

const homeProductLimit = 6

func (r *homeRepository) Data(ctx context.Context) ([]domain.HomeCategory, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, image_url FROM product_categories WHERE level = 1 ORDER BY sort_order`)
	if err != nil {
		return nil, fmt.Errorf("failed to query level-1 categories: %w", err)
	}
	defer rows.Close()

	categories := make([]domain.HomeCategory, 0)
	for rows.Next() {
		var c domain.HomeCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.ImageURL); err != nil {
			return nil, fmt.Errorf("failed to scan home category row: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read home category rows: %w", err)
	}

	for i := range categories {
		products, err := r.categoryProducts(ctx, categories[i].ID)
		if err != nil {
			return nil, err
		}
		categories[i].Products = products
	}

	return categories, nil
}

func (r *homeRepository) categoryProducts(ctx context.Context, categoryID string) ([]domain.HomeProduct, error) {
	rows, err := r.db.Query(ctx, homeProductsSQL, categoryID, homeProductLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to query home products for category %s: %w", categoryID, err)
	}
	defer rows.Close()

	products := make([]domain.HomeProduct, 0, homeProductLimit)
	for rows.Next() {
		var p domain.HomeProduct
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL, &p.Stock); err != nil {
			return nil, fmt.Errorf("failed to scan home product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read home product rows: %w", err)
	}

	return products, nil
}
