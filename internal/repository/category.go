package repository

import (
	"context"
	"errors"
	"fmt"

	"samstore/ingest/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CategoryRepository interface {
	// UpsertCategories writes the flat category set, keeping the
	// first-ingested parent link on conflict.
	UpsertCategories(ctx context.Context, categories []domain.Category) error
	// ParentID reports a category's parent id. found is false when the
	// category is not persisted; a nil parent marks a root.
	ParentID(ctx context.Context, id string) (parentID *string, found bool, err error)
	ListAll(ctx context.Context) ([]domain.Category, error)
	ListByLevel(ctx context.Context, level int) ([]domain.Category, error)
	ListChildren(ctx context.Context, parentID string) ([]domain.Category, error)
	Tree(ctx context.Context) ([]*domain.CategoryTreeNode, error)
}

type categoryRepository struct {
	db *pgxpool.Pool
}

func NewCategoryRepository(db *pgxpool.Pool) CategoryRepository {
	return &categoryRepository{
		db: db,
	}
}

const upsertCategorySQL = `
	INSERT INTO product_categories (id, parent_id, name, level, image_url, sort_order)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id)
	DO UPDATE SET name = EXCLUDED.name, level = EXCLUDED.level,
	              image_url = EXCLUDED.image_url, sort_order = EXCLUDED.sort_order`

func (r *categoryRepository) UpsertCategories(ctx context.Context, categories []domain.Category) error {
	if len(categories) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range categories {
		batch.Queue(upsertCategorySQL, c.ID, c.ParentID, c.Name, c.Level, c.ImageURL, c.SortOrder)
	}
	if err := flushBatch(ctx, r.db, batch); err != nil {
		return fmt.Errorf("failed to upsert categories: %w", err)
	}

	return nil
}

func (r *categoryRepository) ParentID(ctx context.Context, id string) (*string, bool, error) {
	var parentID *string
	err := r.db.QueryRow(ctx,
		`SELECT parent_id FROM product_categories WHERE id = $1`, id,
	).Scan(&parentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query parent of category %s: %w", id, err)
	}
	return parentID, true, nil
}

const selectCategorySQL = `
	SELECT id, parent_id, name, level, image_url, sort_order
	FROM product_categories`

func (r *categoryRepository) ListAll(ctx context.Context) ([]domain.Category, error) {
	return r.queryCategories(ctx, selectCategorySQL+` ORDER BY level, sort_order`)
}

func (r *categoryRepository) ListByLevel(ctx context.Context, level int) ([]domain.Category, error) {
	return r.queryCategories(ctx, selectCategorySQL+` WHERE level = $1 ORDER BY sort_order`, level)
}

func (r *categoryRepository) ListChildren(ctx context.Context, parentID string) ([]domain.Category, error) {
	return r.queryCategories(ctx, selectCategorySQL+` WHERE parent_id = $1 ORDER BY sort_order`, parentID)
}

// Tree assembles the persisted hierarchy: roots are categories without a
// parent, every other category hangs off its parent when that parent is
// present.
func (r *categoryRepository) Tree(ctx context.Context) ([]*domain.CategoryTreeNode, error) {
	categories, err := r.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	nodes := make(map[string]*domain.CategoryTreeNode, len(categories))
	for _, c := range categories {
		nodes[c.ID] = &domain.CategoryTreeNode{Category: c, Children: []*domain.CategoryTreeNode{}}
	}

	tree := make([]*domain.CategoryTreeNode, 0)
	for _, c := range categories {
		node := nodes[c.ID]
		if c.ParentID == nil {
			tree = append(tree, node)
			continue
		}
		if parent, ok := nodes[*c.ParentID]; ok {
			parent.Children = append(parent.Children, node)
		}
	}

	return tree, nil
}

func (r *categoryRepository) queryCategories(ctx context.Context, sql string, args ...any) ([]domain.Category, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.ParentID, &c.Name, &c.Level, &c.ImageURL, &c.SortOrder); err != nil {
			return nil, fmt.Errorf("failed to scan category row: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read category rows: %w", err)
	}

	return categories, nil
}
