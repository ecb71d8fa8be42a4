// Package closure expands direct product-category associations into
// their transitive closure over category ancestors: a product tagged
// under a leaf category is a member of every ancestor category too.
package closure

import (
	"context"
	"fmt"

	"samstore/ingest/internal/domain"
)

// ParentLookup resolves a category's parent id against the persisted
// hierarchy. found is false when the category does not exist; a nil
// parent id marks a root.
type ParentLookup interface {
	ParentID(ctx context.Context, categoryID string) (parentID *string, found bool, err error)
}

// Ancestors walks parent links upward from categoryID and returns the
// strict ancestor ids, nearest first. The walk stops at a root, at a
// missing category, or at an id already visited in this walk, so
// malformed cyclic data can never loop. A missing starting category
// yields an empty result, not an error.
func Ancestors(ctx context.Context, lookup ParentLookup, categoryID string) ([]string, error) {
	visited := map[string]struct{}{categoryID: {}}
	var ancestors []string

	current := categoryID
	for {
		parent, found, err := lookup.ParentID(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("failed to look up parent of category %s: %w", current, err)
		}
		if !found || parent == nil {
			return ancestors, nil
		}
		if _, seen := visited[*parent]; seen {
			return ancestors, nil
		}
		visited[*parent] = struct{}{}
		ancestors = append(ancestors, *parent)
		current = *parent
	}
}

// Build returns the closure of the direct association set: every direct
// (spu, category) pair plus one pair per ancestor of that category for
// the same spu, deduplicated. The result depends only on the inputs, so
// rebuilding over the same direct set and the same persisted hierarchy
// yields an identical set.
func Build(ctx context.Context, lookup ParentLookup, direct []domain.Mapping) ([]domain.Mapping, error) {
	seen := make(map[domain.Mapping]struct{}, len(direct))
	result := make([]domain.Mapping, 0, len(direct))

	add := func(m domain.Mapping) {
		if _, ok := seen[m]; ok {
			return
		}
		seen[m] = struct{}{}
		result = append(result, m)
	}

	for _, m := range direct {
		add(m)
	}
	for _, m := range direct {
		ancestors, err := Ancestors(ctx, lookup, m.CategoryID)
		if err != nil {
			return nil, err
		}
		for _, ancestor := range ancestors {
			add(domain.Mapping{SpuID: m.SpuID, CategoryID: ancestor})
		}
	}

	return result, nil
}
