package closure

import (
	"context"
	"errors"
	"testing"

	"samstore/ingest/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapLookup is an in-memory ParentLookup. A nil value marks a root.
type mapLookup map[string]*string

func (m mapLookup) ParentID(_ context.Context, id string) (*string, bool, error) {
	parent, ok := m[id]
	return parent, ok, nil
}

func parent(id string) *string { return &id }

func TestAncestors(t *testing.T) {
	lookup := mapLookup{
		"1":   nil,
		"11":  parent("1"),
		"111": parent("11"),
	}

	ancestors, err := Ancestors(context.Background(), lookup, "111")
	require.NoError(t, err)
	assert.Equal(t, []string{"11", "1"}, ancestors)
}

func TestAncestorsRoot(t *testing.T) {
	ancestors, err := Ancestors(context.Background(), mapLookup{"1": nil}, "1")
	require.NoError(t, err)
	assert.Empty(t, ancestors)
}

func TestAncestorsMissingCategory(t *testing.T) {
	// An unknown starting id yields an empty set, not an error: the
	// product keeps its direct mapping even with incomplete ancestry.
	ancestors, err := Ancestors(context.Background(), mapLookup{}, "ghost")
	require.NoError(t, err)
	assert.Empty(t, ancestors)
}

func TestAncestorsCycleTerminates(t *testing.T) {
	lookup := mapLookup{
		"A": parent("B"),
		"B": parent("A"),
	}

	ancestors, err := Ancestors(context.Background(), lookup, "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, ancestors)
}

func TestAncestorsSelfParentTerminates(t *testing.T) {
	ancestors, err := Ancestors(context.Background(), mapLookup{"A": parent("A")}, "A")
	require.NoError(t, err)
	assert.Empty(t, ancestors)
}

type failingLookup struct{ err error }

func (f failingLookup) ParentID(context.Context, string) (*string, bool, error) {
	return nil, false, f.err
}

func TestAncestorsLookupError(t *testing.T) {
	wantErr := errors.New("connection reset")
	_, err := Ancestors(context.Background(), failingLookup{err: wantErr}, "1")
	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)
}

func TestBuild(t *testing.T) {
	lookup := mapLookup{
		"1":  nil,
		"11": parent("1"),
		"2":  nil,
	}
	direct := []domain.Mapping{
		{SpuID: "P1", CategoryID: "11"},
		{SpuID: "P2", CategoryID: "2"},
	}

	mappings, err := Build(context.Background(), lookup, direct)
	require.NoError(t, err)

	assert.ElementsMatch(t, []domain.Mapping{
		{SpuID: "P1", CategoryID: "11"},
		{SpuID: "P1", CategoryID: "1"},
		{SpuID: "P2", CategoryID: "2"},
	}, mappings)
}

func TestBuildDeduplicates(t *testing.T) {
	lookup := mapLookup{
		"1":  nil,
		"11": parent("1"),
		"12": parent("1"),
	}
	// Two direct categories sharing an ancestor must contribute the
	// ancestor pair once.
	direct := []domain.Mapping{
		{SpuID: "P1", CategoryID: "11"},
		{SpuID: "P1", CategoryID: "12"},
		{SpuID: "P1", CategoryID: "11"},
	}

	mappings, err := Build(context.Background(), lookup, direct)
	require.NoError(t, err)

	assert.ElementsMatch(t, []domain.Mapping{
		{SpuID: "P1", CategoryID: "11"},
		{SpuID: "P1", CategoryID: "12"},
		{SpuID: "P1", CategoryID: "1"},
	}, mappings)
}

func TestBuildIdempotent(t *testing.T) {
	lookup := mapLookup{
		"1":   nil,
		"11":  parent("1"),
		"111": parent("11"),
	}
	direct := []domain.Mapping{
		{SpuID: "P1", CategoryID: "111"},
		{SpuID: "P2", CategoryID: "11"},
	}

	first, err := Build(context.Background(), lookup, direct)
	require.NoError(t, err)
	second, err := Build(context.Background(), lookup, direct)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestBuildEmptyDirectSet(t *testing.T) {
	mappings, err := Build(context.Background(), mapLookup{}, nil)
	require.NoError(t, err)
	assert.Empty(t, mappings)
}
