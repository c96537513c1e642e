package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripatlas/curator/internal/model"
)

func entry(country, city, neighborhood, key string) model.TaxonomyEntry {
	return model.TaxonomyEntry{
		Country:      country,
		City:         city,
		Neighborhood: neighborhood,
		LocationKey:  key,
		Status:       model.StatusApproved,
	}
}

func TestBuildTree(t *testing.T) {
	entries := []model.TaxonomyEntry{
		entry("peru", "", "", "peru"),
		entry("peru", "lima", "", "peru|lima"),
		entry("peru", "lima", "miraflores", "peru|lima|miraflores"),
		entry("peru", "lima", "barranco", "peru|lima|barranco"),
		entry("peru", "cusco", "", "peru|cusco"),
		entry("new-zealand", "auckland", "", "new-zealand|auckland"),
	}

	tree := BuildTree(entries)
	require.Len(t, tree, 2)

	peru := tree[0]
	assert.Equal(t, "peru", peru.Code)
	assert.Equal(t, "Peru", peru.Label)
	require.Len(t, peru.Cities, 2)

	lima := peru.Cities[0]
	assert.Equal(t, "Lima", lima.Label)
	require.Len(t, lima.Neighborhoods, 2)
	assert.Equal(t, "Miraflores", lima.Neighborhoods[0].Label)
	assert.Equal(t, "Barranco", lima.Neighborhoods[1].Label)

	assert.Equal(t, "Cusco", peru.Cities[1].Label)
	assert.Empty(t, peru.Cities[1].Neighborhoods)

	nz := tree[1]
	assert.Equal(t, "New Zealand", nz.Label)
	require.Len(t, nz.Cities, 1)
}

// A neighborhood entry implies its city even when no standalone city
// entry exists.
func TestBuildTree_NeighborhoodImpliesCity(t *testing.T) {
	tree := BuildTree([]model.TaxonomyEntry{
		entry("peru", "lima", "miraflores", "peru|lima|miraflores"),
	})
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Cities, 1)
	assert.Equal(t, "lima", tree[0].Cities[0].Value)
	require.Len(t, tree[0].Cities[0].Neighborhoods, 1)
}

func TestBuildTree_DeduplicatesNodes(t *testing.T) {
	tree := BuildTree([]model.TaxonomyEntry{
		entry("peru", "lima", "", "peru|lima"),
		entry("peru", "lima", "miraflores", "peru|lima|miraflores"),
		entry("peru", "lima", "miraflores", "peru|lima|miraflores"),
	})
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Cities, 1)
	assert.Len(t, tree[0].Cities[0].Neighborhoods, 1)
}

func TestBuildTree_Empty(t *testing.T) {
	assert.Empty(t, BuildTree(nil))
}
