package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripatlas/curator/internal/model"
)

// newTestSQLiteStore opens a migrated store on a throwaway database file.
// A file path rather than :memory: because each pooled connection would
// otherwise see its own empty in-memory database.
func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "curator_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteStore_InsertAndGetEntry(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	entry, err := s.InsertPendingEntry(ctx, "peru", "lima", "miraflores", "peru|lima|miraflores")
	require.NoError(t, err)
	require.NotNil(t, entry)

	exists, err := s.EntryExists(ctx, "peru|lima|miraflores")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := s.GetEntry(ctx, "peru|lima|miraflores")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "peru", got.Country)
	assert.Equal(t, "lima", got.City)
	assert.Equal(t, "miraflores", got.Neighborhood)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSQLiteStore_GetEntry_NotFound(t *testing.T) {
	s := newTestSQLiteStore(t)

	got, err := s.GetEntry(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStore_InsertPendingEntry_DuplicateKey(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	first, err := s.InsertPendingEntry(ctx, "peru", "lima", "", "peru|lima")
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := s.InsertPendingEntry(ctx, "peru", "lima", "", "peru|lima")
	require.NoError(t, err)
	assert.Nil(t, second)

	entries, err := s.ListEntriesByStatus(ctx, model.StatusPending)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSQLiteStore_ApproveAndDelete(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := s.InsertPendingEntry(ctx, "peru", "lima", "", "peru|lima")
	require.NoError(t, err)

	changed, err := s.ApproveEntry(ctx, "peru|lima")
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := s.GetEntry(ctx, "peru|lima")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, got.Status)

	// Approving again changes nothing.
	changed, err = s.ApproveEntry(ctx, "peru|lima")
	require.NoError(t, err)
	assert.False(t, changed)

	// Deletion only touches pending rows.
	changed, err = s.DeletePendingEntry(ctx, "peru|lima")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestSQLiteStore_CountLocationsWithKey(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, name := range []string{"Central", "Maido"} {
		_, err := s.InsertLocation(ctx, name, model.CategoryRestaurant, "peru|lima")
		require.NoError(t, err)
	}
	_, err := s.InsertLocation(ctx, "Sacsayhuaman", model.CategoryAttraction, "peru|cusco")
	require.NoError(t, err)

	count, err := s.CountLocationsWithKey(ctx, "peru|lima")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = s.CountLocationsWithKey(ctx, "peru|arequipa")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSQLiteStore_Rules(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	var ruleID string
	err := s.WithTx(ctx, func(tx Tx) error {
		rule, err := tx.InsertRule(ctx, "lyma", "lima", model.PartCity)
		if err != nil {
			return err
		}
		ruleID = rule.ID
		return nil
	})
	require.NoError(t, err)

	rule, err := s.LookupRule(ctx, "lyma", model.PartCity)
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, "lima", rule.CorrectValue)

	// Same value at a different position is a different rule.
	rule, err = s.LookupRule(ctx, "lyma", model.PartNeighborhood)
	require.NoError(t, err)
	assert.Nil(t, rule)

	rules, err := s.ListRules(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 1)

	changed, err := s.DeleteRule(ctx, ruleID)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.DeleteRule(ctx, ruleID)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestSQLiteStore_WithTx_DuplicateRule(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx Tx) error {
		_, err := tx.InsertRule(ctx, "lyma", "lima", model.PartCity)
		return err
	})
	require.NoError(t, err)

	err = s.WithTx(ctx, func(tx Tx) error {
		_, err := tx.InsertRule(ctx, "lyma", "lima-centro", model.PartCity)
		return err
	})
	require.ErrorIs(t, err, ErrDuplicateRule)

	// The original rule is untouched.
	rule, err := s.LookupRule(ctx, "lyma", model.PartCity)
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, "lima", rule.CorrectValue)
}

func TestSQLiteStore_WithTx_RollbackOnError(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.InsertRule(ctx, "lyma", "lima", model.PartCity); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	rule, err := s.LookupRule(ctx, "lyma", model.PartCity)
	require.NoError(t, err)
	assert.Nil(t, rule)
}

func TestSQLiteStore_MatchAndRewrite(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	seedPending := []string{
		"brazil|rio-de-janero",
		"brazil|rio-de-janero|copacabana",
		"brazil|sao-paulo",
	}
	for _, key := range seedPending {
		country, city, neighborhood := splitSegments(key)
		_, err := s.InsertPendingEntry(ctx, country, city, neighborhood, key)
		require.NoError(t, err)
	}
	for _, key := range []string{"brazil|rio-de-janero", "brazil|rio-de-janero", "brazil|sao-paulo"} {
		_, err := s.InsertLocation(ctx, "spot", model.CategoryNightlife, key)
		require.NoError(t, err)
	}

	count, samples, err := s.MatchPendingEntries(ctx, "rio-de-janero", model.PartCity, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.ElementsMatch(t, []string{"brazil|rio-de-janero", "brazil|rio-de-janero|copacabana"}, samples)

	count, samples, err = s.MatchLocations(ctx, "rio-de-janero", model.PartCity, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Len(t, samples, 1)

	err = s.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.InsertRule(ctx, "rio-de-janero", "rio-de-janeiro", model.PartCity); err != nil {
			return err
		}
		if _, err := tx.DedupPendingForRewrite(ctx, "rio-de-janero", "rio-de-janeiro", model.PartCity); err != nil {
			return err
		}
		pendingChanged, err := tx.RewritePendingEntries(ctx, "rio-de-janero", "rio-de-janeiro", model.PartCity)
		if err != nil {
			return err
		}
		assert.Equal(t, 2, pendingChanged)
		locationsChanged, err := tx.RewriteLocationKeys(ctx, "rio-de-janero", "rio-de-janeiro", model.PartCity)
		if err != nil {
			return err
		}
		assert.Equal(t, 2, locationsChanged)
		return nil
	})
	require.NoError(t, err)

	// The segment columns follow the rewritten key.
	got, err := s.GetEntry(ctx, "brazil|rio-de-janeiro|copacabana")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "rio-de-janeiro", got.City)
	assert.Equal(t, "copacabana", got.Neighborhood)

	exists, err := s.EntryExists(ctx, "brazil|rio-de-janero")
	require.NoError(t, err)
	assert.False(t, exists)

	count, err = s.CountLocationsWithKey(ctx, "brazil|rio-de-janeiro")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

// A pending entry whose rewritten key collides with an existing entry is
// removed instead of rewritten, preserving key uniqueness.
func TestSQLiteStore_DedupPendingForRewrite(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := s.InsertPendingEntry(ctx, "peru", "lima", "", "peru|lima")
	require.NoError(t, err)
	_, err = s.InsertPendingEntry(ctx, "peru", "lyma", "", "peru|lyma")
	require.NoError(t, err)

	err = s.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.InsertRule(ctx, "lyma", "lima", model.PartCity); err != nil {
			return err
		}
		removed, err := tx.DedupPendingForRewrite(ctx, "lyma", "lima", model.PartCity)
		if err != nil {
			return err
		}
		assert.Equal(t, 1, removed)
		changed, err := tx.RewritePendingEntries(ctx, "lyma", "lima", model.PartCity)
		if err != nil {
			return err
		}
		assert.Equal(t, 0, changed)
		return nil
	})
	require.NoError(t, err)

	entries, err := s.ListEntriesByStatus(ctx, model.StatusPending)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "peru|lima", entries[0].LocationKey)
}

func TestSQLiteStore_MatchLocations_EscapesLikeMetacharacters(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := s.InsertLocation(ctx, "spot", model.CategoryHotel, "peru|limax")
	require.NoError(t, err)

	// A value containing % must not act as a wildcard.
	count, _, err := s.MatchLocations(ctx, "lima%", model.PartCity, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
