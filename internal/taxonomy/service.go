package taxonomy

import (
	"context"

	"go.uber.org/zap"

	"github.com/tripatlas/curator/internal/apperr"
	"github.com/tripatlas/curator/internal/locationkey"
	"github.com/tripatlas/curator/internal/model"
	"github.com/tripatlas/curator/internal/store"
)

// Service orchestrates the ensure/approve/reject workflow for taxonomy
// entries.
type Service struct {
	store store.Store
}

// NewService creates a taxonomy service on the given store.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// Ensure records a pending taxonomy entry for key if none exists. It is
// called on every location create/update, so it must be cheap to call
// redundantly and must never block the location-save path: malformed keys
// are logged and reported as false rather than returned as errors.
func (s *Service) Ensure(ctx context.Context, rawKey string) (bool, error) {
	exists, err := s.store.EntryExists(ctx, rawKey)
	if err != nil {
		return false, err
	}
	if exists {
		return true, nil
	}

	key, ok := locationkey.Parse(rawKey)
	if !ok {
		zap.L().Warn("taxonomy: ignoring malformed location key",
			zap.String("key", rawKey),
		)
		return false, nil
	}

	entry, err := s.store.InsertPendingEntry(ctx, key.Country, key.City, key.Neighborhood, key.String())
	if err != nil {
		return false, err
	}
	if entry == nil {
		// Concurrent insert won the race; the entry exists either way.
		return true, nil
	}
	zap.L().Info("taxonomy: recorded pending entry",
		zap.String("key", entry.LocationKey),
	)
	return true, nil
}

// PendingEntries lists pending entries annotated with the number of
// location records referencing each key, for the admin review UI.
func (s *Service) PendingEntries(ctx context.Context) ([]model.PendingEntry, error) {
	entries, err := s.store.ListEntriesByStatus(ctx, model.StatusPending)
	if err != nil {
		return nil, err
	}

	pending := make([]model.PendingEntry, 0, len(entries))
	for _, e := range entries {
		count, err := s.store.CountLocationsWithKey(ctx, e.LocationKey)
		if err != nil {
			return nil, err
		}
		pending = append(pending, model.PendingEntry{TaxonomyEntry: e, LocationCount: count})
	}
	return pending, nil
}

// Approve flips a pending entry to approved and returns the refreshed
// entry.
func (s *Service) Approve(ctx context.Context, key string) (*model.TaxonomyEntry, error) {
	entry, err := s.store.GetEntry(ctx, key)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, apperr.NotFoundf("taxonomy entry %q", key)
	}
	if !entry.Status.CanApprove() {
		return nil, apperr.BadRequestf("taxonomy entry %q is already approved", key)
	}

	changed, err := s.store.ApproveEntry(ctx, key)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, apperr.NotFoundf("taxonomy entry %q", key)
	}
	return s.store.GetEntry(ctx, key)
}

// Reject deletes a pending entry. Approved entries are immutable through
// this path.
func (s *Service) Reject(ctx context.Context, key string) error {
	entry, err := s.store.GetEntry(ctx, key)
	if err != nil {
		return err
	}
	if entry == nil {
		return apperr.NotFoundf("taxonomy entry %q", key)
	}
	if !entry.Status.CanDelete() {
		return apperr.BadRequestf("taxonomy entry %q is already approved", key)
	}

	changed, err := s.store.DeletePendingEntry(ctx, key)
	if err != nil {
		return err
	}
	if !changed {
		return apperr.NotFoundf("taxonomy entry %q", key)
	}
	zap.L().Info("taxonomy: rejected pending entry", zap.String("key", key))
	return nil
}

// Tree returns the approved-entry hierarchy for browse and filter UIs.
func (s *Service) Tree(ctx context.Context) ([]*Country, error) {
	entries, err := s.store.ListEntriesByStatus(ctx, model.StatusApproved)
	if err != nil {
		return nil, err
	}
	return BuildTree(entries), nil
}
