// Package correction manages operator-defined rules that map misspelled
// key segments to their canonical values, and applies them both
// proactively (on ingest) and retroactively (bulk rewrite of historical
// rows).
package correction

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tripatlas/curator/internal/apperr"
	"github.com/tripatlas/curator/internal/locationkey"
	"github.com/tripatlas/curator/internal/model"
	"github.com/tripatlas/curator/internal/store"
)

// sampleLimit caps the number of example keys a preview returns per table.
const sampleLimit = 5

// Service orchestrates correction-rule management and retroactive
// rewrites. Rule creation is administratively single-writer; there is no
// optimistic-concurrency guard around overlapping AddRule calls.
type Service struct {
	store store.Store
}

// NewService creates a correction service on the given store.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// Apply substitutes canonical values into each segment of key that has a
// matching rule for its position. Segments without a rule pass through
// unchanged, so applying the same rule set twice is a no-op. Malformed
// keys are returned unchanged; the taxonomy ensure path logs them.
func (s *Service) Apply(ctx context.Context, rawKey string) (string, error) {
	key, ok := locationkey.Parse(rawKey)
	if !ok {
		return rawKey, nil
	}

	corrected := *key
	if err := s.correctSegment(ctx, &corrected.Country, model.PartCountry); err != nil {
		return "", err
	}
	if corrected.City != "" {
		if err := s.correctSegment(ctx, &corrected.City, model.PartCity); err != nil {
			return "", err
		}
	}
	if corrected.Neighborhood != "" {
		if err := s.correctSegment(ctx, &corrected.Neighborhood, model.PartNeighborhood); err != nil {
			return "", err
		}
	}
	return corrected.String(), nil
}

func (s *Service) correctSegment(ctx context.Context, value *string, part model.PartType) error {
	rule, err := s.store.LookupRule(ctx, *value, part)
	if err != nil {
		return err
	}
	if rule != nil {
		*value = rule.CorrectValue
	}
	return nil
}

// Preview reports how many pending taxonomy entries and location records a
// proposed rule would touch, with up to five example keys from each table.
// It performs no writes; operators run it before committing a rule because
// city and neighborhood matching is substring-based and can reach across
// segment boundaries.
func (s *Service) Preview(ctx context.Context, incorrect, correct string, part model.PartType) (*model.CorrectionPreview, error) {
	if err := validateRule(incorrect, correct, part); err != nil {
		return nil, err
	}

	preview := &model.CorrectionPreview{
		PendingTaxonomySamples: []string{},
		LocationSamples:        []model.LocationSample{},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		count, samples, err := s.store.MatchPendingEntries(gctx, incorrect, part, sampleLimit)
		if err != nil {
			return err
		}
		preview.PendingTaxonomyCount = count
		preview.PendingTaxonomySamples = append(preview.PendingTaxonomySamples, samples...)
		return nil
	})
	g.Go(func() error {
		count, samples, err := s.store.MatchLocations(gctx, incorrect, part, sampleLimit)
		if err != nil {
			return err
		}
		preview.LocationCount = count
		for _, key := range samples {
			preview.LocationSamples = append(preview.LocationSamples, model.LocationSample{
				CurrentKey:   key,
				CorrectedKey: strings.ReplaceAll(key, incorrect, correct),
			})
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return preview, nil
}

// AddRule inserts a correction rule and retroactively rewrites every
// matching pending taxonomy entry and location record, all inside one
// transaction. Pending entries whose post-rewrite key would collide with
// an existing key are removed first. On any failure the whole operation
// rolls back; no partial rewrite is ever visible.
func (s *Service) AddRule(ctx context.Context, incorrect, correct string, part model.PartType) (*model.CorrectionResult, error) {
	if err := validateRule(incorrect, correct, part); err != nil {
		return nil, err
	}

	var result *model.CorrectionResult
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		rule, err := tx.InsertRule(ctx, incorrect, correct, part)
		if err != nil {
			if errors.Is(err, store.ErrDuplicateRule) {
				return apperr.BadRequestf("correction for %q (%s) may already exist", incorrect, part)
			}
			return err
		}

		if _, err := tx.DedupPendingForRewrite(ctx, incorrect, correct, part); err != nil {
			return err
		}
		pendingChanged, err := tx.RewritePendingEntries(ctx, incorrect, correct, part)
		if err != nil {
			return err
		}
		locationsChanged, err := tx.RewriteLocationKeys(ctx, incorrect, correct, part)
		if err != nil {
			return err
		}

		result = &model.CorrectionResult{
			Correction:           *rule,
			UpdatedPendingCount:  pendingChanged,
			UpdatedLocationCount: locationsChanged,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("correction: rule applied",
		zap.String("incorrect", incorrect),
		zap.String("correct", correct),
		zap.String("part_type", string(part)),
		zap.Int("pending_updated", result.UpdatedPendingCount),
		zap.Int("locations_updated", result.UpdatedLocationCount),
	)
	return result, nil
}

// RemoveRule deletes a rule. Prior retroactive rewrites stay in place;
// rules are forward-apply-once, not a live constraint.
func (s *Service) RemoveRule(ctx context.Context, id string) error {
	changed, err := s.store.DeleteRule(ctx, id)
	if err != nil {
		return err
	}
	if !changed {
		return apperr.NotFoundf("correction rule %q", id)
	}
	return nil
}

// Rules lists all correction rules.
func (s *Service) Rules(ctx context.Context) ([]model.CorrectionRule, error) {
	return s.store.ListRules(ctx)
}

func validateRule(incorrect, correct string, part model.PartType) error {
	if incorrect == "" || correct == "" {
		return apperr.BadRequestf("incorrect and correct values are required")
	}
	if incorrect == correct {
		return apperr.BadRequestf("incorrect and correct values must differ")
	}
	if !part.Valid() {
		return apperr.BadRequestf("unknown part type %q", part)
	}
	return nil
}
