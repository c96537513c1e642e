// Package store persists taxonomy entries, correction rules, and the
// location rows whose keys retroactive corrections rewrite. Postgres and
// SQLite backends implement the same contract.
package store

import (
	"context"
	"errors"

	"github.com/tripatlas/curator/internal/model"
)

// ErrDuplicateRule is returned by Tx.InsertRule when an equivalent rule
// already exists. The correction service maps it to a caller-facing
// bad-request and the surrounding transaction rolls back.
var ErrDuplicateRule = errors.New("correction rule already exists")

// Store is the persistence contract for the taxonomy and correction
// engine, independent of the underlying storage technology.
type Store interface {
	// Taxonomy entries
	EntryExists(ctx context.Context, key string) (bool, error)
	GetEntry(ctx context.Context, key string) (*model.TaxonomyEntry, error)
	// InsertPendingEntry returns (nil, nil) when a concurrent insert
	// already created the same unique key. That is the expected
	// idempotency path, not a failure.
	InsertPendingEntry(ctx context.Context, country, city, neighborhood, key string) (*model.TaxonomyEntry, error)
	ApproveEntry(ctx context.Context, key string) (bool, error)
	DeletePendingEntry(ctx context.Context, key string) (bool, error)
	ListEntriesByStatus(ctx context.Context, status model.Status) ([]model.TaxonomyEntry, error)
	CountLocationsWithKey(ctx context.Context, key string) (int, error)

	// Correction rules
	ListRules(ctx context.Context) ([]model.CorrectionRule, error)
	LookupRule(ctx context.Context, value string, part model.PartType) (*model.CorrectionRule, error)
	DeleteRule(ctx context.Context, id string) (bool, error)

	// Read-only blast-radius queries for correction preview. They return
	// the total match count and up to sampleLimit matching keys.
	MatchPendingEntries(ctx context.Context, incorrect string, part model.PartType, sampleLimit int) (int, []string, error)
	MatchLocations(ctx context.Context, incorrect string, part model.PartType, sampleLimit int) (int, []string, error)

	// Locations (ingest path)
	InsertLocation(ctx context.Context, name string, category model.Category, key string) (*model.Location, error)

	// WithTx runs fn inside a single transaction. It commits when fn
	// returns nil and rolls back otherwise; no partial rewrite is ever
	// visible.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Tx exposes the multi-statement operations of a retroactive rewrite. All
// methods run on the transaction opened by Store.WithTx.
type Tx interface {
	InsertRule(ctx context.Context, incorrect, correct string, part model.PartType) (*model.CorrectionRule, error)
	// DedupPendingForRewrite removes pending entries whose post-rewrite
	// key would collide with an already-existing key, so the rewrite
	// cannot violate key uniqueness.
	DedupPendingForRewrite(ctx context.Context, incorrect, correct string, part model.PartType) (int, error)
	RewritePendingEntries(ctx context.Context, incorrect, correct string, part model.PartType) (int, error)
	RewriteLocationKeys(ctx context.Context, incorrect, correct string, part model.PartType) (int, error)
}
