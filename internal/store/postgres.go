package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/tripatlas/curator/internal/db"
	"github.com/tripatlas/curator/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot ingest-path operations.
var preparedStatements = map[string]string{
	"entry_exists":        `SELECT EXISTS (SELECT 1 FROM taxonomy_entries WHERE location_key = $1)`,
	"get_entry":           `SELECT id, country, city, neighborhood, location_key, status, created_at FROM taxonomy_entries WHERE location_key = $1`,
	"insert_entry":        `INSERT INTO taxonomy_entries (id, country, city, neighborhood, location_key, status, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"lookup_rule":         `SELECT id, incorrect_value, correct_value, part_type, created_at FROM correction_rules WHERE incorrect_value = $1 AND part_type = $2`,
	"count_locations_key": `SELECT COUNT(*) FROM locations WHERE location_key = $1`,
	"insert_location":     `INSERT INTO locations (id, name, category, location_key, created_at) VALUES ($1, $2, $3, $4, $5)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS taxonomy_entries (
	id           TEXT PRIMARY KEY,
	country      TEXT NOT NULL,
	city         TEXT,
	neighborhood TEXT,
	location_key TEXT NOT NULL UNIQUE,
	status       TEXT NOT NULL DEFAULT 'pending',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_taxonomy_entries_status ON taxonomy_entries(status);

CREATE TABLE IF NOT EXISTS correction_rules (
	id              TEXT PRIMARY KEY,
	incorrect_value TEXT NOT NULL,
	correct_value   TEXT NOT NULL,
	part_type       TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (incorrect_value, part_type)
);

CREATE TABLE IF NOT EXISTS locations (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	category     TEXT NOT NULL,
	location_key TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_locations_location_key ON locations(location_key);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) EntryExists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM taxonomy_entries WHERE location_key = $1)`,
		key,
	).Scan(&exists)
	return exists, eris.Wrapf(err, "postgres: entry exists %s", key)
}

func (s *PostgresStore) GetEntry(ctx context.Context, key string) (*model.TaxonomyEntry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, country, city, neighborhood, location_key, status, created_at
		 FROM taxonomy_entries WHERE location_key = $1`,
		key,
	)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get entry %s", key)
	}
	return e, nil
}

func (s *PostgresStore) InsertPendingEntry(ctx context.Context, country, city, neighborhood, key string) (*model.TaxonomyEntry, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO taxonomy_entries (id, country, city, neighborhood, location_key, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, country, nullable(city), nullable(neighborhood), key, string(model.StatusPending), now,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			// Lost an insert race; the entry already exists.
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: insert entry %s", key)
	}

	return &model.TaxonomyEntry{
		ID:           id,
		Country:      country,
		City:         city,
		Neighborhood: neighborhood,
		LocationKey:  key,
		Status:       model.StatusPending,
		CreatedAt:    now,
	}, nil
}

func (s *PostgresStore) ApproveEntry(ctx context.Context, key string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE taxonomy_entries SET status = $1 WHERE location_key = $2 AND status = $3`,
		string(model.StatusApproved), key, string(model.StatusPending),
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: approve entry %s", key)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) DeletePendingEntry(ctx context.Context, key string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM taxonomy_entries WHERE location_key = $1 AND status = $2`,
		key, string(model.StatusPending),
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: delete pending entry %s", key)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) ListEntriesByStatus(ctx context.Context, status model.Status) ([]model.TaxonomyEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, country, city, neighborhood, location_key, status, created_at
		 FROM taxonomy_entries WHERE status = $1 ORDER BY created_at`,
		string(status),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list entries")
	}
	defer rows.Close()

	var entries []model.TaxonomyEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan entry")
		}
		entries = append(entries, *e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list entries iterate")
}

func (s *PostgresStore) CountLocationsWithKey(ctx context.Context, key string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM locations WHERE location_key = $1`,
		key,
	).Scan(&count)
	return count, eris.Wrapf(err, "postgres: count locations %s", key)
}

func (s *PostgresStore) ListRules(ctx context.Context) ([]model.CorrectionRule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, incorrect_value, correct_value, part_type, created_at
		 FROM correction_rules ORDER BY created_at`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list rules")
	}
	defer rows.Close()

	var rules []model.CorrectionRule
	for rows.Next() {
		var r model.CorrectionRule
		if err := rows.Scan(&r.ID, &r.IncorrectValue, &r.CorrectValue, &r.PartType, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan rule")
		}
		rules = append(rules, r)
	}
	return rules, eris.Wrap(rows.Err(), "postgres: list rules iterate")
}

func (s *PostgresStore) LookupRule(ctx context.Context, value string, part model.PartType) (*model.CorrectionRule, error) {
	var r model.CorrectionRule
	err := s.pool.QueryRow(ctx,
		`SELECT id, incorrect_value, correct_value, part_type, created_at
		 FROM correction_rules WHERE incorrect_value = $1 AND part_type = $2`,
		value, string(part),
	).Scan(&r.ID, &r.IncorrectValue, &r.CorrectValue, &r.PartType, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: lookup rule %s/%s", value, part)
	}
	return &r, nil
}

func (s *PostgresStore) DeleteRule(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM correction_rules WHERE id = $1`,
		id,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: delete rule %s", id)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) MatchPendingEntries(ctx context.Context, incorrect string, part model.PartType, sampleLimit int) (int, []string, error) {
	pattern := likePattern(incorrect, part)

	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM taxonomy_entries WHERE status = 'pending' AND location_key LIKE $1 ESCAPE '\'`,
		pattern,
	).Scan(&count)
	if err != nil {
		return 0, nil, eris.Wrap(err, "postgres: count matching pending entries")
	}

	samples, err := s.sampleKeys(ctx,
		`SELECT location_key FROM taxonomy_entries WHERE status = 'pending' AND location_key LIKE $1 ESCAPE '\' ORDER BY created_at LIMIT $2`,
		pattern, sampleLimit,
	)
	if err != nil {
		return 0, nil, eris.Wrap(err, "postgres: sample matching pending entries")
	}
	return count, samples, nil
}

func (s *PostgresStore) MatchLocations(ctx context.Context, incorrect string, part model.PartType, sampleLimit int) (int, []string, error) {
	pattern := likePattern(incorrect, part)

	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM locations WHERE location_key LIKE $1 ESCAPE '\'`,
		pattern,
	).Scan(&count)
	if err != nil {
		return 0, nil, eris.Wrap(err, "postgres: count matching locations")
	}

	samples, err := s.sampleKeys(ctx,
		`SELECT location_key FROM locations WHERE location_key LIKE $1 ESCAPE '\' ORDER BY created_at LIMIT $2`,
		pattern, sampleLimit,
	)
	if err != nil {
		return 0, nil, eris.Wrap(err, "postgres: sample matching locations")
	}
	return count, samples, nil
}

func (s *PostgresStore) sampleKeys(ctx context.Context, query, pattern string, limit int) ([]string, error) {
	rows, err := s.pool.Query(ctx, query, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) InsertLocation(ctx context.Context, name string, category model.Category, key string) (*model.Location, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO locations (id, name, category, location_key, created_at) VALUES ($1, $2, $3, $4, $5)`,
		id, name, string(category), key, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert location %s", name)
	}

	return &model.Location{
		ID:          id,
		Name:        name,
		Category:    category,
		LocationKey: key,
		CreatedAt:   now,
	}, nil
}

// WithTx runs fn inside a single transaction, committing only if fn
// returns nil. Any error rolls back every statement fn issued.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	pgtx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer pgtx.Rollback(ctx) //nolint:errcheck

	if err := fn(&postgresTx{tx: pgtx}); err != nil {
		return err
	}
	return eris.Wrap(pgtx.Commit(ctx), "postgres: commit tx")
}

// postgresTx implements Tx on an open pgx transaction.
type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) InsertRule(ctx context.Context, incorrect, correct string, part model.PartType) (*model.CorrectionRule, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := t.tx.Exec(ctx,
		`INSERT INTO correction_rules (id, incorrect_value, correct_value, part_type, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		id, incorrect, correct, string(part), now,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrDuplicateRule
		}
		return nil, eris.Wrapf(err, "postgres: insert rule %s/%s", incorrect, part)
	}

	return &model.CorrectionRule{
		ID:             id,
		IncorrectValue: incorrect,
		CorrectValue:   correct,
		PartType:       part,
		CreatedAt:      now,
	}, nil
}

func (t *postgresTx) DedupPendingForRewrite(ctx context.Context, incorrect, correct string, part model.PartType) (int, error) {
	tag, err := t.tx.Exec(ctx,
		`DELETE FROM taxonomy_entries te
		 WHERE te.status = 'pending' AND te.location_key LIKE $3 ESCAPE '\'
		   AND EXISTS (
		     SELECT 1 FROM taxonomy_entries o
		     WHERE o.location_key = REPLACE(te.location_key, $1, $2) AND o.id <> te.id
		   )`,
		incorrect, correct, likePattern(incorrect, part),
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: dedup pending entries")
	}
	return int(tag.RowsAffected()), nil
}

func (t *postgresTx) RewritePendingEntries(ctx context.Context, incorrect, correct string, part model.PartType) (int, error) {
	// SET expressions see the pre-update location_key, so the segment
	// columns are re-derived from the same rewritten key.
	tag, err := t.tx.Exec(ctx,
		`UPDATE taxonomy_entries SET
		   location_key = REPLACE(location_key, $1, $2),
		   country      = split_part(REPLACE(location_key, $1, $2), '|', 1),
		   city         = NULLIF(split_part(REPLACE(location_key, $1, $2), '|', 2), ''),
		   neighborhood = NULLIF(split_part(REPLACE(location_key, $1, $2), '|', 3), '')
		 WHERE status = 'pending' AND location_key LIKE $3 ESCAPE '\'`,
		incorrect, correct, likePattern(incorrect, part),
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: rewrite pending entries")
	}
	return int(tag.RowsAffected()), nil
}

func (t *postgresTx) RewriteLocationKeys(ctx context.Context, incorrect, correct string, part model.PartType) (int, error) {
	tag, err := t.tx.Exec(ctx,
		`UPDATE locations SET location_key = REPLACE(location_key, $1, $2)
		 WHERE location_key LIKE $3 ESCAPE '\'`,
		incorrect, correct, likePattern(incorrect, part),
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: rewrite location keys")
	}
	return int(tag.RowsAffected()), nil
}

// row is satisfied by both pgx.Row and pgx.Rows.
type row interface {
	Scan(dest ...any) error
}

func scanEntry(r row) (*model.TaxonomyEntry, error) {
	var e model.TaxonomyEntry
	var city, neighborhood *string
	if err := r.Scan(&e.ID, &e.Country, &city, &neighborhood, &e.LocationKey, &e.Status, &e.CreatedAt); err != nil {
		return nil, err
	}
	if city != nil {
		e.City = *city
	}
	if neighborhood != nil {
		e.Neighborhood = *neighborhood
	}
	return &e, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
