package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/tripatlas/curator/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS taxonomy_entries (
	id           TEXT PRIMARY KEY,
	country      TEXT NOT NULL,
	city         TEXT,
	neighborhood TEXT,
	location_key TEXT NOT NULL UNIQUE,
	status       TEXT NOT NULL DEFAULT 'pending',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_taxonomy_entries_status ON taxonomy_entries(status);

CREATE TABLE IF NOT EXISTS correction_rules (
	id              TEXT PRIMARY KEY,
	incorrect_value TEXT NOT NULL,
	correct_value   TEXT NOT NULL,
	part_type       TEXT NOT NULL,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (incorrect_value, part_type)
);

CREATE TABLE IF NOT EXISTS locations (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	category     TEXT NOT NULL,
	location_key TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_locations_location_key ON locations(location_key);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isUniqueViolation reports whether err is a SQLite unique-constraint
// failure. modernc.org/sqlite surfaces these as plain errors with the
// standard SQLite message text.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *SQLiteStore) EntryExists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM taxonomy_entries WHERE location_key = ?)`,
		key,
	).Scan(&exists)
	return exists, eris.Wrapf(err, "sqlite: entry exists %s", key)
}

func (s *SQLiteStore) GetEntry(ctx context.Context, key string) (*model.TaxonomyEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, country, city, neighborhood, location_key, status, created_at
		 FROM taxonomy_entries WHERE location_key = ?`,
		key,
	)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get entry %s", key)
	}
	return e, nil
}

func (s *SQLiteStore) InsertPendingEntry(ctx context.Context, country, city, neighborhood, key string) (*model.TaxonomyEntry, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO taxonomy_entries (id, country, city, neighborhood, location_key, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, country, nullable(city), nullable(neighborhood), key, string(model.StatusPending), now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: insert entry %s", key)
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

func (s *SQLiteStore) ApproveEntry(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE taxonomy_entries SET status = ? WHERE location_key = ? AND status = ?`,
		string(model.StatusApproved), key, string(model.StatusPending),
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: approve entry %s", key)
	}
	return rowsChanged(res)
}

func (s *SQLiteStore) DeletePendingEntry(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM taxonomy_entries WHERE location_key = ? AND status = ?`,
		key, string(model.StatusPending),
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: delete pending entry %s", key)
	}
	return rowsChanged(res)
}

func (s *SQLiteStore) ListEntriesByStatus(ctx context.Context, status model.Status) ([]model.TaxonomyEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, country, city, neighborhood, location_key, status, created_at
		 FROM taxonomy_entries WHERE status = ? ORDER BY created_at, location_key`,
		string(status),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list entries")
	}
	defer rows.Close()

	var entries []model.TaxonomyEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan entry")
		}
		entries = append(entries, *e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list entries iterate")
}

func (s *SQLiteStore) CountLocationsWithKey(ctx context.Context, key string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM locations WHERE location_key = ?`,
		key,
	).Scan(&count)
	return count, eris.Wrapf(err, "sqlite: count locations %s", key)
}

func (s *SQLiteStore) ListRules(ctx context.Context) ([]model.CorrectionRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, incorrect_value, correct_value, part_type, created_at
		 FROM correction_rules ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list rules")
	}
	defer rows.Close()

	var rules []model.CorrectionRule
	for rows.Next() {
		var r model.CorrectionRule
		if err := rows.Scan(&r.ID, &r.IncorrectValue, &r.CorrectValue, &r.PartType, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan rule")
		}
		rules = append(rules, r)
	}
	return rules, eris.Wrap(rows.Err(), "sqlite: list rules iterate")
}

func (s *SQLiteStore) LookupRule(ctx context.Context, value string, part model.PartType) (*model.CorrectionRule, error) {
	var r model.CorrectionRule
	err := s.db.QueryRowContext(ctx,
		`SELECT id, incorrect_value, correct_value, part_type, created_at
		 FROM correction_rules WHERE incorrect_value = ? AND part_type = ?`,
		value, string(part),
	).Scan(&r.ID, &r.IncorrectValue, &r.CorrectValue, &r.PartType, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: lookup rule %s/%s", value, part)
	}
	return &r, nil
}

func (s *SQLiteStore) DeleteRule(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM correction_rules WHERE id = ?`,
		id,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: delete rule %s", id)
	}
	return rowsChanged(res)
}

func (s *SQLiteStore) MatchPendingEntries(ctx context.Context, incorrect string, part model.PartType, sampleLimit int) (int, []string, error) {
	pattern := likePattern(incorrect, part)

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM taxonomy_entries WHERE status = 'pending' AND location_key LIKE ? ESCAPE '\'`,
		pattern,
	).Scan(&count)
	if err != nil {
		return 0, nil, eris.Wrap(err, "sqlite: count matching pending entries")
	}

	samples, err := s.sampleKeys(ctx,
		`SELECT location_key FROM taxonomy_entries WHERE status = 'pending' AND location_key LIKE ? ESCAPE '\' ORDER BY created_at, location_key LIMIT ?`,
		pattern, sampleLimit,
	)
	if err != nil {
		return 0, nil, eris.Wrap(err, "sqlite: sample matching pending entries")
	}
	return count, samples, nil
}

func (s *SQLiteStore) MatchLocations(ctx context.Context, incorrect string, part model.PartType, sampleLimit int) (int, []string, error) {
	pattern := likePattern(incorrect, part)

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM locations WHERE location_key LIKE ? ESCAPE '\'`,
		pattern,
	).Scan(&count)
	if err != nil {
		return 0, nil, eris.Wrap(err, "sqlite: count matching locations")
	}

	samples, err := s.sampleKeys(ctx,
		`SELECT location_key FROM locations WHERE location_key LIKE ? ESCAPE '\' ORDER BY created_at, location_key LIMIT ?`,
		pattern, sampleLimit,
	)
	if err != nil {
		return 0, nil, eris.Wrap(err, "sqlite: sample matching locations")
	}
	return count, samples, nil
}

func (s *SQLiteStore) sampleKeys(ctx context.Context, query, pattern string, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, pattern, limit)
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

func (s *SQLiteStore) InsertLocation(ctx context.Context, name string, category model.Category, key string) (*model.Location, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO locations (id, name, category, location_key, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, name, string(category), key, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert location %s", name)
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
// returns nil.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	sqltx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer sqltx.Rollback() //nolint:errcheck

	if err := fn(&sqliteTx{tx: sqltx}); err != nil {
		return err
	}
	return eris.Wrap(sqltx.Commit(), "sqlite: commit tx")
}

// sqliteTx implements Tx on an open database/sql transaction.
type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) InsertRule(ctx context.Context, incorrect, correct string, part model.PartType) (*model.CorrectionRule, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO correction_rules (id, incorrect_value, correct_value, part_type, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id, incorrect, correct, string(part), now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateRule
		}
		return nil, eris.Wrapf(err, "sqlite: insert rule %s/%s", incorrect, part)
	}

	return &model.CorrectionRule{
		ID:             id,
		IncorrectValue: incorrect,
		CorrectValue:   correct,
		PartType:       part,
		CreatedAt:      now,
	}, nil
}

func (t *sqliteTx) DedupPendingForRewrite(ctx context.Context, incorrect, correct string, part model.PartType) (int, error) {
	res, err := t.tx.ExecContext(ctx,
		`DELETE FROM taxonomy_entries
		 WHERE status = 'pending' AND location_key LIKE ? ESCAPE '\'
		   AND EXISTS (
		     SELECT 1 FROM taxonomy_entries o
		     WHERE o.location_key = REPLACE(taxonomy_entries.location_key, ?, ?)
		       AND o.id <> taxonomy_entries.id
		   )`,
		likePattern(incorrect, part), incorrect, correct,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: dedup pending entries")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: dedup rows affected")
}

func (t *sqliteTx) RewritePendingEntries(ctx context.Context, incorrect, correct string, part model.PartType) (int, error) {
	// Rewrite row by row so the segment columns stay in sync with the
	// rewritten key; SQLite has no split_part.
	rows, err := t.tx.QueryContext(ctx,
		`SELECT id, location_key FROM taxonomy_entries
		 WHERE status = 'pending' AND location_key LIKE ? ESCAPE '\'`,
		likePattern(incorrect, part),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: select pending for rewrite")
	}

	type pendingRow struct {
		id  string
		key string
	}
	var matched []pendingRow
	for rows.Next() {
		var p pendingRow
		if err := rows.Scan(&p.id, &p.key); err != nil {
			rows.Close()
			return 0, eris.Wrap(err, "sqlite: scan pending for rewrite")
		}
		matched = append(matched, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, eris.Wrap(err, "sqlite: iterate pending for rewrite")
	}

	changed := 0
	for _, p := range matched {
		newKey := strings.ReplaceAll(p.key, incorrect, correct)
		if newKey == p.key {
			continue
		}
		country, city, neighborhood := splitSegments(newKey)
		if _, err := t.tx.ExecContext(ctx,
			`UPDATE taxonomy_entries SET location_key = ?, country = ?, city = ?, neighborhood = ? WHERE id = ?`,
			newKey, country, nullable(city), nullable(neighborhood), p.id,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: rewrite pending entry %s", p.key)
		}
		changed++
	}
	return changed, nil
}

func (t *sqliteTx) RewriteLocationKeys(ctx context.Context, incorrect, correct string, part model.PartType) (int, error) {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE locations SET location_key = REPLACE(location_key, ?, ?)
		 WHERE location_key LIKE ? ESCAPE '\'`,
		incorrect, correct, likePattern(incorrect, part),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rewrite location keys")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rewrite rows affected")
}

// splitSegments breaks a key into its three positions, empty when absent.
func splitSegments(key string) (country, city, neighborhood string) {
	segs := strings.SplitN(key, "|", 3)
	country = segs[0]
	if len(segs) > 1 {
		city = segs[1]
	}
	if len(segs) > 2 {
		neighborhood = segs[2]
	}
	return country, city, neighborhood
}

func rowsChanged(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}
