package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/deusflow/newsbrief/internal/logger"
	"github.com/deusflow/newsbrief/internal/seen"
)

// Dialect selects the SQL driver and placeholder style.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

const (
	kindLink  = "link"
	kindTitle = "title"

	insertBatch = 200
)

const seenSchema = `
CREATE TABLE IF NOT EXISTS seen_items (
	category    TEXT   NOT NULL,
	kind        TEXT   NOT NULL,
	identity    TEXT   NOT NULL,
	recorded_at BIGINT NOT NULL,
	PRIMARY KEY (category, kind, identity)
)`

// SQLSeenStore keeps seen identities in a sqlite or postgres table.
type SQLSeenStore struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ SeenStore = (*SQLSeenStore)(nil)

// OpenSQLSeenStore opens dsn with the dialect's driver and prepares the schema.
func OpenSQLSeenStore(ctx context.Context, dialect Dialect, dsn string) (*SQLSeenStore, error) {
	driver, err := driverName(dialect)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", dialect, err)
	}

	store, err := NewSQLSeenStore(ctx, db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("seen store ready", "dialect", string(dialect))
	return store, nil
}

// NewSQLSeenStore wraps an open database and migrates the schema.
func NewSQLSeenStore(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLSeenStore, error) {
	if _, err := driverName(dialect); err != nil {
		return nil, err
	}

	var format sq.PlaceholderFormat = sq.Question
	if dialect == DialectPostgres {
		format = sq.Dollar
	}

	s := &SQLSeenStore{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(format),
	}
	if _, err := db.ExecContext(ctx, seenSchema); err != nil {
		return nil, fmt.Errorf("failed to create seen schema: %w", err)
	}
	return s, nil
}

// Close releases the database handle.
func (s *SQLSeenStore) Close() error {
	return s.db.Close()
}

// Load reads every identity recorded for the category.
func (s *SQLSeenStore) Load(ctx context.Context, category string) (seen.State, error) {
	query, args, err := s.sb.
		Select("kind", "identity", "recorded_at").
		From("seen_items").
		Where(sq.Eq{"category": category}).
		ToSql()
	if err != nil {
		return seen.State{}, &PersistenceError{Op: "load seen", Category: category, Err: fmt.Errorf("build seen query: %w", err)}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return seen.State{}, &PersistenceError{Op: "load seen", Category: category, Err: fmt.Errorf("query seen items: %w", err)}
	}
	defer rows.Close()

	var links, titles []string
	var latest int64
	for rows.Next() {
		var kind, identity string
		var recorded int64
		if err := rows.Scan(&kind, &identity, &recorded); err != nil {
			return seen.State{}, &PersistenceError{Op: "load seen", Category: category, Err: fmt.Errorf("scan seen item: %w", err)}
		}
		switch kind {
		case kindLink:
			links = append(links, identity)
		case kindTitle:
			titles = append(titles, identity)
		}
		if recorded > latest {
			latest = recorded
		}
	}
	if err := rows.Err(); err != nil {
		return seen.State{}, &PersistenceError{Op: "load seen", Category: category, Err: fmt.Errorf("iterate seen items: %w", err)}
	}

	var updated time.Time
	if latest > 0 {
		updated = time.Unix(latest, 0).UTC()
	}
	return seen.New(links, titles, updated), nil
}

// Persist inserts every identity of state in one transaction; rows that
// already exist are left alone.
func (s *SQLSeenStore) Persist(ctx context.Context, category string, state seen.State) error {
	recorded := state.Updated()
	if recorded.IsZero() {
		recorded = time.Now()
	}
	ts := recorded.Unix()

	type row struct{ kind, identity string }
	rows := make([]row, 0, state.Len())
	for _, l := range state.Links() {
		rows = append(rows, row{kindLink, l})
	}
	for _, t := range state.Titles() {
		rows = append(rows, row{kindTitle, t})
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &PersistenceError{Op: "persist seen", Category: category, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	for start := 0; start < len(rows); start += insertBatch {
		end := min(start+insertBatch, len(rows))
		ins := s.sb.Insert("seen_items").Columns("category", "kind", "identity", "recorded_at")
		for _, r := range rows[start:end] {
			ins = ins.Values(category, r.kind, r.identity, ts)
		}
		query, args, err := ins.Suffix("ON CONFLICT DO NOTHING").ToSql()
		if err != nil {
			return &PersistenceError{Op: "persist seen", Category: category, Err: err}
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return &PersistenceError{Op: "persist seen", Category: category, Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &PersistenceError{Op: "persist seen", Category: category, Err: err}
	}
	return nil
}

func driverName(d Dialect) (string, error) {
	switch d {
	case DialectSQLite:
		return "sqlite", nil
	case DialectPostgres:
		return "postgres", nil
	default:
		return "", fmt.Errorf("unsupported seen store dialect %q", d)
	}
}
