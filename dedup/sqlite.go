package dedup

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps ingestion fingerprints in a local SQLite database. It
// is the default store for single-user deployments.
type SQLiteStore struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

// NewSQLiteStore opens (or creates) the fingerprint database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// initSchema creates the fingerprints table if it doesn't exist.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS fingerprints (
		fingerprint_id TEXT PRIMARY KEY,
		scope TEXT NOT NULL,
		source_url TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(scope, source_url)
	);
	CREATE INDEX IF NOT EXISTS idx_fingerprints_scope ON fingerprints(scope);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ListFingerprints returns every source URL already ingested for the scope,
// mapped to its fingerprint ID.
func (s *SQLiteStore) ListFingerprints(ctx context.Context, scope string) (map[string]uuid.UUID, error) {
	query, args, err := s.builder.
		Select("fingerprint_id", "source_url").
		From("fingerprints").
		Where(sq.Eq{"scope": scope}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query fingerprints: %w", err)
	}
	defer rows.Close()

	fingerprints := make(map[string]uuid.UUID)
	for rows.Next() {
		var idStr, sourceURL string
		if err := rows.Scan(&idStr, &sourceURL); err != nil {
			return nil, fmt.Errorf("failed to scan fingerprint: %w", err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid fingerprint ID %q: %w", idStr, err)
		}
		fingerprints[sourceURL] = id
	}
	return fingerprints, rows.Err()
}

// Register records a newly ingested URL for the scope. Registering the same
// URL twice returns the existing fingerprint ID. The insert is OR IGNORE so
// concurrent registrations of the same URL cannot trip the unique
// constraint; whichever row landed is read back.
func (s *SQLiteStore) Register(ctx context.Context, scope, url string) (uuid.UUID, error) {
	query, args, err := s.builder.
		Insert("fingerprints").
		Options("OR IGNORE").
		Columns("fingerprint_id", "scope", "source_url", "created_at").
		Values(uuid.New().String(), scope, url, time.Now().UTC().Format(time.RFC3339)).
		ToSql()
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return uuid.Nil, fmt.Errorf("failed to register fingerprint: %w", err)
	}

	id, err := s.lookup(ctx, scope, url)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to read back fingerprint: %w", err)
	}
	return id, nil
}

// lookup finds the fingerprint ID for one scope+URL pair, or uuid.Nil.
func (s *SQLiteStore) lookup(ctx context.Context, scope, url string) (uuid.UUID, error) {
	query, args, err := s.builder.
		Select("fingerprint_id").
		From("fingerprints").
		Where(sq.Eq{"scope": scope, "source_url": url}).
		ToSql()
	if err != nil {
		return uuid.Nil, err
	}

	var idStr string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&idStr)
	if err == sql.ErrNoRows {
		return uuid.Nil, nil
	}
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(idStr)
}
