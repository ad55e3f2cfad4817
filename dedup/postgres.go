package dedup

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// PostgresStore keeps ingestion fingerprints in Postgres, for library
// deployments where many pipeline runs share one content store.
type PostgresStore struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

// NewPostgresStore connects to the fingerprint database at dsn.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &PostgresStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// initSchema creates the fingerprints table if it doesn't exist.
func (s *PostgresStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS fingerprints (
		fingerprint_id UUID PRIMARY KEY,
		scope TEXT NOT NULL,
		source_url TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE(scope, source_url)
	);
	CREATE INDEX IF NOT EXISTS idx_fingerprints_scope ON fingerprints(scope);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// ListFingerprints returns every source URL already ingested for the scope,
// mapped to its fingerprint ID.
func (s *PostgresStore) ListFingerprints(ctx context.Context, scope string) (map[string]uuid.UUID, error) {
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
		var id uuid.UUID
		var sourceURL string
		if err := rows.Scan(&id, &sourceURL); err != nil {
			return nil, fmt.Errorf("failed to scan fingerprint: %w", err)
		}
		fingerprints[sourceURL] = id
	}
	return fingerprints, rows.Err()
}

// Register records a newly ingested URL for the scope. The upsert keeps
// registration idempotent: re-registering returns the existing ID.
func (s *PostgresStore) Register(ctx context.Context, scope, url string) (uuid.UUID, error) {
	query, args, err := s.builder.
		Insert("fingerprints").
		Columns("fingerprint_id", "scope", "source_url").
		Values(uuid.New(), scope, url).
		Suffix("ON CONFLICT (scope, source_url) DO UPDATE SET source_url = EXCLUDED.source_url RETURNING fingerprint_id").
		ToSql()
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to build insert: %w", err)
	}

	var id uuid.UUID
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("failed to register fingerprint: %w", err)
	}
	return id, nil
}
