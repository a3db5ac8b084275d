package stash

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using github.com/jackc/pgx/v5. It is
// designed to work with pgxpool, which suits shared caches fed by several
// writers.
type PostgresStore struct {
	pool      *pgxpool.Pool
	tableName string
}

// NewPostgresStore creates a new Postgres-backed store.
func NewPostgresStore(pool *pgxpool.Pool, tableName string) *PostgresStore {
	if tableName == "" {
		tableName = "stash_results"
	}
	return &PostgresStore{
		pool:      pool,
		tableName: tableName,
	}
}

// InitSchema creates the results table if it doesn't exist.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			action TEXT NOT NULL,
			input_fp TEXT NOT NULL,
			output_fp TEXT NOT NULL,
			archive_file TEXT NOT NULL,
			file_size BIGINT NOT NULL,
			runtime_ns BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ,
			compressed BOOLEAN NOT NULL
		);
	`, s.tableName)

	_, err := s.pool.Exec(ctx, query)
	return err
}

// Sync verifies the connection.
func (s *PostgresStore) Sync(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func scanPgxResult(row pgx.Row) (Result, error) {
	var r Result
	var runtimeNS int64
	var expires *time.Time
	err := row.Scan(
		&r.ID, &r.Action, &r.InputFingerprint, &r.OutputFingerprint,
		&r.ArchiveFile, &r.FileSize, &runtimeNS, &r.Created, &expires, &r.Compressed,
	)
	if err != nil {
		return Result{}, err
	}
	r.Runtime = time.Duration(runtimeNS)
	if expires != nil {
		r.Expires = *expires
	}
	return r, nil
}

// All returns every record ordered by ID.
func (s *PostgresStore) All(ctx context.Context) ([]Result, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY id", sqlResultColumns, s.tableName)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing results: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		r, err := scanPgxResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Insert persists the record and assigns its ID.
func (s *PostgresStore) Insert(ctx context.Context, r *Result) error {
	var expires *time.Time
	if !r.Expires.IsZero() {
		expires = &r.Expires
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (action, input_fp, output_fp, archive_file, file_size, runtime_ns, created_at, expires_at, compressed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, s.tableName)
	return s.pool.QueryRow(ctx, query,
		r.Action, r.InputFingerprint, r.OutputFingerprint,
		r.ArchiveFile, r.FileSize, int64(r.Runtime), r.Created, expires, r.Compressed,
	).Scan(&r.ID)
}

// FindOne returns the first non-expired record matching the key triple, or
// nil.
func (s *PostgresStore) FindOne(ctx context.Context, q Query) (*Result, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE action = $1 AND input_fp = $2 AND output_fp = $3
		  AND (expires_at IS NULL OR expires_at > $4)
		ORDER BY id
		LIMIT 1
	`, sqlResultColumns, s.tableName)

	row := s.pool.QueryRow(ctx, query, q.Action, q.InputFingerprint, q.OutputFingerprint, q.Now)
	r, err := scanPgxResult(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying result: %w", err)
	}
	return &r, nil
}

// RemoveWhere deletes records selected by pred, matching client-side.
func (s *PostgresStore) RemoveWhere(ctx context.Context, pred func(Result) bool) (int, error) {
	all, err := s.All(ctx)
	if err != nil {
		return 0, err
	}
	var ids []int64
	for _, r := range all {
		if pred(r) {
			ids = append(ids, r.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return len(ids), s.RemoveIDs(ctx, ids...)
}

// RemoveIDs deletes records by ID.
func (s *PostgresStore) RemoveIDs(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	ph := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		ph[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id IN (%s)", s.tableName, strings.Join(ph, ", "))
	_, err := s.pool.Exec(ctx, query, args...)
	return err
}
