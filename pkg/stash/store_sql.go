package stash

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// SQLDialect defines the SQL syntax variant.
type SQLDialect string

const (
	DialectSQLite   SQLDialect = "sqlite"
	DialectPostgres SQLDialect = "postgres"
	DialectMySQL    SQLDialect = "mysql"
)

// SQLStore implements Store using database/sql. It supports SQLite,
// Postgres, and MySQL. For Postgres behind pgxpool, PostgresStore is the
// more direct choice.
type SQLStore struct {
	db        *sql.DB
	tableName string
	dialect   SQLDialect
}

// NewSQLStore creates a new SQL-backed store. The caller is responsible for
// opening the *sql.DB with their preferred driver.
func NewSQLStore(db *sql.DB, tableName string, dialect SQLDialect) *SQLStore {
	if tableName == "" {
		tableName = "stash_results"
	}
	return &SQLStore{
		db:        db,
		tableName: tableName,
		dialect:   dialect,
	}
}

// InitSchema creates the results table if it doesn't exist. This is a
// helper for migration-free usage.
func (s *SQLStore) InitSchema(ctx context.Context) error {
	idCol := "INTEGER PRIMARY KEY AUTOINCREMENT"
	timestampType := "TIMESTAMP"
	switch s.dialect {
	case DialectPostgres:
		idCol = "BIGSERIAL PRIMARY KEY"
		timestampType = "TIMESTAMPTZ"
	case DialectMySQL:
		idCol = "BIGINT PRIMARY KEY AUTO_INCREMENT"
		timestampType = "DATETIME(3)"
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id %s,
			action TEXT NOT NULL,
			input_fp TEXT NOT NULL,
			output_fp TEXT NOT NULL,
			archive_file TEXT NOT NULL,
			file_size BIGINT NOT NULL,
			runtime_ns BIGINT NOT NULL,
			created_at %s NOT NULL,
			expires_at %s,
			compressed BOOLEAN NOT NULL
		);
	`, s.tableName, idCol, timestampType, timestampType)

	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Sync verifies the connection; schema management is explicit via
// InitSchema.
func (s *SQLStore) Sync(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) placeholders(n int) []string {
	ph := make([]string, n)
	for i := range ph {
		if s.dialect == DialectPostgres {
			ph[i] = fmt.Sprintf("$%d", i+1)
		} else {
			ph[i] = "?"
		}
	}
	return ph
}

const sqlResultColumns = "id, action, input_fp, output_fp, archive_file, file_size, runtime_ns, created_at, expires_at, compressed"

func scanSQLResult(scan func(dest ...any) error) (Result, error) {
	var r Result
	var runtimeNS int64
	var expires sql.NullTime
	err := scan(
		&r.ID, &r.Action, &r.InputFingerprint, &r.OutputFingerprint,
		&r.ArchiveFile, &r.FileSize, &runtimeNS, &r.Created, &expires, &r.Compressed,
	)
	if err != nil {
		return Result{}, err
	}
	r.Runtime = time.Duration(runtimeNS)
	if expires.Valid {
		r.Expires = expires.Time
	}
	return r, nil
}

// All returns every record ordered by ID.
func (s *SQLStore) All(ctx context.Context) ([]Result, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY id", sqlResultColumns, s.tableName)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing results: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		r, err := scanSQLResult(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Insert persists the record and assigns its ID.
func (s *SQLStore) Insert(ctx context.Context, r *Result) error {
	var expires any
	if !r.Expires.IsZero() {
		expires = r.Expires
	}

	ph := s.placeholders(9)
	cols := "action, input_fp, output_fp, archive_file, file_size, runtime_ns, created_at, expires_at, compressed"
	args := []any{
		r.Action, r.InputFingerprint, r.OutputFingerprint,
		r.ArchiveFile, r.FileSize, int64(r.Runtime), r.Created, expires, r.Compressed,
	}

	if s.dialect == DialectPostgres {
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
			s.tableName, cols, strings.Join(ph, ", "))
		return s.db.QueryRowContext(ctx, query, args...).Scan(&r.ID)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.tableName, cols, strings.Join(ph, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("inserting result: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted id: %w", err)
	}
	r.ID = id
	return nil
}

// FindOne returns the first non-expired record matching the key triple, or
// nil. Equality is pushed down to SQL; expiry uses q.Now.
func (s *SQLStore) FindOne(ctx context.Context, q Query) (*Result, error) {
	ph := s.placeholders(4)
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE action = %s AND input_fp = %s AND output_fp = %s
		  AND (expires_at IS NULL OR expires_at > %s)
		ORDER BY id
		LIMIT 1
	`, sqlResultColumns, s.tableName, ph[0], ph[1], ph[2], ph[3])

	row := s.db.QueryRowContext(ctx, query, q.Action, q.InputFingerprint, q.OutputFingerprint, q.Now)
	r, err := scanSQLResult(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying result: %w", err)
	}
	return &r, nil
}

// RemoveWhere deletes records selected by pred. Predicates are arbitrary Go
// functions, so matching happens client-side over the full set.
func (s *SQLStore) RemoveWhere(ctx context.Context, pred func(Result) bool) (int, error) {
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
func (s *SQLStore) RemoveIDs(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	ph := s.placeholders(len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id IN (%s)", s.tableName, strings.Join(ph, ", "))
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}
