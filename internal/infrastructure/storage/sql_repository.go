package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"IntelDigest/internal/domain"
	"IntelDigest/internal/ports"
)

const table = "dedup_records"

// SQLRepository persists delivered items into SQLite or Postgres.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
	builder sq.StatementBuilderType
	// single writer; readers go straight to the pool
	writeMu sync.Mutex
}

var _ ports.DedupStore = (*SQLRepository)(nil)

// NewSQLRepository wires a sql.DB implementation.
func NewSQLRepository(db *sql.DB, dialect Dialect) *SQLRepository {
	return &SQLRepository{
		db:      db,
		dialect: dialect,
		builder: sq.StatementBuilder.PlaceholderFormat(dialect.Placeholder),
	}
}

// Open connects to dsn and applies the schema. DSNs starting with postgres:// use
// Postgres; anything else is treated as a SQLite path.
func Open(ctx context.Context, dsn string) (*SQLRepository, error) {
	dialect := DialectFor(dsn)

	connStr := dsn
	if dialect.Name == SQLite.Name && dsn == ":memory:" {
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open(dialect.Driver, connStr)
	if err != nil {
		return nil, domain.NewStorageError("open", err)
	}
	if dialect.Name == SQLite.Name && dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, domain.NewStorageError("ping", err)
	}

	for _, pragma := range dialect.Pragmas {
		if dsn == ":memory:" && strings.Contains(pragma, "journal_mode") {
			continue
		}
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, domain.NewStorageError(fmt.Sprintf("apply pragma %q", pragma), err)
		}
	}

	repo := NewSQLRepository(db, dialect)
	if err := repo.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Migrate creates the table and indexes when missing.
func (r *SQLRepository) Migrate(ctx context.Context) error {
	for _, stmt := range r.dialect.Schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return domain.NewStorageError("migrate", err)
		}
	}
	return nil
}

// Close closes the underlying connection pool.
func (r *SQLRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// IsURLSent reports whether url was recorded in scope at or after since.
func (r *SQLRepository) IsURLSent(ctx context.Context, scope, url string, since time.Time) (bool, error) {
	query, args, err := r.builder.
		Select("1").
		From(table).
		Where(sq.Eq{"scope": scope, "url": url}).
		Where(sq.GtOrEq{"sent_at": since.UnixNano()}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, domain.NewStorageError("build url lookup", err)
	}

	var one int
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, domain.NewStorageError("url lookup", err)
	}
	return true, nil
}

// RecentIndexIDs returns the similarity-index ids recorded in scope at or after since.
func (r *SQLRepository) RecentIndexIDs(ctx context.Context, scope string, since time.Time) (map[int64]struct{}, error) {
	query, args, err := r.builder.
		Select("index_id").
		From(table).
		Where(sq.Eq{"scope": scope}).
		Where(sq.GtOrEq{"sent_at": since.UnixNano()}).
		ToSql()
	if err != nil {
		return nil, domain.NewStorageError("build recent ids", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.NewStorageError("query recent ids", err)
	}

	result := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, domain.NewStorageError("scan index id", err)
		}
		result[id] = struct{}{}
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, domain.NewStorageError("rows iteration", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, domain.NewStorageError("close rows", closeErr)
	}

	return result, nil
}

// Record upserts the delivery of rec.URL in rec.Scope and returns the row id.
func (r *SQLRepository) Record(ctx context.Context, rec domain.DedupRecord) (int64, error) {
	query, args, err := r.builder.
		Insert(table).
		Columns("scope", "url", "title", "persona", "score", "index_id", "sent_at").
		Values(rec.Scope, rec.URL, rec.Title, rec.Persona, rec.Score, rec.IndexID, rec.SentAt.UnixNano()).
		Suffix(`ON CONFLICT (scope, url) DO UPDATE
              SET title = EXCLUDED.title,
                  persona = EXCLUDED.persona,
                  score = EXCLUDED.score,
                  index_id = EXCLUDED.index_id,
                  sent_at = EXCLUDED.sent_at
              RETURNING id`).
		ToSql()
	if err != nil {
		return 0, domain.NewStorageError("build record", err)
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	var id int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, domain.NewStorageError("upsert record", err)
	}
	return id, nil
}

// Recent lists records sent at or after since, newest first. An empty persona lists all.
func (r *SQLRepository) Recent(ctx context.Context, since time.Time, persona string) ([]domain.DedupRecord, error) {
	builder := r.builder.
		Select("id", "scope", "url", "title", "persona", "score", "index_id", "sent_at").
		From(table).
		Where(sq.GtOrEq{"sent_at": since.UnixNano()}).
		OrderBy("sent_at DESC", "id DESC")
	if persona != "" {
		builder = builder.Where(sq.Eq{"persona": persona})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, domain.NewStorageError("build recent", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.NewStorageError("query recent", err)
	}
	defer rows.Close()

	var out []domain.DedupRecord
	for rows.Next() {
		var (
			rec    domain.DedupRecord
			sentAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.Scope, &rec.URL, &rec.Title, &rec.Persona, &rec.Score, &rec.IndexID, &sentAt); err != nil {
			return nil, domain.NewStorageError("scan record", err)
		}
		rec.SentAt = time.Unix(0, sentAt).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("rows iteration", err)
	}
	return out, nil
}

// PurgeBefore deletes records sent before cutoff and returns how many were removed.
// Index vectors stay in place; their ids simply stop being referenced.
func (r *SQLRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := r.builder.
		Delete(table).
		Where(sq.Lt{"sent_at": cutoff.UnixNano()}).
		ToSql()
	if err != nil {
		return 0, domain.NewStorageError("build purge", err)
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, domain.NewStorageError("purge", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, domain.NewStorageError("purge rows affected", err)
	}
	return n, nil
}

// MaxIndexID returns the highest referenced index id, or -1 for an empty table.
func (r *SQLRepository) MaxIndexID(ctx context.Context) (int64, error) {
	query, args, err := r.builder.
		Select("COALESCE(MAX(index_id), -1)").
		From(table).
		ToSql()
	if err != nil {
		return 0, domain.NewStorageError("build max index id", err)
	}

	var id int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, domain.NewStorageError("max index id", err)
	}
	return id, nil
}
