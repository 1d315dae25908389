package storage

import (
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// Dialect carries the driver-specific bits of the dedup schema.
type Dialect struct {
	Name        string
	Driver      string
	Placeholder sq.PlaceholderFormat
	Pragmas     []string
	Schema      []string
}

var (
	SQLite = Dialect{
		Name:        "sqlite",
		Driver:      "sqlite",
		Placeholder: sq.Question,
		Pragmas: []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout = 5000",
		},
		Schema: []string{
			`CREATE TABLE IF NOT EXISTS dedup_records (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				scope TEXT NOT NULL DEFAULT '',
				url TEXT NOT NULL,
				title TEXT NOT NULL,
				persona TEXT NOT NULL,
				score REAL NOT NULL,
				index_id INTEGER NOT NULL,
				sent_at INTEGER NOT NULL,
				UNIQUE (scope, url)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_dedup_records_sent_at ON dedup_records (sent_at)`,
		},
	}

	Postgres = Dialect{
		Name:        "postgres",
		Driver:      "postgres",
		Placeholder: sq.Dollar,
		Schema: []string{
			`CREATE TABLE IF NOT EXISTS dedup_records (
				id BIGSERIAL PRIMARY KEY,
				scope TEXT NOT NULL DEFAULT '',
				url TEXT NOT NULL,
				title TEXT NOT NULL,
				persona TEXT NOT NULL,
				score DOUBLE PRECISION NOT NULL,
				index_id BIGINT NOT NULL,
				sent_at BIGINT NOT NULL,
				UNIQUE (scope, url)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_dedup_records_sent_at ON dedup_records (sent_at)`,
		},
	}
)

// DialectFor picks Postgres for postgres:// and postgresql:// DSNs, SQLite otherwise.
func DialectFor(dsn string) Dialect {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return Postgres
	}
	return SQLite
}
