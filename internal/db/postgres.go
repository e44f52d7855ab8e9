package db

import (
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Postgres runs the same schema on a hosted database through the pgx
// stdlib driver, so callers use it interchangeably with SQLite.
type Postgres struct {
	url  string
	conn *sql.DB
}

func NewPostgres(url string) *Postgres {
	return &Postgres{
		url:  url,
		conn: nil,
	}
}

func (p *Postgres) InitDB() error {
	var err error
	p.conn, err = sql.Open("pgx", p.url)
	if err != nil {
		return err
	}
	if err := p.conn.Ping(); err != nil {
		return err
	}

	res, err := p.conn.Exec(`
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    username TEXT UNIQUE,
    email TEXT,
    created_at TIMESTAMPTZ DEFAULT now()
);

CREATE TABLE IF NOT EXISTS drafts (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'draft',
    content BYTEA,
    current_step INTEGER NOT NULL DEFAULT 0,
    completed_steps TEXT NOT NULL DEFAULT '[]',
    errored_steps TEXT NOT NULL DEFAULT '[]',
    created_at TIMESTAMPTZ DEFAULT now(),
    modified_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS memorials (
    id TEXT PRIMARY KEY,
    draft_id TEXT,
    owner_id TEXT NOT NULL,
    slug TEXT UNIQUE NOT NULL,
    content BYTEA,
    content_hash TEXT,
    published_at TIMESTAMPTZ DEFAULT now(),
    modified_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS guestbook_entries (
    id TEXT PRIMARY KEY,
    memorial_id TEXT NOT NULL REFERENCES memorials(id),
    author_name TEXT,
    message TEXT,
    status TEXT NOT NULL DEFAULT 'pending',
    created_at TIMESTAMPTZ DEFAULT now()
);`)

	dbLogger.Info().Any("db_result", res).Msg("Database initialized")
	return err
}

func (p *Postgres) Get() *sql.DB {
	return p.conn
}

func (p *Postgres) Close() error {
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func (p *Postgres) Query(query string, args ...interface{}) (*sql.Rows, error) {
	dbLogger.Info().Str("query", query).Msg("Query")
	return p.conn.Query(query, args...)
}

func (p *Postgres) Exec(query string, args ...interface{}) (sql.Result, error) {
	dbLogger.Info().Str("query", query).Msg("Exec")
	return p.conn.Exec(query, args...)
}
