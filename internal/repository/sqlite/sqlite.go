// Package sqlite implements the repository interfaces on an embedded SQLite
// database (modernc.org/sqlite, pure Go, no cgo).
//
// The schema is document-shaped: a card's job info and homepage links and a
// bookmark list's groups and tags live in JSON TEXT columns, read back with
// json_extract and json_each. That keeps the aggregates whole, the same way
// the mongo backend stores them as embedded arrays.
//
// Use ":memory:" for tests. Every connection to ":memory:" opens a fresh
// empty database, so the pool is pinned to a single connection in that
// case and no method issues a query while it still holds open rows.
package sqlite

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	msqlite "modernc.org/sqlite"

	"github.com/sakif/cardbook/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// DB owns the connection pool and hands out one small store per entity.
type DB struct {
	conn *sql.DB
}

var (
	registerOnce sync.Once
	registerErr  error
)

// registerFunctions adds fold(text), a Unicode-aware lower(). SQLite's own
// lower() only folds ASCII, so "Émile" would never match "émile".
// Functions are registered process-wide on the driver.
func registerFunctions() error {
	registerOnce.Do(func() {
		registerErr = msqlite.RegisterDeterministicScalarFunction("fold", 1, fold)
	})
	return registerErr
}

func fold(_ *msqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// New opens the database at dbPath and runs migrations.
func New(dbPath string) (*DB, error) {
	if err := registerFunctions(); err != nil {
		return nil, fmt.Errorf("sqlite: registering functions: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: exec %q: %w", pragma, err)
		}
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}
	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Users() repository.UserRepository { return &UserDB{conn: db.conn} }
func (db *DB) Cards() repository.CardRepository { return &CardDB{conn: db.conn} }
func (db *DB) Canvases() repository.CanvasRepository { return &CanvasDB{conn: db.conn} }
func (db *DB) BookmarkLists() repository.BookmarkListRepository { return &BookmarkListDB{conn: db.conn} }
func (db *DB) Bookmarks() repository.BookmarkRepository { return &BookmarkDB{conn: db.conn} }
func (db *DB) Messages() repository.MessageRepository { return &MessageDB{conn: db.conn} }

// migrate creates every table. CREATE ... IF NOT EXISTS keeps it safe to
// run on each start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			avatar_url    TEXT NOT NULL DEFAULT '',
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS cards (
			id               TEXT PRIMARY KEY,
			user_id          TEXT NOT NULL,
			job_info         TEXT NOT NULL DEFAULT '{}',
			homepage_title   TEXT NOT NULL DEFAULT '',
			homepage_links   TEXT NOT NULL DEFAULT '[]',
			is_published     INTEGER NOT NULL DEFAULT 0,
			layout_direction TEXT NOT NULL DEFAULT 'horizontal',
			card_image_data  TEXT NOT NULL DEFAULT '{}',
			created_at       TEXT NOT NULL,
			updated_at       TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_cards_user_id ON cards(user_id);
		CREATE INDEX IF NOT EXISTS idx_cards_published ON cards(is_published, created_at);

		CREATE TABLE IF NOT EXISTS canvases (
			card_id TEXT PRIMARY KEY,
			front   TEXT NOT NULL DEFAULT '',
			back    TEXT NOT NULL DEFAULT '',
			position TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS bookmark_lists (
			user_id    TEXT PRIMARY KEY,
			groups     TEXT NOT NULL DEFAULT '[]',
			tags       TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS bookmarks (
			follower_user_id  TEXT NOT NULL,
			followed_card_id  TEXT NOT NULL,
			follower_group_id TEXT NOT NULL,
			is_pinned         INTEGER NOT NULL DEFAULT 0,
			tags              TEXT NOT NULL DEFAULT '[]',
			note              TEXT NOT NULL DEFAULT '',
			created_at        TEXT NOT NULL,
			updated_at        TEXT NOT NULL,
			PRIMARY KEY (follower_user_id, followed_card_id)
		);
		CREATE INDEX IF NOT EXISTS idx_bookmarks_group ON bookmarks(follower_user_id, follower_group_id);
		CREATE INDEX IF NOT EXISTS idx_bookmarks_card ON bookmarks(followed_card_id);

		CREATE TABLE IF NOT EXISTS messages (
			id                TEXT PRIMARY KEY,
			sender_user_id    TEXT NOT NULL,
			sender_card_id    TEXT NOT NULL,
			recipient_user_id TEXT NOT NULL,
			is_read           INTEGER NOT NULL DEFAULT 0,
			category          TEXT NOT NULL,
			message_body      TEXT NOT NULL,
			created_at        TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_recipient ON messages(recipient_user_id, is_read);
	`)
	if err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}
	return nil
}

// timeLayout is fixed width so that TEXT ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// now is the timestamp source for every write.
func now() time.Time {
	return time.Now().UTC()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func fromJSON(s string, v any) error {
	return json.Unmarshal([]byte(s), v)
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}
