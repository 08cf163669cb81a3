package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultSQLiteDSN keeps the backlog in an in-memory sqlite database
const DefaultSQLiteDSN = ":memory:"

// SQLiteBacklog stores backlogs in sqlite.
// Ordering is the insertion order given by the autoincrement id.
type SQLiteBacklog struct {
	db     *sql.DB
	closed atomic.Bool
}

// NewSQLiteBacklog opens (or creates) a sqlite backlog
func NewSQLiteBacklog(dsn string) (*SQLiteBacklog, error) {
	if dsn == "" {
		dsn = DefaultSQLiteDSN
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open backlog database: %w", err)
	}

	// An in-memory database lives inside a single connection, and sqlite
	// serializes writers anyway.
	db.SetMaxOpenConns(1)

	if !isMemoryDSN(dsn) {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL: %w", err)
		}
	}

	backlog := &SQLiteBacklog{db: db}
	if err := backlog.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return backlog, nil
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory") || strings.HasPrefix(dsn, "file::memory:")
}

// initSchema creates the database schema
func (b *SQLiteBacklog) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS backlog_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		recipient TEXT NOT NULL,
		sender TEXT NOT NULL,
		body TEXT NOT NULL,
		received_at INTEGER NOT NULL
	);

	-- Index for per-recipient reads
	CREATE INDEX IF NOT EXISTS idx_backlog_recipient ON backlog_messages(recipient, id);
	`

	if _, err := b.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Append adds msg to the end of recipient's backlog
func (b *SQLiteBacklog) Append(recipient string, msg StoredMessage) error {
	if b.closed.Load() {
		return ErrClosed
	}

	query := `
		INSERT INTO backlog_messages (recipient, sender, body, received_at)
		VALUES (?, ?, ?, ?)
	`
	if _, err := b.db.Exec(query, recipient, msg.Sender, msg.Body, msg.ReceivedAt.UnixNano()); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// ReadAll returns every backlog in insertion order
func (b *SQLiteBacklog) ReadAll() (map[string][]StoredMessage, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}

	query := `
		SELECT recipient, sender, body, received_at
		FROM backlog_messages
		ORDER BY id ASC
	`
	rows, err := b.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to read backlog: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]StoredMessage)
	for rows.Next() {
		var (
			recipient  string
			msg        StoredMessage
			receivedAt int64
		)
		if err := rows.Scan(&recipient, &msg.Sender, &msg.Body, &receivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.ReceivedAt = time.Unix(0, receivedAt).UTC()
		out[recipient] = append(out[recipient], msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read backlog: %w", err)
	}

	return out, nil
}

// Count returns the total number of stored messages
func (b *SQLiteBacklog) Count() (int, error) {
	if b.closed.Load() {
		return 0, ErrClosed
	}

	var count int
	if err := b.db.QueryRow(`SELECT COUNT(*) FROM backlog_messages`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

// Close closes the database connection
func (b *SQLiteBacklog) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.db.Close()
}
