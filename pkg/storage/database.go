// Package storage holds the per-recipient backlog of messages that could not
// be delivered because the recipient was not registered.
package storage

import (
	"errors"
	"time"
)

var (
	ErrClosed         = errors.New("backlog closed")
	ErrUnknownBackend = errors.New("unknown backlog backend")
)

// Backend kinds accepted by Open
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// StoredMessage is one undelivered message. Immutable once created.
// Backends return ReceivedAt in UTC.
type StoredMessage struct {
	Sender     string
	Body       string
	ReceivedAt time.Time
}

// Backlog is an ordered per-recipient message store.
// Implementations must be safe for concurrent use.
type Backlog interface {
	// Append adds msg to the end of recipient's backlog
	Append(recipient string, msg StoredMessage) error

	// ReadAll returns a point-in-time copy of every backlog.
	// Messages are not consumed.
	ReadAll() (map[string][]StoredMessage, error)

	// Count returns the total number of stored messages
	Count() (int, error)

	Close() error
}

// Open creates a backlog for the given backend kind.
// dsn is only used by the sqlite backend.
func Open(backend, dsn string) (Backlog, error) {
	switch backend {
	case "", BackendMemory:
		return NewMemoryBacklog(), nil
	case BackendSQLite:
		return NewSQLiteBacklog(dsn)
	default:
		return nil, ErrUnknownBackend
	}
}
