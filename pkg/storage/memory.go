package storage

import "sync"

// MemoryBacklog keeps backlogs in process memory.
// Everything is lost when the process exits.
type MemoryBacklog struct {
	messages map[string][]StoredMessage
	closed   bool
	mu       sync.RWMutex
}

// NewMemoryBacklog creates an empty in-memory backlog
func NewMemoryBacklog() *MemoryBacklog {
	return &MemoryBacklog{
		messages: make(map[string][]StoredMessage),
	}
}

// Append adds msg to the end of recipient's backlog
func (b *MemoryBacklog) Append(recipient string, msg StoredMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	msg.ReceivedAt = msg.ReceivedAt.UTC()
	b.messages[recipient] = append(b.messages[recipient], msg)
	return nil
}

// ReadAll returns a deep copy of every backlog
func (b *MemoryBacklog) ReadAll() (map[string][]StoredMessage, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}

	out := make(map[string][]StoredMessage, len(b.messages))
	for recipient, msgs := range b.messages {
		cp := make([]StoredMessage, len(msgs))
		copy(cp, msgs)
		out[recipient] = cp
	}
	return out, nil
}

// Count returns the total number of stored messages
func (b *MemoryBacklog) Count() (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, ErrClosed
	}

	total := 0
	for _, msgs := range b.messages {
		total += len(msgs)
	}
	return total, nil
}

// Close drops all messages
func (b *MemoryBacklog) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.messages = nil
	return nil
}
