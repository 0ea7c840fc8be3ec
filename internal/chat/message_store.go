// Package chat implements the in-memory chat coordination engine: the
// append-only message log, connection/identity bindings, per-user delivery
// cursors, the credential store, and the protocol dispatcher that ties them
// together for the transport layer.
package chat

import (
	"sync"

	"github.com/google/uuid"
)

// Message is one immutable entry of the chat log. Plain text is never
// stored; CipherText is produced once with the owner's secret at send time.
type Message struct {
	ID         string
	OwnerID    string
	OwnerName  string
	CipherText string
	Timestamp  int64
}

// MessageStore is the single ordered, append-only log of chat messages.
// Appends are atomic with respect to readers: Slice returns a snapshot view
// that no concurrent append can tear.
type MessageStore struct {
	mu      sync.RWMutex
	entries []Message
}

// NewMessageStore returns an empty log.
func NewMessageStore() *MessageStore {
	return &MessageStore{}
}

// Append assigns a fresh unique id, appends the record at the end of the
// log, and returns the stored message together with the new log length.
func (s *MessageStore) Append(ownerID, ownerName, cipherText string, timestamp int64) (Message, int) {
	msg := Message{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		OwnerName:  ownerName,
		CipherText: cipherText,
		Timestamp:  timestamp,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, msg)
	return msg, len(s.entries)
}

// LookupByID returns the message with the given id, if present.
func (s *MessageStore) LookupByID(id string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, msg := range s.entries {
		if msg.ID == id {
			return msg, true
		}
	}
	return Message{}, false
}

// IndexAfter returns the position just after the message with the given id,
// or 0 if the id is unknown. Used to resume a cursor at the first message
// following one a client has already seen.
func (s *MessageStore) IndexAfter(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i, msg := range s.entries {
		if msg.ID == id {
			return i + 1
		}
	}
	return 0
}

// Slice returns all entries from position from to the end of the log, in
// log order. Out-of-range positions yield an empty slice.
func (s *MessageStore) Slice(from int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if from < 0 {
		from = 0
	}
	if from >= len(s.entries) {
		return nil
	}

	out := make([]Message, len(s.entries)-from)
	copy(out, s.entries[from:])
	return out
}

// Len returns the current log length.
func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
