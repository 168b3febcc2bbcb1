// Package session keeps the per-chat conversation history exchanged with the
// AI model. Sessions live in process memory only: a restart starts every
// conversation from scratch.
package session

import (
	"sync"
)

// Role tags a turn with its author.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one message unit in a conversation. Parts hold plain text; media
// is recorded as a textual summary, never as raw bytes. A turn is immutable
// once appended to a session.
type Turn struct {
	Role  Role
	Parts []string
}

// NewTurn creates a turn with the given role and text parts.
func NewTurn(role Role, parts ...string) Turn {
	return Turn{Role: role, Parts: parts}
}

// Text joins the turn's parts into a single string.
func (t Turn) Text() string {
	switch len(t.Parts) {
	case 0:
		return ""
	case 1:
		return t.Parts[0]
	}
	out := t.Parts[0]
	for _, p := range t.Parts[1:] {
		out += "\n" + p
	}
	return out
}

// Store maps chat IDs to their ordered turn history. It is safe for
// concurrent use; turns are only ever appended or cleared, never reordered.
// History growth is unbounded for the process lifetime.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64][]Turn
}

// NewStore creates an empty session store. Construct it once at startup and
// pass it to whoever needs it; there is no package-level instance.
func NewStore() *Store {
	return &Store{sessions: make(map[int64][]Turn)}
}

// History returns a copy of the chat's turns in append order. Unknown chat
// IDs yield an empty history; the session itself materializes on the first
// Append or Reset.
func (s *Store) History(chatID int64) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.sessions[chatID]
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// Append adds turns to the end of the chat's history in the given order.
// All turns land under a single lock acquisition, so a user/model pair
// appended together is never observed half-committed.
func (s *Store) Append(chatID int64, turns ...Turn) {
	if len(turns) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[chatID] = append(s.sessions[chatID], turns...)
}

// Reset clears the chat's history. The chat ID stays valid for future turns.
func (s *Store) Reset(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[chatID] = nil
}

// Len reports the number of turns recorded for the chat.
func (s *Store) Len(chatID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions[chatID])
}
