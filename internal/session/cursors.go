package session

import (
	"encoding/json"
	"sync"
	"time"

	"peerhub/internal/models"
)

// Cursor staleness window. The sweep runs every CursorSweepInterval and drops
// entries older than CursorMaxAge; clients apply the same window locally so
// no removal broadcast is needed.
const (
	CursorSweepInterval = 5 * time.Second
	CursorMaxAge        = 10 * time.Second
)

type cursorEntry struct {
	DisplayName string
	Position    json.RawMessage
	Color       string
	LastSeen    time.Time
}

// CursorTable holds advisory cursor positions outside the room's main lock.
// It tolerates concurrent touch/sweep; staleness is its contract, not strict
// consistency.
type CursorTable struct {
	mu      sync.Mutex
	entries map[string]*cursorEntry
}

func NewCursorTable() *CursorTable {
	return &CursorTable{entries: make(map[string]*cursorEntry)}
}

// Touch refreshes (or creates) the entry for the signal's participant.
func (t *CursorTable) Touch(sig models.CursorChange, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[sig.ParticipantID] = &cursorEntry{
		DisplayName: sig.DisplayName,
		Position:    sig.Position,
		Color:       sig.Color,
		LastSeen:    now,
	}
}

// Sweep removes entries older than maxAge and reports how many were dropped.
func (t *CursorTable) Sweep(now time.Time, maxAge time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	dropped := 0
	for id, e := range t.entries {
		if now.Sub(e.LastSeen) > maxAge {
			delete(t.entries, id)
			dropped++
		}
	}
	return dropped
}

func (t *CursorTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
