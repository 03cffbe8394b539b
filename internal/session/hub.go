package session

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"peerhub/internal/metrics"
)

// Hub is the explicitly-owned registry of all active rooms. Rooms are created
// lazily on first join and evicted by the janitor once long idle.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	log   *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{rooms: make(map[string]*Room), log: log}
}

func (h *Hub) GetOrCreate(id string) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[id]; ok {
		return r
	}
	r := NewRoom(id)
	h.rooms[id] = r
	metrics.ActiveRooms.Inc()
	h.log.Info("room created", zap.String("room", id))
	return r
}

// Get looks a room up without creating it. Change events for rooms that were
// never joined are no-ops, not creation triggers.
func (h *Hub) Get(id string) (*Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rooms[id]
	return r, ok
}

func (h *Hub) Delete(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[id]; ok {
		delete(h.rooms, id)
		metrics.ActiveRooms.Dec()
	}
}

// RoomCount reports the number of registered rooms.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// Detach runs the single disconnect cleanup path for a connection: every room
// the client touched removes it from all channels and emits the ordinary
// *-left events for identities it owned. Safe to call more than once.
func (h *Hub) Detach(c *Client) {
	for _, id := range c.takeRooms() {
		if room, ok := h.Get(id); ok {
			room.Detach(c)
		}
	}
}

// SweepCursors ages out stale cursor entries in every room.
func (h *Hub) SweepCursors(now time.Time) {
	for _, room := range h.snapshot() {
		if dropped := room.SweepCursors(now, CursorMaxAge); dropped > 0 {
			h.log.Debug("swept stale cursors",
				zap.String("room", room.ID), zap.Int("dropped", dropped))
		}
	}
}

// EvictIdle removes rooms that have been empty for at least idleFor. A room
// with any live connection is never evicted.
func (h *Hub) EvictIdle(now time.Time, idleFor time.Duration) int {
	evicted := 0
	for _, room := range h.snapshot() {
		since, idle := room.IdleSince()
		if !idle || now.Sub(since) < idleFor {
			continue
		}
		h.Delete(room.ID)
		evicted++
		h.log.Info("evicted idle room",
			zap.String("room", room.ID), zap.Duration("idle", now.Sub(since)))
	}
	return evicted
}

func (h *Hub) snapshot() []*Room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		out = append(out, r)
	}
	return out
}
