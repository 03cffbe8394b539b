package session

import (
	"sync"
	"time"

	"peerhub/internal/models"
)

// DefaultDocument is handed to the first client joining a fresh room.
const (
	DefaultDocumentText = "// Welcome to collaborative coding!\nconsole.log(\"Hello World\");"
	DefaultLanguageID   = "javascript"
)

// Room owns all authoritative state for one collaboration namespace. Every
// mutation and its broadcast-set computation happen under the room mutex, so
// events for one room apply in arrival order.
type Room struct {
	ID string

	mu       sync.Mutex
	channels map[models.Channel]map[*Client]struct{}
	doc      models.DocumentState
	diagram  models.DiagramState
	chat     []models.Message
	members  []*models.Member
	voice    []*models.VoiceParticipant

	// cursors has its own lock; staleness, not strict ordering, is its contract.
	cursors *CursorTable

	// emptySince is non-zero while no connection is attached; the janitor
	// uses it to evict long-idle rooms.
	emptySince time.Time
}

func NewRoom(id string) *Room {
	return &Room{
		ID:       id,
		channels: make(map[models.Channel]map[*Client]struct{}),
		doc: models.DocumentState{
			Text:       DefaultDocumentText,
			LanguageID: DefaultLanguageID,
		},
		cursors:    NewCursorTable(),
		emptySince: time.Now(),
	}
}

func (r *Room) joinChannelLocked(c *Client, ch models.Channel) {
	set, ok := r.channels[ch]
	if !ok {
		set = make(map[*Client]struct{})
		r.channels[ch] = set
	}
	set[c] = struct{}{}
	r.emptySince = time.Time{}
	c.trackRoom(r.ID)
}

func (r *Room) broadcastLocked(ch models.Channel, except *Client, frame models.WSFrame) {
	for c := range r.channels[ch] {
		if c == except {
			continue
		}
		c.Send(frame)
	}
}

// ClientCount reports the number of distinct connections attached to any
// channel of this room.
func (r *Room) ClientCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clientCountLocked()
}

func (r *Room) clientCountLocked() int {
	seen := make(map[*Client]struct{})
	for _, set := range r.channels {
		for c := range set {
			seen[c] = struct{}{}
		}
	}
	return len(seen)
}

/*** Document channel ***/

// JoinDocument attaches the connection to the document channel and unicasts
// the current document so the joiner starts from shared state.
func (r *Room) JoinDocument(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.joinChannelLocked(c, models.ChannelDocument)
	c.Send(models.WSFrame{Type: models.EvRoomState, Data: r.doc})
}

// ApplyCodeChange overwrites the document (last write wins) and relays the
// change to every other document-channel connection. The sender's own echo
// is never re-sent.
func (r *Room) ApplyCodeChange(sender *Client, change models.CodeChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.doc.Text = change.Text
	if change.LanguageID != "" {
		r.doc.LanguageID = change.LanguageID
	}
	r.broadcastLocked(models.ChannelDocument, sender, models.WSFrame{
		Type: models.EvCodeChange, Data: change,
	})
}

func (r *Room) ApplyLanguageChange(sender *Client, change models.LanguageChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.doc.LanguageID = change.LanguageID
	r.broadcastLocked(models.ChannelDocument, sender, models.WSFrame{
		Type: models.EvLanguageChange, Data: change,
	})
}

// Document returns a copy of the current document state.
func (r *Room) Document() models.DocumentState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doc
}

/*** Ephemeral signals (document channel) ***/

// RelayCursor refreshes the advisory cursor entry and relays the signal to
// everyone else on the document channel. Fire and forget.
func (r *Room) RelayCursor(sender *Client, sig models.CursorChange, now time.Time) {
	r.cursors.Touch(sig, now)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastLocked(models.ChannelDocument, sender, models.WSFrame{
		Type: models.EvCursorChange, Data: sig,
	})
}

// RelayHighlight is a stateless pass-through; expiry of the visual effect is
// the receiving client's concern.
func (r *Room) RelayHighlight(sender *Client, sig models.EditHighlight) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastLocked(models.ChannelDocument, sender, models.WSFrame{
		Type: models.EvEditHighlight, Data: sig,
	})
}

// SweepCursors drops cursor entries not refreshed within maxAge. Removals
// are not broadcast; clients age out stale cursors with the same window.
func (r *Room) SweepCursors(now time.Time, maxAge time.Duration) int {
	return r.cursors.Sweep(now, maxAge)
}

// CursorCount is a test and status helper.
func (r *Room) CursorCount() int { return r.cursors.Len() }

/*** Lifecycle ***/

// Detach removes the connection from every channel and runs the presence and
// voice leave paths for any identity owned by it. This is the single source
// of truth for liveness; the gateway calls it exactly once per connection.
func (r *Room) Detach(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, set := range r.channels {
		delete(set, c)
	}
	r.removeMemberByConnLocked(c.ID)
	r.removeVoiceByConnLocked(c.ID)

	if r.clientCountLocked() == 0 {
		r.emptySince = time.Now()
	}
}

// IdleSince reports when the room last became empty; ok is false while any
// connection is attached.
func (r *Room) IdleSince() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.emptySince.IsZero() {
		return time.Time{}, false
	}
	return r.emptySince, true
}
