package gateway

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"peerhub/internal/metrics"
	"peerhub/internal/models"
	"peerhub/internal/session"
)

// inboundFrame defers payload decoding to the per-event handler.
type inboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// handlerFunc is one row of the dispatch table. Handlers decode their own
// payload and drop malformed input silently: no event may crash the hub or
// cost the sender its connection.
type handlerFunc func(c *session.Client, data json.RawMessage)

func (h *Handlers) buildDispatch() map[string]handlerFunc {
	return map[string]handlerFunc{
		models.EvJoinRoom:        h.onJoinRoom,
		models.EvCodeChange:      h.onCodeChange,
		models.EvLanguageChange:  h.onLanguageChange,
		models.EvJoinRoomMember:  h.onJoinRoomMember,
		models.EvLeaveRoomMember: h.onLeaveRoomMember,
		models.EvJoinChatRoom:    h.onJoinChatRoom,
		models.EvSendMessage:     h.onSendMessage,
		models.EvCursorChange:    h.onCursorChange,
		models.EvEditHighlight:   h.onEditHighlight,
		models.EvJoinDiagram:     h.onJoinDiagram,
		models.EvDiagramChange:   h.onDiagramChange,
		models.EvJoinVoiceRoom:   h.onJoinVoiceRoom,
		models.EvLeaveVoiceRoom:  h.onLeaveVoiceRoom,
	}
}

// Dispatch routes one inbound frame to its handler. Unknown event types are
// counted and dropped.
func (h *Handlers) Dispatch(c *session.Client, frame inboundFrame) {
	handler, ok := h.dispatch[frame.Type]
	if !ok {
		metrics.DroppedEvents.WithLabelValues("unknown_type").Inc()
		h.log.Debug("dropped unknown event", zap.String("type", frame.Type))
		return
	}
	metrics.EventsTotal.WithLabelValues(frame.Type).Inc()
	handler(c, frame.Data)
}

func (h *Handlers) drop(event, reason string) {
	metrics.DroppedEvents.WithLabelValues(reason).Inc()
	h.log.Debug("dropped malformed event",
		zap.String("type", event), zap.String("reason", reason))
}

// decode unmarshals a payload, reporting a metric on failure.
func (h *Handlers) decode(event string, data json.RawMessage, out any) bool {
	if err := json.Unmarshal(data, out); err != nil {
		h.drop(event, "malformed_payload")
		return false
	}
	return true
}

/*** Join events create the room lazily. ***/

func (h *Handlers) onJoinRoom(c *session.Client, data json.RawMessage) {
	var roomID string
	if !h.decode(models.EvJoinRoom, data, &roomID) {
		return
	}
	if roomID == "" {
		h.drop(models.EvJoinRoom, "missing_room")
		return
	}
	h.hub.GetOrCreate(roomID).JoinDocument(c)
}

func (h *Handlers) onJoinRoomMember(c *session.Client, data json.RawMessage) {
	var join models.JoinMember
	if !h.decode(models.EvJoinRoomMember, data, &join) {
		return
	}
	if join.RoomID == "" || join.ParticipantID == "" {
		h.drop(models.EvJoinRoomMember, "missing_field")
		return
	}
	h.hub.GetOrCreate(join.RoomID).JoinPresence(c, join)
}

func (h *Handlers) onJoinChatRoom(c *session.Client, data json.RawMessage) {
	var join models.JoinChat
	if !h.decode(models.EvJoinChatRoom, data, &join) {
		return
	}
	if join.RoomID == "" {
		h.drop(models.EvJoinChatRoom, "missing_room")
		return
	}
	h.hub.GetOrCreate(join.RoomID).JoinChat(c, join)
}

func (h *Handlers) onJoinDiagram(c *session.Client, data json.RawMessage) {
	var roomID string
	if !h.decode(models.EvJoinDiagram, data, &roomID) {
		return
	}
	if roomID == "" {
		h.drop(models.EvJoinDiagram, "missing_room")
		return
	}
	h.hub.GetOrCreate(roomID).JoinDiagram(c)
}

func (h *Handlers) onJoinVoiceRoom(c *session.Client, data json.RawMessage) {
	var join models.JoinVoice
	if !h.decode(models.EvJoinVoiceRoom, data, &join) {
		return
	}
	if join.RoomID == "" || join.PeerID == "" {
		h.drop(models.EvJoinVoiceRoom, "missing_field")
		return
	}
	h.hub.GetOrCreate(join.RoomID).JoinVoice(c, join)
}

/*** Change events require the room to exist; otherwise they are no-ops. ***/

func (h *Handlers) onCodeChange(c *session.Client, data json.RawMessage) {
	var change models.CodeChange
	if !h.decode(models.EvCodeChange, data, &change) {
		return
	}
	if change.RoomID == "" {
		h.drop(models.EvCodeChange, "missing_room")
		return
	}
	if room, ok := h.hub.Get(change.RoomID); ok {
		room.ApplyCodeChange(c, change)
	}
}

func (h *Handlers) onLanguageChange(c *session.Client, data json.RawMessage) {
	var change models.LanguageChange
	if !h.decode(models.EvLanguageChange, data, &change) {
		return
	}
	if change.RoomID == "" || change.LanguageID == "" {
		h.drop(models.EvLanguageChange, "missing_field")
		return
	}
	if room, ok := h.hub.Get(change.RoomID); ok {
		room.ApplyLanguageChange(c, change)
	}
}

func (h *Handlers) onLeaveRoomMember(c *session.Client, data json.RawMessage) {
	var leave models.LeaveMember
	if !h.decode(models.EvLeaveRoomMember, data, &leave) {
		return
	}
	if room, ok := h.hub.Get(leave.RoomID); ok {
		room.LeavePresence(leave)
	}
}

func (h *Handlers) onSendMessage(c *session.Client, data json.RawMessage) {
	var msg models.SendMessage
	if !h.decode(models.EvSendMessage, data, &msg) {
		return
	}
	if msg.RoomID == "" || msg.Body == "" {
		h.drop(models.EvSendMessage, "missing_field")
		return
	}
	if room, ok := h.hub.Get(msg.RoomID); ok {
		room.PostMessage(c, msg)
	}
}

func (h *Handlers) onCursorChange(c *session.Client, data json.RawMessage) {
	var sig models.CursorChange
	if !h.decode(models.EvCursorChange, data, &sig) {
		return
	}
	if sig.RoomID == "" || sig.ParticipantID == "" {
		h.drop(models.EvCursorChange, "missing_field")
		return
	}
	if room, ok := h.hub.Get(sig.RoomID); ok {
		room.RelayCursor(c, sig, time.Now())
	}
}

func (h *Handlers) onEditHighlight(c *session.Client, data json.RawMessage) {
	var sig models.EditHighlight
	if !h.decode(models.EvEditHighlight, data, &sig) {
		return
	}
	if sig.RoomID == "" {
		h.drop(models.EvEditHighlight, "missing_room")
		return
	}
	if room, ok := h.hub.Get(sig.RoomID); ok {
		room.RelayHighlight(c, sig)
	}
}

func (h *Handlers) onDiagramChange(c *session.Client, data json.RawMessage) {
	var change models.DiagramChange
	if !h.decode(models.EvDiagramChange, data, &change) {
		return
	}
	if change.RoomID == "" {
		h.drop(models.EvDiagramChange, "missing_room")
		return
	}
	if room, ok := h.hub.Get(change.RoomID); ok {
		room.ApplyDiagramChange(c, change)
	}
}

func (h *Handlers) onLeaveVoiceRoom(c *session.Client, data json.RawMessage) {
	var leave models.LeaveVoice
	if !h.decode(models.EvLeaveVoiceRoom, data, &leave) {
		return
	}
	if room, ok := h.hub.Get(leave.RoomID); ok {
		room.LeaveVoice(leave)
	}
}
