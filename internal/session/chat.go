package session

import (
	"time"

	"github.com/google/uuid"

	"peerhub/internal/models"
)

// ChatLogCap bounds the per-room message buffer. Oldest entries are evicted
// first; history beyond the cap is permanently lost.
const ChatLogCap = 100

// JoinChat attaches the connection to the chat channel and replays whatever
// history is currently retained, in chronological order.
func (r *Room) JoinChat(c *Client, _ models.JoinChat) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.joinChannelLocked(c, models.ChannelChat)

	history := make([]models.Message, len(r.chat))
	copy(history, r.chat)
	c.Send(models.WSFrame{Type: models.EvChatHistory, Data: history})
}

// PostMessage stores the message with a server-assigned id and broadcasts it
// to every chat-channel connection including the sender, who needs the
// canonical id and timestamp.
func (r *Room) PostMessage(_ *Client, in models.SendMessage) models.Message {
	msg := models.Message{
		ID:         uuid.New().String(),
		SenderID:   in.ParticipantID,
		SenderName: in.DisplayName,
		AvatarRef:  in.AvatarRef,
		Body:       in.Body,
		SentAt:     in.SentAt,
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.chat = append(r.chat, msg)
	if len(r.chat) > ChatLogCap {
		r.chat = r.chat[len(r.chat)-ChatLogCap:]
	}
	r.broadcastLocked(models.ChannelChat, nil, models.WSFrame{
		Type: models.EvNewMessage, Data: msg,
	})
	return msg
}

// ChatHistory returns a copy of the retained messages in order.
func (r *Room) ChatHistory() []models.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Message, len(r.chat))
	copy(out, r.chat)
	return out
}
