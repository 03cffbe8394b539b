package models

import (
	"encoding/json"
	"time"
)

// Channel is a sub-scope within a room that a connection joins independently.
type Channel string

const (
	ChannelDocument Channel = "document"
	ChannelMembers  Channel = "members"
	ChannelChat     Channel = "chat"
	ChannelDiagram  Channel = "diagram"
	ChannelVoice    Channel = "voice"
)

// WSFrame is the envelope for every event crossing the websocket.
type WSFrame struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Event names carried in WSFrame.Type.
const (
	EvJoinRoom        = "join-room"
	EvRoomState       = "room-state"
	EvCodeChange      = "code-change"
	EvLanguageChange  = "language-change"
	EvJoinRoomMember  = "join-room-member"
	EvLeaveRoomMember = "leave-room-member"
	EvMembersUpdate   = "room-members-update"
	EvMemberJoined    = "member-joined"
	EvMemberLeft      = "member-left"
	EvJoinChatRoom    = "join-chat-room"
	EvChatHistory     = "chat-history"
	EvSendMessage     = "send-message"
	EvNewMessage      = "new-message"
	EvCursorChange    = "cursor-change"
	EvEditHighlight   = "edit-highlight"
	EvJoinDiagram     = "join-diagram"
	EvDiagramState    = "diagram-state"
	EvDiagramChange   = "diagram-change"
	EvJoinVoiceRoom   = "join-voice-room"
	EvVoiceUsers      = "voice-participants"
	EvVoiceUserJoined = "voice-user-joined"
	EvVoiceUserLeft   = "voice-user-left"
	EvLeaveVoiceRoom  = "leave-voice-room"
)

/*** Room-owned state ***/

// DocumentState is the shared editor buffer. Last write wins, no merge.
type DocumentState struct {
	Text       string `json:"text"`
	LanguageID string `json:"languageId"`
}

// Viewport is the shared diagram camera.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// DiagramState is replaced wholesale on every accepted change. Node and edge
// shapes belong to the canvas widget and are carried verbatim.
type DiagramState struct {
	Nodes    []json.RawMessage `json:"nodes"`
	Edges    []json.RawMessage `json:"edges"`
	Viewport Viewport          `json:"viewport"`
}

// Member is one entry in a room's presence roster, unique per participant.
type Member struct {
	ParticipantID string    `json:"participantId"`
	DisplayName   string    `json:"displayName"`
	AvatarRef     string    `json:"avatarRef,omitempty"`
	ConnectionID  string    `json:"connectionId"`
	JoinedAt      time.Time `json:"joinedAt"`
}

// VoiceParticipant is one entry in a room's voice roster. Peer identity is
// namespaced separately from participant identity and may carry a random
// suffix for anonymous callers.
type VoiceParticipant struct {
	PeerID       string `json:"peerId"`
	DisplayName  string `json:"displayName"`
	ConnectionID string `json:"connectionId"`
}

// Message is a stored chat entry. The id is server-assigned.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	AvatarRef  string    `json:"avatarRef,omitempty"`
	Body       string    `json:"body"`
	SentAt     time.Time `json:"sentAt"`
}

/*** Client -> hub payloads ***/

type CodeChange struct {
	RoomID     string `json:"roomId"`
	Text       string `json:"text"`
	LanguageID string `json:"languageId,omitempty"`
}

type LanguageChange struct {
	RoomID     string `json:"roomId"`
	LanguageID string `json:"languageId"`
}

type JoinMember struct {
	RoomID        string `json:"roomId"`
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
	AvatarRef     string `json:"avatarRef,omitempty"`
}

type LeaveMember struct {
	RoomID        string `json:"roomId"`
	ParticipantID string `json:"participantId"`
}

type JoinChat struct {
	RoomID        string `json:"roomId"`
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
}

type SendMessage struct {
	RoomID        string    `json:"roomId"`
	ParticipantID string    `json:"participantId"`
	DisplayName   string    `json:"displayName"`
	AvatarRef     string    `json:"avatarRef,omitempty"`
	Body          string    `json:"body"`
	SentAt        time.Time `json:"sentAt,omitempty"`
}

// CursorChange is advisory and lossy. Position is opaque editor data.
type CursorChange struct {
	RoomID        string          `json:"roomId"`
	ParticipantID string          `json:"participantId"`
	DisplayName   string          `json:"displayName"`
	Position      json.RawMessage `json:"position"`
	Color         string          `json:"color,omitempty"`
}

// EditHighlight is a pure pass-through signal; the hub holds no state for it.
type EditHighlight struct {
	RoomID        string          `json:"roomId"`
	ParticipantID string          `json:"participantId"`
	StartPosition json.RawMessage `json:"startPosition"`
	EndPosition   json.RawMessage `json:"endPosition"`
	Color         string          `json:"color,omitempty"`
}

type DiagramChange struct {
	RoomID   string            `json:"roomId"`
	Nodes    []json.RawMessage `json:"nodes"`
	Edges    []json.RawMessage `json:"edges"`
	Viewport Viewport          `json:"viewport"`
}

type JoinVoice struct {
	RoomID      string `json:"roomId"`
	PeerID      string `json:"peerId"`
	DisplayName string `json:"displayName"`
}

type LeaveVoice struct {
	RoomID string `json:"roomId"`
	PeerID string `json:"peerId"`
}

// VoiceLeft is the hub->room notice that a peer's mesh links should be torn down.
type VoiceLeft struct {
	PeerID string `json:"peerId"`
}

/*** HTTP surface ***/

type RunRequest struct {
	Code       string `json:"code"`
	LanguageID string `json:"language"`
}

type RunResult struct {
	Output  string `json:"output"`
	Memory  string `json:"memory,omitempty"`
	CPUTime string `json:"cpuTime,omitempty"`
}

type StatusResponse struct {
	Status      string `json:"status"`
	Rooms       int    `json:"rooms"`
	Connections int    `json:"connections"`
}
