package session

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"peerhub/internal/models"
)

type frameCapture struct {
	frames []models.WSFrame
}

func newFrameCapture() *frameCapture { return &frameCapture{} }

func (c *frameCapture) hook(frame models.WSFrame) { c.frames = append(c.frames, frame) }

func (c *frameCapture) list() []models.WSFrame {
	out := make([]models.WSFrame, len(c.frames))
	copy(out, c.frames)
	return out
}

func (c *frameCapture) ofType(t string) []models.WSFrame {
	var out []models.WSFrame
	for _, f := range c.frames {
		if f.Type == t {
			out = append(out, f)
		}
	}
	return out
}

func newHookedClient() (*Client, *frameCapture) {
	c := NewClient(nil)
	capture := newFrameCapture()
	c.SetSendHook(capture.hook)
	return c, capture
}

func testHub() *Hub { return NewHub(zap.NewNop()) }

func TestJoinDocumentSendsDefaultState(t *testing.T) {
	room := NewRoom("r1")
	c, capture := newHookedClient()

	room.JoinDocument(c)

	got := capture.list()
	if len(got) != 1 || got[0].Type != models.EvRoomState {
		t.Fatalf("expected room-state frame, got %#v", got)
	}
	doc, ok := got[0].Data.(models.DocumentState)
	if !ok {
		t.Fatalf("unexpected payload type %T", got[0].Data)
	}
	if doc.Text != DefaultDocumentText || doc.LanguageID != "javascript" {
		t.Fatalf("unexpected default document: %#v", doc)
	}
}

func TestCodeChangeLastWriteWins(t *testing.T) {
	room := NewRoom("r")
	sender, _ := newHookedClient()
	room.JoinDocument(sender)

	room.ApplyCodeChange(sender, models.CodeChange{RoomID: "r", Text: "let a=1"})
	room.ApplyCodeChange(sender, models.CodeChange{RoomID: "r", Text: "let a=2", LanguageID: "javascript"})

	doc := room.Document()
	if doc.Text != "let a=2" {
		t.Fatalf("expected last write to win, got %q", doc.Text)
	}
}

func TestCodeChangeBroadcastExcludesSender(t *testing.T) {
	room := NewRoom("r")
	sender, senderCap := newHookedClient()
	other, otherCap := newHookedClient()
	room.JoinDocument(sender)
	room.JoinDocument(other)

	change := models.CodeChange{RoomID: "r", Text: "let a=1", LanguageID: "javascript"}
	room.ApplyCodeChange(sender, change)

	if got := senderCap.ofType(models.EvCodeChange); len(got) != 0 {
		t.Fatalf("sender must not receive its own change: %#v", got)
	}
	got := otherCap.ofType(models.EvCodeChange)
	if len(got) != 1 {
		t.Fatalf("expected one relayed change, got %d", len(got))
	}
	if relayed := got[0].Data.(models.CodeChange); relayed != change {
		t.Fatalf("expected payload relayed verbatim, got %#v", relayed)
	}
}

func TestLanguageChangeUpdatesAndRelays(t *testing.T) {
	room := NewRoom("r")
	sender, _ := newHookedClient()
	other, otherCap := newHookedClient()
	room.JoinDocument(sender)
	room.JoinDocument(other)

	room.ApplyLanguageChange(sender, models.LanguageChange{RoomID: "r", LanguageID: "python"})

	if doc := room.Document(); doc.LanguageID != "python" {
		t.Fatalf("expected language updated, got %q", doc.LanguageID)
	}
	if got := otherCap.ofType(models.EvLanguageChange); len(got) != 1 {
		t.Fatalf("expected language change relayed once, got %d", len(got))
	}
}

func TestPresenceJoinSequence(t *testing.T) {
	room := NewRoom("r")
	existing, existingCap := newHookedClient()
	room.JoinPresence(existing, models.JoinMember{
		RoomID: "r", ParticipantID: "u1", DisplayName: "Alice",
	})

	joiner, joinerCap := newHookedClient()
	room.JoinPresence(joiner, models.JoinMember{
		RoomID: "r", ParticipantID: "u2", DisplayName: "Bob",
	})

	joined := existingCap.ofType(models.EvMemberJoined)
	if len(joined) != 1 {
		t.Fatalf("expected one member-joined at existing member, got %d", len(joined))
	}
	if m := joined[0].Data.(models.Member); m.ParticipantID != "u2" {
		t.Fatalf("unexpected member-joined payload: %#v", m)
	}
	// Joiner never sees its own member-joined, only snapshots.
	if got := joinerCap.ofType(models.EvMemberJoined); len(got) != 0 {
		t.Fatalf("joiner must not receive member-joined for itself: %#v", got)
	}
	snaps := joinerCap.ofType(models.EvMembersUpdate)
	if len(snaps) != 1 {
		t.Fatalf("expected one snapshot at joiner, got %d", len(snaps))
	}
	roster := snaps[0].Data.([]models.Member)
	if len(roster) != 2 || roster[0].ParticipantID != "u1" || roster[1].ParticipantID != "u2" {
		t.Fatalf("unexpected roster: %#v", roster)
	}
}

func TestPresenceReconnectKeepsSingleEntry(t *testing.T) {
	room := NewRoom("r")
	c1, _ := newHookedClient()
	room.JoinPresence(c1, models.JoinMember{RoomID: "r", ParticipantID: "u1", DisplayName: "Alice"})

	observer, observerCap := newHookedClient()
	room.JoinPresence(observer, models.JoinMember{RoomID: "r", ParticipantID: "obs", DisplayName: "Obs"})
	before := len(observerCap.ofType(models.EvMemberJoined))

	c2, _ := newHookedClient()
	room.JoinPresence(c2, models.JoinMember{RoomID: "r", ParticipantID: "u1", DisplayName: "Alice"})

	roster := room.Roster()
	if len(roster) != 2 {
		t.Fatalf("reconnect must not duplicate roster entries: %#v", roster)
	}
	for _, m := range roster {
		if m.ParticipantID == "u1" && m.ConnectionID != c2.ID {
			t.Fatalf("expected connectionId updated in place, got %#v", m)
		}
	}
	if after := len(observerCap.ofType(models.EvMemberJoined)); after != before {
		t.Fatalf("reconnect must not emit member-joined again")
	}
	if len(observerCap.ofType(models.EvMembersUpdate)) == 0 {
		t.Fatalf("reconnect must broadcast a fresh snapshot")
	}
}

func TestPresenceExplicitLeave(t *testing.T) {
	room := NewRoom("r")
	c1, _ := newHookedClient()
	c2, cap2 := newHookedClient()
	room.JoinPresence(c1, models.JoinMember{RoomID: "r", ParticipantID: "u1", DisplayName: "Alice"})
	room.JoinPresence(c2, models.JoinMember{RoomID: "r", ParticipantID: "u2", DisplayName: "Bob"})

	room.LeavePresence(models.LeaveMember{RoomID: "r", ParticipantID: "u1"})

	if roster := room.Roster(); len(roster) != 1 || roster[0].ParticipantID != "u2" {
		t.Fatalf("unexpected roster after leave: %#v", roster)
	}
	left := cap2.ofType(models.EvMemberLeft)
	if len(left) != 1 {
		t.Fatalf("expected member-left broadcast, got %d", len(left))
	}
	if m := left[0].Data.(models.Member); m.ParticipantID != "u1" {
		t.Fatalf("unexpected member-left payload: %#v", m)
	}
}

func TestChatRetainsLastHundred(t *testing.T) {
	room := NewRoom("r")
	sender, _ := newHookedClient()
	room.JoinChat(sender, models.JoinChat{RoomID: "r", ParticipantID: "u1"})

	for i := 0; i < 150; i++ {
		room.PostMessage(sender, models.SendMessage{
			RoomID: "r", ParticipantID: "u1", DisplayName: "Alice",
			Body: fmt.Sprintf("msg-%d", i),
		})
	}

	history := room.ChatHistory()
	if len(history) != ChatLogCap {
		t.Fatalf("expected %d retained messages, got %d", ChatLogCap, len(history))
	}
	if history[0].Body != "msg-50" || history[99].Body != "msg-149" {
		t.Fatalf("expected last 100 in original order, got first=%q last=%q",
			history[0].Body, history[99].Body)
	}

	joiner, joinerCap := newHookedClient()
	room.JoinChat(joiner, models.JoinChat{RoomID: "r", ParticipantID: "u2"})
	replays := joinerCap.ofType(models.EvChatHistory)
	if len(replays) != 1 {
		t.Fatalf("expected one chat-history replay, got %d", len(replays))
	}
	replay := replays[0].Data.([]models.Message)
	if len(replay) != ChatLogCap || replay[0].ID != history[0].ID || replay[99].ID != history[99].ID {
		t.Fatalf("replay must match retained history exactly")
	}
}

func TestChatBroadcastIncludesSender(t *testing.T) {
	room := NewRoom("r")
	sender, senderCap := newHookedClient()
	room.JoinChat(sender, models.JoinChat{RoomID: "r", ParticipantID: "u1"})

	msg := room.PostMessage(sender, models.SendMessage{
		RoomID: "r", ParticipantID: "u1", DisplayName: "Alice", Body: "hello",
	})

	if msg.ID == "" {
		t.Fatalf("expected server-assigned id")
	}
	if msg.SentAt.IsZero() {
		t.Fatalf("expected canonical timestamp")
	}
	got := senderCap.ofType(models.EvNewMessage)
	if len(got) != 1 {
		t.Fatalf("sender needs the stored message back, got %d frames", len(got))
	}
	if stored := got[0].Data.(models.Message); stored.ID != msg.ID {
		t.Fatalf("broadcast must carry the stored message, got %#v", stored)
	}
}

func TestDiagramSnapshotOnJoin(t *testing.T) {
	room := NewRoom("r")
	author, _ := newHookedClient()
	room.JoinDiagram(author)
	room.ApplyDiagramChange(author, models.DiagramChange{
		RoomID:   "r",
		Nodes:    []json.RawMessage{json.RawMessage(`{"id":"n1","type":"rectangle"}`)},
		Edges:    []json.RawMessage{},
		Viewport: models.Viewport{X: 10, Y: 20, Zoom: 1.5},
	})

	joiner, joinerCap := newHookedClient()
	room.JoinDiagram(joiner)

	got := joinerCap.ofType(models.EvDiagramState)
	if len(got) != 1 {
		t.Fatalf("expected diagram-state on join, got %d", len(got))
	}
	state := got[0].Data.(models.DiagramState)
	if len(state.Nodes) != 1 || state.Viewport.Zoom != 1.5 {
		t.Fatalf("joiner must start from current canvas, got %#v", state)
	}
}

func TestDiagramChangeExcludesSender(t *testing.T) {
	room := NewRoom("r")
	sender, senderCap := newHookedClient()
	other, otherCap := newHookedClient()
	room.JoinDiagram(sender)
	room.JoinDiagram(other)
	senderCap.frames = nil
	otherCap.frames = nil

	room.ApplyDiagramChange(sender, models.DiagramChange{RoomID: "r", Viewport: models.Viewport{Zoom: 2}})

	if got := senderCap.ofType(models.EvDiagramChange); len(got) != 0 {
		t.Fatalf("sender must not receive its own diagram change")
	}
	if got := otherCap.ofType(models.EvDiagramChange); len(got) != 1 {
		t.Fatalf("expected one relayed diagram change, got %d", len(got))
	}
}

func TestVoiceJoinSequence(t *testing.T) {
	room := NewRoom("r2")
	first, firstCap := newHookedClient()
	room.JoinVoice(first, models.JoinVoice{RoomID: "r2", PeerID: "p-aaa", DisplayName: "A"})

	// First joiner: empty pre-join roster, then full roster with itself.
	rosters := firstCap.ofType(models.EvVoiceUsers)
	if len(rosters) != 2 {
		t.Fatalf("expected pre-join and post-join rosters, got %d", len(rosters))
	}
	if pre := rosters[0].Data.([]models.VoiceParticipant); len(pre) != 0 {
		t.Fatalf("expected empty pre-join roster, got %#v", pre)
	}
	if post := rosters[1].Data.([]models.VoiceParticipant); len(post) != 1 || post[0].PeerID != "p-aaa" {
		t.Fatalf("unexpected post-join roster: %#v", post)
	}

	second, secondCap := newHookedClient()
	room.JoinVoice(second, models.JoinVoice{RoomID: "r2", PeerID: "p-bbb", DisplayName: "B"})

	// Existing member hears about the newcomer and gets the full roster.
	joined := firstCap.ofType(models.EvVoiceUserJoined)
	if len(joined) != 1 {
		t.Fatalf("expected one voice-user-joined at existing peer, got %d", len(joined))
	}
	if p := joined[0].Data.(models.VoiceParticipant); p.PeerID != "p-bbb" {
		t.Fatalf("unexpected voice-user-joined payload: %#v", p)
	}

	// New member gets the pre-join roster (existing peers only) first.
	rosters = secondCap.ofType(models.EvVoiceUsers)
	if len(rosters) != 2 {
		t.Fatalf("expected two roster frames at joiner, got %d", len(rosters))
	}
	pre := rosters[0].Data.([]models.VoiceParticipant)
	if len(pre) != 1 || pre[0].PeerID != "p-aaa" {
		t.Fatalf("pre-join roster must exclude the joiner: %#v", pre)
	}
	post := rosters[1].Data.([]models.VoiceParticipant)
	if len(post) != 2 {
		t.Fatalf("post-join roster must include everyone: %#v", post)
	}

	// Both sides independently agree p-aaa initiates, per the ordering rule.
	if Initiator("p-aaa", "p-bbb") != "p-aaa" || Initiator("p-bbb", "p-aaa") != "p-aaa" {
		t.Fatalf("tie-break must be symmetric and deterministic")
	}
}

func TestVoiceDuplicateJoinIsQuiet(t *testing.T) {
	room := NewRoom("r")
	c1, _ := newHookedClient()
	room.JoinVoice(c1, models.JoinVoice{RoomID: "r", PeerID: "p1", DisplayName: "A"})

	other, otherCap := newHookedClient()
	room.JoinVoice(other, models.JoinVoice{RoomID: "r", PeerID: "p2", DisplayName: "B"})
	before := len(otherCap.ofType(models.EvVoiceUserJoined))

	c2, _ := newHookedClient()
	room.JoinVoice(c2, models.JoinVoice{RoomID: "r", PeerID: "p1", DisplayName: "A"})

	if roster := room.VoiceRoster(); len(roster) != 2 {
		t.Fatalf("duplicate join must not grow the roster: %#v", roster)
	}
	if after := len(otherCap.ofType(models.EvVoiceUserJoined)); after != before {
		t.Fatalf("duplicate join must not re-broadcast voice-user-joined")
	}
	for _, p := range room.VoiceRoster() {
		if p.PeerID == "p1" && p.ConnectionID != c2.ID {
			t.Fatalf("expected connection refreshed for duplicate join, got %#v", p)
		}
	}
}

func TestVoiceLeaveBroadcastsPeerID(t *testing.T) {
	room := NewRoom("r")
	c1, _ := newHookedClient()
	c2, cap2 := newHookedClient()
	room.JoinVoice(c1, models.JoinVoice{RoomID: "r", PeerID: "p1", DisplayName: "A"})
	room.JoinVoice(c2, models.JoinVoice{RoomID: "r", PeerID: "p2", DisplayName: "B"})

	room.LeaveVoice(models.LeaveVoice{RoomID: "r", PeerID: "p1"})

	if roster := room.VoiceRoster(); len(roster) != 1 || roster[0].PeerID != "p2" {
		t.Fatalf("unexpected roster after leave: %#v", roster)
	}
	left := cap2.ofType(models.EvVoiceUserLeft)
	if len(left) != 1 {
		t.Fatalf("expected voice-user-left, got %d", len(left))
	}
	if p := left[0].Data.(models.VoiceLeft); p.PeerID != "p1" {
		t.Fatalf("unexpected voice-user-left payload: %#v", p)
	}
}

func TestDetachCleansPresenceAndVoice(t *testing.T) {
	hub := testHub()
	room := hub.GetOrCreate("r")

	c, _ := newHookedClient()
	room.JoinPresence(c, models.JoinMember{RoomID: "r", ParticipantID: "u1", DisplayName: "A"})
	room.JoinVoice(c, models.JoinVoice{RoomID: "r", PeerID: "p1", DisplayName: "A"})

	observer, observerCap := newHookedClient()
	room.JoinPresence(observer, models.JoinMember{RoomID: "r", ParticipantID: "obs", DisplayName: "O"})
	room.JoinVoice(observer, models.JoinVoice{RoomID: "r", PeerID: "p-obs", DisplayName: "O"})

	hub.Detach(c)

	if roster := room.Roster(); len(roster) != 1 || roster[0].ParticipantID != "obs" {
		t.Fatalf("expected presence cleanup on detach: %#v", roster)
	}
	if roster := room.VoiceRoster(); len(roster) != 1 || roster[0].PeerID != "p-obs" {
		t.Fatalf("expected voice cleanup on detach: %#v", roster)
	}
	if len(observerCap.ofType(models.EvMemberLeft)) != 1 {
		t.Fatalf("detach must surface as an ordinary member-left")
	}
	if len(observerCap.ofType(models.EvVoiceUserLeft)) != 1 {
		t.Fatalf("detach must surface as an ordinary voice-user-left")
	}
}

func TestDetachIsIdempotent(t *testing.T) {
	hub := testHub()
	room := hub.GetOrCreate("r")

	c, _ := newHookedClient()
	room.JoinPresence(c, models.JoinMember{RoomID: "r", ParticipantID: "u1", DisplayName: "A"})

	observer, observerCap := newHookedClient()
	room.JoinPresence(observer, models.JoinMember{RoomID: "r", ParticipantID: "obs", DisplayName: "O"})

	hub.Detach(c)
	leftAfterFirst := len(observerCap.ofType(models.EvMemberLeft))
	rosterAfterFirst := room.Roster()

	hub.Detach(c)

	if got := len(observerCap.ofType(models.EvMemberLeft)); got != leftAfterFirst {
		t.Fatalf("second detach must not emit more events")
	}
	roster := room.Roster()
	if len(roster) != len(rosterAfterFirst) {
		t.Fatalf("second detach must not change the roster")
	}
}

func TestCursorStaleness(t *testing.T) {
	table := NewCursorTable()
	start := time.Now()

	table.Touch(models.CursorChange{ParticipantID: "u1"}, start)
	table.Touch(models.CursorChange{ParticipantID: "u2"}, start.Add(8*time.Second))

	if dropped := table.Sweep(start.Add(5*time.Second), CursorMaxAge); dropped != 0 {
		t.Fatalf("fresh cursors must survive the sweep, dropped %d", dropped)
	}
	if dropped := table.Sweep(start.Add(11*time.Second), CursorMaxAge); dropped != 1 {
		t.Fatalf("expected exactly the stale cursor dropped, got %d", dropped)
	}
	if table.Len() != 1 {
		t.Fatalf("expected one surviving cursor, got %d", table.Len())
	}
}

func TestCursorRelayExcludesSenderAndRefreshes(t *testing.T) {
	room := NewRoom("r")
	sender, senderCap := newHookedClient()
	other, otherCap := newHookedClient()
	room.JoinDocument(sender)
	room.JoinDocument(other)

	room.RelayCursor(sender, models.CursorChange{
		RoomID: "r", ParticipantID: "u1", Position: json.RawMessage(`{"lineNumber":3,"column":7}`),
	}, time.Now())

	if got := senderCap.ofType(models.EvCursorChange); len(got) != 0 {
		t.Fatalf("sender must not receive its own cursor back")
	}
	if got := otherCap.ofType(models.EvCursorChange); len(got) != 1 {
		t.Fatalf("expected cursor relayed once, got %d", len(got))
	}
	if room.CursorCount() != 1 {
		t.Fatalf("expected cursor entry tracked")
	}
}

func TestHighlightIsPassThrough(t *testing.T) {
	room := NewRoom("r")
	sender, senderCap := newHookedClient()
	other, otherCap := newHookedClient()
	room.JoinDocument(sender)
	room.JoinDocument(other)
	senderCap.frames = nil

	room.RelayHighlight(sender, models.EditHighlight{RoomID: "r", ParticipantID: "u1"})

	if got := senderCap.ofType(models.EvEditHighlight); len(got) != 0 {
		t.Fatalf("sender must not receive its own highlight back")
	}
	if got := otherCap.ofType(models.EvEditHighlight); len(got) != 1 {
		t.Fatalf("expected highlight relayed once, got %d", len(got))
	}
	if room.CursorCount() != 0 {
		t.Fatalf("highlight must not leave state behind")
	}
}

func TestInitiator(t *testing.T) {
	cases := []struct {
		a, b, want string
	}{
		{"p-aaa", "p-bbb", "p-aaa"},
		{"p-bbb", "p-aaa", "p-aaa"},
		{"abc", "abd", "abc"},
		{"z", "a", "a"},
		{"same", "same", "same"},
	}
	for _, tc := range cases {
		if got := Initiator(tc.a, tc.b); got != tc.want {
			t.Fatalf("Initiator(%q, %q) = %q, want %q", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestHubGetOrCreate(t *testing.T) {
	hub := testHub()
	a := hub.GetOrCreate("a")
	if b := hub.GetOrCreate("a"); a != b {
		t.Fatalf("expected same room instance")
	}
	if _, ok := hub.Get("missing"); ok {
		t.Fatalf("Get must not create rooms")
	}
	if hub.RoomCount() != 1 {
		t.Fatalf("expected one room, got %d", hub.RoomCount())
	}
}

func TestEvictIdleSparesOccupiedRooms(t *testing.T) {
	hub := testHub()

	idle := hub.GetOrCreate("idle")
	occupied := hub.GetOrCreate("occupied")
	c, _ := newHookedClient()
	occupied.JoinDocument(c)

	_ = idle
	evicted := hub.EvictIdle(time.Now().Add(11*time.Minute), 10*time.Minute)
	if evicted != 1 {
		t.Fatalf("expected exactly the idle room evicted, got %d", evicted)
	}
	if _, ok := hub.Get("idle"); ok {
		t.Fatalf("idle room should be gone")
	}
	if _, ok := hub.Get("occupied"); !ok {
		t.Fatalf("occupied room must never be evicted")
	}
}

func TestRoomBecomesEvictableAfterDetach(t *testing.T) {
	hub := testHub()
	room := hub.GetOrCreate("r")
	c, _ := newHookedClient()
	room.JoinDocument(c)

	if _, idle := room.IdleSince(); idle {
		t.Fatalf("room with a connection must not report idle")
	}

	hub.Detach(c)

	since, idle := room.IdleSince()
	if !idle {
		t.Fatalf("room should be idle after last detach")
	}
	if hub.EvictIdle(since.Add(11*time.Minute), 10*time.Minute) != 1 {
		t.Fatalf("expected room evicted after idle window")
	}
}
