package session

import (
	"time"

	"peerhub/internal/models"
)

// JoinPresence adds the participant to the roster, or refreshes the owning
// connection if the participant is already present (reconnect). A first join
// emits member-joined to the others; both paths end with a full roster
// snapshot to everyone so all clients reconcile to the same list.
func (r *Room) JoinPresence(c *Client, join models.JoinMember) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.joinChannelLocked(c, models.ChannelMembers)

	for _, m := range r.members {
		if m.ParticipantID == join.ParticipantID {
			m.ConnectionID = c.ID
			m.DisplayName = join.DisplayName
			m.AvatarRef = join.AvatarRef
			r.broadcastLocked(models.ChannelMembers, nil, models.WSFrame{
				Type: models.EvMembersUpdate, Data: r.rosterLocked(),
			})
			return
		}
	}

	member := &models.Member{
		ParticipantID: join.ParticipantID,
		DisplayName:   join.DisplayName,
		AvatarRef:     join.AvatarRef,
		ConnectionID:  c.ID,
		JoinedAt:      time.Now(),
	}
	r.members = append(r.members, member)

	r.broadcastLocked(models.ChannelMembers, c, models.WSFrame{
		Type: models.EvMemberJoined, Data: *member,
	})
	r.broadcastLocked(models.ChannelMembers, nil, models.WSFrame{
		Type: models.EvMembersUpdate, Data: r.rosterLocked(),
	})
}

// LeavePresence removes the participant on an explicit leave event.
func (r *Room) LeavePresence(leave models.LeaveMember) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeMemberLocked(func(m *models.Member) bool {
		return m.ParticipantID == leave.ParticipantID
	})
}

// removeMemberByConnLocked is the disconnect-triggered leave path, keyed by
// connection rather than a participant-supplied id.
func (r *Room) removeMemberByConnLocked(connID string) {
	r.removeMemberLocked(func(m *models.Member) bool {
		return m.ConnectionID == connID
	})
}

func (r *Room) removeMemberLocked(match func(*models.Member) bool) {
	for i, m := range r.members {
		if !match(m) {
			continue
		}
		r.members = append(r.members[:i], r.members[i+1:]...)
		r.broadcastLocked(models.ChannelMembers, nil, models.WSFrame{
			Type: models.EvMemberLeft, Data: *m,
		})
		r.broadcastLocked(models.ChannelMembers, nil, models.WSFrame{
			Type: models.EvMembersUpdate, Data: r.rosterLocked(),
		})
		return
	}
}

func (r *Room) rosterLocked() []models.Member {
	out := make([]models.Member, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, *m)
	}
	return out
}

// Roster returns a copy of the presence roster in join order.
func (r *Room) Roster() []models.Member {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rosterLocked()
}
