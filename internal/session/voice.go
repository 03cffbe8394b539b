package session

import "peerhub/internal/models"

// JoinVoice adds the peer to the voice roster and runs the three-step join
// sequence: voice-user-joined to existing members, the pre-join roster to
// the new member, then the complete roster to everyone. All participants
// converge to an identical view even though the who-calls-whom decision is
// made client-side (see Initiator).
//
// A duplicate join for an active peer only refreshes bookkeeping; no second
// voice-user-joined is emitted.
func (r *Room) JoinVoice(c *Client, join models.JoinVoice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.joinChannelLocked(c, models.ChannelVoice)

	for _, p := range r.voice {
		if p.PeerID == join.PeerID {
			p.ConnectionID = c.ID
			p.DisplayName = join.DisplayName
			r.broadcastLocked(models.ChannelVoice, nil, models.WSFrame{
				Type: models.EvVoiceUsers, Data: r.voiceRosterLocked(),
			})
			return
		}
	}

	participant := &models.VoiceParticipant{
		PeerID:       join.PeerID,
		DisplayName:  join.DisplayName,
		ConnectionID: c.ID,
	}

	r.broadcastLocked(models.ChannelVoice, c, models.WSFrame{
		Type: models.EvVoiceUserJoined, Data: *participant,
	})
	c.Send(models.WSFrame{Type: models.EvVoiceUsers, Data: r.voiceRosterLocked()})

	r.voice = append(r.voice, participant)
	r.broadcastLocked(models.ChannelVoice, nil, models.WSFrame{
		Type: models.EvVoiceUsers, Data: r.voiceRosterLocked(),
	})
}

// LeaveVoice removes the peer on an explicit leave event.
func (r *Room) LeaveVoice(leave models.LeaveVoice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeVoiceLocked(func(p *models.VoiceParticipant) bool {
		return p.PeerID == leave.PeerID
	})
}

// removeVoiceByConnLocked is the disconnect-triggered leave path.
func (r *Room) removeVoiceByConnLocked(connID string) {
	r.removeVoiceLocked(func(p *models.VoiceParticipant) bool {
		return p.ConnectionID == connID
	})
}

func (r *Room) removeVoiceLocked(match func(*models.VoiceParticipant) bool) {
	for i, p := range r.voice {
		if !match(p) {
			continue
		}
		r.voice = append(r.voice[:i], r.voice[i+1:]...)
		r.broadcastLocked(models.ChannelVoice, nil, models.WSFrame{
			Type: models.EvVoiceUserLeft, Data: models.VoiceLeft{PeerID: p.PeerID},
		})
		return
	}
}

func (r *Room) voiceRosterLocked() []models.VoiceParticipant {
	out := make([]models.VoiceParticipant, 0, len(r.voice))
	for _, p := range r.voice {
		out = append(out, *p)
	}
	return out
}

// VoiceRoster returns a copy of the voice roster in join order.
func (r *Room) VoiceRoster() []models.VoiceParticipant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.voiceRosterLocked()
}
