package session

import "peerhub/internal/models"

// JoinDiagram attaches the connection to the diagram channel and unicasts the
// current canvas so the joiner does not start from empty.
func (r *Room) JoinDiagram(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.joinChannelLocked(c, models.ChannelDiagram)
	c.Send(models.WSFrame{Type: models.EvDiagramState, Data: r.diagram})
}

// ApplyDiagramChange replaces the diagram wholesale and relays the full new
// state to everyone else on the diagram channel. Outgoing throttling is the
// client's responsibility; the hub relays whatever arrives.
func (r *Room) ApplyDiagramChange(sender *Client, change models.DiagramChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diagram = models.DiagramState{
		Nodes:    change.Nodes,
		Edges:    change.Edges,
		Viewport: change.Viewport,
	}
	r.broadcastLocked(models.ChannelDiagram, sender, models.WSFrame{
		Type: models.EvDiagramChange, Data: change,
	})
}

// Diagram returns a copy of the current diagram state.
func (r *Room) Diagram() models.DiagramState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.diagram
}
