package session

// Initiator returns the peer responsible for placing the media offer for an
// unordered pair of voice peers: the lexicographically smaller id dials, the
// other only answers. Both sides compute the same answer from the roster
// broadcast alone, so no server-side arbitration is ever needed. Clients
// must honor this; a violation silently doubles the mesh link count.
func Initiator(a, b string) string {
	if a < b {
		return a
	}
	return b
}
