package stream

// messageRing is a fixed-size circular buffer of chat messages. When full,
// the oldest message is overwritten. It is not goroutine-safe; the owning
// Session serializes access.
type messageRing struct {
	items []ChatMessage
	pos   int
	count int
}

func newMessageRing(capacity int) *messageRing {
	return &messageRing{items: make([]ChatMessage, capacity)}
}

// add appends a message, overwriting the oldest when full.
func (r *messageRing) add(msg ChatMessage) {
	r.items[r.pos] = msg
	r.pos = (r.pos + 1) % len(r.items)
	if r.count < len(r.items) {
		r.count++
	}
}

// all returns the retained messages in chronological order (oldest first).
func (r *messageRing) all() []ChatMessage {
	result := make([]ChatMessage, r.count)
	// The oldest message is at position (pos - count) mod capacity.
	start := (r.pos - r.count + len(r.items)) % len(r.items)
	for i := 0; i < r.count; i++ {
		result[i] = r.items[(start+i)%len(r.items)]
	}
	return result
}

// contains reports whether a retained message has the given ID.
func (r *messageRing) contains(id string) bool {
	start := (r.pos - r.count + len(r.items)) % len(r.items)
	for i := 0; i < r.count; i++ {
		if r.items[(start+i)%len(r.items)].ID == id {
			return true
		}
	}
	return false
}
