package moderation

import "sync"

// Decision is what the gate returns for one send attempt: the action to
// enforce plus the state and classifier reason needed to build the client
// response.
type Decision struct {
	Action Action
	State  State
	Reason Reason // set when the message violated policy
}

// Gate combines the classifier and the state machine behind a per-viewer
// lock. Messages from the same viewer are evaluated strictly one at a time,
// so two concurrent sends cannot both read the same warning count and lose
// an increment; different viewers proceed in parallel.
type Gate struct {
	classifier *Classifier

	mu      sync.Mutex
	viewers map[string]*viewerEntry // "<stream>:<viewer>" -> entry
}

type viewerEntry struct {
	mu    sync.Mutex
	state State
}

// NewGate creates a Gate using the given classifier.
func NewGate(classifier *Classifier) *Gate {
	return &Gate{
		classifier: classifier,
		viewers:    make(map[string]*viewerEntry),
	}
}

// Check classifies text and advances the viewer's warning/mute state,
// returning the action the caller must enforce. nowMs is the current time
// in unix milliseconds.
func (g *Gate) Check(streamID, viewerID, text string, nowMs int64) Decision {
	entry := g.entry(streamID + ":" + viewerID)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	verdict := g.classifier.Classify(text)
	newState, action := Evaluate(entry.state, verdict.Violates, nowMs)
	entry.state = newState

	return Decision{Action: action, State: newState, Reason: verdict.Reason}
}

// State returns the viewer's current moderation state without evaluating a
// message.
func (g *Gate) State(streamID, viewerID string) State {
	entry := g.entry(streamID + ":" + viewerID)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.state
}

// Reset clears a viewer's state, used when their session restarts.
func (g *Gate) Reset(streamID, viewerID string) {
	entry := g.entry(streamID + ":" + viewerID)
	entry.mu.Lock()
	entry.state = State{}
	entry.mu.Unlock()
}

// DropStream discards all viewer state for a stream once it ends.
func (g *Gate) DropStream(streamID string) {
	prefix := streamID + ":"
	g.mu.Lock()
	for key := range g.viewers {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			delete(g.viewers, key)
		}
	}
	g.mu.Unlock()
}

func (g *Gate) entry(key string) *viewerEntry {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, ok := g.viewers[key]
	if !ok {
		entry = &viewerEntry{}
		g.viewers[key] = entry
	}
	return entry
}
