// Package eventsim generates simulated stream activity: viewers joining and
// leaving, and gifts arriving. The stream server consumes these events to
// animate streams without real traffic; all randomness lives here so the
// core session and wallet logic stays deterministic.
package eventsim

import (
	"math/rand"

	"github.com/glowlive/stream-app/internal/gift"
)

// EventType discriminates simulated activity events.
type EventType string

const (
	EventViewerJoin  EventType = "viewer_join"
	EventViewerLeave EventType = "viewer_leave"
	EventGift        EventType = "gift"
)

// Event is one unit of simulated stream activity. GiftID is set only for
// gift events.
type Event struct {
	Type   EventType `json:"type"`
	GiftID string    `json:"gift_id,omitempty"`
}

// Source produces a sequence of activity events.
type Source interface {
	Next() Event
}

// StreamEvent is the wire form published on the sim.events subject: an
// activity event addressed to a specific stream.
type StreamEvent struct {
	StreamID string    `json:"stream_id"`
	Type     EventType `json:"type"`
	GiftID   string    `json:"gift_id,omitempty"`
}

// RandomSource produces weighted random events from a seeded RNG. The same
// seed always yields the same sequence.
type RandomSource struct {
	rng     *rand.Rand
	giftIDs []string
}

// NewRandomSource creates a RandomSource over the given gift catalog. The
// catalog order determines which gift each roll maps to, so callers that
// need reproducible runs should pass a stable catalog.
func NewRandomSource(seed int64, catalog []gift.Gift) *RandomSource {
	ids := make([]string, 0, len(catalog))
	for _, g := range catalog {
		ids = append(ids, g.ID)
	}
	return &RandomSource{
		rng:     rand.New(rand.NewSource(seed)),
		giftIDs: ids,
	}
}

// Next returns the next random event. Joins are more likely than leaves so
// a simulated stream tends to grow; gifts are rare.
func (s *RandomSource) Next() Event {
	roll := s.rng.Intn(100)
	switch {
	case roll < 50:
		return Event{Type: EventViewerJoin}
	case roll < 80:
		return Event{Type: EventViewerLeave}
	default:
		if len(s.giftIDs) == 0 {
			return Event{Type: EventViewerJoin}
		}
		return Event{
			Type:   EventGift,
			GiftID: s.giftIDs[s.rng.Intn(len(s.giftIDs))],
		}
	}
}

// ScriptedSource replays a fixed sequence of events, cycling when it runs
// out. Useful in tests that need exact activity.
type ScriptedSource struct {
	events []Event
	pos    int
}

// NewScriptedSource creates a source that replays the given events in order.
func NewScriptedSource(events []Event) *ScriptedSource {
	return &ScriptedSource{events: events}
}

// Next returns the next scripted event, wrapping around at the end. An
// empty script yields viewer joins forever.
func (s *ScriptedSource) Next() Event {
	if len(s.events) == 0 {
		return Event{Type: EventViewerJoin}
	}
	ev := s.events[s.pos%len(s.events)]
	s.pos++
	return ev
}
