// Package stream holds live session state: the chat message stream, viewer
// counts, gift earnings, and the snapshot projection the client renders.
// One Session exists per live stream; a Registry tracks all of them on this
// server instance.
package stream

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/glowlive/stream-app/internal/gift"
)

// MaxRecentMessages is how many chat messages a session retains for
// rendering. Older messages are trimmed; gift earnings are accumulated
// separately so totals survive the trim.
const MaxRecentMessages = 20

// ChatMessage is one entry in a stream's chat. Gift events appear in the
// stream as messages tagged IsGift, with GiftType naming the catalog entry.
// Messages are immutable once appended (pinning is session state, surfaced
// on the snapshot copy).
type ChatMessage struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Text        string `json:"text"`
	TimestampMs int64  `json:"timestamp_ms"`
	IsGift      bool   `json:"is_gift,omitempty"`
	GiftType    string `json:"gift_type,omitempty"`
	IsPinned    bool   `json:"is_pinned,omitempty"`
}

// Snapshot is the derived view of a live session. It is recomputed on
// demand and never stored; mutating it has no effect on the session.
type Snapshot struct {
	StreamID         string        `json:"stream_id"`
	Streamer         string        `json:"streamer"`
	ViewerCount      int           `json:"viewer_count"`
	Messages         []ChatMessage `json:"messages"`
	GiftsEarnedTotal int64         `json:"gifts_earned_total"`
	DurationSec      int64         `json:"duration_sec"`
}

// Session is the state of one live stream on this server. All methods are
// goroutine-safe.
type Session struct {
	ID       string
	Streamer string

	mu          sync.Mutex
	startedAt   time.Time
	viewerCount int
	giftsEarned int64
	pinnedID    string
	recent      *messageRing
}

// NewSession starts a live session for the given stream.
func NewSession(id, streamer string) *Session {
	return &Session{
		ID:        id,
		Streamer:  streamer,
		startedAt: time.Now(),
		recent:    newMessageRing(MaxRecentMessages),
	}
}

// AppendMessage adds a chat message to the stream and returns it with its
// assigned ID and timestamp.
func (s *Session) AppendMessage(username, text string) ChatMessage {
	msg := ChatMessage{
		ID:          uuid.New().String(),
		Username:    username,
		Text:        text,
		TimestampMs: time.Now().UnixMilli(),
	}

	s.mu.Lock()
	s.recent.add(msg)
	s.mu.Unlock()
	return msg
}

// AppendGift records a gift event: it enters the chat stream as a tagged
// gift message and its cost is added to the session's earnings total. The
// total is tracked independently of the message ring, so trimming old
// messages never loses earnings.
func (s *Session) AppendGift(username string, g gift.Gift) ChatMessage {
	msg := ChatMessage{
		ID:          uuid.New().String(),
		Username:    username,
		Text:        "sent " + g.Name + " " + g.Icon,
		TimestampMs: time.Now().UnixMilli(),
		IsGift:      true,
		GiftType:    g.ID,
	}

	s.mu.Lock()
	s.recent.add(msg)
	s.giftsEarned += g.Cost
	s.mu.Unlock()
	return msg
}

// ViewerJoined increments the viewer count and returns the new value.
func (s *Session) ViewerJoined() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewerCount++
	return s.viewerCount
}

// ViewerLeft decrements the viewer count, never below zero, and returns
// the new value.
func (s *Session) ViewerLeft() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.viewerCount > 0 {
		s.viewerCount--
	}
	return s.viewerCount
}

// AddViewers applies a signed viewer-count delta (from the activity
// simulator), flooring at zero, and returns the new count.
func (s *Session) AddViewers(delta int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewerCount += delta
	if s.viewerCount < 0 {
		s.viewerCount = 0
	}
	return s.viewerCount
}

// Pin marks the message with the given ID as pinned. At most one message
// is pinned at a time; pinning a new one unpins the previous. Returns
// false if no retained message has that ID.
func (s *Session) Pin(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.recent.contains(messageID) {
		return false
	}
	s.pinnedID = messageID
	return true
}

// GiftsEarnedTotal returns the session's accumulated gift earnings.
func (s *Session) GiftsEarnedTotal() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.giftsEarned
}

// SeedGiftsEarned sets the earnings total, used to rebuild a session from
// the durable ledger after a server restart.
func (s *Session) SeedGiftsEarned(total int64) {
	s.mu.Lock()
	s.giftsEarned = total
	s.mu.Unlock()
}

// Snapshot returns the derived live view of the session: current viewer
// count, the retained messages in chronological order (with the pinned
// flag applied), total gift earnings, and elapsed duration. It is a pure
// projection; the returned messages are copies.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := s.recent.all()
	for i := range messages {
		messages[i].IsPinned = messages[i].ID == s.pinnedID && s.pinnedID != ""
	}

	return Snapshot{
		StreamID:         s.ID,
		Streamer:         s.Streamer,
		ViewerCount:      s.viewerCount,
		Messages:         messages,
		GiftsEarnedTotal: s.giftsEarned,
		DurationSec:      int64(time.Since(s.startedAt).Seconds()),
	}
}
