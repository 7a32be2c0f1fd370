package stream

import (
	"fmt"
	"sync"
	"testing"

	"github.com/glowlive/stream-app/internal/gift"
)

var rose = gift.Gift{ID: "rose", Name: "Rose", Icon: "🌹", Cost: 5}

func TestSnapshot_EmptySession(t *testing.T) {
	s := NewSession("stream-1", "amy")

	snap := s.Snapshot()
	if snap.StreamID != "stream-1" || snap.Streamer != "amy" {
		t.Errorf("snapshot identity = %q/%q", snap.StreamID, snap.Streamer)
	}
	if snap.ViewerCount != 0 {
		t.Errorf("ViewerCount = %d, want 0", snap.ViewerCount)
	}
	if len(snap.Messages) != 0 {
		t.Errorf("Messages = %d entries, want 0", len(snap.Messages))
	}
	if snap.GiftsEarnedTotal != 0 {
		t.Errorf("GiftsEarnedTotal = %d, want 0", snap.GiftsEarnedTotal)
	}
}

func TestAppendMessage(t *testing.T) {
	s := NewSession("stream-1", "amy")

	msg := s.AppendMessage("viewer_1", "hello!")
	if msg.ID == "" || msg.TimestampMs == 0 {
		t.Errorf("message missing id/timestamp: %+v", msg)
	}
	if msg.IsGift {
		t.Error("plain message tagged as gift")
	}

	snap := s.Snapshot()
	if len(snap.Messages) != 1 {
		t.Fatalf("snapshot has %d messages, want 1", len(snap.Messages))
	}
	if snap.Messages[0].Text != "hello!" || snap.Messages[0].Username != "viewer_1" {
		t.Errorf("message = %+v", snap.Messages[0])
	}
}

func TestAppendGift_CountsTowardEarnings(t *testing.T) {
	s := NewSession("stream-1", "amy")

	msg := s.AppendGift("viewer_1", rose)
	if !msg.IsGift || msg.GiftType != "rose" {
		t.Errorf("gift message = %+v", msg)
	}

	s.AppendGift("viewer_2", gift.Gift{ID: "star", Name: "Star", Cost: 100})

	snap := s.Snapshot()
	if snap.GiftsEarnedTotal != 105 {
		t.Errorf("GiftsEarnedTotal = %d, want 105", snap.GiftsEarnedTotal)
	}
	if len(snap.Messages) != 2 {
		t.Errorf("snapshot has %d messages, want 2", len(snap.Messages))
	}
}

// Message history is trimmed to the most recent MaxRecentMessages, but
// gift earnings accumulate over the whole session.
func TestSnapshot_TrimsMessagesKeepsGiftTotals(t *testing.T) {
	s := NewSession("stream-1", "amy")

	for i := 0; i < 50; i++ {
		s.AppendMessage("viewer", fmt.Sprintf("msg-%d", i))
		s.AppendGift("viewer", rose)
	}

	snap := s.Snapshot()
	if len(snap.Messages) != MaxRecentMessages {
		t.Fatalf("snapshot has %d messages, want %d", len(snap.Messages), MaxRecentMessages)
	}
	// The retained window ends with the most recent message.
	last := snap.Messages[len(snap.Messages)-1]
	if !last.IsGift {
		t.Errorf("last message = %+v, want the final gift", last)
	}
	if snap.GiftsEarnedTotal != 50*rose.Cost {
		t.Errorf("GiftsEarnedTotal = %d, want %d", snap.GiftsEarnedTotal, 50*rose.Cost)
	}
}

func TestRing_ChronologicalOrder(t *testing.T) {
	s := NewSession("stream-1", "amy")

	// More messages than the ring holds; expect the last MaxRecentMessages
	// in order.
	total := MaxRecentMessages + 7
	for i := 0; i < total; i++ {
		s.AppendMessage("viewer", fmt.Sprintf("msg-%d", i))
	}

	snap := s.Snapshot()
	for i, msg := range snap.Messages {
		want := fmt.Sprintf("msg-%d", total-MaxRecentMessages+i)
		if msg.Text != want {
			t.Errorf("message[%d].Text = %q, want %q", i, msg.Text, want)
		}
	}
}

func TestViewerCount(t *testing.T) {
	s := NewSession("stream-1", "amy")

	if got := s.ViewerJoined(); got != 1 {
		t.Errorf("after join: count = %d, want 1", got)
	}
	s.ViewerJoined()
	if got := s.ViewerLeft(); got != 1 {
		t.Errorf("after leave: count = %d, want 1", got)
	}

	// Never below zero, even with spurious leaves.
	s.ViewerLeft()
	if got := s.ViewerLeft(); got != 0 {
		t.Errorf("count = %d, want floor of 0", got)
	}

	if got := s.AddViewers(-10); got != 0 {
		t.Errorf("AddViewers(-10) = %d, want floor of 0", got)
	}
	if got := s.AddViewers(3); got != 3 {
		t.Errorf("AddViewers(3) = %d, want 3", got)
	}
}

func TestPin(t *testing.T) {
	s := NewSession("stream-1", "amy")

	first := s.AppendMessage("viewer", "pin me")
	second := s.AppendMessage("viewer", "no, pin me")

	if !s.Pin(first.ID) {
		t.Fatal("Pin(first) = false")
	}
	snap := s.Snapshot()
	if !snap.Messages[0].IsPinned || snap.Messages[1].IsPinned {
		t.Errorf("pin flags = %v/%v, want true/false", snap.Messages[0].IsPinned, snap.Messages[1].IsPinned)
	}

	// Pinning another message moves the pin.
	if !s.Pin(second.ID) {
		t.Fatal("Pin(second) = false")
	}
	snap = s.Snapshot()
	if snap.Messages[0].IsPinned || !snap.Messages[1].IsPinned {
		t.Errorf("pin flags = %v/%v, want false/true", snap.Messages[0].IsPinned, snap.Messages[1].IsPinned)
	}

	if s.Pin("not-a-message") {
		t.Error("Pin(unknown id) = true, want false")
	}
}

// Snapshot is a projection: mutating the returned value must not touch the
// session.
func TestSnapshot_IsACopy(t *testing.T) {
	s := NewSession("stream-1", "amy")
	s.AppendMessage("viewer", "original")

	snap := s.Snapshot()
	snap.Messages[0].Text = "tampered"
	snap.ViewerCount = 9999

	again := s.Snapshot()
	if again.Messages[0].Text != "original" {
		t.Error("mutating snapshot messages leaked into the session")
	}
	if again.ViewerCount != 0 {
		t.Error("mutating snapshot viewer count leaked into the session")
	}
}

func TestSession_ConcurrentAppends(t *testing.T) {
	s := NewSession("stream-1", "amy")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				s.AppendMessage("viewer", fmt.Sprintf("w%d-%d", n, j))
				s.AppendGift("viewer", rose)
				s.Snapshot()
			}
		}(i)
	}
	wg.Wait()

	snap := s.Snapshot()
	if snap.GiftsEarnedTotal != 20*20*rose.Cost {
		t.Errorf("GiftsEarnedTotal = %d, want %d", snap.GiftsEarnedTotal, 20*20*rose.Cost)
	}
	if len(snap.Messages) != MaxRecentMessages {
		t.Errorf("retained %d messages, want %d", len(snap.Messages), MaxRecentMessages)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	s1 := r.Create("stream-1", "amy")
	if r.Create("stream-1", "amy") != s1 {
		t.Error("Create for an existing stream returned a new session")
	}
	if r.Get("stream-1") != s1 {
		t.Error("Get returned a different session")
	}
	if r.Get("stream-2") != nil {
		t.Error("Get(unknown) != nil")
	}

	r.Create("stream-2", "bob")
	if r.Count() != 2 {
		t.Errorf("Count = %d, want 2", r.Count())
	}

	if ended := r.End("stream-1"); ended != s1 {
		t.Error("End returned a different session")
	}
	if r.Get("stream-1") != nil {
		t.Error("ended session still retrievable")
	}
	if r.End("stream-1") != nil {
		t.Error("double End returned a session")
	}
}
