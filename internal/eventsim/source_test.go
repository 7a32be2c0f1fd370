package eventsim

import (
	"testing"

	"github.com/glowlive/stream-app/internal/gift"
)

func TestRandomSourceDeterministic(t *testing.T) {
	catalog := gift.Catalog()
	a := NewRandomSource(42, catalog)
	b := NewRandomSource(42, catalog)

	for i := 0; i < 1000; i++ {
		evA := a.Next()
		evB := b.Next()
		if evA != evB {
			t.Fatalf("event %d diverged: %+v vs %+v", i, evA, evB)
		}
	}
}

func TestRandomSourceEventMix(t *testing.T) {
	catalog := gift.Catalog()
	src := NewRandomSource(7, catalog)

	counts := map[EventType]int{}
	for i := 0; i < 10000; i++ {
		ev := src.Next()
		counts[ev.Type]++

		if ev.Type == EventGift {
			if _, err := gift.Lookup(ev.GiftID); err != nil {
				t.Fatalf("gift event carries unknown gift %q", ev.GiftID)
			}
		} else if ev.GiftID != "" {
			t.Fatalf("%s event carries gift ID %q", ev.Type, ev.GiftID)
		}
	}

	for _, typ := range []EventType{EventViewerJoin, EventViewerLeave, EventGift} {
		if counts[typ] == 0 {
			t.Errorf("no %s events in 10000 draws", typ)
		}
	}
	if counts[EventViewerJoin] <= counts[EventViewerLeave] {
		t.Errorf("expected joins to outnumber leaves, got %d joins vs %d leaves",
			counts[EventViewerJoin], counts[EventViewerLeave])
	}
}

func TestRandomSourceEmptyCatalog(t *testing.T) {
	src := NewRandomSource(1, nil)
	for i := 0; i < 1000; i++ {
		ev := src.Next()
		if ev.Type == EventGift {
			t.Fatal("gift event produced with empty catalog")
		}
	}
}

func TestScriptedSource(t *testing.T) {
	script := []Event{
		{Type: EventViewerJoin},
		{Type: EventGift, GiftID: "rose"},
		{Type: EventViewerLeave},
	}
	src := NewScriptedSource(script)

	// Two full cycles replay the script in order.
	for cycle := 0; cycle < 2; cycle++ {
		for i, want := range script {
			got := src.Next()
			if got != want {
				t.Fatalf("cycle %d event %d = %+v, want %+v", cycle, i, got, want)
			}
		}
	}
}

func TestScriptedSourceEmpty(t *testing.T) {
	src := NewScriptedSource(nil)
	if ev := src.Next(); ev.Type != EventViewerJoin {
		t.Fatalf("empty script produced %+v, want viewer_join", ev)
	}
}
