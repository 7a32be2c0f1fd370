package moderation

import (
	"sync"
	"testing"
)

func newTestGate() *Gate {
	return NewGate(NewClassifierWithTerms([]string{"badword"}))
}

func TestGate_WarnsThenMutes(t *testing.T) {
	g := newTestGate()
	now := int64(0)

	wantActions := []Action{ActionWarn, ActionWarn, ActionNewlyMuted, ActionMuteActive}
	for i, want := range wantActions {
		d := g.Check("stream-1", "viewer-1", "badword", now)
		if d.Action != want {
			t.Fatalf("message %d: action = %q, want %q", i+1, d.Action, want)
		}
	}

	// Clean messages while muted are still rejected.
	if d := g.Check("stream-1", "viewer-1", "sorry", now+1); d.Action != ActionMuteActive {
		t.Errorf("clean message while muted: action = %q, want %q", d.Action, ActionMuteActive)
	}
}

func TestGate_ViewersAreIndependent(t *testing.T) {
	g := newTestGate()

	g.Check("stream-1", "viewer-1", "badword", 0)
	g.Check("stream-1", "viewer-1", "badword", 0)

	// A different viewer, and the same viewer on a different stream,
	// start clean.
	if d := g.Check("stream-1", "viewer-2", "badword", 0); d.Action != ActionWarn || d.State.WarningCount != 1 {
		t.Errorf("viewer-2 first violation: %+v", d)
	}
	if d := g.Check("stream-2", "viewer-1", "badword", 0); d.State.WarningCount != 1 {
		t.Errorf("viewer-1 on stream-2: %+v", d)
	}
}

func TestGate_Reset(t *testing.T) {
	g := newTestGate()

	g.Check("stream-1", "viewer-1", "badword", 0)
	g.Reset("stream-1", "viewer-1")

	if state := g.State("stream-1", "viewer-1"); state.WarningCount != 0 {
		t.Errorf("state after reset = %+v", state)
	}
}

func TestGate_DropStream(t *testing.T) {
	g := newTestGate()

	g.Check("stream-1", "viewer-1", "badword", 0)
	g.Check("stream-2", "viewer-1", "badword", 0)
	g.DropStream("stream-1")

	if state := g.State("stream-1", "viewer-1"); state.WarningCount != 0 {
		t.Errorf("stream-1 state survived DropStream: %+v", state)
	}
	if state := g.State("stream-2", "viewer-1"); state.WarningCount != 1 {
		t.Errorf("stream-2 state lost: %+v", state)
	}
}

// Concurrent violating sends from one viewer must not lose warning
// increments: after exactly three, the viewer is muted.
func TestGate_ConcurrentSendsSerialized(t *testing.T) {
	g := newTestGate()

	var wg sync.WaitGroup
	var mu sync.Mutex
	actions := make(map[Action]int)

	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d := g.Check("stream-1", "viewer-1", "badword", 0)
			mu.Lock()
			actions[d.Action]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if actions[ActionWarn] != 2 || actions[ActionNewlyMuted] != 1 {
		t.Errorf("actions = %v, want 2 warns and 1 newly_muted", actions)
	}

	state := g.State("stream-1", "viewer-1")
	if !state.Muted || state.WarningCount != MaxWarnings {
		t.Errorf("final state = %+v, want muted at %d warnings", state, MaxWarnings)
	}
}
