package moderation

import "testing"

func TestEvaluate_CleanMessageIsIdempotent(t *testing.T) {
	state := State{}

	// Repeated clean messages never change the state.
	for i := 0; i < 10; i++ {
		newState, action := Evaluate(state, false, int64(i*1000))
		if action != ActionAllow {
			t.Fatalf("message %d: action = %q, want %q", i, action, ActionAllow)
		}
		if newState != state {
			t.Fatalf("message %d: state changed from %+v to %+v", i, state, newState)
		}
		state = newState
	}
}

func TestEvaluate_ThreeStrikes(t *testing.T) {
	state := State{}
	now := int64(1_000)

	// 1st violation: warn 1/3.
	state, action := Evaluate(state, true, now)
	if action != ActionWarn {
		t.Fatalf("1st violation: action = %q, want %q", action, ActionWarn)
	}
	if state.WarningCount != 1 || state.Muted {
		t.Fatalf("1st violation: state = %+v", state)
	}
	if got := WarningLabel(state); got != "1/3" {
		t.Errorf("WarningLabel = %q, want %q", got, "1/3")
	}

	// 2nd violation: warn 2/3.
	state, action = Evaluate(state, true, now)
	if action != ActionWarn {
		t.Fatalf("2nd violation: action = %q, want %q", action, ActionWarn)
	}
	if got := WarningLabel(state); got != "2/3" {
		t.Errorf("WarningLabel = %q, want %q", got, "2/3")
	}

	// 3rd violation: muted for the full cooldown.
	state, action = Evaluate(state, true, now)
	if action != ActionNewlyMuted {
		t.Fatalf("3rd violation: action = %q, want %q", action, ActionNewlyMuted)
	}
	if !state.Muted {
		t.Fatal("3rd violation: expected Muted = true")
	}
	if state.MuteExpiresAtMs != now+MuteCooldownMs {
		t.Errorf("MuteExpiresAtMs = %d, want %d", state.MuteExpiresAtMs, now+MuteCooldownMs)
	}

	// 4th message immediately after: rejected, state unchanged.
	afterState, action := Evaluate(state, false, now+1)
	if action != ActionMuteActive {
		t.Fatalf("while muted: action = %q, want %q", action, ActionMuteActive)
	}
	if afterState != state {
		t.Fatalf("while muted: state changed from %+v to %+v", state, afterState)
	}
}

func TestEvaluate_MuteActiveUntilExpiry(t *testing.T) {
	muted := State{WarningCount: 3, Muted: true, MuteExpiresAtMs: MuteCooldownMs}

	tests := []struct {
		name   string
		nowMs  int64
		action Action
	}{
		{"just muted", 0, ActionMuteActive},
		{"mid cooldown", MuteCooldownMs / 2, ActionMuteActive},
		{"one ms before expiry", MuteCooldownMs - 1, ActionMuteActive},
		{"exactly at expiry", MuteCooldownMs, ActionAllow},
		{"one ms past expiry", MuteCooldownMs + 1, ActionAllow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, action := Evaluate(muted, false, tt.nowMs)
			if action != tt.action {
				t.Errorf("Evaluate(muted, false, %d) action = %q, want %q", tt.nowMs, action, tt.action)
			}
		})
	}
}

func TestEvaluate_MuteExpiryResetsState(t *testing.T) {
	muted := State{WarningCount: 3, Muted: true, MuteExpiresAtMs: MuteCooldownMs}

	// Clean message after expiry: full reset, message allowed.
	state, action := Evaluate(muted, false, MuteCooldownMs+1)
	if action != ActionAllow {
		t.Fatalf("action = %q, want %q", action, ActionAllow)
	}
	if state.WarningCount != 0 || state.Muted {
		t.Fatalf("state after expiry = %+v, want clean slate", state)
	}

	// Violating message after expiry: counts as the first strike of a new
	// cycle, not the fourth of the old one.
	state, action = Evaluate(muted, true, MuteCooldownMs+1)
	if action != ActionWarn {
		t.Fatalf("action = %q, want %q", action, ActionWarn)
	}
	if state.WarningCount != 1 {
		t.Errorf("WarningCount = %d, want 1", state.WarningCount)
	}
}

func TestEvaluate_WarningCountStaysInRange(t *testing.T) {
	state := State{}
	now := int64(0)

	// Many violations with expiries in between never push the counter
	// outside [0, MaxWarnings].
	for i := 0; i < 20; i++ {
		var action Action
		state, action = Evaluate(state, true, now)
		if state.WarningCount < 0 || state.WarningCount > MaxWarnings {
			t.Fatalf("iteration %d: WarningCount = %d out of range", i, state.WarningCount)
		}
		if action == ActionNewlyMuted {
			now = state.MuteExpiresAtMs // jump past the cooldown
		}
	}
}

// Full scenario from the product behavior: three profane messages, a
// rejected fourth, then a clean message after the cooldown.
func TestEvaluate_EndToEndScenario(t *testing.T) {
	c := NewClassifierWithTerms([]string{"fuck"})
	state := State{}
	now := int64(0)

	wantActions := []Action{ActionWarn, ActionWarn, ActionNewlyMuted}
	for i, want := range wantActions {
		verdict := c.Classify("fuck this")
		var action Action
		state, action = Evaluate(state, verdict.Violates, now)
		if action != want {
			t.Fatalf("message %d: action = %q, want %q", i+1, action, want)
		}
	}

	// Immediately after: still muted, even for a clean message.
	_, action := Evaluate(state, c.Classify("sorry").Violates, now+1)
	if action != ActionMuteActive {
		t.Fatalf("4th message: action = %q, want %q", action, ActionMuteActive)
	}

	// One ms past the cooldown: clean message goes through.
	state, action = Evaluate(state, c.Classify("sorry").Violates, now+MuteCooldownMs+1)
	if action != ActionAllow {
		t.Fatalf("post-cooldown: action = %q, want %q", action, ActionAllow)
	}
	if state.WarningCount != 0 || state.Muted {
		t.Fatalf("post-cooldown state = %+v, want clean slate", state)
	}
}
