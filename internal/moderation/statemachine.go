package moderation

import "fmt"

const (
	// MuteCooldownMs is how long a viewer stays muted after the third
	// violation, in milliseconds.
	MuteCooldownMs = 600_000 // 10 minutes

	// MaxWarnings is the number of strikes before a mute. The first two
	// violations warn; the third mutes.
	MaxWarnings = 3
)

// State is the per-viewer, per-session moderation state. The zero value is
// a clean slate. It is mutated only through Evaluate; callers treat the
// returned value as the new authoritative state.
type State struct {
	WarningCount    int   `json:"warning_count"`
	Muted           bool  `json:"muted"`
	MuteExpiresAtMs int64 `json:"mute_expires_at_ms"` // meaningful only while Muted
}

// Action is the moderation decision for a single send attempt.
type Action string

const (
	// ActionAllow means the message is clean; deliver it.
	ActionAllow Action = "allow"

	// ActionWarn means the message violated policy; reject it and surface
	// the warning count (e.g. "Warning 2/3") to the viewer.
	ActionWarn Action = "warn"

	// ActionMuteActive means the viewer is still inside the mute cooldown;
	// reject the send without changing state.
	ActionMuteActive Action = "mute_active"

	// ActionNewlyMuted means this violation was the third strike; the
	// viewer is now muted until State.MuteExpiresAtMs.
	ActionNewlyMuted Action = "newly_muted"
)

// Evaluate advances the warning/mute state machine for one send attempt.
// violates is the classifier's verdict for the message, nowMs the current
// time in unix milliseconds. It returns the new state and the action the
// caller must enforce (blocking delivery on warn/mute is the caller's job).
//
// Mute expiry is evaluated lazily here rather than by a timer: an expired
// mute resets the state to clean before the message is considered, so
// mute_active is never returned at or past the expiry time. Evaluate is a
// total function; every input has a defined transition.
func Evaluate(state State, violates bool, nowMs int64) (State, Action) {
	if state.Muted {
		if nowMs < state.MuteExpiresAtMs {
			return state, ActionMuteActive
		}
		// Cooldown elapsed: back to a clean slate, then evaluate normally.
		state = State{}
	}

	if !violates {
		return state, ActionAllow
	}

	state.WarningCount++
	if state.WarningCount < MaxWarnings {
		return state, ActionWarn
	}

	state.Muted = true
	state.MuteExpiresAtMs = nowMs + MuteCooldownMs
	return state, ActionNewlyMuted
}

// WarningLabel formats the "N/3" strike counter shown to the viewer after
// a warn or newly_muted action.
func WarningLabel(state State) string {
	return fmt.Sprintf("%d/%d", state.WarningCount, MaxWarnings)
}
