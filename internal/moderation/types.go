package moderation

// CheckRequest is published to moderation.check by the stream server when a
// message needs async content review.
type CheckRequest struct {
	SessionID string `json:"session_id"`
	StreamID  string `json:"stream_id"`
	Text      string `json:"text"`
	Ts        int64  `json:"ts"`
}

// CheckResult is published back to the stream server on
// moderation.result.<session_id> with the review outcome.
type CheckResult struct {
	SessionID string `json:"session_id"`
	StreamID  string `json:"stream_id"`
	Violates  bool   `json:"violates"`
	Reason    string `json:"reason"`
}
