package stream

import (
	"strings"
	"testing"
)

func TestValidateMessage(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		valid bool
	}{
		{"normal message", "hello stream!", true},
		{"single char", "x", true},
		{"emoji", "🔥🔥🔥", true},
		{"at char limit", strings.Repeat("a", MaxTextChars), true},
		{"empty", "", false},
		{"over char limit", strings.Repeat("a", MaxTextChars+1), false},
		{"over byte limit", strings.Repeat("🔥", MaxMessageBytes/4+1), false},
		{"invalid utf-8", string([]byte{0xff, 0xfe}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMessage(tt.text)
			if tt.valid && err != nil {
				t.Errorf("ValidateMessage(%q) = %v, want nil", tt.name, err)
			}
			if !tt.valid && err == nil {
				t.Errorf("ValidateMessage(%q) = nil, want error", tt.name)
			}
		})
	}
}
