package moderation

import (
	"strings"
	"testing"
)

func TestNewClassifier(t *testing.T) {
	c := NewClassifier()
	if c == nil {
		t.Fatal("NewClassifier returned nil")
	}
	if len(c.terms) == 0 {
		t.Fatal("NewClassifier created an empty denylist")
	}
}

func TestClassify_Profanity(t *testing.T) {
	c := NewClassifierWithTerms([]string{"badword", "offensive"})

	tests := []struct {
		name     string
		input    string
		violates bool
	}{
		{"exact match", "badword", true},
		{"in sentence", "this is badword here", true},
		{"case insensitive", "BADWORD", true},
		{"mixed case", "BaDwOrD", true},
		{"with punctuation", "hello, badword!", true},
		{"embedded substring", "mybadwording", true}, // substring match is intentional
		{"clean message", "hello world", false},
		{"empty string", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := c.Classify(tt.input)
			if result.Violates != tt.violates {
				t.Errorf("Classify(%q).Violates = %v, want %v", tt.input, result.Violates, tt.violates)
			}
			if tt.violates && result.Reason != ReasonProfanity {
				t.Errorf("Classify(%q).Reason = %q, want %q", tt.input, result.Reason, ReasonProfanity)
			}
			if !tt.violates && result.Reason != "" {
				t.Errorf("Classify(%q).Reason = %q, want empty", tt.input, result.Reason)
			}
		})
	}
}

func TestClassify_ContactInfo(t *testing.T) {
	c := NewClassifierWithTerms(nil) // no denylist, isolating the contact-info checks

	tests := []struct {
		name     string
		input    string
		violates bool
	}{
		{"bare 10-digit phone", "9876543210", true},
		{"phone in sentence", "call me at 9876543210", true},
		{"phone with surrounding text", "my number9876543210ok", true},
		{"email", "mail me at someone@example.com", true},
		{"email with plus tag", "user+tag@mail.co", true},
		{"nine digits", "123456789", false},
		{"digits split by spaces", "98765 43210", false},
		{"at sign alone", "see you @ the stream", false},
		{"clean message", "loving this stream!", false},
		{"empty string", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := c.Classify(tt.input)
			if result.Violates != tt.violates {
				t.Errorf("Classify(%q).Violates = %v, want %v", tt.input, result.Violates, tt.violates)
			}
			if tt.violates && result.Reason != ReasonContactInfo {
				t.Errorf("Classify(%q).Reason = %q, want %q", tt.input, result.Reason, ReasonContactInfo)
			}
		})
	}
}

// An 11-digit run contains a 10-digit run, so longer numbers are flagged
// too. This mirrors the product's observed behavior where any long digit
// sequence (including pasted order IDs) is treated as contact info.
func TestClassify_LongDigitRuns(t *testing.T) {
	c := NewClassifierWithTerms(nil)

	for _, input := range []string{"order 12345678901 shipped", "919876543210"} {
		result := c.Classify(input)
		if !result.Violates || result.Reason != ReasonContactInfo {
			t.Errorf("Classify(%q) = %+v, want contact_info violation", input, result)
		}
	}
}

// Profanity is checked before contact info, so a message containing both
// reports the profanity reason.
func TestClassify_ProfanityBeforeContactInfo(t *testing.T) {
	c := NewClassifierWithTerms([]string{"badword"})

	result := c.Classify("badword 9876543210")
	if !result.Violates {
		t.Fatal("expected violation")
	}
	if result.Reason != ReasonProfanity {
		t.Errorf("Reason = %q, want %q", result.Reason, ReasonProfanity)
	}
}

func TestClassify_DefaultDenylist(t *testing.T) {
	c := NewClassifier()

	// A few terms from each language list.
	blocked := []string{
		"fuck",
		"what the FUCK is this",
		"shit stream",
		"chutiya",
		"kya madarchod hai",
	}
	for _, msg := range blocked {
		if result := c.Classify(msg); !result.Violates {
			t.Errorf("Classify(%q) was not flagged, expected profanity", msg)
		}
	}

	clean := []string{
		"hello, how are you?",
		"great stream today",
		"send a rose!",
		"kitna accha gaana hai",
		"",
	}
	for _, msg := range clean {
		if result := c.Classify(msg); result.Violates {
			t.Errorf("Classify(%q) was flagged (reason=%q), expected clean", msg, result.Reason)
		}
	}
}

func TestNewClassifierWithTerms_EmptyAndWhitespace(t *testing.T) {
	c := NewClassifierWithTerms([]string{"", "  ", "Valid"})

	if len(c.terms) != 1 {
		t.Fatalf("expected 1 term, got %d", len(c.terms))
	}
	if c.terms[0] != "valid" {
		t.Errorf("term = %q, want %q (lowercased)", c.terms[0], "valid")
	}
}

// Classify is pure: repeated calls with the same input always agree.
func TestClassify_Deterministic(t *testing.T) {
	c := NewClassifier()
	inputs := []string{"hello", "fuck", "9876543210", ""}

	for _, input := range inputs {
		first := c.Classify(input)
		for i := 0; i < 10; i++ {
			if got := c.Classify(input); got != first {
				t.Fatalf("Classify(%q) returned %+v then %+v", input, first, got)
			}
		}
	}
}

// BenchmarkClassify measures classifier performance on the hot send path.
func BenchmarkClassify(b *testing.B) {
	c := NewClassifier()
	msg := "hey everyone, loving the stream today! what song is this?"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Classify(msg)
	}
}

// BenchmarkClassify_LongMessage measures performance on longer messages.
func BenchmarkClassify_LongMessage(b *testing.B) {
	c := NewClassifier()
	msg := strings.Repeat("this is a perfectly normal chat message with no bad content. ", 40)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Classify(msg)
	}
}
