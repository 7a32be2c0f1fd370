// Package moderation screens live-stream chat messages for prohibited
// content and tracks per-viewer warning/mute state. The classifier decides
// whether a single message violates policy; the state machine in
// statemachine.go turns a sequence of those decisions into allow/warn/mute
// actions for the chat send path.
package moderation

import (
	"regexp"
	"strings"
)

// Reason identifies why a message violated policy.
type Reason string

const (
	// ReasonProfanity means the message matched a denylisted term.
	ReasonProfanity Reason = "profanity"

	// ReasonContactInfo means the message contained a phone number or
	// email address (off-platform contact sharing is prohibited).
	ReasonContactInfo Reason = "contact_info"
)

// Result is the classifier's verdict for a single message.
type Result struct {
	Violates bool
	Reason   Reason // empty when Violates is false
}

// Compiled contact-info patterns. Compiled once at package init and reused
// for every call, so they are safe for concurrent use.
var (
	// phonePattern matches any run of 10 consecutive digits. A bare
	// 10-digit number (even an order ID pasted into chat) is treated as
	// a phone number.
	phonePattern = regexp.MustCompile(`\d{10}`)

	// emailPattern matches standard email addresses.
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
)

// englishTerms is the built-in English profanity denylist.
var englishTerms = []string{
	"fuck",
	"shit",
	"bitch",
	"asshole",
	"bastard",
	"cunt",
	"dickhead",
	"motherfucker",
	"slut",
	"whore",
	"nigger",
	"faggot",
	"retard",
}

// hindiTerms is the built-in romanized Hindi profanity denylist.
var hindiTerms = []string{
	"chutiya",
	"madarchod",
	"behenchod",
	"bhosdike",
	"bhosdi",
	"gandu",
	"gaandu",
	"harami",
	"kamina",
	"kutta",
	"kutti",
	"randi",
	"saala",
}

// Classifier checks message text against static denylists and contact-info
// patterns. It carries no mutable state after construction and is safe for
// concurrent use by every connection worker.
type Classifier struct {
	terms []string // lowercase denylisted substrings
}

// NewClassifier creates a Classifier with the built-in English and Hindi
// denylists.
func NewClassifier() *Classifier {
	terms := make([]string, 0, len(englishTerms)+len(hindiTerms))
	terms = append(terms, englishTerms...)
	terms = append(terms, hindiTerms...)
	return NewClassifierWithTerms(terms)
}

// NewClassifierWithTerms creates a Classifier with a custom denylist.
// Terms are lowercased; empty and whitespace-only entries are dropped.
func NewClassifierWithTerms(terms []string) *Classifier {
	cleaned := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		cleaned = append(cleaned, t)
	}
	return &Classifier{terms: cleaned}
}

// Classify reports whether text violates chat policy. Matching is
// case-insensitive substring containment for profanity, then regex matching
// for phone numbers and email addresses. Profanity is checked first; the
// first match wins. The function is pure: same input, same output.
func (c *Classifier) Classify(text string) Result {
	if text == "" {
		return Result{}
	}

	lower := strings.ToLower(text)
	for _, term := range c.terms {
		if strings.Contains(lower, term) {
			return Result{Violates: true, Reason: ReasonProfanity}
		}
	}

	if phonePattern.MatchString(text) || emailPattern.MatchString(text) {
		return Result{Violates: true, Reason: ReasonContactInfo}
	}

	return Result{}
}
