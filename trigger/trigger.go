// Package trigger decides whether an inbound message is addressed to the agent.
package trigger

import (
	"errors"
	"strings"

	"golang.org/x/text/cases"
)

// ErrEmptyPhrase is returned by New when the configured phrase is blank.
var ErrEmptyPhrase = errors.New("trigger phrase must not be empty")

// Filter is a case-insensitive substring predicate over message text.
// It is stateless and safe for concurrent use.
type Filter struct {
	phrase string // case-folded, surrounding spaces kept
}

// New returns a Filter matching phrase anywhere in a message, ignoring case.
// Leading and trailing spaces in phrase are significant.
func New(phrase string) (*Filter, error) {
	if strings.TrimSpace(phrase) == "" {
		return nil, ErrEmptyPhrase
	}
	return &Filter{phrase: fold(phrase)}, nil
}

// ShouldProcess reports whether text contains the trigger phrase.
// Blank text never qualifies.
func (f *Filter) ShouldProcess(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	return strings.Contains(fold(text), f.phrase)
}

// Phrase returns the normalized phrase.
func (f *Filter) Phrase() string { return f.phrase }

var folder = cases.Fold()

func fold(s string) string { return folder.String(s) }
