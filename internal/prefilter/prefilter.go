// Package prefilter rejects candidates before any network or model cost is paid.
package prefilter

import (
	"strings"
	"unicode/utf8"

	"IntelDigest/internal/domain"
)

// DefaultMinLength is the minimum combined title and content length in characters.
const DefaultMinLength = 200

// Options carries the per-pipeline thresholds.
type Options struct {
	Keywords      []string
	MinEngagement *float64
	MinLength     int
}

// Passes reports whether item survives the length, keyword and engagement checks,
// evaluated in that order.
func Passes(item domain.CandidateItem, opts Options) bool {
	minLength := opts.MinLength
	if minLength <= 0 {
		minLength = DefaultMinLength
	}

	text := item.Title + " " + item.Content
	if utf8.RuneCountInString(text) < minLength {
		return false
	}

	if len(opts.Keywords) > 0 && !matchesKeyword(text, opts.Keywords) {
		return false
	}

	if opts.MinEngagement != nil {
		if item.EngagementScore == nil || *item.EngagementScore < *opts.MinEngagement {
			return false
		}
	}

	return true
}

// Filter keeps the items that pass, preserving order.
func Filter(items []domain.CandidateItem, opts Options) []domain.CandidateItem {
	kept := make([]domain.CandidateItem, 0, len(items))
	for _, item := range items {
		if Passes(item, opts) {
			kept = append(kept, item)
		}
	}
	return kept
}

func matchesKeyword(text string, keywords []string) bool {
	lowered := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lowered, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
