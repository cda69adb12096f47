// Package prefilter rejects listing stubs whose titles unambiguously fail the
// entry-level policy before any network or API cost is spent on them. It is
// pure string matching and must never perform I/O.
package prefilter

import (
	"fmt"
	"strings"
)

type Filter struct {
	rejectTerms []string
}

func New(rejectTerms []string) *Filter {
	terms := make([]string, 0, len(rejectTerms))
	for _, t := range rejectTerms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			terms = append(terms, t)
		}
	}
	return &Filter{rejectTerms: terms}
}

// Evaluate checks a title against the disqualifying terms. Matching is
// case-insensitive and word-bounded so "Intern II" rejects but "Wiki Lead
// Generation" style substrings do not. Ambiguous titles accept; the
// classifier makes the final call.
func (f *Filter) Evaluate(title string) (rejected bool, reason string) {
	padded := " " + strings.ToLower(title) + " "
	for _, term := range f.rejectTerms {
		if strings.Contains(padded, " "+term+" ") {
			return true, fmt.Sprintf("title contains disqualifying term: %q", term)
		}
	}
	return false, ""
}
