package domain

import (
	"strings"
)

// CandidateKind ranks what a picker entry would do when selected.
type CandidateKind int

const (
	// CandidateExact is an existing site whose name equals the typed text (case-insensitive).
	CandidateExact CandidateKind = iota
	// CandidateCreate would create a new site named after the typed text.
	CandidateCreate
	// CandidatePrefix is an existing site whose name starts with the typed text ("did you mean").
	CandidatePrefix
)

func (k CandidateKind) String() string {
	switch k {
	case CandidateExact:
		return "exact"
	case CandidateCreate:
		return "create"
	case CandidatePrefix:
		return "prefix"
	default:
		return "unknown"
	}
}

// Candidate is one advisory entry offered for a typed site name.
type Candidate struct {
	Kind CandidateKind
	// Site is the matched site; nil for CandidateCreate.
	Site *Site
	// Name is what the picker shows: the site name, or the proposed name to create.
	Name string
}

// Resolve maps free text typed by a user to the candidates a picker should offer.
// It never selects anything and never mutates sites.
//
//   - exact match:   [exact, create]
//   - prefix match:  [create, prefix]
//   - no match:      [create]
//   - blank text:    nil
//
// Exact always outranks prefix. Among several matches of the same rank the
// first one in catalog order wins.
func Resolve(text string, sites []Site) []Candidate {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	exact, prefix := matchName(text, sites)

	create := Candidate{Kind: CandidateCreate, Name: text}
	switch {
	case exact != nil:
		return []Candidate{{Kind: CandidateExact, Site: exact, Name: exact.Name}, create}
	case prefix != nil:
		return []Candidate{create, {Kind: CandidatePrefix, Site: prefix, Name: prefix.Name}}
	default:
		return []Candidate{create}
	}
}

// MatchesNamePrefix reports whether name starts with text, ignoring case.
func MatchesNamePrefix(name, text string) bool {
	return strings.HasPrefix(foldName(name), foldName(text))
}

// matchName returns the first exact and the first prefix match in order.
// The prefix result is nil whenever an exact match exists.
func matchName(text string, sites []Site) (exact, prefix *Site) {
	folded := foldName(text)
	for i := range sites {
		name := foldName(sites[i].Name)
		if name == folded {
			s := sites[i]
			return &s, nil
		}
		if prefix == nil && strings.HasPrefix(name, folded) {
			s := sites[i]
			prefix = &s
		}
	}
	return nil, prefix
}

// foldName normalizes a site name for case-insensitive comparison
func foldName(s string) string {
	return strings.ToLower(s)
}
