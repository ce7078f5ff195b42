package domain

import (
	"testing"
)

func testSites() []Site {
	return []Site{
		{ID: 1, Name: "Reef Annex"},
		{ID: 2, Name: "Reef"},
		{ID: 3, Name: "Blue Hole"},
		{ID: 4, Name: "Blue Corner"},
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantKinds []CandidateKind
		wantIDs   []SiteID // NoSite for create candidates
	}{
		{
			name:      "exact match outranks earlier prefix match",
			input:     "reef",
			wantKinds: []CandidateKind{CandidateExact, CandidateCreate},
			wantIDs:   []SiteID{2, NoSite},
		},
		{
			name:      "exact match ignores case",
			input:     "BLUE HOLE",
			wantKinds: []CandidateKind{CandidateExact, CandidateCreate},
			wantIDs:   []SiteID{3, NoSite},
		},
		{
			name:      "prefix match is secondary",
			input:     "blue",
			wantKinds: []CandidateKind{CandidateCreate, CandidatePrefix},
			wantIDs:   []SiteID{NoSite, 3},
		},
		{
			name:      "prefix tie goes to catalog order",
			input:     "Re",
			wantKinds: []CandidateKind{CandidateCreate, CandidatePrefix},
			wantIDs:   []SiteID{NoSite, 1},
		},
		{
			name:      "no match only offers create",
			input:     "Shark Point",
			wantKinds: []CandidateKind{CandidateCreate},
			wantIDs:   []SiteID{NoSite},
		},
		{
			name:      "blank input",
			input:     "   ",
			wantKinds: nil,
			wantIDs:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.input, testSites())

			if len(got) != len(tt.wantKinds) {
				t.Fatalf("Resolve(%q) returned %d candidates, want %d", tt.input, len(got), len(tt.wantKinds))
			}

			for i, c := range got {
				if c.Kind != tt.wantKinds[i] {
					t.Errorf("candidate %d kind = %v, want %v", i, c.Kind, tt.wantKinds[i])
				}
				var id SiteID
				if c.Site != nil {
					id = c.Site.ID
				}
				if id != tt.wantIDs[i] {
					t.Errorf("candidate %d site = %d, want %d", i, id, tt.wantIDs[i])
				}
				if c.Kind == CandidateCreate && c.Name != tt.input {
					t.Errorf("create candidate name = %q, want %q", c.Name, tt.input)
				}
			}
		})
	}
}

func TestResolveDoesNotAliasInput(t *testing.T) {
	sites := testSites()
	got := Resolve("Reef", sites)
	got[0].Site.Name = "changed"

	if sites[1].Name != "Reef" {
		t.Errorf("Resolve() leaked a pointer into the input slice")
	}
}

func TestMatchesNamePrefix(t *testing.T) {
	tests := []struct {
		name, text string
		expected   bool
	}{
		{"Blue Hole", "blue", true},
		{"Blue Hole", "BLUE H", true},
		{"Blue Hole", "hole", false},
		{"Blue Hole", "", true},
		{"", "a", false},
	}

	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.text, func(t *testing.T) {
			if got := MatchesNamePrefix(tt.name, tt.text); got != tt.expected {
				t.Errorf("MatchesNamePrefix(%q, %q) = %v, want %v", tt.name, tt.text, got, tt.expected)
			}
		})
	}
}
