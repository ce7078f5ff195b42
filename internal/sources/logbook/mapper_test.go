package logbook

import (
	"errors"
	"testing"
	"time"

	"github.com/MrSnakeDoc/divesite/internal/domain"
)

func testMapper() *Mapper {
	m := NewMapper()
	m.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return m
}

func TestMapperMap(t *testing.T) {
	file := File{
		Sites: []SiteEntry{
			{ID: 3, Name: " Blue Hole ", GPS: "N29.3655 E34.5411"},
			{ID: 8, Name: "Reef", Notes: "strong current"},
		},
		Dives: []DiveEntry{
			{ID: 1, Number: 42, Site: 3},
			{ID: 2, SiteName: "Reef"},
			{ID: 3},
		},
	}

	sites, dives, err := testMapper().Map(file)
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}

	if len(sites) != 2 {
		t.Fatalf("Map() returned %d sites, want 2", len(sites))
	}
	if sites[0].Name != "Blue Hole" {
		t.Errorf("Name = %q, want trimmed", sites[0].Name)
	}
	if sites[0].Latitude != 29365500 || sites[0].Longitude != 34541100 {
		t.Errorf("coordinates = %d,%d", sites[0].Latitude, sites[0].Longitude)
	}
	if sites[1].CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	want := []domain.SiteID{3, 8, domain.NoSite}
	for i, d := range dives {
		if d.SiteID != want[i] {
			t.Errorf("dive %d site = %d, want %d", d.ID, d.SiteID, want[i])
		}
	}
}

func TestMapperSkipsEmptySites(t *testing.T) {
	file := File{
		Sites: []SiteEntry{{ID: 1, Name: "  "}, {ID: 2, Name: "Kept"}},
		Dives: []DiveEntry{{ID: 1, Site: 1}},
	}

	sites, dives, err := testMapper().Map(file)
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	if len(sites) != 1 || sites[0].ID != 2 {
		t.Errorf("Map() sites = %+v, want only id 2", sites)
	}
	if dives[0].SiteID != domain.NoSite {
		t.Errorf("dive at skipped site should be unassigned, got %d", dives[0].SiteID)
	}
}

func TestMapperErrors(t *testing.T) {
	tests := []struct {
		name string
		file File
	}{
		{"missing site id", File{Sites: []SiteEntry{{Name: "x"}}}},
		{"duplicate site id", File{Sites: []SiteEntry{{ID: 1, Name: "a"}, {ID: 1, Name: "b"}}}},
		{"bad coordinates", File{Sites: []SiteEntry{{ID: 1, Name: "a", GPS: "north-ish"}}}},
		{"missing dive id", File{Dives: []DiveEntry{{Number: 1}}}},
		{"duplicate dive id", File{Dives: []DiveEntry{{ID: 1}, {ID: 1}}}},
		{"unknown site", File{Dives: []DiveEntry{{ID: 1, Site: 9}}}},
		{"unknown site name", File{Dives: []DiveEntry{{ID: 1, SiteName: "Nowhere"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := testMapper().Map(tt.file); err == nil {
				t.Error("Map() expected error, got nil")
			}
		})
	}
}

func TestMapperCoordinateErrorWrapsParseFailure(t *testing.T) {
	_, _, err := testMapper().Map(File{Sites: []SiteEntry{{ID: 1, GPS: "N91 E0"}}})
	if !errors.Is(err, domain.ErrParseFailure) {
		t.Errorf("Map() error = %v, want ErrParseFailure", err)
	}
}
