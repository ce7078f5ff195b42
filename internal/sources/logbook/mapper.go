package logbook

import (
	"fmt"
	"strings"
	"time"

	"github.com/MrSnakeDoc/divesite/internal/domain"
)

// Mapper converts a logbook file to domain sites and dives
type Mapper struct {
	parser domain.GPSParser
	now    func() time.Time
}

// NewMapper creates a new mapper instance
func NewMapper() *Mapper {
	return &Mapper{parser: domain.GPS{}, now: time.Now}
}

// Map validates the file and converts it. Sites that would be empty are
// skipped, and dives pointing at them lose their site reference.
func (m *Mapper) Map(file File) ([]domain.Site, []domain.Dive, error) {
	now := m.now()

	sites := make([]domain.Site, 0, len(file.Sites))
	byID := make(map[uint32]bool, len(file.Sites))
	byName := make(map[string]domain.SiteID, len(file.Sites))

	for i, e := range file.Sites {
		if e.ID == 0 {
			return nil, nil, fmt.Errorf("site #%d (%q): id is required", i+1, e.Name)
		}
		if byID[e.ID] {
			return nil, nil, fmt.Errorf("site %d: duplicate id", e.ID)
		}
		byID[e.ID] = true

		site := domain.Site{
			ID:          domain.SiteID(e.ID),
			Name:        strings.TrimSpace(e.Name),
			Description: strings.TrimSpace(e.Description),
			Notes:       strings.TrimSpace(e.Notes),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if strings.TrimSpace(e.GPS) != "" {
			lat, lon, err := m.parser.Parse(e.GPS)
			if err != nil {
				return nil, nil, fmt.Errorf("site %d (%q): %w", e.ID, e.Name, err)
			}
			site.Latitude, site.Longitude = lat, lon
		}

		if site.IsEmpty() {
			continue
		}
		sites = append(sites, site)
		if _, seen := byName[site.Name]; !seen && site.Name != "" {
			byName[site.Name] = site.ID
		}
	}

	kept := make(map[domain.SiteID]bool, len(sites))
	for _, s := range sites {
		kept[s.ID] = true
	}

	dives := make([]domain.Dive, 0, len(file.Dives))
	seenDive := make(map[uint32]bool, len(file.Dives))
	for i, e := range file.Dives {
		if e.ID == 0 {
			return nil, nil, fmt.Errorf("dive #%d: id is required", i+1)
		}
		if seenDive[e.ID] {
			return nil, nil, fmt.Errorf("dive %d: duplicate id", e.ID)
		}
		seenDive[e.ID] = true

		site := domain.SiteID(e.Site)
		if site == domain.NoSite && e.SiteName != "" {
			id, ok := byName[strings.TrimSpace(e.SiteName)]
			if !ok {
				return nil, nil, fmt.Errorf("dive %d: unknown site name %q", e.ID, e.SiteName)
			}
			site = id
		}
		if site != domain.NoSite && !kept[site] {
			if !byID[uint32(site)] {
				return nil, nil, fmt.Errorf("dive %d: unknown site %d", e.ID, site)
			}
			site = domain.NoSite
		}

		dives = append(dives, domain.Dive{
			ID:     domain.DiveID(e.ID),
			Number: e.Number,
			When:   e.Date,
			SiteID: site,
		})
	}

	return sites, dives, nil
}
