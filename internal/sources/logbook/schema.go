package logbook

import "time"

// File is the top-level structure of a logbook seed file.
//
//	sites:
//	  - id: 1
//	    name: Blue Hole
//	    gps: "N29.365500 E34.541100"
//	dives:
//	  - id: 1
//	    number: 42
//	    date: 2023-05-01T10:00:00Z
//	    site: 1
type File struct {
	Sites []SiteEntry `yaml:"sites"`
	Dives []DiveEntry `yaml:"dives"`
}

// SiteEntry is one site as written by hand. GPS accepts any text the
// coordinate parser understands.
type SiteEntry struct {
	ID          uint32 `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Notes       string `yaml:"notes,omitempty"`
	GPS         string `yaml:"gps,omitempty"`
}

// DiveEntry references its site by id or, failing that, by exact name.
type DiveEntry struct {
	ID       uint32    `yaml:"id"`
	Number   int       `yaml:"number,omitempty"`
	Date     time.Time `yaml:"date,omitempty"`
	Site     uint32    `yaml:"site,omitempty"`
	SiteName string    `yaml:"site_name,omitempty"`
}
