package redis

import (
	"testing"

	"github.com/MrSnakeDoc/divesite/internal/domain"
)

func TestKeys(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"site", SiteKey(42), "divesite:site:42"},
		{"dive", DiveKey(7), "divesite:dive:7"},
		{"place", PlaceKey(12050000, -68283000), "divesite:place:12050000:-68283000"},
		{"max site", SiteKey(domain.SiteID(4294967295)), "divesite:site:4294967295"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("key = %q, want %q", tt.got, tt.want)
			}
		})
	}
}
