package geocoding

import (
	"context"
	"errors"
	"testing"

	"github.com/MrSnakeDoc/divesite/internal/domain"
	"github.com/MrSnakeDoc/divesite/internal/logger"
)

type mapCache struct {
	places  map[[2]domain.MicroDegrees]domain.Place
	readErr error
}

func (m *mapCache) GetPlace(_ context.Context, lat, lon domain.MicroDegrees) (domain.Place, bool, error) {
	if m.readErr != nil {
		return domain.Place{}, false, m.readErr
	}
	p, ok := m.places[[2]domain.MicroDegrees{lat, lon}]
	return p, ok, nil
}

func (m *mapCache) PutPlace(_ context.Context, lat, lon domain.MicroDegrees, p domain.Place) error {
	m.places[[2]domain.MicroDegrees{lat, lon}] = p
	return nil
}

func TestCached(t *testing.T) {
	calls := 0
	next := GatewayFunc(func(ctx context.Context, lat, lon domain.MicroDegrees) (domain.Place, error) {
		calls++
		if lat == 0 {
			return domain.Place{}, ErrNoResult
		}
		return domain.Place{Name: "Reef"}, nil
	})
	cache := &mapCache{places: map[[2]domain.MicroDegrees]domain.Place{}}
	c := NewCached(next, cache, logger.New("error", false))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p, err := c.ReverseGeocode(ctx, 1, 2)
		if err != nil || p.Name != "Reef" {
			t.Fatalf("ReverseGeocode() = %+v, %v", p, err)
		}
	}
	if calls != 1 {
		t.Errorf("upstream called %d times, want 1", calls)
	}

	// Failures are not cached
	for i := 0; i < 2; i++ {
		if _, err := c.ReverseGeocode(ctx, 0, 5); !errors.Is(err, ErrNoResult) {
			t.Errorf("error = %v, want ErrNoResult", err)
		}
	}
	if calls != 3 {
		t.Errorf("upstream called %d times, want 3", calls)
	}

	// A broken cache falls through to upstream
	cache.readErr = errors.New("down")
	if _, err := c.ReverseGeocode(ctx, 1, 2); err != nil {
		t.Errorf("ReverseGeocode() with broken cache error = %v", err)
	}
	if calls != 4 {
		t.Errorf("upstream called %d times, want 4", calls)
	}
}
