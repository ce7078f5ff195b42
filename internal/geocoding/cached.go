package geocoding

import (
	"context"

	"github.com/MrSnakeDoc/divesite/internal/domain"
	"github.com/MrSnakeDoc/divesite/internal/logger"
)

// PlaceCache stores answers by exact position. Both stores implement it.
type PlaceCache interface {
	GetPlace(ctx context.Context, lat, lon domain.MicroDegrees) (domain.Place, bool, error)
	PutPlace(ctx context.Context, lat, lon domain.MicroDegrees, p domain.Place) error
}

// Cached answers from cache when it can and remembers successful lookups.
// Cache errors are logged and otherwise ignored.
type Cached struct {
	next  Gateway
	cache PlaceCache
	log   logger.Logger
}

func NewCached(next Gateway, cache PlaceCache, log logger.Logger) *Cached {
	return &Cached{next: next, cache: cache, log: log}
}

func (c *Cached) ReverseGeocode(ctx context.Context, lat, lon domain.MicroDegrees) (domain.Place, error) {
	place, ok, err := c.cache.GetPlace(ctx, lat, lon)
	if err != nil {
		c.log.Warn("place cache read failed", logger.Error(err))
	} else if ok {
		return place, nil
	}

	place, err = c.next.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		return domain.Place{}, err
	}

	if err := c.cache.PutPlace(ctx, lat, lon, place); err != nil {
		c.log.Warn("place cache write failed", logger.Error(err))
	}
	return place, nil
}
