package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/divesite/internal/domain"
	"github.com/redis/go-redis/v9"
)

// DefaultPlaceTTL is how long a reverse-geocode answer is reused
const DefaultPlaceTTL = 30 * 24 * time.Hour

// GetPlace returns a cached reverse-geocode answer. ok is false on a miss.
func (s *Store) GetPlace(ctx context.Context, lat, lon domain.MicroDegrees) (domain.Place, bool, error) {
	data, err := s.client.Get(ctx, PlaceKey(lat, lon)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Place{}, false, nil // Cache miss
		}
		return domain.Place{}, false, fmt.Errorf("failed to get cached place: %w", err)
	}

	var place domain.Place
	if err := json.Unmarshal(data, &place); err != nil {
		return domain.Place{}, false, fmt.Errorf("failed to unmarshal cached place: %w", err)
	}
	return place, true, nil
}

// PutPlace caches a reverse-geocode answer
func (s *Store) PutPlace(ctx context.Context, lat, lon domain.MicroDegrees, place domain.Place) error {
	data, err := json.Marshal(place)
	if err != nil {
		return fmt.Errorf("failed to marshal place: %w", err)
	}
	if err := s.client.Set(ctx, PlaceKey(lat, lon), data, DefaultPlaceTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache place: %w", err)
	}
	return nil
}
