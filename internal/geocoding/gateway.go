package geocoding

import (
	"context"

	"github.com/MrSnakeDoc/divesite/internal/domain"
)

// Gateway resolves a position to a place name.
// Implementations may block; callers run them off the editing thread.
type Gateway interface {
	ReverseGeocode(ctx context.Context, lat, lon domain.MicroDegrees) (domain.Place, error)
}

// GatewayFunc adapts a plain function to Gateway.
type GatewayFunc func(ctx context.Context, lat, lon domain.MicroDegrees) (domain.Place, error)

func (f GatewayFunc) ReverseGeocode(ctx context.Context, lat, lon domain.MicroDegrees) (domain.Place, error) {
	return f(ctx, lat, lon)
}
