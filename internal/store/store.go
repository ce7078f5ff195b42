package store

import (
	"context"

	"github.com/MrSnakeDoc/divesite/internal/domain"
)

// Store persists the catalog between restarts.
//
// The in-memory catalog stays the source of truth while the process runs;
// a Store only mirrors it and is read back once at startup.
type Store interface {
	SaveSite(ctx context.Context, s domain.Site) error
	DeleteSite(ctx context.Context, id domain.SiteID) error
	LoadSites(ctx context.Context) ([]domain.Site, error)

	SaveDive(ctx context.Context, d domain.Dive) error
	LoadDives(ctx context.Context) ([]domain.Dive, error)

	// SaveLastID records the highest site id ever allocated.
	SaveLastID(ctx context.Context, id domain.SiteID) error
	LoadLastID(ctx context.Context) (domain.SiteID, error)

	// SaveAll writes a whole snapshot in one batch.
	SaveAll(ctx context.Context, sites []domain.Site, dives []domain.Dive) error

	Ping(ctx context.Context) error
	Close() error
}

// Batch is everything one catalog change writes: records to save, sites
// to delete and, when non-zero, the new last allocated id.
type Batch struct {
	Sites   []domain.Site
	Dives   []domain.Dive
	Deleted []domain.SiteID
	LastID  domain.SiteID
}

// Empty reports whether b writes nothing.
func (b Batch) Empty() bool {
	return len(b.Sites) == 0 && len(b.Dives) == 0 && len(b.Deleted) == 0 && b.LastID == domain.NoSite
}

// Batcher is implemented by stores that can apply a Batch atomically.
type Batcher interface {
	WriteBatch(ctx context.Context, b Batch) error
}
