package scheduler

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/divesite/internal/catalog"
	"github.com/MrSnakeDoc/divesite/internal/logger"
	"github.com/MrSnakeDoc/divesite/internal/store"
)

// StoreSyncer loads the persisted catalog into memory on startup
type StoreSyncer struct {
	store   store.Store
	catalog *catalog.Catalog
	logger  logger.Logger
}

// NewStoreSyncer creates a new store syncer
func NewStoreSyncer(
	st store.Store,
	cat *catalog.Catalog,
	log logger.Logger,
) *StoreSyncer {
	return &StoreSyncer{
		store:   st,
		catalog: cat,
		logger:  log,
	}
}

// Sync replaces the catalog with the stored sites and dives and makes
// id allocation continue after the highest id ever handed out.
func (ss *StoreSyncer) Sync(ctx context.Context) error {
	ss.logger.Info("syncing catalog from store")

	sites, err := ss.store.LoadSites(ctx)
	if err != nil {
		return fmt.Errorf("load sites: %w", err)
	}
	dives, err := ss.store.LoadDives(ctx)
	if err != nil {
		return fmt.Errorf("load dives: %w", err)
	}
	lastID, err := ss.store.LoadLastID(ctx)
	if err != nil {
		return fmt.Errorf("load last id: %w", err)
	}

	if len(sites) == 0 && len(dives) == 0 {
		ss.logger.Info("no sites found in store")
		ss.catalog.ReserveThrough(lastID)
		return nil
	}

	if err := ss.catalog.Load(sites, dives); err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	ss.catalog.ReserveThrough(lastID)

	ss.logger.Info("synced catalog from store",
		logger.Int("sites", len(sites)),
		logger.Int("dives", len(dives)),
		logger.Uint32("last_id", uint32(ss.catalog.LastID())))

	return nil
}
