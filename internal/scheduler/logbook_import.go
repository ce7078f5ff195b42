package scheduler

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/divesite/internal/catalog"
	"github.com/MrSnakeDoc/divesite/internal/logger"
	"github.com/MrSnakeDoc/divesite/internal/sources/logbook"
	"github.com/MrSnakeDoc/divesite/internal/store"
)

// LogbookImporter seeds an empty catalog from a logbook file
type LogbookImporter struct {
	loader  *logbook.Loader
	mapper  *logbook.Mapper
	store   store.Store
	catalog *catalog.Catalog
	logger  logger.Logger
}

// NewLogbookImporter creates a new importer. st may be nil.
func NewLogbookImporter(
	logbookFile string,
	st store.Store,
	cat *catalog.Catalog,
	log logger.Logger,
) *LogbookImporter {
	return &LogbookImporter{
		loader:  logbook.NewLoader(logbookFile),
		mapper:  logbook.NewMapper(),
		store:   st,
		catalog: cat,
		logger:  log,
	}
}

// Import loads the logbook into the catalog. A catalog that already holds
// sites is left alone, so a restart never overwrites edits with the seed.
// It reports whether anything was imported.
func (li *LogbookImporter) Import(ctx context.Context) (bool, error) {
	if n := li.catalog.Count(); n > 0 {
		li.logger.Info("catalog not empty, skipping logbook import",
			logger.Int("sites", n))
		return false, nil
	}

	li.logger.Info("importing logbook")

	file, err := li.loader.Load()
	if err != nil {
		return false, fmt.Errorf("failed to load logbook: %w", err)
	}

	sites, dives, err := li.mapper.Map(file)
	if err != nil {
		return false, fmt.Errorf("failed to map logbook: %w", err)
	}

	if err := li.catalog.Load(sites, dives); err != nil {
		return false, fmt.Errorf("failed to load catalog: %w", err)
	}

	li.logger.Info("imported logbook",
		logger.Int("sites", len(sites)),
		logger.Int("dives", len(dives)))

	// Persist the snapshot (best effort)
	if li.store != nil {
		if err := li.store.SaveAll(ctx, li.catalog.All(), li.catalog.Dives()); err != nil {
			li.logger.Warn("failed to save imported logbook to store",
				logger.Error(err))
			// Don't fail - the catalog is the source of truth while running
		} else {
			li.logger.Info("imported logbook saved to store")
		}
	}

	return true, nil
}
