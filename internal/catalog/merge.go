package catalog

import (
	"fmt"

	"github.com/MrSnakeDoc/divesite/internal/domain"
	"github.com/MrSnakeDoc/divesite/internal/events"
)

// MergeResult describes a completed merge.
type MergeResult struct {
	Target     domain.SiteID   `json:"target"`
	Removed    []domain.SiteID `json:"removed"`
	Reassigned []domain.DiveID `json:"reassigned"`
}

// Merge folds sources into target: every dive referencing a source is
// repointed at target and the sources are removed. The target's own
// fields are left untouched.
//
// Merge is all-or-nothing. Every id is validated before anything is
// written; if a source has vanished the returned *domain.MergeConflictError
// names it and the catalog is unchanged.
func (c *Catalog) Merge(target domain.SiteID, sources []domain.SiteID) (MergeResult, error) {
	if len(sources) == 0 {
		return MergeResult{}, fmt.Errorf("%w: no sources", domain.ErrInvalidMerge)
	}

	c.mu.Lock()
	if _, ok := c.sites[target]; !ok {
		c.mu.Unlock()
		return MergeResult{}, fmt.Errorf("merge target %d: %w", target, domain.ErrNotFound)
	}

	from := make(map[domain.SiteID]bool, len(sources))
	removed := make([]domain.SiteID, 0, len(sources))
	for _, id := range sources {
		if id == target {
			c.mu.Unlock()
			return MergeResult{}, fmt.Errorf("%w: site %d is both target and source", domain.ErrInvalidMerge, id)
		}
		if _, ok := c.sites[id]; !ok {
			c.mu.Unlock()
			return MergeResult{}, &domain.MergeConflictError{ID: id}
		}
		if from[id] {
			continue
		}
		from[id] = true
		removed = append(removed, id)
	}

	// Validation done: from here on nothing can fail
	reassigned := c.repointLocked(from, target)
	for _, id := range removed {
		c.removeLocked(id)
	}
	c.mu.Unlock()

	c.publish(events.Event{
		Kind:    events.SitesMerged,
		SiteIDs: append([]domain.SiteID{target}, removed...),
		Dives:   reassigned,
	})

	return MergeResult{Target: target, Removed: removed, Reassigned: reassigned}, nil
}
