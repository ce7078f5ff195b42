package catalog

import (
	"fmt"

	"github.com/MrSnakeDoc/divesite/internal/domain"
	"github.com/MrSnakeDoc/divesite/internal/events"
)

// PutDive adds or replaces a dive record. Its site reference must be
// NoSite or an id present in the catalog.
func (c *Catalog) PutDive(d domain.Dive) error {
	c.mu.Lock()
	if d.SiteID != domain.NoSite {
		if _, ok := c.sites[d.SiteID]; !ok {
			c.mu.Unlock()
			return fmt.Errorf("dive %d references site %d: %w", d.ID, d.SiteID, domain.ErrNotFound)
		}
	}
	if _, exists := c.dives[d.ID]; !exists {
		c.diveOrder = append(c.diveOrder, d.ID)
	}
	c.dives[d.ID] = &d
	c.mu.Unlock()

	c.publish(events.Event{Kind: events.DiveRecorded, SiteIDs: siteIDs(d.SiteID), Dives: []domain.DiveID{d.ID}})
	return nil
}

// Dive returns a copy of the dive with the given id.
func (c *Catalog) Dive(id domain.DiveID) (domain.Dive, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d, ok := c.dives[id]
	if !ok {
		return domain.Dive{}, fmt.Errorf("dive %d: %w", id, domain.ErrNotFound)
	}
	return *d, nil
}

// Dives returns copies of every dive in insertion order.
func (c *Catalog) Dives() []domain.Dive {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dives := make([]domain.Dive, 0, len(c.diveOrder))
	for _, id := range c.diveOrder {
		dives = append(dives, *c.dives[id])
	}
	return dives
}

// DivesAt returns the ids of dives referencing site id.
func (c *Catalog) DivesAt(id domain.SiteID) []domain.DiveID {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var ids []domain.DiveID
	for _, did := range c.diveOrder {
		if c.dives[did].SiteID == id {
			ids = append(ids, did)
		}
	}
	return ids
}

// AssignDive points a dive at a site. NoSite clears the reference.
func (c *Catalog) AssignDive(dive domain.DiveID, site domain.SiteID) error {
	c.mu.Lock()
	d, ok := c.dives[dive]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("dive %d: %w", dive, domain.ErrNotFound)
	}
	if site != domain.NoSite {
		if _, ok := c.sites[site]; !ok {
			c.mu.Unlock()
			return fmt.Errorf("site %d: %w", site, domain.ErrNotFound)
		}
	}
	if d.SiteID == site {
		c.mu.Unlock()
		return nil
	}
	d.SiteID = site
	c.mu.Unlock()

	c.publish(events.Event{Kind: events.DiveAssigned, SiteIDs: siteIDs(site), Dives: []domain.DiveID{dive}})
	return nil
}

// repointLocked moves every dive referencing one of from to site to and
// returns the affected dive ids. Caller holds c.mu.
func (c *Catalog) repointLocked(from map[domain.SiteID]bool, to domain.SiteID) []domain.DiveID {
	var moved []domain.DiveID
	for _, did := range c.diveOrder {
		d := c.dives[did]
		if from[d.SiteID] {
			d.SiteID = to
			moved = append(moved, did)
		}
	}
	return moved
}

func siteIDs(id domain.SiteID) []domain.SiteID {
	if id == domain.NoSite {
		return nil
	}
	return []domain.SiteID{id}
}
