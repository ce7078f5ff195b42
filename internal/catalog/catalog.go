package catalog

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/MrSnakeDoc/divesite/internal/domain"
	"github.com/MrSnakeDoc/divesite/internal/events"
)

// Catalog is the process-wide collection of dive sites and of the dive
// records that reference them.
//
// Sites are kept in insertion order so listings and prefix lookups are
// deterministic. Mutations are expected from a single logical thread
// (see editor.Editor); the lock only protects concurrent readers.
// Notifications are published after the lock is released, in mutation order.
type Catalog struct {
	mu         sync.RWMutex
	sites      map[domain.SiteID]*domain.Site
	order      []domain.SiteID
	dives      map[domain.DiveID]*domain.Dive
	diveOrder  []domain.DiveID
	lastID     domain.SiteID // highest id ever allocated
	maxID      domain.SiteID
	sink       events.Sink
	now        func() time.Time
	lastReload time.Time
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithSink publishes change notifications to s.
func WithSink(s events.Sink) Option {
	return func(c *Catalog) { c.sink = s }
}

// WithClock overrides time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) { c.now = now }
}

// WithMaxID caps the id space. Used to exercise exhaustion.
func WithMaxID(max domain.SiteID) Option {
	return func(c *Catalog) { c.maxID = max }
}

// New creates an empty catalog.
func New(opts ...Option) *Catalog {
	c := &Catalog{
		sites: make(map[domain.SiteID]*domain.Site),
		dives: make(map[domain.DiveID]*domain.Dive),
		maxID: math.MaxUint32,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsEmpty reports whether s must not persist in the catalog.
func IsEmpty(s domain.Site) bool {
	return s.IsEmpty()
}

// ─────────────────────────────────────────────────────────────────
// Reads
// ─────────────────────────────────────────────────────────────────

// Lookup returns a detached copy of the site with the given id.
func (c *Catalog) Lookup(id domain.SiteID) (domain.Site, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.sites[id]
	if !ok {
		return domain.Site{}, fmt.Errorf("site %d: %w", id, domain.ErrNotFound)
	}
	return *s, nil
}

// Contains reports whether id is in the catalog.
func (c *Catalog) Contains(id domain.SiteID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.sites[id]
	return ok
}

// FindByNamePrefix returns the first site, in catalog order, whose name
// starts with text ignoring case.
func (c *Catalog) FindByNamePrefix(text string) (domain.Site, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, id := range c.order {
		s := c.sites[id]
		if domain.MatchesNamePrefix(s.Name, text) {
			return *s, nil
		}
	}
	return domain.Site{}, fmt.Errorf("site named %q: %w", text, domain.ErrNotFound)
}

// All returns copies of every site in catalog order.
func (c *Catalog) All() []domain.Site {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sites := make([]domain.Site, 0, len(c.order))
	for _, id := range c.order {
		sites = append(sites, *c.sites[id])
	}
	return sites
}

// Count returns the number of sites.
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.order)
}

// WithSameGPS returns the other sites sharing id's exact GPS fix, in catalog order.
// A site without GPS has no siblings.
func (c *Catalog) WithSameGPS(id domain.SiteID) ([]domain.Site, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ref, ok := c.sites[id]
	if !ok {
		return nil, fmt.Errorf("site %d: %w", id, domain.ErrNotFound)
	}

	var siblings []domain.Site
	for _, other := range c.order {
		if other == id {
			continue
		}
		if s := c.sites[other]; ref.SameGPS(*s) {
			siblings = append(siblings, *s)
		}
	}
	return siblings, nil
}

// LastID returns the highest id ever allocated or loaded.
func (c *Catalog) LastID() domain.SiteID {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.lastID
}

// LastReload returns when the catalog was last bulk loaded.
func (c *Catalog) LastReload() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.lastReload
}

// ─────────────────────────────────────────────────────────────────
// Mutations
// ─────────────────────────────────────────────────────────────────

// Insert adds s under a freshly allocated id and returns that id.
// The id in s is ignored. Ids are never reused, even after removal.
func (c *Catalog) Insert(s domain.Site) (domain.SiteID, error) {
	c.mu.Lock()
	if c.lastID >= c.maxID {
		c.mu.Unlock()
		return domain.NoSite, domain.ErrAllocationExhausted
	}
	c.lastID++
	id := c.lastID

	now := c.now()
	s.ID = id
	s.CreatedAt = now
	s.UpdatedAt = now
	c.sites[id] = &s
	c.order = append(c.order, id)
	c.mu.Unlock()

	c.publish(events.Event{Kind: events.SiteCreated, SiteIDs: []domain.SiteID{id}})
	return id, nil
}

// Update overwrites the editable fields of an existing site with those of s.
func (c *Catalog) Update(s domain.Site) error {
	c.mu.Lock()
	cur, ok := c.sites[s.ID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("site %d: %w", s.ID, domain.ErrNotFound)
	}
	cur.Name = s.Name
	cur.Description = s.Description
	cur.Notes = s.Notes
	cur.Latitude = s.Latitude
	cur.Longitude = s.Longitude
	cur.UpdatedAt = c.now()
	c.mu.Unlock()

	c.publish(events.Event{Kind: events.SiteUpdated, SiteIDs: []domain.SiteID{s.ID}})
	return nil
}

// Remove deletes a site. Dives referencing it lose their site reference.
// It reports whether anything was removed; removing an absent id is a no-op.
func (c *Catalog) Remove(id domain.SiteID) bool {
	c.mu.Lock()
	if _, ok := c.sites[id]; !ok {
		c.mu.Unlock()
		return false
	}
	c.removeLocked(id)
	orphaned := c.repointLocked(map[domain.SiteID]bool{id: true}, domain.NoSite)
	c.mu.Unlock()

	c.publish(events.Event{Kind: events.SiteRemoved, SiteIDs: []domain.SiteID{id}, Dives: orphaned})
	return true
}

// Load replaces the whole catalog with previously persisted state.
// Ids are kept as-is and allocation continues after the highest one seen.
// No notifications are published.
func (c *Catalog) Load(sites []domain.Site, dives []domain.Dive) error {
	newSites := make(map[domain.SiteID]*domain.Site, len(sites))
	newOrder := make([]domain.SiteID, 0, len(sites))
	highest := domain.NoSite
	for i := range sites {
		s := sites[i]
		if s.ID == domain.NoSite {
			return fmt.Errorf("site %q has no id", s.Name)
		}
		if _, dup := newSites[s.ID]; dup {
			return fmt.Errorf("duplicate site id %d", s.ID)
		}
		newSites[s.ID] = &s
		newOrder = append(newOrder, s.ID)
		if s.ID > highest {
			highest = s.ID
		}
	}

	newDives := make(map[domain.DiveID]*domain.Dive, len(dives))
	newDiveOrder := make([]domain.DiveID, 0, len(dives))
	for i := range dives {
		d := dives[i]
		if _, dup := newDives[d.ID]; dup {
			return fmt.Errorf("duplicate dive id %d", d.ID)
		}
		if _, ok := newSites[d.SiteID]; !ok {
			// Dangling reference from an older store: treat as unassigned
			d.SiteID = domain.NoSite
		}
		newDives[d.ID] = &d
		newDiveOrder = append(newDiveOrder, d.ID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.sites = newSites
	c.order = newOrder
	c.dives = newDives
	c.diveOrder = newDiveOrder
	if highest > c.lastID {
		c.lastID = highest
	}
	c.lastReload = c.now()
	return nil
}

// ReserveThrough makes allocation continue after id, so ids of sites
// removed before a restart are not handed out again.
func (c *Catalog) ReserveThrough(id domain.SiteID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id > c.lastID {
		c.lastID = id
	}
}

// removeLocked drops id from the site map and order. Caller holds c.mu.
func (c *Catalog) removeLocked(id domain.SiteID) {
	delete(c.sites, id)
	for i, o := range c.order {
		if o == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *Catalog) publish(e events.Event) {
	if c.sink != nil {
		c.sink.Publish(e)
	}
}
