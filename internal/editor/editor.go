package editor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/divesite/internal/catalog"
	"github.com/MrSnakeDoc/divesite/internal/domain"
	"github.com/MrSnakeDoc/divesite/internal/events"
	"github.com/MrSnakeDoc/divesite/internal/geocoding"
	"github.com/MrSnakeDoc/divesite/internal/logger"
	"github.com/MrSnakeDoc/divesite/internal/metrics"
	"github.com/MrSnakeDoc/divesite/internal/session"
)

// ErrNoGeocoder is returned by Geocode when no gateway is configured.
var ErrNoGeocoder = errors.New("no geocoder configured")

// Editor is the single logical thread every catalog mutation runs on.
//
// Sessions, commits, merges, dive assignments and geocode deliveries all
// take the same lock, so change notifications form one total order that
// matches the order calls were issued in. Reads go straight to the catalog.
type Editor struct {
	mu       sync.Mutex
	catalog  *catalog.Catalog
	sink     events.Sink
	gateway  geocoding.Gateway
	log      logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	newID    func() string
	sessions map[string]*entry
	editing  map[domain.SiteID]string // site -> session holding the edit lock

	geocodeTimeout time.Duration
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
}

type entry struct {
	s        *session.Session
	lastUsed time.Time
}

// Option configures an Editor.
type Option func(*Editor)

// WithGateway sets the reverse geocoder. Without one, Geocode fails.
func WithGateway(g geocoding.Gateway) Option {
	return func(e *Editor) { e.gateway = g }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Editor) { e.metrics = m }
}

func WithLogger(l logger.Logger) Option {
	return func(e *Editor) { e.log = l }
}

// WithGeocodeTimeout bounds a single lookup. Zero means no bound beyond
// the gateway's own.
func WithGeocodeTimeout(d time.Duration) Option {
	return func(e *Editor) { e.geocodeTimeout = d }
}

// WithClock overrides time.Now for idle tracking.
func WithClock(now func() time.Time) Option {
	return func(e *Editor) { e.now = now }
}

// WithIDs overrides session id generation.
func WithIDs(gen func() string) Option {
	return func(e *Editor) { e.newID = gen }
}

// New creates an editor over cat. sink must be the same sink cat publishes
// to, so session notifications interleave with catalog ones.
func New(cat *catalog.Catalog, sink events.Sink, opts ...Option) *Editor {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Editor{
		catalog:  cat,
		sink:     sink,
		log:      logger.Nop(),
		now:      time.Now,
		newID:    uuid.NewString,
		sessions: make(map[string]*entry),
		editing:  make(map[domain.SiteID]string),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.metrics.SetSites(cat.Count())
	return e
}

// View is a snapshot of a session, safe to hand to other goroutines.
type View struct {
	ID             string            `json:"session_id"`
	State          string            `json:"state"`
	Reference      session.Reference `json:"reference"`
	Scratch        domain.Site       `json:"scratch"`
	Coordinates    string            `json:"coordinates"`
	Modified       bool              `json:"modified"`
	Touched        []domain.Field    `json:"touched"`
	GeocodePending bool              `json:"geocode_pending"`
}

func viewOf(s *session.Session) View {
	touched := s.Touched()
	if touched == nil {
		touched = []domain.Field{}
	}
	return View{
		ID:             s.ID(),
		State:          s.State().String(),
		Reference:      s.Reference(),
		Scratch:        s.Scratch(),
		Coordinates:    s.Coordinates(),
		Modified:       s.Modified(),
		Touched:        touched,
		GeocodePending: s.GeocodePending(),
	}
}

// ─────────────────────────────────────────────────────────────────
// Sessions
// ─────────────────────────────────────────────────────────────────

// Begin opens a session on ref. An existing site can only be edited by one
// session at a time; a second Begin on it fails with domain.ErrInvalidState.
func (e *Editor) Begin(ref session.Reference) (v View, err error) {
	defer e.observe("begin", time.Now(), &err)

	e.mu.Lock()
	defer e.mu.Unlock()

	if !ref.IsCreate() {
		if holder, busy := e.editing[ref.SiteID]; busy {
			return View{}, fmt.Errorf("%w: site %d is being edited by session %s", domain.ErrInvalidState, ref.SiteID, holder)
		}
	}

	s := session.New(e.newID(), e.catalog, session.WithSink(e.sink))
	if err := s.Begin(ref); err != nil {
		return View{}, err
	}

	e.sessions[s.ID()] = &entry{s: s, lastUsed: e.now()}
	if !ref.IsCreate() {
		e.editing[ref.SiteID] = s.ID()
	}
	e.metrics.SetSessions(len(e.sessions))

	e.log.Info("edit session opened",
		logger.String("session", s.ID()),
		logger.Uint32("site_id", uint32(ref.SiteID)),
		logger.Bool("create", ref.IsCreate()))
	return viewOf(s), nil
}

// Session returns a snapshot of an open session.
func (e *Editor) Session(id string) (View, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, err := e.lookupLocked(id)
	if err != nil {
		return View{}, err
	}
	return viewOf(ent.s), nil
}

// Sessions returns snapshots of every open session, ordered by id.
func (e *Editor) Sessions() []View {
	e.mu.Lock()
	defer e.mu.Unlock()

	views := make([]View, 0, len(e.sessions))
	for _, ent := range e.sessions {
		views = append(views, viewOf(ent.s))
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return views
}

// SetField forwards a field edit to the session.
func (e *Editor) SetField(id string, field domain.Field, value string) (View, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, err := e.lookupLocked(id)
	if err != nil {
		return View{}, err
	}

	before := ent.s.Scratch()
	err = ent.s.SetField(field, value)
	ent.lastUsed = e.now()

	switch {
	case err != nil:
		e.metrics.FieldEdit(string(field), "rejected")
	case ent.s.Scratch() != before:
		e.metrics.FieldEdit(string(field), "changed")
	default:
		e.metrics.FieldEdit(string(field), "unchanged")
	}
	return viewOf(ent.s), err
}

// Commit commits a session and closes it. A session whose target vanished
// stays open so the caller can discard it.
func (e *Editor) Commit(id string) (res session.CommitResult, err error) {
	defer e.observe("commit", time.Now(), &err)

	e.mu.Lock()
	defer e.mu.Unlock()

	ent, err := e.lookupLocked(id)
	if err != nil {
		return session.CommitResult{}, err
	}

	res, err = ent.s.Commit()
	if err != nil {
		if errors.Is(err, domain.ErrAllocationExhausted) {
			e.log.Error("site id space exhausted, cannot create sites", logger.String("session", id))
		}
		return session.CommitResult{}, err
	}

	e.closeLocked(id, ent)
	e.metrics.SetSites(e.catalog.Count())
	e.log.Info("edit session committed",
		logger.String("session", id),
		logger.Uint32("site_id", uint32(res.Site)),
		logger.Bool("created", res.Created),
		logger.Bool("removed", res.Removed))
	return res, nil
}

// Discard drops a session without touching the catalog.
func (e *Editor) Discard(id string) (err error) {
	defer e.observe("discard", time.Now(), &err)

	e.mu.Lock()
	defer e.mu.Unlock()

	ent, err := e.lookupLocked(id)
	if err != nil {
		return err
	}
	if err := ent.s.Discard(); err != nil {
		return err
	}
	e.closeLocked(id, ent)
	e.log.Info("edit session discarded", logger.String("session", id))
	return nil
}

// DiscardIdle discards every session unused since before cutoff and
// returns how many were dropped.
func (e *Editor) DiscardIdle(cutoff time.Time) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for id, ent := range e.sessions {
		if !ent.lastUsed.Before(cutoff) {
			continue
		}
		if err := ent.s.Discard(); err != nil {
			e.log.Warn("idle session could not be discarded cleanly",
				logger.String("session", id),
				logger.Error(err))
		}
		e.closeLocked(id, ent)
		n++
	}
	return n
}

func (e *Editor) lookupLocked(id string) (*entry, error) {
	ent, ok := e.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	return ent, nil
}

func (e *Editor) closeLocked(id string, ent *entry) {
	delete(e.sessions, id)
	ref := ent.s.Reference()
	if !ref.IsCreate() && e.editing[ref.SiteID] == id {
		delete(e.editing, ref.SiteID)
	}
	e.metrics.SetSessions(len(e.sessions))
}

// ─────────────────────────────────────────────────────────────────
// Geocoding
// ─────────────────────────────────────────────────────────────────

// Geocode starts a reverse lookup of the session's scratch coordinates.
// The result is delivered later, on the editor's thread, and only if the
// session is still editing and no newer lookup was started.
func (e *Editor) Geocode(id string) (session.Ticket, error) {
	if e.gateway == nil {
		return session.Ticket{}, ErrNoGeocoder
	}

	e.mu.Lock()
	ent, err := e.lookupLocked(id)
	if err != nil {
		e.mu.Unlock()
		return session.Ticket{}, err
	}
	ticket, err := ent.s.StartGeocode()
	if err != nil {
		e.mu.Unlock()
		return session.Ticket{}, err
	}
	ent.lastUsed = e.now()
	e.wg.Add(1)
	e.mu.Unlock()

	go e.lookup(ticket)
	return ticket, nil
}

func (e *Editor) lookup(t session.Ticket) {
	defer e.wg.Done()

	ctx := e.ctx
	if e.geocodeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.geocodeTimeout)
		defer cancel()
	}

	place, err := e.gateway.ReverseGeocode(ctx, t.Latitude, t.Longitude)
	e.deliver(t, place, err)
}

// deliver hands a lookup result back to its session.
func (e *Editor) deliver(t session.Ticket, place domain.Place, lookupErr error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.sessions[t.Session]
	if !ok {
		e.metrics.Geocode("stale")
		return
	}

	if lookupErr != nil {
		if ent.s.FailGeocode(t) {
			e.metrics.Geocode("failed")
			e.log.Warn("reverse geocode failed",
				logger.String("session", t.Session),
				logger.Error(lookupErr))
		} else {
			e.metrics.Geocode("stale")
		}
		return
	}

	applied, err := ent.s.ApplyGeocode(t, sanitizePlace(place))
	switch {
	case !applied:
		e.metrics.Geocode("stale")
	case err != nil:
		e.metrics.Geocode("failed")
		e.log.Warn("geocode result rejected", logger.String("session", t.Session), logger.Error(err))
	default:
		e.metrics.Geocode("applied")
		e.log.Debug("geocode result applied",
			logger.String("session", t.Session),
			logger.String("name", place.Name))
	}
}

// sanitizePlace treats geocoder output like typed input: trimmed and
// stripped of control characters.
func sanitizePlace(p domain.Place) domain.Place {
	clean := func(s string) string {
		return strings.TrimSpace(strings.Map(func(r rune) rune {
			if r < 0x20 || r == 0x7f {
				return -1
			}
			return r
		}, s))
	}
	return domain.Place{Name: clean(p.Name), Description: clean(p.Description)}
}

// Wait blocks until every in-flight lookup has been delivered or dropped.
func (e *Editor) Wait() {
	e.wg.Wait()
}

// Close cancels in-flight lookups and waits for them to return.
func (e *Editor) Close() {
	e.cancel()
	e.wg.Wait()
}

// ─────────────────────────────────────────────────────────────────
// Catalog operations
// ─────────────────────────────────────────────────────────────────

// Merge folds sources into target. Sites held by an open session cannot
// be merged away; the target itself may be under edit.
func (e *Editor) Merge(target domain.SiteID, sources []domain.SiteID) (res catalog.MergeResult, err error) {
	defer e.observe("merge", time.Now(), &err)

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, id := range sources {
		if holder, busy := e.editing[id]; busy && id != target {
			return catalog.MergeResult{}, fmt.Errorf("%w: site %d is being edited by session %s", domain.ErrInvalidState, id, holder)
		}
	}

	res, err = e.catalog.Merge(target, sources)
	if err != nil {
		return catalog.MergeResult{}, err
	}

	e.metrics.SetSites(e.catalog.Count())
	e.log.Info("sites merged",
		logger.Uint32("target", uint32(target)),
		logger.Int("removed", len(res.Removed)),
		logger.Int("dives_reassigned", len(res.Reassigned)))
	return res, nil
}

// AssignDive points a dive at a site, or clears it with domain.NoSite.
func (e *Editor) AssignDive(dive domain.DiveID, site domain.SiteID) (err error) {
	defer e.observe("assign_dive", time.Now(), &err)

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.catalog.AssignDive(dive, site)
}

// RecordDive adds or replaces a dive record.
func (e *Editor) RecordDive(d domain.Dive) (err error) {
	defer e.observe("record_dive", time.Now(), &err)

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.catalog.PutDive(d)
}

// Resolve returns the advisory candidates for free text typed in a site picker.
func (e *Editor) Resolve(text string) []domain.Candidate {
	return domain.Resolve(text, e.catalog.All())
}

// Catalog exposes the read side.
func (e *Editor) Catalog() *catalog.Catalog {
	return e.catalog
}

func (e *Editor) observe(op string, start time.Time, err *error) {
	e.metrics.Observe(op, *err, time.Since(start))
}
