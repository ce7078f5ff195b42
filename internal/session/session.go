package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MrSnakeDoc/divesite/internal/domain"
	"github.com/MrSnakeDoc/divesite/internal/events"
)

// State is the lifecycle state of a Session.
type State int

const (
	Unbound State = iota
	Editing
	Committed
	Discarded
)

func (s State) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case Editing:
		return "editing"
	case Committed:
		return "committed"
	case Discarded:
		return "discarded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further operation is allowed.
func (s State) Terminal() bool {
	return s == Committed || s == Discarded
}

// Reference points a session at exactly one of an existing catalog site
// or a site that does not exist yet, keyed by its proposed name.
//
// Dive optionally names the dive the edit was started from. A created site
// is bound to it on commit, and the binding is cleared if the target is pruned.
type Reference struct {
	SiteID       domain.SiteID `json:"site_id,omitempty"`
	ProposedName string        `json:"proposed_name,omitempty"`
	Dive         domain.DiveID `json:"dive_id,omitempty"`
}

// Existing references a site already in the catalog.
func Existing(id domain.SiteID) Reference {
	return Reference{SiteID: id}
}

// Create references a site to be created under name on commit.
func Create(name string, dive domain.DiveID) Reference {
	return Reference{ProposedName: name, Dive: dive}
}

// IsCreate reports whether the reference is the "create" sentinel.
func (r Reference) IsCreate() bool {
	return r.SiteID == domain.NoSite
}

// Catalog is the part of catalog.Catalog a session reads and, on commit, writes.
type Catalog interface {
	Lookup(id domain.SiteID) (domain.Site, error)
	Insert(s domain.Site) (domain.SiteID, error)
	Update(s domain.Site) error
	Remove(id domain.SiteID) bool
	Dive(id domain.DiveID) (domain.Dive, error)
	AssignDive(dive domain.DiveID, site domain.SiteID) error
}

// CommitResult describes what a commit did to the catalog.
type CommitResult struct {
	// Site is the resolved target. It is NoSite when a create reference
	// was pruned before ever being inserted.
	Site    domain.SiteID  `json:"site_id"`
	Created bool           `json:"created"`
	Updated bool           `json:"updated"`
	Removed bool           `json:"removed"`
	Touched []domain.Field `json:"touched,omitempty"`
}

// Session buffers edits to one site until they are committed or discarded.
//
// A Session is a plain stateful object and is not safe for concurrent use;
// callers serialise access (see editor.Editor).
type Session struct {
	id        string
	state     State
	ref       Reference
	scratch   domain.Site
	touched   map[domain.Field]bool
	catalog   Catalog
	sink      events.Sink
	parser    domain.GPSParser
	formatter domain.GPSFormatter

	// geocode generation: only a result carrying the current value is applied
	generation uint64
	inFlight   bool
}

// Option configures a Session.
type Option func(*Session)

// WithSink publishes field_changed notifications to sink.
func WithSink(sink events.Sink) Option {
	return func(s *Session) { s.sink = sink }
}

// WithGPS overrides the coordinate parser and formatter.
func WithGPS(p domain.GPSParser, f domain.GPSFormatter) Option {
	return func(s *Session) {
		s.parser = p
		s.formatter = f
	}
}

// New creates an unbound session.
func New(id string, cat Catalog, opts ...Option) *Session {
	s := &Session{
		id:        id,
		catalog:   cat,
		touched:   make(map[domain.Field]bool),
		parser:    domain.GPS{},
		formatter: domain.GPS{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) ID() string           { return s.id }
func (s *Session) State() State         { return s.state }
func (s *Session) Reference() Reference { return s.ref }

// Scratch returns a copy of the working site.
func (s *Session) Scratch() domain.Site { return s.scratch }

// Modified reports whether any field has been touched.
func (s *Session) Modified() bool { return len(s.touched) > 0 }

// Touched returns the touched fields in write-back order.
func (s *Session) Touched() []domain.Field {
	var out []domain.Field
	for _, f := range domain.Fields {
		if s.touched[f] {
			out = append(out, f)
		}
	}
	return out
}

// Coordinates returns the scratch coordinates as formatted text, or ""
// when the scratch site has no GPS fix.
func (s *Session) Coordinates() string {
	if !s.scratch.HasGPS() {
		return ""
	}
	return s.formatter.Format(s.scratch.Latitude, s.scratch.Longitude)
}

// Begin binds the session to ref and fills the scratch copy.
func (s *Session) Begin(ref Reference) error {
	if s.state != Unbound {
		return fmt.Errorf("%w: begin in state %s", domain.ErrInvalidState, s.state)
	}

	if ref.Dive != 0 {
		if _, err := s.catalog.Dive(ref.Dive); err != nil {
			return err
		}
	}

	if ref.IsCreate() {
		s.scratch = domain.Site{Name: ref.ProposedName}
	} else {
		site, err := s.catalog.Lookup(ref.SiteID)
		if err != nil {
			return err
		}
		s.scratch = site
		ref.ProposedName = ""
	}

	s.ref = ref
	s.state = Editing
	return nil
}

// SetField updates one scratch field.
//
// Setting a field to its current value does nothing: the field is not
// marked touched and no notification is published. Coordinate text is
// parsed first; on failure the scratch copy is unchanged and the returned
// error wraps domain.ErrParseFailure. Blank coordinate text clears the fix.
func (s *Session) SetField(field domain.Field, value string) error {
	if s.state != Editing {
		return fmt.Errorf("%w: set_field in state %s", domain.ErrInvalidState, s.state)
	}

	switch field {
	case domain.FieldName:
		if !s.setText(&s.scratch.Name, value) {
			return nil
		}
	case domain.FieldDescription:
		if !s.setText(&s.scratch.Description, value) {
			return nil
		}
	case domain.FieldNotes:
		if !s.setText(&s.scratch.Notes, value) {
			return nil
		}
	case domain.FieldCoordinates:
		changed, err := s.setCoordinates(value)
		if err != nil || !changed {
			return err
		}
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnknownField, field)
	}

	s.touched[field] = true
	s.publish(events.Event{Kind: events.FieldChanged, Session: s.id, Field: field, SiteIDs: s.siteIDs()})
	return nil
}

func (s *Session) setText(dst *string, value string) bool {
	if *dst == value {
		return false
	}
	*dst = value
	return true
}

func (s *Session) setCoordinates(text string) (bool, error) {
	cur := s.scratch
	if strings.TrimSpace(text) == "" {
		if !cur.HasGPS() {
			return false, nil
		}
		s.scratch.Latitude, s.scratch.Longitude = 0, 0
		return true, nil
	}

	// Text identical to the current rendering is widget churn, not an edit
	if cur.HasGPS() && text == s.formatter.Format(cur.Latitude, cur.Longitude) {
		return false, nil
	}

	lat, lon, err := s.parser.Parse(text)
	if err != nil {
		if !errors.Is(err, domain.ErrParseFailure) {
			err = fmt.Errorf("%w: %v", domain.ErrParseFailure, err)
		}
		return false, err
	}
	if lat == cur.Latitude && lon == cur.Longitude {
		return false, nil
	}

	s.scratch.Latitude, s.scratch.Longitude = lat, lon
	return true, nil
}

// Commit writes the touched fields back to the catalog and ends the session.
//
// An unmodified session commits without touching the catalog. For an
// existing reference only touched fields overwrite the target, read fresh
// from the catalog, so concurrent edits to other fields survive. A target
// left empty after write-back is removed and the bound dive, if any, loses
// its site reference.
//
// If the existing target has vanished the error wraps domain.ErrNotFound and
// the session stays in Editing. domain.ErrAllocationExhausted is fatal and
// leaves the catalog unchanged.
func (s *Session) Commit() (CommitResult, error) {
	if s.state != Editing {
		return CommitResult{}, fmt.Errorf("%w: commit in state %s", domain.ErrInvalidState, s.state)
	}

	res := CommitResult{Site: s.ref.SiteID, Touched: s.Touched()}
	if !s.Modified() {
		s.finish(Committed)
		return res, nil
	}

	var err error
	if s.ref.IsCreate() {
		err = s.commitCreate(&res)
	} else {
		err = s.commitExisting(&res)
	}
	if err != nil {
		return CommitResult{}, err
	}

	s.finish(Committed)
	return res, nil
}

func (s *Session) commitCreate(res *CommitResult) error {
	target := domain.Site{Name: s.ref.ProposedName}
	s.writeBack(&target)

	if target.IsEmpty() {
		// Nothing worth keeping: never insert, just drop the dive binding
		res.Site = domain.NoSite
		res.Removed = true
		return s.clearDive()
	}

	id, err := s.catalog.Insert(target)
	if err != nil {
		return fmt.Errorf("failed to create site %q: %w", target.Name, err)
	}
	res.Site = id
	res.Created = true

	if s.ref.Dive != 0 {
		if err := s.catalog.AssignDive(s.ref.Dive, id); err != nil {
			return fmt.Errorf("failed to bind dive %d: %w", s.ref.Dive, err)
		}
	}
	return nil
}

func (s *Session) commitExisting(res *CommitResult) error {
	target, err := s.catalog.Lookup(s.ref.SiteID)
	if err != nil {
		return fmt.Errorf("commit target: %w", err)
	}
	s.writeBack(&target)

	if target.IsEmpty() {
		s.catalog.Remove(target.ID)
		res.Removed = true
		return s.clearDive()
	}

	if err := s.catalog.Update(target); err != nil {
		return fmt.Errorf("failed to update site %d: %w", target.ID, err)
	}
	res.Updated = true
	return nil
}

// writeBack copies touched scratch fields onto target.
func (s *Session) writeBack(target *domain.Site) {
	for _, f := range s.Touched() {
		switch f {
		case domain.FieldName:
			target.Name = s.scratch.Name
		case domain.FieldDescription:
			target.Description = s.scratch.Description
		case domain.FieldNotes:
			target.Notes = s.scratch.Notes
		case domain.FieldCoordinates:
			target.Latitude = s.scratch.Latitude
			target.Longitude = s.scratch.Longitude
		}
	}
}

func (s *Session) clearDive() error {
	if s.ref.Dive == 0 {
		return nil
	}
	if err := s.catalog.AssignDive(s.ref.Dive, domain.NoSite); err != nil {
		return fmt.Errorf("failed to clear site of dive %d: %w", s.ref.Dive, err)
	}
	return nil
}

// Discard drops the scratch copy without touching the catalog.
// Any geocode lookup still in flight is invalidated.
func (s *Session) Discard() error {
	if s.state.Terminal() {
		return fmt.Errorf("%w: discard in state %s", domain.ErrInvalidState, s.state)
	}
	s.finish(Discarded)
	return nil
}

func (s *Session) finish(st State) {
	s.state = st
	s.scratch = domain.Site{}
	s.touched = make(map[domain.Field]bool)
	s.generation++
	s.inFlight = false
}

func (s *Session) siteIDs() []domain.SiteID {
	if s.ref.IsCreate() {
		return nil
	}
	return []domain.SiteID{s.ref.SiteID}
}

func (s *Session) publish(e events.Event) {
	if s.sink != nil {
		s.sink.Publish(e)
	}
}
