package session

import (
	"errors"
	"reflect"
	"testing"

	"github.com/MrSnakeDoc/divesite/internal/catalog"
	"github.com/MrSnakeDoc/divesite/internal/domain"
	"github.com/MrSnakeDoc/divesite/internal/events"
)

type recorder struct {
	events []events.Event
}

func (r *recorder) Publish(e events.Event) { r.events = append(r.events, e) }

func (r *recorder) kinds() []events.Kind {
	out := make([]events.Kind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

func setup(t *testing.T) (*catalog.Catalog, *recorder) {
	t.Helper()
	rec := &recorder{}
	return catalog.New(catalog.WithSink(rec)), rec
}

func begin(t *testing.T, cat *catalog.Catalog, rec *recorder, ref Reference) *Session {
	t.Helper()
	s := New("s1", cat, WithSink(rec))
	if err := s.Begin(ref); err != nil {
		t.Fatalf("Begin(%+v) error = %v", ref, err)
	}
	return s
}

func mustSet(t *testing.T, s *Session, f domain.Field, v string) {
	t.Helper()
	if err := s.SetField(f, v); err != nil {
		t.Fatalf("SetField(%s, %q) error = %v", f, v, err)
	}
}

func TestCreateBlueHole(t *testing.T) {
	cat, _ := setup(t)
	s := begin(t, cat, &recorder{}, Create("Blue Hole", 0))

	mustSet(t, s, domain.FieldNotes, "great viz")
	res, err := s.Commit()
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	all := cat.All()
	if len(all) != 1 {
		t.Fatalf("catalog has %d sites, want 1", len(all))
	}
	got := all[0]
	if got.Name != "Blue Hole" || got.Notes != "great viz" || got.HasGPS() {
		t.Errorf("created site = %+v", got)
	}
	if !res.Created || res.Site != got.ID {
		t.Errorf("CommitResult = %+v", res)
	}
	if s.State() != Committed {
		t.Errorf("State() = %s, want committed", s.State())
	}
}

func TestBegin(t *testing.T) {
	cat, rec := setup(t)
	id, _ := cat.Insert(domain.Site{Name: "Reef", Notes: "sharks"})

	s := begin(t, cat, rec, Existing(id))
	if got := s.Scratch(); got.Name != "Reef" || got.Notes != "sharks" {
		t.Errorf("Scratch() = %+v", got)
	}
	if s.Modified() {
		t.Error("fresh session must not be modified")
	}

	if err := s.Begin(Existing(id)); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("second Begin() error = %v, want ErrInvalidState", err)
	}

	other := New("s2", cat)
	if err := other.Begin(Existing(404)); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Begin(unknown) error = %v, want ErrNotFound", err)
	}
	if other.State() != Unbound {
		t.Error("failed Begin() must leave the session unbound")
	}

	if err := New("s3", cat).Begin(Create("x", 77)); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Begin() with unknown dive error = %v, want ErrNotFound", err)
	}
}

func TestScratchIsDetached(t *testing.T) {
	cat, rec := setup(t)
	id, _ := cat.Insert(domain.Site{Name: "Reef"})
	s := begin(t, cat, rec, Existing(id))

	mustSet(t, s, domain.FieldName, "Changed")
	if got, _ := cat.Lookup(id); got.Name != "Reef" {
		t.Errorf("scratch edit leaked into catalog: %q", got.Name)
	}
}

func TestCommitUnmodifiedIsNoOp(t *testing.T) {
	tests := []struct {
		name string
		ref  func(id domain.SiteID) Reference
	}{
		{"existing", func(id domain.SiteID) Reference { return Existing(id) }},
		// Picking "create new" without editing anything inserts no site
		{"create", func(domain.SiteID) Reference { return Create("Nowhere", 0) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat, rec := setup(t)
			id, _ := cat.Insert(domain.Site{Name: "Reef"})
			before := cat.All()
			published := len(rec.events)

			s := begin(t, cat, rec, tt.ref(id))
			res, err := s.Commit()
			if err != nil {
				t.Fatalf("Commit() error = %v", err)
			}
			if res.Created || res.Updated || res.Removed {
				t.Errorf("CommitResult = %+v, want no-op", res)
			}
			if !reflect.DeepEqual(before, cat.All()) {
				t.Error("unmodified commit changed the catalog")
			}
			if len(rec.events) != published {
				t.Errorf("unmodified commit published %v", rec.kinds()[published:])
			}
		})
	}
}

func TestWriteBackIsolation(t *testing.T) {
	cat, rec := setup(t)
	id, _ := cat.Insert(domain.Site{Name: "Reef", Description: "old"})
	s := begin(t, cat, rec, Existing(id))

	mustSet(t, s, domain.FieldNotes, "current from the north")

	// Another path renames the site while the session is open
	if err := cat.Update(domain.Site{ID: id, Name: "Reef North", Description: "old"}); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	got, _ := cat.Lookup(id)
	if got.Name != "Reef North" {
		t.Errorf("untouched name clobbered: %q", got.Name)
	}
	if got.Notes != "current from the north" {
		t.Errorf("touched notes not written: %q", got.Notes)
	}
}

func TestEmptySitePruning(t *testing.T) {
	cat, rec := setup(t)
	id, _ := cat.Insert(domain.Site{Name: "Reef"})
	_ = cat.PutDive(domain.Dive{ID: 5, SiteID: id})

	s := begin(t, cat, rec, Reference{SiteID: id, Dive: 5})
	mustSet(t, s, domain.FieldName, "")

	res, err := s.Commit()
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if !res.Removed || cat.Contains(id) {
		t.Errorf("empty target not pruned: %+v", res)
	}
	if d, _ := cat.Dive(5); d.SiteID != domain.NoSite {
		t.Errorf("dive binding not cleared: %d", d.SiteID)
	}
}

func TestCreateEmptyIsNeverInserted(t *testing.T) {
	cat, rec := setup(t)
	_ = cat.PutDive(domain.Dive{ID: 1})
	s := begin(t, cat, rec, Create("", 1))

	mustSet(t, s, domain.FieldNotes, "x")
	mustSet(t, s, domain.FieldNotes, "")

	res, err := s.Commit()
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if cat.Count() != 0 {
		t.Errorf("empty site inserted: %+v", cat.All())
	}
	if res.Site != domain.NoSite || !res.Removed {
		t.Errorf("CommitResult = %+v", res)
	}
}

func TestCreateBindsDive(t *testing.T) {
	cat, rec := setup(t)
	_ = cat.PutDive(domain.Dive{ID: 3})

	s := begin(t, cat, rec, Create("Wreck", 3))
	mustSet(t, s, domain.FieldCoordinates, "N10.5 W20.25")
	res, err := s.Commit()
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	if d, _ := cat.Dive(3); d.SiteID != res.Site {
		t.Errorf("dive bound to %d, want %d", d.SiteID, res.Site)
	}
	got, _ := cat.Lookup(res.Site)
	if got.Latitude != 10500000 || got.Longitude != -20250000 {
		t.Errorf("coordinates = %d/%d", got.Latitude, got.Longitude)
	}
}

func TestEqualitySuppression(t *testing.T) {
	cat, rec := setup(t)
	id, _ := cat.Insert(domain.Site{Name: "Reef", Latitude: 10000000, Longitude: -20000000})
	s := begin(t, cat, rec, Existing(id))
	published := len(rec.events)

	tests := []struct {
		field domain.Field
		value string
	}{
		{domain.FieldName, "Reef"},
		{domain.FieldDescription, ""},
		{domain.FieldCoordinates, domain.FormatGPS(10000000, -20000000)},
		{domain.FieldCoordinates, "10, -20"},
	}
	for _, tt := range tests {
		mustSet(t, s, tt.field, tt.value)
	}

	if s.Modified() {
		t.Errorf("Modified() = true after no-op edits, touched %v", s.Touched())
	}
	if len(rec.events) != published {
		t.Errorf("no-op edits published %v", rec.kinds()[published:])
	}
}

func TestCoordinateParseFailure(t *testing.T) {
	cat, rec := setup(t)
	id, _ := cat.Insert(domain.Site{Name: "A", Latitude: 1, Longitude: 2})
	before, _ := cat.Lookup(id)
	s := begin(t, cat, rec, Existing(id))

	err := s.SetField(domain.FieldCoordinates, "not a coordinate")
	if !errors.Is(err, domain.ErrParseFailure) {
		t.Fatalf("SetField() error = %v, want ErrParseFailure", err)
	}
	if s.Modified() {
		t.Error("rejected edit marked the session modified")
	}
	if got := s.Scratch(); got.Latitude != 1 || got.Longitude != 2 {
		t.Errorf("rejected edit changed scratch: %+v", got)
	}
	if after, _ := cat.Lookup(id); !reflect.DeepEqual(before, after) {
		t.Error("catalog changed")
	}
}

func TestBlankCoordinatesClearFix(t *testing.T) {
	cat, rec := setup(t)
	id, _ := cat.Insert(domain.Site{Name: "A", Latitude: 1, Longitude: 2})
	s := begin(t, cat, rec, Existing(id))

	mustSet(t, s, domain.FieldCoordinates, "  ")
	if _, err := s.Commit(); err != nil {
		t.Fatal(err)
	}
	if got, _ := cat.Lookup(id); got.HasGPS() {
		t.Errorf("coordinates not cleared: %+v", got)
	}
}

func TestSetFieldUnknown(t *testing.T) {
	cat, rec := setup(t)
	s := begin(t, cat, rec, Create("x", 0))
	if err := s.SetField("depth", "30"); !errors.Is(err, domain.ErrUnknownField) {
		t.Errorf("SetField(depth) error = %v, want ErrUnknownField", err)
	}
}

func TestFieldChangedNotifications(t *testing.T) {
	cat, rec := setup(t)
	id, _ := cat.Insert(domain.Site{Name: "Reef"})
	rec.events = nil

	s := begin(t, cat, rec, Existing(id))
	mustSet(t, s, domain.FieldNotes, "a")
	mustSet(t, s, domain.FieldName, "b")
	if _, err := s.Commit(); err != nil {
		t.Fatal(err)
	}

	want := []events.Kind{events.FieldChanged, events.FieldChanged, events.SiteUpdated}
	if got := rec.kinds(); !reflect.DeepEqual(got, want) {
		t.Errorf("notifications = %v, want %v", got, want)
	}
	if rec.events[0].Field != domain.FieldNotes || rec.events[0].Session != "s1" {
		t.Errorf("first notification = %+v", rec.events[0])
	}
}

func TestDiscard(t *testing.T) {
	cat, rec := setup(t)
	id, _ := cat.Insert(domain.Site{Name: "Reef"})
	before := cat.All()

	s := begin(t, cat, rec, Existing(id))
	mustSet(t, s, domain.FieldName, "Gone")
	if err := s.Discard(); err != nil {
		t.Fatalf("Discard() error = %v", err)
	}

	if !reflect.DeepEqual(before, cat.All()) {
		t.Error("Discard() changed the catalog")
	}
	if s.State() != Discarded || s.Modified() {
		t.Errorf("after Discard() state=%s modified=%v", s.State(), s.Modified())
	}

	if err := s.SetField(domain.FieldName, "x"); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("SetField() after discard error = %v", err)
	}
	if _, err := s.Commit(); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("Commit() after discard error = %v", err)
	}
	if err := s.Discard(); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("second Discard() error = %v", err)
	}
}

func TestCommitVanishedTarget(t *testing.T) {
	cat, rec := setup(t)
	id, _ := cat.Insert(domain.Site{Name: "Reef"})
	s := begin(t, cat, rec, Existing(id))
	mustSet(t, s, domain.FieldNotes, "x")

	cat.Remove(id)
	if _, err := s.Commit(); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Commit() error = %v, want ErrNotFound", err)
	}
	if s.State() != Editing {
		t.Errorf("State() = %s, want editing", s.State())
	}
	if cat.Count() != 0 {
		t.Error("commit resurrected a removed site")
	}
}

func TestCommitAllocationExhausted(t *testing.T) {
	rec := &recorder{}
	cat := catalog.New(catalog.WithSink(rec), catalog.WithMaxID(1))
	_, _ = cat.Insert(domain.Site{Name: "only"})
	before := cat.All()

	s := begin(t, cat, rec, Create("Another", 0))
	mustSet(t, s, domain.FieldNotes, "x")

	if _, err := s.Commit(); !errors.Is(err, domain.ErrAllocationExhausted) {
		t.Fatalf("Commit() error = %v, want ErrAllocationExhausted", err)
	}
	if !reflect.DeepEqual(before, cat.All()) {
		t.Error("failed commit changed the catalog")
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{Unbound, "unbound"},
		{Editing, "editing"},
		{Committed, "committed"},
		{Discarded, "discarded"},
		{State(9), "state(9)"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int(tt.s), got, tt.want)
		}
	}
}
