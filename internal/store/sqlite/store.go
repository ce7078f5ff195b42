package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MrSnakeDoc/divesite/internal/domain"
	"github.com/MrSnakeDoc/divesite/internal/store"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS sites (
	id          INTEGER PRIMARY KEY,
	name        TEXT    NOT NULL DEFAULT '',
	description TEXT    NOT NULL DEFAULT '',
	notes       TEXT    NOT NULL DEFAULT '',
	latitude    INTEGER NOT NULL DEFAULT 0,
	longitude   INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS dives (
	id      INTEGER PRIMARY KEY,
	number  INTEGER NOT NULL DEFAULT 0,
	at      INTEGER NOT NULL DEFAULT 0,
	site_id INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_dives_site ON dives(site_id);
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS places (
	latitude    INTEGER NOT NULL,
	longitude   INTEGER NOT NULL,
	name        TEXT    NOT NULL,
	description TEXT    NOT NULL,
	cached_at   INTEGER NOT NULL,
	PRIMARY KEY (latitude, longitude)
);
`

const metaLastID = "last_site_id"

// Store persists sites and dives in an embedded SQLite database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	if path == "" {
		path = "divesite.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; also keeps ":memory:" on a single shared connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database location.
func (s *Store) Path() string { return s.path }

func (s *Store) SaveSite(ctx context.Context, site domain.Site) error {
	if err := upsertSite(ctx, s.db, site); err != nil {
		return fmt.Errorf("save site %d: %w", site.ID, err)
	}
	return nil
}

func (s *Store) DeleteSite(ctx context.Context, id domain.SiteID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sites WHERE id = ?`, uint32(id)); err != nil {
		return fmt.Errorf("delete site %d: %w", id, err)
	}
	return nil
}

// LoadSites returns every site ordered by id.
func (s *Store) LoadSites(ctx context.Context) ([]domain.Site, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, notes, latitude, longitude, created_at, updated_at FROM sites ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select sites: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sites []domain.Site
	for rows.Next() {
		var (
			site             domain.Site
			id               uint32
			created, updated int64
		)
		if err := rows.Scan(&id, &site.Name, &site.Description, &site.Notes,
			&site.Latitude, &site.Longitude, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		site.ID = domain.SiteID(id)
		site.CreatedAt = fromUnixNano(created)
		site.UpdatedAt = fromUnixNano(updated)
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

func (s *Store) SaveDive(ctx context.Context, d domain.Dive) error {
	if err := upsertDive(ctx, s.db, d); err != nil {
		return fmt.Errorf("save dive %d: %w", d.ID, err)
	}
	return nil
}

// LoadDives returns every dive ordered by id.
func (s *Store) LoadDives(ctx context.Context) ([]domain.Dive, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, number, at, site_id FROM dives ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select dives: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var dives []domain.Dive
	for rows.Next() {
		var (
			d        domain.Dive
			id, site uint32
			at       int64
		)
		if err := rows.Scan(&id, &d.Number, &at, &site); err != nil {
			return nil, fmt.Errorf("scan dive: %w", err)
		}
		d.ID = domain.DiveID(id)
		d.SiteID = domain.SiteID(site)
		d.When = fromUnixNano(at)
		dives = append(dives, d)
	}
	return dives, rows.Err()
}

func (s *Store) SaveLastID(ctx context.Context, id domain.SiteID) error {
	if err := saveLastID(ctx, s.db, id); err != nil {
		return fmt.Errorf("save last id: %w", err)
	}
	return nil
}

func (s *Store) LoadLastID(ctx context.Context) (domain.SiteID, error) {
	var v uint32
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, metaLastID).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NoSite, nil
	}
	if err != nil {
		return domain.NoSite, fmt.Errorf("load last id: %w", err)
	}
	return domain.SiteID(v), nil
}

// SaveAll writes a snapshot in a single transaction.
func (s *Store) SaveAll(ctx context.Context, sites []domain.Site, dives []domain.Dive) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	var last domain.SiteID
	for _, site := range sites {
		if err := upsertSite(ctx, tx, site); err != nil {
			return fmt.Errorf("save site %d: %w", site.ID, err)
		}
		if site.ID > last {
			last = site.ID
		}
	}
	for _, d := range dives {
		if err := upsertDive(ctx, tx, d); err != nil {
			return fmt.Errorf("save dive %d: %w", d.ID, err)
		}
	}
	if err := saveLastID(ctx, tx, last); err != nil {
		return fmt.Errorf("save last id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// WriteBatch applies b in one transaction. Dives are written before sites
// are deleted, so a reader never sees a dive pointing at a removed site.
func (s *Store) WriteBatch(ctx context.Context, b store.Batch) (retErr error) {
	if b.Empty() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	for _, d := range b.Dives {
		if err := upsertDive(ctx, tx, d); err != nil {
			return fmt.Errorf("save dive %d: %w", d.ID, err)
		}
	}
	for _, site := range b.Sites {
		if err := upsertSite(ctx, tx, site); err != nil {
			return fmt.Errorf("save site %d: %w", site.ID, err)
		}
	}
	for _, id := range b.Deleted {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sites WHERE id = ?`, uint32(id)); err != nil {
			return fmt.Errorf("delete site %d: %w", id, err)
		}
	}
	if b.LastID != domain.NoSite {
		if err := saveLastID(ctx, tx, b.LastID); err != nil {
			return fmt.Errorf("save last id: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetPlace returns a cached reverse-geocode answer. ok is false on a miss.
func (s *Store) GetPlace(ctx context.Context, lat, lon domain.MicroDegrees) (domain.Place, bool, error) {
	var p domain.Place
	err := s.db.QueryRowContext(ctx,
		`SELECT name, description FROM places WHERE latitude = ? AND longitude = ?`, lat, lon).
		Scan(&p.Name, &p.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Place{}, false, nil
	}
	if err != nil {
		return domain.Place{}, false, fmt.Errorf("get place: %w", err)
	}
	return p, true, nil
}

// PutPlace caches a reverse-geocode answer.
func (s *Store) PutPlace(ctx context.Context, lat, lon domain.MicroDegrees, p domain.Place) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO places (latitude, longitude, name, description, cached_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(latitude, longitude) DO UPDATE SET
			name = excluded.name, description = excluded.description, cached_at = excluded.cached_at`,
		lat, lon, p.Name, p.Description, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("put place: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertSite(ctx context.Context, db execer, site domain.Site) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO sites (id, name, description, notes, latitude, longitude, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, description = excluded.description, notes = excluded.notes,
			latitude = excluded.latitude, longitude = excluded.longitude, updated_at = excluded.updated_at`,
		uint32(site.ID), site.Name, site.Description, site.Notes, site.Latitude, site.Longitude,
		toUnixNano(site.CreatedAt), toUnixNano(site.UpdatedAt))
	return err
}

func upsertDive(ctx context.Context, db execer, d domain.Dive) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO dives (id, number, at, site_id) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET number = excluded.number, at = excluded.at, site_id = excluded.site_id`,
		uint32(d.ID), d.Number, toUnixNano(d.When), uint32(d.SiteID))
	return err
}

func saveLastID(ctx context.Context, db execer, id domain.SiteID) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = MAX(value, excluded.value)`,
		metaLastID, uint32(id))
	return err
}

func toUnixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
