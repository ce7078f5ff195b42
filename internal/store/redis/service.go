package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/MrSnakeDoc/divesite/internal/domain"
	"github.com/MrSnakeDoc/divesite/internal/store"
	"github.com/redis/go-redis/v9"
)

// lastIDScript raises the stored last id, never lowering it.
var lastIDScript = redis.NewScript(`
local cur = tonumber(redis.call("GET", KEYS[1]) or "0")
if tonumber(ARGV[1]) > cur then redis.call("SET", KEYS[1], ARGV[1]) end
return 1`)

// Store handles Redis persistence for sites, dives and cached places
type Store struct {
	client *redis.Client
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
	}
}

// SaveSite stores a site in Redis
func (s *Store) SaveSite(ctx context.Context, site domain.Site) error {
	data, err := json.Marshal(site)
	if err != nil {
		return fmt.Errorf("failed to marshal site: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, SiteKey(site.ID), data, 0)
	pipe.SAdd(ctx, KeyAllSites, uint32(site.ID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save site: %w", err)
	}

	return nil
}

// GetSite retrieves a site from Redis by ID
func (s *Store) GetSite(ctx context.Context, id domain.SiteID) (domain.Site, error) {
	data, err := s.client.Get(ctx, SiteKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Site{}, fmt.Errorf("site %d: %w", id, domain.ErrNotFound)
		}
		return domain.Site{}, fmt.Errorf("failed to get site: %w", err)
	}

	var site domain.Site
	if err := json.Unmarshal(data, &site); err != nil {
		return domain.Site{}, fmt.Errorf("failed to unmarshal site: %w", err)
	}

	return site, nil
}

// LoadSites retrieves all sites from Redis, ordered by ID
func (s *Store) LoadSites(ctx context.Context) ([]domain.Site, error) {
	ids, err := s.members(ctx, KeyAllSites)
	if err != nil {
		return nil, fmt.Errorf("failed to get site IDs: %w", err)
	}

	sites := make([]domain.Site, 0, len(ids))
	for _, id := range ids {
		site, err := s.GetSite(ctx, domain.SiteID(id))
		if err != nil {
			// Skip sites whose blob vanished; the id set is repaired on next save
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}
		sites = append(sites, site)
	}

	return sites, nil
}

// DeleteSite removes a site from Redis
func (s *Store) DeleteSite(ctx context.Context, id domain.SiteID) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, SiteKey(id))
	pipe.SRem(ctx, KeyAllSites, uint32(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete site: %w", err)
	}

	return nil
}

// SaveDive stores a dive's site reference
func (s *Store) SaveDive(ctx context.Context, dive domain.Dive) error {
	data, err := json.Marshal(dive)
	if err != nil {
		return fmt.Errorf("failed to marshal dive: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, DiveKey(dive.ID), data, 0)
	pipe.SAdd(ctx, KeyAllDives, uint32(dive.ID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save dive: %w", err)
	}

	return nil
}

// LoadDives retrieves all dives from Redis, ordered by ID
func (s *Store) LoadDives(ctx context.Context) ([]domain.Dive, error) {
	ids, err := s.members(ctx, KeyAllDives)
	if err != nil {
		return nil, fmt.Errorf("failed to get dive IDs: %w", err)
	}
	if len(ids) == 0 {
		return []domain.Dive{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = DiveKey(domain.DiveID(id))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get dives: %w", err)
	}

	dives := make([]domain.Dive, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var dive domain.Dive
		if err := json.Unmarshal([]byte(raw), &dive); err != nil {
			return nil, fmt.Errorf("failed to unmarshal dive: %w", err)
		}
		dives = append(dives, dive)
	}

	return dives, nil
}

// SaveLastID records the highest allocated site id. It never moves backwards.
func (s *Store) SaveLastID(ctx context.Context, id domain.SiteID) error {
	if err := lastIDScript.Run(ctx, s.client, []string{KeyLastID}, uint32(id)).Err(); err != nil {
		return fmt.Errorf("failed to save last id: %w", err)
	}
	return nil
}

// LoadLastID returns the highest allocated site id, or NoSite if never saved
func (s *Store) LoadLastID(ctx context.Context) (domain.SiteID, error) {
	n, err := s.client.Get(ctx, KeyLastID).Uint64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.NoSite, nil
		}
		return domain.NoSite, fmt.Errorf("failed to get last id: %w", err)
	}
	return domain.SiteID(n), nil
}

// SaveAll stores a full snapshot (bulk operation)
func (s *Store) SaveAll(ctx context.Context, sites []domain.Site, dives []domain.Dive) error {
	pipe := s.client.Pipeline()

	var last domain.SiteID
	for _, site := range sites {
		data, err := json.Marshal(site)
		if err != nil {
			return fmt.Errorf("failed to marshal site %d: %w", site.ID, err)
		}
		pipe.Set(ctx, SiteKey(site.ID), data, 0)
		pipe.SAdd(ctx, KeyAllSites, uint32(site.ID))
		if site.ID > last {
			last = site.ID
		}
	}

	for _, dive := range dives {
		data, err := json.Marshal(dive)
		if err != nil {
			return fmt.Errorf("failed to marshal dive %d: %w", dive.ID, err)
		}
		pipe.Set(ctx, DiveKey(dive.ID), data, 0)
		pipe.SAdd(ctx, KeyAllDives, uint32(dive.ID))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	return s.SaveLastID(ctx, last)
}

// WriteBatch applies b in a single MULTI/EXEC transaction
func (s *Store) WriteBatch(ctx context.Context, b store.Batch) error {
	if b.Empty() {
		return nil
	}

	pipe := s.client.TxPipeline()

	for _, dive := range b.Dives {
		data, err := json.Marshal(dive)
		if err != nil {
			return fmt.Errorf("failed to marshal dive %d: %w", dive.ID, err)
		}
		pipe.Set(ctx, DiveKey(dive.ID), data, 0)
		pipe.SAdd(ctx, KeyAllDives, uint32(dive.ID))
	}

	for _, site := range b.Sites {
		data, err := json.Marshal(site)
		if err != nil {
			return fmt.Errorf("failed to marshal site %d: %w", site.ID, err)
		}
		pipe.Set(ctx, SiteKey(site.ID), data, 0)
		pipe.SAdd(ctx, KeyAllSites, uint32(site.ID))
	}

	for _, id := range b.Deleted {
		pipe.Del(ctx, SiteKey(id))
		pipe.SRem(ctx, KeyAllSites, uint32(id))
	}

	if b.LastID != domain.NoSite {
		// EVAL, not EVALSHA: a NOSCRIPT reply cannot be retried inside MULTI
		lastIDScript.Eval(ctx, pipe, []string{KeyLastID}, uint32(b.LastID))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write batch: %w", err)
	}

	return nil
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client
func (s *Store) Close() error {
	return s.client.Close()
}

// members returns the numeric members of a set, sorted ascending
func (s *Store) members(ctx context.Context, key string) ([]uint32, error) {
	raw, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	ids := make([]uint32, 0, len(raw))
	for _, m := range raw {
		n, err := strconv.ParseUint(m, 10, 32)
		if err != nil {
			continue
		}
		ids = append(ids, uint32(n))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
