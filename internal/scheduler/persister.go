package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/divesite/internal/catalog"
	"github.com/MrSnakeDoc/divesite/internal/domain"
	"github.com/MrSnakeDoc/divesite/internal/events"
	"github.com/MrSnakeDoc/divesite/internal/logger"
	"github.com/MrSnakeDoc/divesite/internal/metrics"
	"github.com/MrSnakeDoc/divesite/internal/store"
)

// DefaultPersistQueue is the number of notifications buffered before
// publishers start waiting on the store.
const DefaultPersistQueue = 256

const (
	defaultPersistAttempts = 3
	defaultPersistBackoff  = 200 * time.Millisecond
)

// Persister mirrors catalog changes into a store.
//
// It subscribes to change notifications and, for every site or dive an
// event mentions, writes the catalog's current state of that record.
// Because it always reads the catalog rather than the event, replaying or
// coalescing events never leaves the store behind.
type Persister struct {
	store   store.Store
	catalog *catalog.Catalog
	logger  logger.Logger
	metrics *metrics.Metrics
	queue   chan events.Event
	stopCh  chan struct{}
	done    chan struct{}

	attempts int
	backoff  time.Duration
}

// NewPersister creates a new persister. m may be nil.
func NewPersister(
	st store.Store,
	cat *catalog.Catalog,
	log logger.Logger,
	m *metrics.Metrics,
	queueSize int,
) *Persister {
	if queueSize <= 0 {
		queueSize = DefaultPersistQueue
	}
	return &Persister{
		store:   st,
		catalog: cat,
		logger:  log,
		metrics: m,
		queue:   make(chan events.Event, queueSize),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),

		attempts: defaultPersistAttempts,
		backoff:  defaultPersistBackoff,
	}
}

// Handler returns the bus subscription feeding the persister.
func (p *Persister) Handler() events.Handler {
	return func(e events.Event) {
		if e.Kind == events.FieldChanged {
			return
		}
		select {
		case p.queue <- e:
		case <-p.done:
			p.logger.Warn("persister stopped, dropping notification",
				logger.Uint64("seq", e.Seq),
				logger.String("kind", string(e.Kind)))
		}
	}
}

// Start begins draining the queue into the store
func (p *Persister) Start(ctx context.Context) error {
	go func() {
		defer close(p.done)
		for {
			select {
			case e := <-p.queue:
				p.apply(ctx, e)
			case <-p.stopCh:
				p.drain(context.WithoutCancel(ctx))
				return
			case <-ctx.Done():
				p.drain(context.WithoutCancel(ctx))
				return
			}
		}
	}()
	return nil
}

// Stop flushes queued notifications and waits for the worker to exit
func (p *Persister) Stop() {
	close(p.stopCh)
	<-p.done
}

func (p *Persister) drain(ctx context.Context) {
	for {
		select {
		case e := <-p.queue:
			p.apply(ctx, e)
		default:
			return
		}
	}
}

func (p *Persister) apply(ctx context.Context, e events.Event) {
	if err := p.Apply(ctx, e); err != nil {
		p.metrics.PersistError()
		p.logger.Error("failed to persist change",
			logger.Uint64("seq", e.Seq),
			logger.String("kind", string(e.Kind)),
			logger.Error(err))
	}
	p.metrics.SetSites(p.catalog.Count())
}

// Apply writes the records mentioned by e. Sites missing from the catalog
// are deleted from the store. A failed write is retried, rebuilding the
// batch from the catalog each time, until the attempts run out.
func (p *Persister) Apply(ctx context.Context, e events.Event) error {
	if e.Kind == events.FieldChanged {
		return nil
	}

	wait := p.backoff
	var err error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if err = p.write(ctx, p.batch(e)); err == nil {
			return nil
		}
		if attempt == p.attempts {
			break
		}

		p.logger.Warn("persist failed, retrying",
			logger.String("kind", string(e.Kind)),
			logger.Int("attempt", attempt),
			logger.Duration("next_retry_in", wait),
			logger.Error(err))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("persist %s: %w", e.Kind, ctx.Err())
		case <-timer.C:
		}
		wait *= 2
	}
	return fmt.Errorf("persist %s: %w", e.Kind, err)
}

// batch snapshots the catalog state of every record e mentions.
func (p *Persister) batch(e events.Event) store.Batch {
	var b store.Batch
	for _, id := range e.SiteIDs {
		site, err := p.catalog.Lookup(id)
		if err != nil {
			b.Deleted = append(b.Deleted, id)
			continue
		}
		b.Sites = append(b.Sites, site)
	}

	for _, id := range e.Dives {
		// A dive is never removed from the catalog
		if d, err := p.catalog.Dive(id); err == nil {
			b.Dives = append(b.Dives, d)
		}
	}

	if e.Kind == events.SiteCreated {
		b.LastID = p.catalog.LastID()
	}
	return b
}

// write applies b atomically when the store supports it. Otherwise dives
// go first and sites are only deleted once every dive landed, so a partial
// failure never leaves a stored dive pointing at a deleted site.
func (p *Persister) write(ctx context.Context, b store.Batch) error {
	if bs, ok := p.store.(store.Batcher); ok {
		return bs.WriteBatch(ctx, b)
	}

	var errs []error
	for _, d := range b.Dives {
		if err := p.store.SaveDive(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}
	for _, site := range b.Sites {
		if err := p.store.SaveSite(ctx, site); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	for _, id := range b.Deleted {
		if err := p.store.DeleteSite(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	if b.LastID != domain.NoSite {
		if err := p.store.SaveLastID(ctx, b.LastID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
