package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/divesite/internal/editor"
	"github.com/MrSnakeDoc/divesite/internal/logger"
)

const (
	// DefaultSessionTTL is the idle time after which an edit session is discarded
	DefaultSessionTTL = 2 * time.Hour
)

// SessionReaper discards edit sessions that have been idle too long, so an
// abandoned editor never holds a site's edit lock forever.
type SessionReaper struct {
	editor   *editor.Editor
	logger   logger.Logger
	interval time.Duration
	ttl      time.Duration
	now      func() time.Time
	stopCh   chan struct{}
}

// NewSessionReaper creates a new session reaper
func NewSessionReaper(
	ed *editor.Editor,
	log logger.Logger,
	interval time.Duration,
	ttl time.Duration,
) *SessionReaper {
	if ttl == 0 {
		ttl = DefaultSessionTTL
	}

	return &SessionReaper{
		editor:   ed,
		logger:   log,
		interval: interval,
		ttl:      ttl,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic reaping process
func (sr *SessionReaper) Start(ctx context.Context) error {
	ticker := time.NewTicker(sr.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sr.Reap()
			case <-sr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reaper
func (sr *SessionReaper) Stop() {
	close(sr.stopCh)
}

// Reap discards every session idle for longer than the TTL and returns
// how many were dropped.
func (sr *SessionReaper) Reap() int {
	n := sr.editor.DiscardIdle(sr.now().Add(-sr.ttl))

	if n > 0 {
		sr.logger.Info("discarded idle edit sessions",
			logger.Int("count", n),
			logger.Duration("ttl", sr.ttl))
	} else {
		sr.logger.Debug("no idle edit sessions")
	}

	return n
}
