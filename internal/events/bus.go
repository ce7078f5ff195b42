package events

import (
	"sync"
	"time"

	"github.com/MrSnakeDoc/divesite/internal/domain"
	"github.com/MrSnakeDoc/divesite/internal/logger"
)

// Kind names a change notification.
type Kind string

const (
	SiteCreated  Kind = "site_created"
	SiteUpdated  Kind = "site_updated"
	SiteRemoved  Kind = "site_removed"
	SitesMerged  Kind = "sites_merged"
	FieldChanged Kind = "field_changed"
	DiveAssigned Kind = "dive_assigned"
	DiveRecorded Kind = "dive_recorded"
)

// Event is one change notification.
//
// For SitesMerged, SiteIDs holds the target first followed by the removed sources.
// FieldChanged events are session-local and carry the session id and field.
// Dives lists dive records whose site reference changed with the event.
type Event struct {
	Seq     uint64          `json:"seq"`
	Kind    Kind            `json:"kind"`
	SiteIDs []domain.SiteID `json:"site_ids,omitempty"`
	Dives   []domain.DiveID `json:"dives,omitempty"`
	Session string          `json:"session,omitempty"`
	Field   domain.Field    `json:"field,omitempty"`
	At      time.Time       `json:"at"`
}

// Sink receives change notifications.
type Sink interface {
	Publish(e Event)
}

// Handler consumes published events.
type Handler func(e Event)

// Bus delivers events to every subscriber synchronously, in publish order.
// Handlers must not publish on the same bus.
type Bus struct {
	mu       sync.Mutex
	seq      uint64
	handlers []Handler
	now      func() time.Time
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{now: time.Now}
}

// Subscribe registers h for all subsequent events.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers = append(b.handlers, h)
}

// Publish stamps e with the next sequence number and delivers it.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	e.Seq = b.seq
	if e.At.IsZero() {
		e.At = b.now()
	}
	for _, h := range b.handlers {
		h(e)
	}
}

// Seq returns the sequence number of the last published event.
func (b *Bus) Seq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.seq
}

// LogHandler logs every event at debug level.
func LogHandler(log logger.Logger) Handler {
	return func(e Event) {
		ids := make([]uint32, len(e.SiteIDs))
		for i, id := range e.SiteIDs {
			ids[i] = uint32(id)
		}
		log.Debug("change notification",
			logger.Uint64("seq", e.Seq),
			logger.String("kind", string(e.Kind)),
			logger.Uint32s("site_ids", ids),
			logger.String("session", e.Session),
			logger.String("field", string(e.Field)))
	}
}
