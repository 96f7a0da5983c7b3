package sync

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"stock-sync-service/internal/logger"
	"stock-sync-service/internal/store"
)

type EventType string

const (
	ProductUpdated  EventType = "product.updated"
	HistoryAppended EventType = "history.appended"
	AutoSyncChanged EventType = "autosync.changed"
)

type Event struct {
	Type     EventType             `json:"type"`
	At       time.Time             `json:"at"`
	Product  *store.Product        `json:"product,omitempty"`
	Entry    *store.HistoryEntry   `json:"entry,omitempty"`
	AutoSync *store.AutoSyncConfig `json:"autosync,omitempty"`
}

func (e Event) String() string {
	switch {
	case e.Product != nil:
		return fmt.Sprintf("[%s] product %s (%s)", e.Type, e.Product.ID, e.Product.SyncStatus)
	case e.Entry != nil:
		return fmt.Sprintf("[%s] %s/%s %s", e.Type, e.Entry.ProductRef, e.Entry.Channel, e.Entry.Status)
	default:
		return fmt.Sprintf("[%s]", e.Type)
	}
}

// Outcome is the result of reconciling one product.
type Outcome struct {
	ProductID string           `json:"product_id"`
	Status    store.SyncStatus `json:"sync_status,omitempty"`
	Channel   store.Channel    `json:"channel,omitempty"`
	OldStock  int              `json:"old_stock"`
	NewStock  int              `json:"new_stock"`
	Updated   []store.Channel  `json:"updated_channels,omitempty"`
	Error     string           `json:"error,omitempty"`
	Err       error            `json:"-"`
}

func failedOutcome(id string, err error) Outcome {
	return Outcome{ProductID: id, Err: err, Error: err.Error()}
}

// BulkResult carries one outcome per product touched by a bulk pass.
type BulkResult struct {
	Outcomes []Outcome `json:"outcomes"`
}

func (r *BulkResult) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

func (r *BulkResult) Succeeded() int {
	return len(r.Outcomes) - r.Failed()
}

type StatusSummary struct {
	Synced    int `json:"synced"`
	OutOfSync int `json:"out_of_sync"`
	Error     int `json:"error"`
	Total     int `json:"total"`
}

const subscriberBuffer = 64

type subscriber struct {
	ch    chan Event
	types []EventType
}

func (s *subscriber) wants(t EventType) bool {
	return len(s.types) == 0 || slices.Contains(s.types, t)
}

type broker struct {
	mu     sync.Mutex
	subs   map[int]*subscriber
	nextID int
}

func newBroker() *broker {
	return &broker{subs: make(map[int]*subscriber)}
}

// subscribe registers a subscriber for the given event types, or for every
// event when types is empty.
func (b *broker) subscribe(types ...EventType) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	sub := &subscriber{ch: make(chan Event, subscriberBuffer), types: types}
	b.subs[id] = sub

	return sub.ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub.ch)
		}
	}
}

// publish never blocks; a subscriber that falls behind loses events.
func (b *broker) publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subs {
		if !sub.wants(e.Type) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			logger.Log.Warn("Dropping event for slow subscriber",
				zap.Int("subscriber", id),
				zap.String("event", string(e.Type)),
			)
		}
	}
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}
