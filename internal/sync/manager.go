package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"stock-sync-service/internal/config"
	"stock-sync-service/internal/logger"
	"stock-sync-service/internal/store"
)

const (
	StatusIdle    = "idle"
	StatusRunning = "running"

	bulkKey = "bulk"
)

// Manager owns the product catalogue, the sync history and the auto sync
// settings. All mutation goes through it.
type Manager struct {
	store  store.Store
	client ChannelClient
	pool   *WorkerPool
	events *broker
	now    func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}

	// serializes history stamping so entries are never out of order
	historyMu sync.Mutex
	lastStamp time.Time

	configMu sync.Mutex

	// guards the SKU uniqueness check in AddProduct
	catalogueMu sync.Mutex
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithWorkers(n int) Option {
	return func(m *Manager) { m.pool = NewWorkerPool(n) }
}

func NewManager(st store.Store, client ChannelClient, opts ...Option) *Manager {
	m := &Manager{
		store:    st,
		client:   client,
		events:   newBroker(),
		now:      time.Now,
		inflight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.pool == nil {
		m.pool = NewWorkerPool(4)
	}
	m.pool.Start()
	return m
}

func (m *Manager) Close() {
	m.pool.Stop()
	m.events.close()
}

// Subscribe returns a stream of change events and a function that ends the
// subscription. With types given, only those events are delivered.
func (m *Manager) Subscribe(types ...EventType) (<-chan Event, func()) {
	return m.events.subscribe(types...)
}

// GetStatus reports whether any reconciliation is in flight.
func (m *Manager) GetStatus() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.inflight) > 0 {
		return StatusRunning
	}
	return StatusIdle
}

func productKey(id string) string {
	return "product:" + id
}

// acquire claims key or fails with ErrConflict.
func (m *Manager) acquire(key string) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, busy := m.inflight[key]; busy {
		return nil, fmt.Errorf("%s: %w", key, ErrConflict)
	}
	m.inflight[key] = struct{}{}
	return func() {
		m.mu.Lock()
		delete(m.inflight, key)
		m.mu.Unlock()
	}, nil
}

func (m *Manager) publish(e Event) {
	e.At = m.now()
	m.events.publish(e)
}

func (m *Manager) saveProduct(ctx context.Context, p *store.Product) error {
	if err := m.store.SaveProduct(ctx, p); err != nil {
		return fmt.Errorf("failed to save product %s: %w", p.ID, err)
	}
	m.publish(Event{Type: ProductUpdated, Product: p.Clone()})
	return nil
}

func (m *Manager) record(ctx context.Context, e *store.HistoryEntry) error {
	m.historyMu.Lock()
	defer m.historyMu.Unlock()

	ts := m.now()
	if ts.Before(m.lastStamp) {
		ts = m.lastStamp
	}
	e.ID = uuid.NewString()
	e.Timestamp = ts

	if err := m.store.AppendHistory(ctx, e); err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	m.lastStamp = ts

	entry := *e
	m.publish(Event{Type: HistoryAppended, Entry: &entry})
	return nil
}

// Reads

func (m *Manager) Products(ctx context.Context) ([]*store.Product, error) {
	return m.store.ListProducts(ctx)
}

func (m *Manager) Product(ctx context.Context, id string) (*store.Product, error) {
	return m.store.GetProduct(ctx, id)
}

func (m *Manager) History(ctx context.Context, limit, offset int) ([]*store.HistoryEntry, error) {
	return m.store.ListHistory(ctx, limit, offset)
}

func (m *Manager) AutoSyncConfig(ctx context.Context) (*store.AutoSyncConfig, error) {
	return m.store.GetAutoSyncConfig(ctx)
}

func (m *Manager) GetSyncStatus(ctx context.Context) (StatusSummary, error) {
	products, err := m.store.ListProducts(ctx)
	if err != nil {
		return StatusSummary{}, err
	}

	var s StatusSummary
	for _, p := range products {
		switch p.SyncStatus {
		case store.StatusSynced:
			s.Synced++
		case store.StatusOutOfSync:
			s.OutOfSync++
		case store.StatusError:
			s.Error++
		}
	}
	s.Total = len(products)
	return s, nil
}

// GetLastSyncTime returns the most recent LastSync across all products, or
// nil when no product has been reconciled yet.
func (m *Manager) GetLastSyncTime(ctx context.Context) (*time.Time, error) {
	products, err := m.store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, nil
	}

	latest := products[0].LastSync
	for _, p := range products[1:] {
		if p.LastSync.After(latest) {
			latest = p.LastSync
		}
	}
	if latest.IsZero() {
		return nil, nil
	}
	return &latest, nil
}

// Auto sync settings

func (m *Manager) ToggleAutoSync(ctx context.Context, enabled bool) (*store.AutoSyncConfig, error) {
	return m.updateAutoSync(ctx, func(cfg *store.AutoSyncConfig) {
		cfg.Enabled = enabled
	})
}

func (m *Manager) SetAutoSyncInterval(ctx context.Context, minutes int) (*store.AutoSyncConfig, error) {
	if minutes < 1 {
		return nil, ErrInvalidInterval
	}
	return m.updateAutoSync(ctx, func(cfg *store.AutoSyncConfig) {
		cfg.IntervalMinutes = minutes
	})
}

// UpdateAutoSync applies whichever of enabled and minutes is non-nil in a
// single save.
func (m *Manager) UpdateAutoSync(ctx context.Context, enabled *bool, minutes *int) (*store.AutoSyncConfig, error) {
	if minutes != nil && *minutes < 1 {
		return nil, ErrInvalidInterval
	}
	return m.updateAutoSync(ctx, func(cfg *store.AutoSyncConfig) {
		if enabled != nil {
			cfg.Enabled = *enabled
		}
		if minutes != nil {
			cfg.IntervalMinutes = *minutes
		}
	})
}

func (m *Manager) touchAutoSync(ctx context.Context) error {
	now := m.now()
	_, err := m.updateAutoSync(ctx, func(cfg *store.AutoSyncConfig) {
		cfg.LastAutoSync = &now
	})
	return err
}

func (m *Manager) updateAutoSync(ctx context.Context, mutate func(*store.AutoSyncConfig)) (*store.AutoSyncConfig, error) {
	m.configMu.Lock()
	defer m.configMu.Unlock()

	cfg, err := m.store.GetAutoSyncConfig(ctx)
	if err != nil {
		return nil, err
	}
	mutate(cfg)
	if err := m.store.SaveAutoSyncConfig(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to save auto sync config: %w", err)
	}

	m.publish(Event{Type: AutoSyncChanged, AutoSync: cfg.Clone()})
	return cfg, nil
}

// External stock changes. These re-derive the status but are not
// reconciliations, so they leave LastSync and the history alone.

func (m *Manager) AddProduct(ctx context.Context, p *store.Product) (*store.Product, error) {
	if p.SKU == "" || p.Name == "" {
		return nil, fmt.Errorf("%w: sku and name are required", ErrInvalidProduct)
	}
	if p.InternalStock < 0 {
		return nil, ErrInvalidQuantity
	}

	np := p.Clone()
	np.ChannelStock = make(map[store.Channel]int, len(store.Channels))
	for ch, qty := range p.ChannelStock {
		parsed, err := store.ParseChannel(string(ch))
		if err != nil {
			return nil, err
		}
		if qty < 0 {
			return nil, ErrInvalidQuantity
		}
		np.ChannelStock[parsed] = qty
	}
	if np.ID == "" {
		np.ID = uuid.NewString()
	}

	release, err := m.acquire(productKey(np.ID))
	if err != nil {
		return nil, err
	}
	defer release()

	m.catalogueMu.Lock()
	defer m.catalogueMu.Unlock()

	if _, err := m.store.GetProduct(ctx, np.ID); err == nil {
		return nil, fmt.Errorf("%s: %w", np.ID, ErrProductExists)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	existing, err := m.store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	for _, other := range existing {
		if other.SKU == np.SKU {
			return nil, fmt.Errorf("sku %s: %w", np.SKU, ErrProductExists)
		}
	}

	np.SyncStatus = DeriveStatus(np)
	if err := m.saveProduct(ctx, np); err != nil {
		return nil, err
	}
	return np, nil
}

func (m *Manager) SetInternalStock(ctx context.Context, id string, qty int) (*store.Product, error) {
	if qty < 0 {
		return nil, ErrInvalidQuantity
	}
	return m.updateProduct(ctx, id, func(p *store.Product) {
		p.InternalStock = qty
	})
}

// SetChannelStock records the quantity a channel currently reports, e.g.
// after a sale on the marketplace. Zero marks the product as unlisted there.
func (m *Manager) SetChannelStock(ctx context.Context, id string, ch store.Channel, qty int) (*store.Product, error) {
	parsed, err := store.ParseChannel(string(ch))
	if err != nil {
		return nil, err
	}
	if qty < 0 {
		return nil, ErrInvalidQuantity
	}
	return m.updateProduct(ctx, id, func(p *store.Product) {
		p.ChannelStock[parsed] = qty
	})
}

func (m *Manager) updateProduct(ctx context.Context, id string, mutate func(*store.Product)) (*store.Product, error) {
	release, err := m.acquire(productKey(id))
	if err != nil {
		return nil, err
	}
	defer release()

	p, err := m.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	mutate(p)
	p.SyncStatus = DeriveStatus(p)
	if err := m.saveProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Seed loads seeds into an empty catalogue and reports how many products
// were added. A catalogue that already has products is left untouched.
func (m *Manager) Seed(ctx context.Context, seeds []config.ProductSeed) (int, error) {
	existing, err := m.store.ListProducts(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}

	for i, s := range seeds {
		p := &store.Product{
			ID:            s.ID,
			SKU:           s.SKU,
			Name:          s.Name,
			Unit:          s.Unit,
			InternalStock: s.Internal,
			ChannelStock:  make(map[store.Channel]int, len(s.Channels)),
		}
		for name, qty := range s.Channels {
			p.ChannelStock[store.Channel(name)] = qty
		}
		if _, err := m.AddProduct(ctx, p); err != nil {
			return i, fmt.Errorf("failed to seed %s: %w", s.SKU, err)
		}
	}

	logger.Log.Info("Seeded product catalogue", zap.Int("products", len(seeds)))
	return len(seeds), nil
}
