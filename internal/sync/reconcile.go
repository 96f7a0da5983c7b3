package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"stock-sync-service/internal/logger"
	"stock-sync-service/internal/store"
)

// ReconcileOne overwrites the listed mirrors of product id with its internal
// stock. With no channels given, all channels are targeted. Channels where
// the product is unlisted (stock 0) are never written.
//
// A channel failure leaves every stock value untouched, marks the product
// as errored and is returned as *TransientSyncError.
func (m *Manager) ReconcileOne(ctx context.Context, id string, channels ...store.Channel) (*Outcome, error) {
	targets, err := targetChannels(channels)
	if err != nil {
		return nil, err
	}

	release, err := m.acquire(productKey(id))
	if err != nil {
		return nil, err
	}
	defer release()

	out, err := m.reconcile(ctx, id, targets)
	if err != nil {
		var syncErr *TransientSyncError
		if errors.As(err, &syncErr) {
			if recErr := m.recordFailure(ctx, out, syncErr); recErr != nil {
				return out, errors.Join(err, recErr)
			}
			return out, err
		}
		return nil, err
	}

	msg := fmt.Sprintf("Synced %d channel(s) to internal stock %d", len(out.Updated), out.NewStock)
	if len(out.Updated) == 0 {
		msg = "Channels already match internal stock"
	}
	if err := m.record(ctx, &store.HistoryEntry{
		ProductRef: id,
		Channel:    string(out.Channel),
		Status:     store.HistorySuccess,
		OldStock:   out.OldStock,
		NewStock:   out.NewStock,
		Message:    msg,
	}); err != nil {
		return out, err
	}
	return out, nil
}

// ReconcileAll reconciles every product on every channel. Per product
// failures are reported in the result and never abort the pass.
func (m *Manager) ReconcileAll(ctx context.Context) (*BulkResult, error) {
	release, err := m.acquire(bulkKey)
	if err != nil {
		return nil, err
	}
	defer release()

	products, err := m.store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}

	result := m.runBulk(ctx, ids)
	if err := ctx.Err(); err != nil {
		return result, err
	}

	msg := fmt.Sprintf("Reconciled %d of %d product(s)", result.Succeeded(), len(ids))
	if err := m.recordBulk(ctx, store.RefAll, result, msg); err != nil {
		return result, err
	}
	return result, nil
}

// AutoSync reconciles the products currently out of sync. It always
// refreshes LastAutoSync, and records history only when it had work to do.
func (m *Manager) AutoSync(ctx context.Context) (*BulkResult, error) {
	release, err := m.acquire(bulkKey)
	if err != nil {
		return nil, err
	}
	defer release()

	result := &BulkResult{Outcomes: []Outcome{}}

	cfg, err := m.store.GetAutoSyncConfig(ctx)
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		logger.Log.Debug("Auto sync disabled, skipping")
		return result, m.touchAutoSync(ctx)
	}

	products, err := m.store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, p := range products {
		if p.SyncStatus == store.StatusOutOfSync {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		logger.Log.Debug("Auto sync found nothing out of sync")
		return result, m.touchAutoSync(ctx)
	}

	result = m.runBulk(ctx, ids)
	if err := ctx.Err(); err != nil {
		return result, err
	}

	msg := fmt.Sprintf("Auto-synced %d of %d out-of-sync product(s)", result.Succeeded(), len(ids))
	if err := m.recordBulk(ctx, store.RefAuto, result, msg); err != nil {
		return result, err
	}
	logger.Log.Info("Auto sync completed",
		zap.Int("products", len(ids)),
		zap.Int("failed", result.Failed()),
	)
	return result, m.touchAutoSync(ctx)
}

// runBulk reconciles ids on the worker pool and returns their outcomes in
// the same order.
func (m *Manager) runBulk(ctx context.Context, ids []string) *BulkResult {
	outcomes := make([]Outcome, len(ids))
	var wg sync.WaitGroup

	for i, id := range ids {
		i, id := i, id
		wg.Add(1)
		err := m.pool.Submit(ctx, func() {
			defer wg.Done()
			outcomes[i] = m.reconcileForBulk(ctx, id)
		})
		if err != nil {
			wg.Done()
			outcomes[i] = failedOutcome(id, err)
		}
	}
	wg.Wait()

	return &BulkResult{Outcomes: outcomes}
}

func (m *Manager) reconcileForBulk(ctx context.Context, id string) Outcome {
	release, err := m.acquire(productKey(id))
	if err != nil {
		return failedOutcome(id, err)
	}
	defer release()

	out, err := m.reconcile(ctx, id, store.Channels)
	if err != nil {
		var syncErr *TransientSyncError
		if errors.As(err, &syncErr) {
			if recErr := m.recordFailure(ctx, out, syncErr); recErr != nil {
				logger.Log.Error("Failed to record sync failure", zap.String("product_id", id), zap.Error(recErr))
			}
			o := *out
			o.Err = err
			o.Error = err.Error()
			return o
		}
		return failedOutcome(id, err)
	}
	return *out
}

// reconcile pushes internal stock to every drifted target and persists the
// result. Callers must hold the product key.
func (m *Manager) reconcile(ctx context.Context, id string, targets []store.Channel) (*Outcome, error) {
	p, err := m.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	before := p.Clone()

	var pending []store.Channel
	for _, ch := range targets {
		qty := p.Stock(ch)
		if qty != 0 && qty != p.InternalStock {
			pending = append(pending, ch)
		}
	}

	for _, ch := range pending {
		if err := m.client.PushStock(ctx, ch, p.SKU, p.InternalStock); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return m.markFailed(ctx, before, ch, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, ch := range pending {
		p.ChannelStock[ch] = p.InternalStock
	}
	p.SyncStatus = DeriveStatus(p)
	p.LastSync = m.now()
	if err := m.saveProduct(ctx, p); err != nil {
		return nil, err
	}

	ch := touchedChannel(before, p, targets)
	logger.Log.Debug("Reconciled product",
		zap.String("product_id", id),
		zap.Int("updated", len(pending)),
		zap.String("status", string(p.SyncStatus)),
	)
	return &Outcome{
		ProductID: id,
		Status:    p.SyncStatus,
		Channel:   ch,
		OldStock:  before.Stock(ch),
		NewStock:  p.Stock(ch),
		Updated:   pending,
	}, nil
}

func (m *Manager) markFailed(ctx context.Context, p *store.Product, ch store.Channel, cause error) (*Outcome, error) {
	logger.Log.Warn("Channel push failed",
		zap.String("product_id", p.ID),
		zap.String("channel", string(ch)),
		zap.Error(cause),
	)

	p.SyncStatus = store.StatusError
	if err := m.saveProduct(ctx, p); err != nil {
		return nil, err
	}

	syncErr := &TransientSyncError{ProductID: p.ID, Channel: ch, Err: cause}
	return &Outcome{
		ProductID: p.ID,
		Status:    store.StatusError,
		Channel:   ch,
		OldStock:  p.Stock(ch),
		NewStock:  p.Stock(ch),
		Error:     syncErr.Error(),
		Err:       syncErr,
	}, syncErr
}

func (m *Manager) recordFailure(ctx context.Context, out *Outcome, syncErr *TransientSyncError) error {
	return m.record(ctx, &store.HistoryEntry{
		ProductRef: syncErr.ProductID,
		Channel:    string(syncErr.Channel),
		Status:     store.HistoryFailed,
		OldStock:   out.OldStock,
		NewStock:   out.NewStock,
		Message:    syncErr.Err.Error(),
	})
}

func (m *Manager) recordBulk(ctx context.Context, ref string, result *BulkResult, msg string) error {
	status := store.HistorySuccess
	if failed := result.Failed(); failed > 0 {
		status = store.HistoryFailed
		msg = fmt.Sprintf("%s; %d failed", msg, failed)
	}
	return m.record(ctx, &store.HistoryEntry{
		ProductRef: ref,
		Channel:    store.RefAll,
		Status:     status,
		Message:    msg,
	})
}
