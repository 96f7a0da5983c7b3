package sync

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/go-mysql-org/go-mysql/canal"
	"go.uber.org/zap"

	"stock-sync-service/internal/config"
	"stock-sync-service/internal/logger"
)

const (
	productsTable       = "products"
	idColumn            = "id"
	internalStockColumn = "internal_stock"

	conflictRetries = 3
	conflictBackoff = 200 * time.Millisecond
)

// BinlogListener tails the products table of the state database and
// reconciles a product as soon as its internal stock changes there.
type BinlogListener struct {
	cfg     config.StateStorage
	canal   *canal.Canal
	manager *Manager
	changed chan string
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewBinlogListener(cfg config.StateStorage, manager *Manager) (*BinlogListener, error) {
	c, err := canal.NewCanal(&canal.Config{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		User:     cfg.ReplicationUser,
		Password: cfg.ReplicationPassword,
		Flavor:   "mysql",
		ServerID: cfg.ServerID,
		Dump: canal.DumpConfig{
			ExecutionPath: "", // binlog only, no initial dump
		},
		IncludeTableRegex: []string{fmt.Sprintf("^%s\\.%s$", regexp.QuoteMeta(cfg.Database), productsTable)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create canal: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &BinlogListener{
		cfg:     cfg,
		canal:   c,
		manager: manager,
		changed: make(chan string, 10000),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	c.SetEventHandler(&eventHandler{listener: l})
	return l, nil
}

func (l *BinlogListener) Start() error {
	pos, err := l.canal.GetMasterPos()
	if err != nil {
		return fmt.Errorf("failed to read master position: %w", err)
	}
	logger.Log.Info("Starting binlog listener",
		zap.String("host", l.cfg.Host),
		zap.String("file", pos.Name),
		zap.Uint32("pos", pos.Pos),
	)

	go func() {
		if err := l.canal.RunFrom(pos); err != nil && !errors.Is(err, context.Canceled) {
			logger.Log.Error("Canal run error", zap.Error(err))
		}
	}()
	go l.consume()
	return nil
}

func (l *BinlogListener) Stop() {
	l.cancel()
	l.canal.Close()
	<-l.done
	logger.Log.Info("Stopped binlog listener")
}

func (l *BinlogListener) consume() {
	defer close(l.done)
	for {
		select {
		case id := <-l.changed:
			l.reconcile(id)
		case <-l.ctx.Done():
			return
		}
	}
}

func (l *BinlogListener) reconcile(id string) {
	for attempt := 0; attempt <= conflictRetries; attempt++ {
		_, err := l.manager.ReconcileOne(l.ctx, id)
		if !errors.Is(err, ErrConflict) {
			if err != nil {
				logger.Log.Warn("Realtime reconcile failed", zap.String("product_id", id), zap.Error(err))
			}
			return
		}
		select {
		case <-time.After(conflictBackoff * time.Duration(attempt+1)):
		case <-l.ctx.Done():
			return
		}
	}
	logger.Log.Warn("Realtime reconcile gave up, product busy", zap.String("product_id", id))
}

type eventHandler struct {
	canal.DummyEventHandler
	listener *BinlogListener
}

func (h *eventHandler) OnRow(e *canal.RowsEvent) error {
	for _, id := range changedInternalStock(e) {
		// Block when the queue is full to apply backpressure to canal.
		select {
		case h.listener.changed <- id:
		case <-h.listener.ctx.Done():
			return h.listener.ctx.Err()
		}
	}
	return nil
}

func (h *eventHandler) String() string {
	return "ProductStockEventHandler"
}

// changedInternalStock returns the ids of products whose internal stock
// differs between the before and after images of an update event.
func changedInternalStock(e *canal.RowsEvent) []string {
	if e.Action != canal.UpdateAction || e.Table == nil || e.Table.Name != productsTable {
		return nil
	}
	idIdx := e.Table.FindColumn(idColumn)
	stockIdx := e.Table.FindColumn(internalStockColumn)
	if idIdx < 0 || stockIdx < 0 {
		return nil
	}

	var ids []string
	// Update rows come in before/after pairs.
	for i := 0; i+1 < len(e.Rows); i += 2 {
		before, after := e.Rows[i], e.Rows[i+1]
		if len(before) <= stockIdx || len(after) <= stockIdx || len(after) <= idIdx {
			continue
		}
		if fmt.Sprint(before[stockIdx]) != fmt.Sprint(after[stockIdx]) {
			ids = append(ids, fmt.Sprint(after[idIdx]))
		}
	}
	return ids
}
