package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"time"

	"stock-sync-service/internal/database"
)

//go:embed schema.sql
var schema string

const autoSyncRowID = 1

type MySQLStore struct {
	db *database.Database
}

// NewMySQLStore migrates the schema and makes sure an auto sync row exists,
// seeded from defaults on first start.
func NewMySQLStore(ctx context.Context, db *database.Database, defaults AutoSyncConfig) (*MySQLStore, error) {
	if _, err := db.DB.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	query := `INSERT IGNORE INTO autosync_config (id, enabled, interval_minutes, last_auto_sync) VALUES (?, ?, ?, NULL)`
	if _, err := db.DB.ExecContext(ctx, query, autoSyncRowID, defaults.Enabled, defaults.IntervalMinutes); err != nil {
		return nil, fmt.Errorf("failed to init autosync config: %w", err)
	}

	return &MySQLStore{db: db}, nil
}

func (s *MySQLStore) Close() error {
	return s.db.Close()
}

const productColumns = `id, sku, name, unit, internal_stock, sync_status, last_sync`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*Product, error) {
	var (
		p        Product
		status   string
		lastSync sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Unit, &p.InternalStock, &status, &lastSync); err != nil {
		return nil, err
	}
	p.SyncStatus = SyncStatus(status)
	if lastSync.Valid {
		p.LastSync = lastSync.Time
	}
	p.ChannelStock = make(map[Channel]int, len(Channels))
	return &p, nil
}

func (s *MySQLStore) ListProducts(ctx context.Context) ([]*Product, error) {
	rows, err := s.db.DB.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []*Product
	byID := make(map[string]*Product)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
		byID[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stockRows, err := s.db.DB.QueryContext(ctx, `SELECT product_id, channel, quantity FROM product_channel_stock`)
	if err != nil {
		return nil, err
	}
	defer stockRows.Close()

	for stockRows.Next() {
		var (
			id, channel string
			qty         int
		)
		if err := stockRows.Scan(&id, &channel, &qty); err != nil {
			return nil, err
		}
		if p, ok := byID[id]; ok {
			p.ChannelStock[Channel(channel)] = qty
		}
	}
	return products, stockRows.Err()
}

func (s *MySQLStore) GetProduct(ctx context.Context, id string) (*Product, error) {
	row := s.db.DB.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.DB.QueryContext(ctx, `SELECT channel, quantity FROM product_channel_stock WHERE product_id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			channel string
			qty     int
		)
		if err := rows.Scan(&channel, &qty); err != nil {
			return nil, err
		}
		p.ChannelStock[Channel(channel)] = qty
	}
	return p, rows.Err()
}

func (s *MySQLStore) SaveProduct(ctx context.Context, p *Product) error {
	var lastSync sql.NullTime
	if !p.LastSync.IsZero() {
		lastSync = sql.NullTime{Time: p.LastSync, Valid: true}
	}

	return s.db.ExecTx(ctx, func(tx *sql.Tx) error {
		query := `INSERT INTO products (id, sku, name, unit, internal_stock, sync_status, last_sync)
				  VALUES (?, ?, ?, ?, ?, ?, ?)
				  ON DUPLICATE KEY UPDATE
				  sku = VALUES(sku),
				  name = VALUES(name),
				  unit = VALUES(unit),
				  internal_stock = VALUES(internal_stock),
				  sync_status = VALUES(sync_status),
				  last_sync = VALUES(last_sync)`
		if _, err := tx.ExecContext(ctx, query,
			p.ID, p.SKU, p.Name, p.Unit, p.InternalStock, string(p.SyncStatus), lastSync,
		); err != nil {
			return fmt.Errorf("failed to upsert product %s: %w", p.ID, err)
		}

		stockQuery := `INSERT INTO product_channel_stock (product_id, channel, quantity)
					   VALUES (?, ?, ?)
					   ON DUPLICATE KEY UPDATE quantity = VALUES(quantity)`
		for _, ch := range Channels {
			if _, err := tx.ExecContext(ctx, stockQuery, p.ID, string(ch), p.Stock(ch)); err != nil {
				return fmt.Errorf("failed to upsert %s stock for %s: %w", ch, p.ID, err)
			}
		}
		return nil
	})
}

func (s *MySQLStore) AppendHistory(ctx context.Context, entry *HistoryEntry) error {
	query := `INSERT INTO sync_history (id, product_ref, channel, recorded_at, status, old_stock, new_stock, message)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.DB.ExecContext(ctx, query,
		entry.ID,
		entry.ProductRef,
		entry.Channel,
		entry.Timestamp,
		string(entry.Status),
		entry.OldStock,
		entry.NewStock,
		entry.Message,
	)
	return err
}

func (s *MySQLStore) ListHistory(ctx context.Context, limit, offset int) ([]*HistoryEntry, error) {
	if limit <= 0 {
		limit = math.MaxInt32
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT id, product_ref, channel, recorded_at, status, old_stock, new_stock, message
			  FROM sync_history ORDER BY recorded_at DESC, seq DESC LIMIT ? OFFSET ?`

	rows, err := s.db.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []*HistoryEntry{}
	for rows.Next() {
		var (
			h      HistoryEntry
			status string
		)
		if err := rows.Scan(&h.ID, &h.ProductRef, &h.Channel, &h.Timestamp, &status, &h.OldStock, &h.NewStock, &h.Message); err != nil {
			return nil, err
		}
		h.Status = HistoryStatus(status)
		history = append(history, &h)
	}
	return history, rows.Err()
}

func (s *MySQLStore) GetAutoSyncConfig(ctx context.Context) (*AutoSyncConfig, error) {
	query := `SELECT enabled, interval_minutes, last_auto_sync FROM autosync_config WHERE id = ?`

	var (
		cfg  AutoSyncConfig
		last sql.NullTime
	)
	err := s.db.DB.QueryRowContext(ctx, query, autoSyncRowID).Scan(&cfg.Enabled, &cfg.IntervalMinutes, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("autosync config: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if last.Valid {
		t := last.Time
		cfg.LastAutoSync = &t
	}
	return &cfg, nil
}

func (s *MySQLStore) SaveAutoSyncConfig(ctx context.Context, cfg *AutoSyncConfig) error {
	var last sql.NullTime
	if cfg.LastAutoSync != nil {
		last = sql.NullTime{Time: cfg.LastAutoSync.UTC().Truncate(time.Microsecond), Valid: true}
	}

	query := `UPDATE autosync_config SET enabled = ?, interval_minutes = ?, last_auto_sync = ? WHERE id = ?`
	_, err := s.db.DB.ExecContext(ctx, query, cfg.Enabled, cfg.IntervalMinutes, last, autoSyncRowID)
	return err
}
