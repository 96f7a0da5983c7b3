package store

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-sync-service/internal/database"
)

func newMockStore(t *testing.T) (*MySQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &MySQLStore{db: database.Wrap(db)}, mock
}

func TestNewMySQLStoreMigrates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS products")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO autosync_config")).
		WithArgs(autoSyncRowID, true, 10).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err = NewMySQLStore(context.Background(), database.Wrap(db), AutoSyncConfig{Enabled: true, IntervalMinutes: 10})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStoreGetProduct(t *testing.T) {
	s, mock := newMockStore(t)
	last := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id = ?")).
		WithArgs("1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "sku", "name", "unit", "internal_stock", "sync_status", "last_sync"}).
			AddRow("1", "SKU-001", "Beras", "karung", 150, "out_of_sync", last))
	mock.ExpectQuery(regexp.QuoteMeta("FROM product_channel_stock WHERE product_id = ?")).
		WithArgs("1").
		WillReturnRows(sqlmock.NewRows([]string{"channel", "quantity"}).
			AddRow("shopee", 150).
			AddRow("tokopedia", 145).
			AddRow("blibli", 0))

	p, err := s.GetProduct(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "SKU-001", p.SKU)
	assert.Equal(t, 150, p.InternalStock)
	assert.Equal(t, StatusOutOfSync, p.SyncStatus)
	assert.True(t, last.Equal(p.LastSync))
	assert.Equal(t, 145, p.Stock(Tokopedia))
	assert.Equal(t, 0, p.Stock(Website))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStoreGetProductNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id = ?")).
		WithArgs("404").
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetProduct(context.Background(), "404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMySQLStoreSaveProductWritesEveryChannel(t *testing.T) {
	s, mock := newMockStore(t)
	p := sampleProduct("7")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO products")).
		WithArgs("7", "SKU-7", "Product 7", "pcs", 10, "out_of_sync", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	for _, ch := range Channels {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO product_channel_stock")).
			WithArgs("7", string(ch), p.Stock(ch)).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, s.SaveProduct(context.Background(), p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStoreListHistory(t *testing.T) {
	s, mock := newMockStore(t)
	t1 := time.Date(2026, 3, 1, 10, 0, 1, 0, time.UTC)
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY recorded_at DESC, seq DESC LIMIT ? OFFSET ?")).
		WithArgs(20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "product_ref", "channel", "recorded_at", "status", "old_stock", "new_stock", "message"}).
			AddRow("b", "1", "tokopedia", t1, "success", 145, 150, "ok").
			AddRow("a", "all", "all", t0, "failed", 0, 0, "1 of 5 failed"))

	history, err := s.ListHistory(context.Background(), 20, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, HistorySuccess, history[0].Status)
	assert.Equal(t, 145, history[0].OldStock)
	assert.Equal(t, HistoryFailed, history[1].Status)
	assert.Equal(t, RefAll, history[1].ProductRef)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStoreAutoSyncConfig(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM autosync_config WHERE id = ?")).
		WithArgs(autoSyncRowID).
		WillReturnRows(sqlmock.NewRows([]string{"enabled", "interval_minutes", "last_auto_sync"}).
			AddRow(true, 30, nil))

	cfg, err := s.GetAutoSyncConfig(context.Background())
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 30, cfg.IntervalMinutes)
	assert.Nil(t, cfg.LastAutoSync)

	now := time.Now()
	cfg.LastAutoSync = &now
	mock.ExpectExec(regexp.QuoteMeta("UPDATE autosync_config SET")).
		WithArgs(true, 30, sqlmock.AnyArg(), autoSyncRowID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.SaveAutoSyncConfig(context.Background(), cfg))

	assert.NoError(t, mock.ExpectationsWereMet())
}
