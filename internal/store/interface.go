package store

import (
	"context"
)

type Store interface {
	// Products
	ListProducts(ctx context.Context) ([]*Product, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	SaveProduct(ctx context.Context, p *Product) error

	// History, newest first
	AppendHistory(ctx context.Context, entry *HistoryEntry) error
	ListHistory(ctx context.Context, limit, offset int) ([]*HistoryEntry, error)

	// Auto sync
	GetAutoSyncConfig(ctx context.Context) (*AutoSyncConfig, error)
	SaveAutoSyncConfig(ctx context.Context, cfg *AutoSyncConfig) error

	// General
	Close() error
}
