package sync

import (
	"errors"
	"fmt"

	"stock-sync-service/internal/store"
)

var (
	ErrNotFound           = store.ErrNotFound
	ErrConflict           = errors.New("reconciliation already in progress")
	ErrProductExists      = errors.New("product already exists")
	ErrInvalidInterval    = errors.New("auto sync interval must be at least one minute")
	ErrInvalidQuantity    = errors.New("stock quantity must not be negative")
	ErrInvalidProduct     = errors.New("invalid product")
	ErrChannelUnavailable = errors.New("channel unavailable")
	ErrPoolStopped        = errors.New("worker pool stopped")
)

// TransientSyncError reports a failed push to a single channel. The product
// it belongs to is left with its previous stock values.
type TransientSyncError struct {
	ProductID string
	Channel   store.Channel
	Err       error
}

func (e *TransientSyncError) Error() string {
	return fmt.Sprintf("sync %s to %s failed: %v", e.ProductID, e.Channel, e.Err)
}

func (e *TransientSyncError) Unwrap() error {
	return e.Err
}
