package store

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrUnknownChannel = errors.New("unknown channel")
)

// Channel is an external sales surface mirroring the internal stock count.
type Channel string

const (
	Shopee    Channel = "shopee"
	Tokopedia Channel = "tokopedia"
	Blibli    Channel = "blibli"
	Website   Channel = "website"
)

// Channels is the canonical channel order.
var Channels = []Channel{Shopee, Tokopedia, Blibli, Website}

func ParseChannel(s string) (Channel, error) {
	switch c := Channel(strings.ToLower(strings.TrimSpace(s))); c {
	case Shopee, Tokopedia, Blibli, Website:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownChannel, s)
}

type SyncStatus string

const (
	StatusSynced    SyncStatus = "synced"
	StatusOutOfSync SyncStatus = "out_of_sync"
	StatusError     SyncStatus = "error"
)

type HistoryStatus string

const (
	HistorySuccess HistoryStatus = "success"
	HistoryFailed  HistoryStatus = "failed"
)

// Bulk history references.
const (
	RefAll  = "all"
	RefAuto = "auto"
)

type Product struct {
	ID            string          `json:"id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Unit          string          `json:"unit"`
	InternalStock int             `json:"internal_stock"`
	ChannelStock  map[Channel]int `json:"channel_stock"`
	SyncStatus    SyncStatus      `json:"sync_status"`
	LastSync      time.Time       `json:"last_sync"`
}

// Clone returns a deep copy so callers never share the stock map.
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	c := *p
	c.ChannelStock = make(map[Channel]int, len(p.ChannelStock))
	for ch, qty := range p.ChannelStock {
		c.ChannelStock[ch] = qty
	}
	return &c
}

// Stock returns the mirrored quantity on ch; unlisted channels read as 0.
func (p *Product) Stock(ch Channel) int {
	return p.ChannelStock[ch]
}

type HistoryEntry struct {
	ID         string        `json:"id"`
	ProductRef string        `json:"product_id"`
	Channel    string        `json:"channel"`
	Timestamp  time.Time     `json:"timestamp"`
	Status     HistoryStatus `json:"status"`
	OldStock   int           `json:"old_stock"`
	NewStock   int           `json:"new_stock"`
	Message    string        `json:"message"`
}

type AutoSyncConfig struct {
	Enabled         bool       `json:"enabled"`
	IntervalMinutes int        `json:"interval_minutes"`
	LastAutoSync    *time.Time `json:"last_auto_sync"`
}

func (c *AutoSyncConfig) Clone() *AutoSyncConfig {
	if c == nil {
		return nil
	}
	cp := *c
	if c.LastAutoSync != nil {
		t := *c.LastAutoSync
		cp.LastAutoSync = &t
	}
	return &cp
}
