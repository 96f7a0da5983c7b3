package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-sync-service/internal/store"
)

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name     string
		internal int
		stock    map[store.Channel]int
		want     store.SyncStatus
		drift    []store.Channel
	}{
		{"all equal", 10, map[store.Channel]int{store.Shopee: 10, store.Tokopedia: 10, store.Blibli: 10, store.Website: 10}, store.StatusSynced, nil},
		{"unlisted ignored", 10, map[store.Channel]int{store.Shopee: 0, store.Tokopedia: 10}, store.StatusSynced, nil},
		{"nothing listed", 10, map[store.Channel]int{}, store.StatusSynced, nil},
		{"one mismatch", 10, map[store.Channel]int{store.Shopee: 10, store.Website: 9}, store.StatusOutOfSync, []store.Channel{store.Website}},
		{"canonical order", 5, map[store.Channel]int{store.Website: 1, store.Shopee: 2}, store.StatusOutOfSync, []store.Channel{store.Shopee, store.Website}},
		{"internal zero", 0, map[store.Channel]int{store.Blibli: 3}, store.StatusOutOfSync, []store.Channel{store.Blibli}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &store.Product{InternalStock: tt.internal, ChannelStock: tt.stock}
			assert.Equal(t, tt.want, DeriveStatus(p))
			assert.Equal(t, tt.drift, Drift(p))
		})
	}
}

func TestTargetChannels(t *testing.T) {
	all, err := targetChannels(nil)
	require.NoError(t, err)
	assert.Equal(t, store.Channels, all)

	got, err := targetChannels([]store.Channel{store.Website, store.Shopee, store.Website})
	require.NoError(t, err)
	assert.Equal(t, []store.Channel{store.Shopee, store.Website}, got)

	_, err = targetChannels([]store.Channel{"internal"})
	assert.ErrorIs(t, err, store.ErrUnknownChannel)
}

func TestTouchedChannel(t *testing.T) {
	before := &store.Product{InternalStock: 5, ChannelStock: map[store.Channel]int{store.Shopee: 5, store.Blibli: 4}}
	after := before.Clone()
	after.ChannelStock[store.Blibli] = 5

	assert.Equal(t, store.Blibli, touchedChannel(before, after, store.Channels))
	assert.Equal(t, store.Shopee, touchedChannel(before, before, store.Channels))
	assert.Equal(t, store.Tokopedia, touchedChannel(before, before, []store.Channel{store.Tokopedia, store.Website}))
}
