package sync

import (
	"stock-sync-service/internal/store"
)

// Drift returns the channels, in canonical order, whose mirrored stock
// disagrees with the internal count. Unlisted channels (stock 0) never drift.
func Drift(p *store.Product) []store.Channel {
	var drifted []store.Channel
	for _, ch := range store.Channels {
		qty := p.Stock(ch)
		if qty != 0 && qty != p.InternalStock {
			drifted = append(drifted, ch)
		}
	}
	return drifted
}

// DeriveStatus is the single mismatch rule shared by every reconciliation
// path and every external stock change.
func DeriveStatus(p *store.Product) store.SyncStatus {
	if len(Drift(p)) == 0 {
		return store.StatusSynced
	}
	return store.StatusOutOfSync
}

// targetChannels normalises a caller supplied channel list into canonical
// order without duplicates. An empty list targets every channel.
func targetChannels(channels []store.Channel) ([]store.Channel, error) {
	if len(channels) == 0 {
		return store.Channels, nil
	}
	want := make(map[store.Channel]bool, len(channels))
	for _, ch := range channels {
		parsed, err := store.ParseChannel(string(ch))
		if err != nil {
			return nil, err
		}
		want[parsed] = true
	}
	targets := make([]store.Channel, 0, len(want))
	for _, ch := range store.Channels {
		if want[ch] {
			targets = append(targets, ch)
		}
	}
	return targets, nil
}

// touchedChannel picks the channel a history entry reports: the first
// target whose value changed, else the first listed target, else the first
// target at all.
func touchedChannel(before, after *store.Product, targets []store.Channel) store.Channel {
	for _, ch := range targets {
		if before.Stock(ch) != after.Stock(ch) {
			return ch
		}
	}
	for _, ch := range targets {
		if before.Stock(ch) != 0 {
			return ch
		}
	}
	return targets[0]
}
