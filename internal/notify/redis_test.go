package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-sync-service/internal/store"
	"stock-sync-service/internal/sync"
)

type recordingPublisher struct {
	channels []string
	messages [][]byte
	err      error
}

func (r *recordingPublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if r.err != nil {
		cmd.SetErr(r.err)
		return cmd
	}
	r.channels = append(r.channels, channel)
	r.messages = append(r.messages, message.([]byte))
	cmd.SetVal(1)
	return cmd
}

func TestRunPublishesEvents(t *testing.T) {
	rec := &recordingPublisher{}
	p := &Publisher{client: rec, channel: "stock-sync:events"}

	events := make(chan sync.Event, 2)
	events <- sync.Event{Type: sync.ProductUpdated, Product: &store.Product{ID: "1", SyncStatus: store.StatusSynced}}
	events <- sync.Event{Type: sync.AutoSyncChanged, AutoSync: &store.AutoSyncConfig{Enabled: true, IntervalMinutes: 5}}
	close(events)

	p.Run(context.Background(), events)

	require.Len(t, rec.messages, 2)
	assert.Equal(t, []string{"stock-sync:events", "stock-sync:events"}, rec.channels)

	var got sync.Event
	require.NoError(t, json.Unmarshal(rec.messages[0], &got))
	assert.Equal(t, sync.ProductUpdated, got.Type)
	assert.Equal(t, "1", got.Product.ID)

	got = sync.Event{}
	require.NoError(t, json.Unmarshal(rec.messages[1], &got))
	assert.Equal(t, 5, got.AutoSync.IntervalMinutes)
}

func TestRunSurvivesPublishErrors(t *testing.T) {
	rec := &recordingPublisher{err: errors.New("connection refused")}
	p := &Publisher{client: rec, channel: "events"}

	events := make(chan sync.Event, 1)
	events <- sync.Event{Type: sync.HistoryAppended}
	close(events)

	p.Run(context.Background(), events)
	assert.Empty(t, rec.messages)
}

func TestRunStopsOnCancel(t *testing.T) {
	p := &Publisher{client: &recordingPublisher{}, channel: "events"}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		p.Run(ctx, make(chan sync.Event))
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.NoError(t, p.Close())
}

func TestNewPublisherRejectsBadURL(t *testing.T) {
	_, err := NewPublisher(context.Background(), "not-a-url", "events")
	assert.Error(t, err)
}
