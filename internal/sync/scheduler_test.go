package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-sync-service/internal/store"
)

func TestSchedulerFollowsAutoSyncConfig(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	s := NewScheduler(m)
	require.NoError(t, s.Start(ctx))
	defer s.Stop()
	assert.Equal(t, 30, s.Interval())

	_, err := m.SetAutoSyncInterval(ctx, 5)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return s.Interval() == 5 }, time.Second, 5*time.Millisecond)

	_, err = m.ToggleAutoSync(ctx, false)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return s.Interval() == 0 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, s.cron.Entries())

	_, err = m.ToggleAutoSync(ctx, true)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return s.Interval() == 5 }, time.Second, 5*time.Millisecond)
	assert.Len(t, s.cron.Entries(), 1)
}

func TestSchedulerTriggerRunsAutoSync(t *testing.T) {
	m := newTestManager(t, nil)
	s := NewScheduler(m)

	s.triggerSync()

	history := allHistory(t, m)
	require.Len(t, history, 1)
	assert.Equal(t, store.RefAuto, history[0].ProductRef)

	summary, err := m.GetSyncStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Synced)

	// Stop on a scheduler that never started must not block.
	s.Stop()
}

func TestSchedulerStartsUnscheduledWhenDisabled(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()
	_, err := m.ToggleAutoSync(ctx, false)
	require.NoError(t, err)

	s := NewScheduler(m)
	require.NoError(t, s.Start(ctx))
	defer s.Stop()
	assert.Zero(t, s.Interval())
}

func TestSchedulerTriggerFollowsStoredConfig(t *testing.T) {
	st := store.NewMemoryStore(store.AutoSyncConfig{Enabled: true, IntervalMinutes: 30})
	m := NewManager(st, &stubClient{})
	defer m.Close()
	ctx := context.Background()

	s := NewScheduler(m)
	require.NoError(t, s.Start(ctx))
	defer s.Stop()
	require.Equal(t, 30, s.Interval())

	// Saved behind the manager's back, so no change event is published.
	require.NoError(t, st.SaveAutoSyncConfig(ctx, &store.AutoSyncConfig{Enabled: false, IntervalMinutes: 30}))

	s.triggerSync()
	assert.Zero(t, s.Interval())
	assert.Empty(t, s.cron.Entries())
	assert.Empty(t, allHistory(t, m))
}
