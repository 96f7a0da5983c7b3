package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"stock-sync-service/internal/logger"
	"stock-sync-service/internal/store"
)

// Scheduler runs AutoSync every IntervalMinutes while auto sync is enabled,
// following configuration changes made through the manager.
type Scheduler struct {
	manager *Manager
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	mu        sync.Mutex
	started   bool
	entryID   cron.EntryID
	scheduled int
}

func NewScheduler(manager *Manager) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		manager: manager,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	cfg, err := s.manager.AutoSyncConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to read auto sync config: %w", err)
	}

	events, unsubscribe := s.manager.Subscribe(AutoSyncChanged)
	if err := s.apply(cfg); err != nil {
		unsubscribe()
		return err
	}
	s.cron.Start()
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		defer unsubscribe()
		for {
			select {
			case e, ok := <-events:
				if !ok {
					return
				}
				if e.Type == AutoSyncChanged && e.AutoSync != nil {
					if err := s.apply(e.AutoSync); err != nil {
						logger.Log.Error("Failed to reschedule auto sync", zap.Error(err))
					}
				}
			case <-s.ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return
	}
	<-s.cron.Stop().Done()
	<-s.done
	logger.Log.Info("Stopped scheduler")
}

// Interval returns the scheduled interval in minutes, 0 when nothing is
// scheduled.
func (s *Scheduler) Interval() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduled
}

func (s *Scheduler) apply(cfg *store.AutoSyncConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := 0
	if cfg.Enabled {
		want = cfg.IntervalMinutes
	}
	if want == s.scheduled {
		return nil
	}

	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
		s.entryID = 0
		s.scheduled = 0
	}
	if want <= 0 {
		logger.Log.Info("Auto sync unscheduled")
		return nil
	}

	spec := fmt.Sprintf("@every %dm", want)
	id, err := s.cron.AddFunc(spec, s.triggerSync)
	if err != nil {
		return fmt.Errorf("failed to schedule %q: %w", spec, err)
	}
	s.entryID = id
	s.scheduled = want
	logger.Log.Info("Auto sync scheduled", zap.String("interval", spec))
	return nil
}

// triggerSync re-reads the settings first, so a missed change event cannot
// keep a stale schedule running.
func (s *Scheduler) triggerSync() {
	cfg, err := s.manager.AutoSyncConfig(s.ctx)
	if err != nil {
		logger.Log.Error("Failed to read auto sync config", zap.Error(err))
		return
	}
	if err := s.apply(cfg); err != nil {
		logger.Log.Error("Failed to reschedule auto sync", zap.Error(err))
	}
	if !cfg.Enabled {
		logger.Log.Info("Auto sync disabled, skipping scheduled run")
		return
	}

	logger.Log.Info("Triggering scheduled sync")

	result, err := s.manager.AutoSync(s.ctx)
	switch {
	case errors.Is(err, ErrConflict):
		logger.Log.Info("Sync already running, skipping scheduled run")
	case err != nil:
		logger.Log.Error("Scheduled sync failed", zap.Error(err))
	default:
		logger.Log.Info("Scheduled sync finished",
			zap.Int("products", len(result.Outcomes)),
			zap.Int("failed", result.Failed()),
		)
	}
}
