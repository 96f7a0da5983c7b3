package sync

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"stock-sync-service/internal/logger"
)

// WorkerPool runs bulk reconciliation jobs on a fixed number of goroutines.
type WorkerPool struct {
	workers int
	jobs    chan func()
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewWorkerPool(workers int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		workers: workers,
		jobs:    make(chan func()),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (p *WorkerPool) Start() {
	logger.Log.Info("Starting worker pool", zap.Int("workers", p.workers))
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(i)
	}
}

func (p *WorkerPool) Stop() {
	p.cancel()
	p.wg.Wait()
	logger.Log.Info("Stopped worker pool")
}

// Submit hands job to an idle worker, blocking until one is free.
func (p *WorkerPool) Submit(ctx context.Context, job func()) error {
	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrPoolStopped
	}
}

func (p *WorkerPool) run(id int) {
	defer p.wg.Done()
	for {
		select {
		case job := <-p.jobs:
			logger.Log.Debug("Running job", zap.Int("workerID", id))
			job()
		case <-p.ctx.Done():
			return
		}
	}
}
