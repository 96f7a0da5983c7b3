package sync

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPoolRunsJobs(t *testing.T) {
	p := NewWorkerPool(3)
	p.Start()
	defer p.Stop()

	var n atomic.Int32
	done := make(chan struct{}, 10)
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Submit(context.Background(), func() {
			n.Add(1)
			done <- struct{}{}
		}))
	}
	for i := 0; i < 10; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("job did not run")
		}
	}
	assert.EqualValues(t, 10, n.Load())
}

func TestWorkerPoolSubmitAfterStop(t *testing.T) {
	p := NewWorkerPool(0)
	p.Start()
	p.Stop()

	err := p.Submit(context.Background(), func() {})
	assert.ErrorIs(t, err, ErrPoolStopped)
}

func TestWorkerPoolSubmitHonoursContext(t *testing.T) {
	p := NewWorkerPool(1)
	p.Start()
	defer p.Stop()

	block := make(chan struct{})
	defer close(block)
	require.NoError(t, p.Submit(context.Background(), func() { <-block }))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := p.Submit(ctx, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
