package sync

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"stock-sync-service/internal/config"
	"stock-sync-service/internal/logger"
	"stock-sync-service/internal/store"
)

// ChannelClient pushes a stock quantity to one external sales channel.
type ChannelClient interface {
	PushStock(ctx context.Context, ch store.Channel, sku string, qty int) error
}

// SimulatedChannels stands in for the marketplace APIs: every push waits
// Latency and then fails with probability FailureRate.
type SimulatedChannels struct {
	latency     time.Duration
	failureRate float64
}

func NewSimulatedChannels(latency time.Duration, failureRate float64) *SimulatedChannels {
	return &SimulatedChannels{latency: latency, failureRate: failureRate}
}

func (s *SimulatedChannels) PushStock(ctx context.Context, ch store.Channel, sku string, qty int) error {
	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.failureRate > 0 && rand.Float64() < s.failureRate {
		return fmt.Errorf("%s rejected stock %d for %s: %w", ch, qty, sku, ErrChannelUnavailable)
	}
	return nil
}

// GuardedClient adds a per-push timeout, bounded retries and a circuit
// breaker per channel in front of another client.
type GuardedClient struct {
	next       ChannelClient
	timeout    time.Duration
	retries    int
	retryDelay time.Duration
	breakers   map[store.Channel]*CircuitBreaker
}

func NewGuardedClient(next ChannelClient, cfg config.ChannelsConfig) *GuardedClient {
	breakers := make(map[store.Channel]*CircuitBreaker, len(store.Channels))
	for _, ch := range store.Channels {
		breakers[ch] = NewCircuitBreaker(string(ch), cfg.Breaker)
	}
	timeout := cfg.PushTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &GuardedClient{
		next:       next,
		timeout:    timeout,
		retries:    cfg.Retries,
		retryDelay: cfg.RetryDelay,
		breakers:   breakers,
	}
}

func (g *GuardedClient) PushStock(ctx context.Context, ch store.Channel, sku string, qty int) error {
	cb, ok := g.breakers[ch]
	if !ok {
		return fmt.Errorf("%w: %q", store.ErrUnknownChannel, ch)
	}

	var err error
	for attempt := 0; attempt <= g.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(g.retryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
			logger.Log.Debug("Retrying stock push",
				zap.String("channel", string(ch)),
				zap.String("sku", sku),
				zap.Int("attempt", attempt),
			)
		}

		err = cb.Execute(func() error {
			pushCtx, cancel := context.WithTimeout(ctx, g.timeout)
			defer cancel()
			return g.next.PushStock(pushCtx, ch, sku, qty)
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrCircuitOpen) || ctx.Err() != nil {
			break
		}
	}
	return err
}

// BreakerStates reports each channel's breaker state.
func (g *GuardedClient) BreakerStates() map[store.Channel]string {
	states := make(map[store.Channel]string, len(g.breakers))
	for ch, cb := range g.breakers {
		states[ch] = cb.State().String()
	}
	return states
}
