// Package bus carries room envelopes between publishers and hubs.
package bus

import (
	"context"
	"sync"

	"github.com/lorrc/taskboard-backend/internal/core/domain"
	"github.com/lorrc/taskboard-backend/internal/core/ports"
	"github.com/lorrc/taskboard-backend/internal/infrastructure/metrics"
)

// Local hands every envelope to its subscribers on the publishing goroutine.
// It serves single-instance deployments.
type Local struct {
	mu          sync.RWMutex
	subscribers []func(domain.Envelope)
	metrics     *metrics.Realtime
}

var _ ports.EventBus = (*Local)(nil)

func NewLocal(m *metrics.Realtime) *Local {
	return &Local{metrics: m}
}

// Publish delivers env to every subscriber. It fails only when ctx is done.
func (l *Local) Publish(ctx context.Context, env domain.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.RLock()
	subs := l.subscribers
	l.mu.RUnlock()

	l.metrics.BusMessage("published")
	for _, fn := range subs {
		fn(env)
	}
	return nil
}

func (l *Local) Subscribe(fn func(domain.Envelope)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subscribers = append(l.subscribers[:len(l.subscribers):len(l.subscribers)], fn)
}
