// Package zmqbus fans room envelopes out across instances over ZeroMQ PUB/SUB.
// Every instance publishes to the proxy's XSUB side and subscribes to its XPUB side,
// so each envelope reaches every instance, the publisher included.
package zmqbus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"syscall"
	"time"

	zmq "github.com/pebbe/zmq4"

	"github.com/lorrc/taskboard-backend/internal/adapters/secondary/bus"
	"github.com/lorrc/taskboard-backend/internal/core/domain"
	"github.com/lorrc/taskboard-backend/internal/core/ports"
	"github.com/lorrc/taskboard-backend/internal/infrastructure/metrics"
)

const receivePoll = 250 * time.Millisecond

// Bus is a ports.EventBus backed by a ZeroMQ proxy.
type Bus struct {
	zctx *zmq.Context

	// pub is shared by publishers; zmq sockets are not goroutine safe
	pubMu sync.Mutex
	pub   *zmq.Socket

	// sub is only touched by Run
	sub *zmq.Socket

	mu          sync.RWMutex
	subscribers []func(domain.Envelope)

	metrics *metrics.Realtime
	logger  *slog.Logger
}

var _ ports.EventBus = (*Bus)(nil)

// New connects a publisher to pubAddr (the proxy's XSUB) and a subscriber to
// subAddr (the proxy's XPUB).
func New(pubAddr, subAddr string, m *metrics.Realtime, logger *slog.Logger) (*Bus, error) {
	if logger == nil {
		logger = slog.Default()
	}

	zctx, err := zmq.NewContext()
	if err != nil {
		return nil, fmt.Errorf("zmq context: %w", err)
	}
	b := &Bus{
		zctx:    zctx,
		metrics: m,
		logger:  logger.With("component", "zmq_bus"),
	}

	if b.pub, err = zctx.NewSocket(zmq.PUB); err != nil {
		b.Close()
		return nil, fmt.Errorf("zmq pub socket: %w", err)
	}
	if err := b.pub.SetLinger(0); err != nil {
		b.Close()
		return nil, fmt.Errorf("zmq pub linger: %w", err)
	}
	if err := b.pub.Connect(pubAddr); err != nil {
		b.Close()
		return nil, fmt.Errorf("zmq pub connect %s: %w", pubAddr, err)
	}

	if b.sub, err = zctx.NewSocket(zmq.SUB); err != nil {
		b.Close()
		return nil, fmt.Errorf("zmq sub socket: %w", err)
	}
	if err := b.sub.SetRcvtimeo(receivePoll); err != nil {
		b.Close()
		return nil, fmt.Errorf("zmq sub timeout: %w", err)
	}
	if err := b.sub.SetLinger(0); err != nil {
		b.Close()
		return nil, fmt.Errorf("zmq sub linger: %w", err)
	}
	for _, prefix := range domain.RoomPrefixes() {
		if err := b.sub.SetSubscribe(prefix); err != nil {
			b.Close()
			return nil, fmt.Errorf("zmq subscribe %q: %w", prefix, err)
		}
	}
	if err := b.sub.Connect(subAddr); err != nil {
		b.Close()
		return nil, fmt.Errorf("zmq sub connect %s: %w", subAddr, err)
	}

	b.logger.Info("connected to bus proxy", "pub_addr", pubAddr, "sub_addr", subAddr)
	return b, nil
}

// Publish sends env without blocking. Envelopes are dropped by ZeroMQ when
// the proxy is unreachable for long enough to fill the high-water mark.
func (b *Bus) Publish(ctx context.Context, env domain.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	topic, data, err := bus.Encode(env)
	if err != nil {
		return err
	}

	b.pubMu.Lock()
	_, err = b.pub.SendMessageDontwait(topic, data)
	b.pubMu.Unlock()
	if err != nil {
		return fmt.Errorf("zmq publish: %w", err)
	}

	b.metrics.BusMessage("published")
	return nil
}

func (b *Bus) Subscribe(fn func(domain.Envelope)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers[:len(b.subscribers):len(b.subscribers)], fn)
}

// Run receives envelopes and hands them to subscribers until ctx is done.
func (b *Bus) Run(ctx context.Context) error {
	b.logger.Info("bus receiver started")
	for {
		if ctx.Err() != nil {
			b.logger.Info("bus receiver stopped")
			return nil
		}

		parts, err := b.sub.RecvMessageBytes(0)
		if err != nil {
			if zmq.AsErrno(err) == zmq.Errno(syscall.EAGAIN) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			b.logger.Warn("bus receive failed", "error", err)
			continue
		}

		if len(parts) < 2 {
			b.logger.Warn("malformed bus message", "parts", len(parts))
			continue
		}

		env, err := bus.Decode(string(parts[0]), parts[1])
		if err != nil {
			b.logger.Warn("failed to decode bus message", "topic", string(parts[0]), "error", err)
			continue
		}
		b.metrics.BusMessage("received")

		b.mu.RLock()
		subs := b.subscribers
		b.mu.RUnlock()
		for _, fn := range subs {
			fn(env)
		}
	}
}

// Close releases the sockets. Call it after Run has returned.
func (b *Bus) Close() error {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	if b.pub != nil {
		_ = b.pub.Close()
		b.pub = nil
	}
	if b.sub != nil {
		_ = b.sub.Close()
		b.sub = nil
	}
	if b.zctx != nil {
		err := b.zctx.Term()
		b.zctx = nil
		return err
	}
	return nil
}
