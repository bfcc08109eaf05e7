package zmqbus

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/taskboard-backend/internal/core/domain"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return fmt.Sprintf("tcp://127.0.0.1:%d", l.Addr().(*net.TCPAddr).Port)
}

func TestBus_FanOutAcrossInstances(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping zmq round trip in short mode")
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	xsub, xpub := freeAddr(t), freeAddr(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	proxyDone := make(chan error, 1)
	go func() { proxyDone <- RunProxy(ctx, xsub, xpub, logger) }()

	type delivery struct {
		instance int
		env      domain.Envelope
	}
	received := make(chan delivery, 1024)
	var buses []*Bus
	for i := 0; i < 2; i++ {
		b, err := New(xsub, xpub, nil, logger)
		require.NoError(t, err)
		instance := i
		b.Subscribe(func(env domain.Envelope) { received <- delivery{instance: instance, env: env} })
		buses = append(buses, b)
	}

	runCtx, stopRun := context.WithCancel(ctx)
	runDone := make(chan struct{}, len(buses))
	for _, b := range buses {
		go func(b *Bus) {
			_ = b.Run(runCtx)
			runDone <- struct{}{}
		}(b)
	}

	env := domain.Envelope{Origin: "node-a", Room: "team:1", Event: domain.Event{Type: domain.EventTaskDeleted, Payload: []byte(`{"id":"x"}`)}}

	// Subscriptions propagate asynchronously, so keep publishing until both instances hear one.
	seen := map[int]bool{}
	deadline := time.After(10 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for len(seen) < 2 {
		select {
		case <-ticker.C:
			require.NoError(t, buses[0].Publish(ctx, env))
		case got := <-received:
			assert.Equal(t, "team:1", got.env.Room)
			assert.Equal(t, "node-a", got.env.Origin)
			assert.Equal(t, domain.EventTaskDeleted, got.env.Event.Type)
			seen[got.instance] = true
		case <-deadline:
			t.Fatalf("only instances %v received the envelope", seen)
		}
	}

	stopRun()
	for range buses {
		<-runDone
	}
	for _, b := range buses {
		assert.NoError(t, b.Close())
	}

	cancel()
	select {
	case err := <-proxyDone:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("proxy did not stop")
	}
}
