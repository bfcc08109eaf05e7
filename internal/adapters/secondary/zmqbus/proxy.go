package zmqbus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	zmq "github.com/pebbe/zmq4"
)

// RunProxy forwards publications from xsubAddr to subscribers on xpubAddr
// until ctx is cancelled.
func RunProxy(ctx context.Context, xsubAddr, xpubAddr string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "bus_proxy")

	zctx, err := zmq.NewContext()
	if err != nil {
		return fmt.Errorf("zmq context: %w", err)
	}
	defer zctx.Term()

	frontend, err := zctx.NewSocket(zmq.XSUB)
	if err != nil {
		return fmt.Errorf("xsub socket: %w", err)
	}
	defer frontend.Close()
	if err := frontend.Bind(xsubAddr); err != nil {
		return fmt.Errorf("xsub bind %s: %w", xsubAddr, err)
	}

	backend, err := zctx.NewSocket(zmq.XPUB)
	if err != nil {
		return fmt.Errorf("xpub socket: %w", err)
	}
	defer backend.Close()
	if err := backend.Bind(xpubAddr); err != nil {
		return fmt.Errorf("xpub bind %s: %w", xpubAddr, err)
	}

	controlAddr := "inproc://bus-proxy-control-" + uuid.NewString()
	control, err := zctx.NewSocket(zmq.PAIR)
	if err != nil {
		return fmt.Errorf("control socket: %w", err)
	}
	defer control.Close()
	if err := control.Bind(controlAddr); err != nil {
		return fmt.Errorf("control bind: %w", err)
	}

	controller, err := zctx.NewSocket(zmq.PAIR)
	if err != nil {
		return fmt.Errorf("controller socket: %w", err)
	}
	defer controller.Close()
	if err := controller.Connect(controlAddr); err != nil {
		return fmt.Errorf("controller connect: %w", err)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			if _, err := controller.Send("TERMINATE", 0); err != nil {
				logger.Error("failed to stop proxy", "error", err)
			}
		case <-done:
		}
	}()

	logger.Info("bus proxy listening", "xsub_addr", xsubAddr, "xpub_addr", xpubAddr)
	err = zmq.ProxySteerable(frontend, backend, nil, control)
	close(done)
	wg.Wait()

	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("bus proxy: %w", err)
	}
	logger.Info("bus proxy stopped")
	return nil
}
