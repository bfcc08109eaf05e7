package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Realtime exports socket fan-out metrics. A nil *Realtime records nothing.
type Realtime struct {
	connections prometheus.Gauge
	rooms       prometheus.Gauge
	delivered   *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	joinsDenied prometheus.Counter
	busMessages *prometheus.CounterVec
}

// NewRealtime registers the realtime collectors on reg.
func NewRealtime(namespace string, reg prometheus.Registerer) (*Realtime, error) {
	if namespace == "" {
		namespace = "taskboard"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	var err error
	m := &Realtime{}
	if m.connections, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "realtime",
		Name:      "connections",
		Help:      "Open websocket connections on this instance.",
	})); err != nil {
		return nil, err
	}
	if m.rooms, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "realtime",
		Name:      "rooms",
		Help:      "Rooms with at least one local member.",
	})); err != nil {
		return nil, err
	}
	if m.delivered, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "realtime",
		Name:      "events_delivered_total",
		Help:      "Events written to client send buffers.",
	}, []string{"event"})); err != nil {
		return nil, err
	}
	if m.dropped, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "realtime",
		Name:      "events_dropped_total",
		Help:      "Events that could not be delivered.",
	}, []string{"reason"})); err != nil {
		return nil, err
	}
	if m.joinsDenied, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "realtime",
		Name:      "joins_denied_total",
		Help:      "Room joins refused by membership checks.",
	})); err != nil {
		return nil, err
	}
	if m.busMessages, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "bus",
		Name:      "messages_total",
		Help:      "Envelopes moved through the event bus.",
	}, []string{"direction"})); err != nil {
		return nil, err
	}
	return m, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register collector: %w", err)
	}
	return c, nil
}

func (m *Realtime) SetConnections(n int) {
	if m == nil {
		return
	}
	m.connections.Set(float64(n))
}

func (m *Realtime) SetRooms(n int) {
	if m == nil {
		return
	}
	m.rooms.Set(float64(n))
}

// Delivered counts n sends of one event kind.
func (m *Realtime) Delivered(event string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.delivered.WithLabelValues(event).Add(float64(n))
}

// Dropped counts an undeliverable event; reason is queue_full or slow_client.
func (m *Realtime) Dropped(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}

func (m *Realtime) JoinDenied() {
	if m == nil {
		return
	}
	m.joinsDenied.Inc()
}

// BusMessage counts an envelope sent or received on the bus.
func (m *Realtime) BusMessage(direction string) {
	if m == nil {
		return
	}
	m.busMessages.WithLabelValues(direction).Inc()
}
