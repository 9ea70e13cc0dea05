package runtime

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports socket activity as Prometheus collectors. It observes the
// registry through Hooks; see WithMetrics.
type Metrics struct {
	mu sync.Mutex

	sockets         prometheus.Gauge
	postedTotal     *prometheus.CounterVec
	dispatchedTotal *prometheus.CounterVec
	droppedTotal    *prometheus.CounterVec
	pending         *prometheus.GaugeVec
	batchSize       *prometheus.HistogramVec
	dispatchSeconds *prometheus.HistogramVec

	registerer prometheus.Registerer
	registered bool
}

func newBusCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "socketbus",
			Subsystem: "bus",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func newBusGaugeVec(name, help string, labels []string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "socketbus",
			Subsystem: "bus",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func newBusHistogramVec(name, help string, buckets []float64, labels []string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "socketbus",
			Subsystem: "bus",
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		},
		labels,
	)
}

// NewMetrics builds the collectors. A nil registerer means the Prometheus
// default registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &Metrics{
		registerer: registerer,
		sockets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "socketbus",
			Subsystem: "bus",
			Name:      "sockets",
			Help:      "Number of live sockets",
		}),
		postedTotal:     newBusCounterVec("messages_posted_total", "Total number of messages posted", []string{"socket"}),
		dispatchedTotal: newBusCounterVec("messages_dispatched_total", "Total number of messages delivered to a dispatch callback", []string{"socket"}),
		droppedTotal:    newBusCounterVec("messages_dropped_total", "Total number of messages discarded without delivery", []string{"socket", "reason"}),
		pending:         newBusGaugeVec("messages_pending", "Messages queued at the last post or dispatch", []string{"socket"}),
		batchSize:       newBusHistogramVec("dispatch_batch_size", "Messages handled per dispatch call", []float64{0, 1, 2, 4, 8, 16, 32, 64, 128, 256}, []string{"socket"}),
		dispatchSeconds: newBusHistogramVec("dispatch_duration_seconds", "Time spent in a dispatch call", []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05}, []string{"socket"}),
	}
}

// Register registers the collectors. Safe to call multiple times.
func (m *Metrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.sockets,
		m.postedTotal,
		m.dispatchedTotal,
		m.droppedTotal,
		m.pending,
		m.batchSize,
		m.dispatchSeconds,
	}

	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

// Hooks returns the hooks that feed these collectors.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnSocketCreated: func(SocketEvent) {
			m.sockets.Inc()
		},
		OnSocketDeleted: func(e SocketEvent) {
			m.sockets.Dec()
			m.pending.DeleteLabelValues(e.Socket)
		},
		OnPost: func(e PostEvent) {
			m.postedTotal.WithLabelValues(e.Socket).Inc()
			m.pending.WithLabelValues(e.Socket).Set(float64(e.Pending))
		},
		OnDispatch: func(e DispatchEvent) {
			if e.Discarded {
				m.droppedTotal.WithLabelValues(e.Socket, string(DropReasonConsumed)).Add(float64(e.Count))
			} else {
				m.dispatchedTotal.WithLabelValues(e.Socket).Add(float64(e.Count))
			}
			m.pending.WithLabelValues(e.Socket).Set(0)
			m.batchSize.WithLabelValues(e.Socket).Observe(float64(e.Count))
			m.dispatchSeconds.WithLabelValues(e.Socket).Observe(e.Duration.Seconds())
		},
		OnDrop: func(e DropEvent) {
			m.droppedTotal.WithLabelValues(e.Socket, string(e.Reason)).Add(float64(e.Count))
		},
	}
}

// Reset clears every collector. Intended for tests.
func (m *Metrics) Reset() {
	m.sockets.Set(0)
	m.postedTotal.Reset()
	m.dispatchedTotal.Reset()
	m.droppedTotal.Reset()
	m.pending.Reset()
	m.batchSize.Reset()
	m.dispatchSeconds.Reset()
}
