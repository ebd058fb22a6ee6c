package observability

import (
	"context"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is a ports.Listener that records state changes as Prometheus metrics:
//
//	arbor_transitions_total{transition,target}  counter of applied transitions
//	arbor_machines{state}                       gauge of live machines per state
//	arbor_machines_disposed_total               counter of disposed machines
type Metrics struct {
	transitions *prometheus.CounterVec
	machines    *prometheus.GaugeVec
	disposed    prometheus.Counter

	mu      sync.Mutex
	current map[string]string // machine ID -> last known state
}

var _ ports.Listener = (*Metrics)(nil)

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbor_transitions_total",
				Help: "Total number of state changes, by transition and target state",
			},
			[]string{"transition", "target"},
		),
		machines: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "arbor_machines",
				Help: "Number of live machines currently in each state",
			},
			[]string{"state"},
		),
		disposed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbor_machines_disposed_total",
			Help: "Total number of disposed machines",
		}),
		current: make(map[string]string),
	}
	for _, c := range []prometheus.Collector{m.transitions, m.machines, m.disposed} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// OnEvent implements ports.Listener.
func (m *Metrics) OnEvent(_ context.Context, event domain.StateChangeEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	previous, known := m.current[event.MachineID]
	if known {
		m.machines.WithLabelValues(previous).Dec()
	}

	if event.Type == domain.EventDisposed {
		delete(m.current, event.MachineID)
		m.disposed.Inc()
		return
	}

	m.transitions.WithLabelValues(event.Cause, event.NewState).Inc()
	m.machines.WithLabelValues(event.NewState).Inc()
	m.current[event.MachineID] = event.NewState
}
