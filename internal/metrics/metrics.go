package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the registry and contact modules.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	PersonsRegistered prometheus.Counter
	PersonsDeleted    prometheus.Counter
	ContactMutations  *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
}

// New registers all collectors on reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not collide.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PersonsRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "registry_persons_registered_total",
			Help: "Total number of persons registered",
		}),
		PersonsDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "registry_persons_deleted_total",
			Help: "Total number of persons deleted with their contacts",
		}),
		ContactMutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_contact_mutations_total",
			Help: "Contact mutations by kind and operation",
		}, []string{"kind", "op"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "registry_operation_duration_seconds",
			Help:    "Duration of registry operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"op"}),
	}
}

func (m *Metrics) IncrementRegistered() {
	if m == nil {
		return
	}
	m.PersonsRegistered.Inc()
}

func (m *Metrics) IncrementDeleted() {
	if m == nil {
		return
	}
	m.PersonsDeleted.Inc()
}

// IncrementContact records one successful contact mutation.
func (m *Metrics) IncrementContact(kind, op string) {
	if m == nil {
		return
	}
	m.ContactMutations.WithLabelValues(kind, op).Inc()
}

// Observe records the duration of op. Call with time.Now() at the start of
// the operation.
func (m *Metrics) Observe(op string, start time.Time) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
