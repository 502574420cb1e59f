package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tech-arch1tect/resetkit/metrics"
)

type Metrics struct {
	issued   prometheus.Counter
	consumed *prometheus.CounterVec
	swept    prometheus.Counter
}

// NewMetrics registers the ledger counters on reg. A nil reg yields unregistered
// counters, which is what most tests want.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		issued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "ledger",
			Name:      "tokens_issued_total",
			Help:      "Total number of password reset tokens issued.",
		}),
		consumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "ledger",
			Name:      "consume_total",
			Help:      "Password reset token validation attempts by result.",
		}, []string{"result"}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "ledger",
			Name:      "tokens_swept_total",
			Help:      "Total number of expired or consumed reset tokens deleted by the sweeper.",
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.issued, m.consumed, m.swept} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}

	return m, nil
}

func (m *Metrics) observeIssue() {
	if m != nil {
		m.issued.Inc()
	}
}

func (m *Metrics) observeConsume(err error) {
	if m != nil {
		m.consumed.WithLabelValues(resultLabel(err)).Inc()
	}
}

func (m *Metrics) observeSweep(n int64) {
	if m != nil && n > 0 {
		m.swept.Add(float64(n))
	}
}
