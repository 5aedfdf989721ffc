package sandbox

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wippyai/js-sandbox/dispatch"
	"github.com/wippyai/js-sandbox/errors"
)

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeBoundary = "boundary"
	OutcomeDispatch = "dispatch"
	OutcomeGuest    = "guest"
	OutcomeOther    = "other"
)

// Metrics holds Prometheus metrics for sandbox calls.
// All metrics use the jssandbox namespace.
type Metrics struct {
	CallsTotal   *prometheus.CounterVec
	CallDuration *prometheus.HistogramVec
}

// NewMetrics creates metrics and registers them on reg when it is non-nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		CallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jssandbox",
			Name:      "calls_total",
			Help:      "Guest calls by operation and outcome.",
		}, []string{"op", "outcome"}),

		CallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "jssandbox",
			Name:      "call_duration_seconds",
			Help:      "Guest call round trip time in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"op"}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.CallsTotal, m.CallDuration} {
			if err := reg.Register(c); err != nil {
				return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "register metrics")
			}
		}
	}
	return m, nil
}

func (m *Metrics) observe(name string, err error, d time.Duration) {
	if m == nil {
		return
	}
	op := opLabel(name)
	m.CallsTotal.WithLabelValues(op, Outcome(err)).Inc()
	m.CallDuration.WithLabelValues(op).Observe(d.Seconds())
}

// opLabel keeps label cardinality bounded to the known operations.
func opLabel(name string) string {
	if o, ok := dispatch.ParseOp(name); ok {
		return o.String()
	}
	return OutcomeOther
}

// Outcome classifies a call error.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.IsBoundary(err):
		return OutcomeBoundary
	case errors.IsDispatch(err):
		return OutcomeDispatch
	case errors.IsGuest(err):
		return OutcomeGuest
	default:
		return OutcomeOther
	}
}
