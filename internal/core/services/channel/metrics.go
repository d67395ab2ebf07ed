package channel

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts the observable sender outcomes for one stage. Drops are
// required to be observable; the rest exist so overflow behavior can be
// graphed instead of guessed at.
type Metrics struct {
	Sent       prometheus.Counter
	Dropped    prometheus.Counter
	Overflowed prometheus.Counter
}

// NewMetrics registers the sender counters for a stage on the given
// registerer. Pass prometheus.DefaultRegisterer in production wiring and a
// fresh registry in tests.
func NewMetrics(reg prometheus.Registerer, stage string) *Metrics {
	labels := prometheus.Labels{"stage": stage}

	m := &Metrics{
		Sent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "bufferline",
			Subsystem:   "channel",
			Name:        "records_sent_total",
			Help:        "Records committed to this stage.",
			ConstLabels: labels,
		}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "bufferline",
			Subsystem:   "channel",
			Name:        "records_dropped_total",
			Help:        "Records discarded by the drop-newest policy.",
			ConstLabels: labels,
		}),
		Overflowed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "bufferline",
			Subsystem:   "channel",
			Name:        "records_overflowed_total",
			Help:        "Records diverted to the overflow stage.",
			ConstLabels: labels,
		}),
	}

	if reg != nil {
		reg.MustRegister(m.Sent, m.Dropped, m.Overflowed)
	}
	return m
}

// NewUnackedGauge registers a gauge tracking a disk stage's unacked bytes,
// sampled from the ledger on scrape.
func NewUnackedGauge(reg prometheus.Registerer, stage string, sample func() uint64) prometheus.GaugeFunc {
	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   "bufferline",
		Subsystem:   "disk",
		Name:        "unacked_bytes",
		Help:        "Upper-bound estimate of unacknowledged bytes in the disk buffer.",
		ConstLabels: prometheus.Labels{"stage": stage},
	}, func() float64 { return float64(sample()) })

	if reg != nil {
		reg.MustRegister(gauge)
	}
	return gauge
}
