package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts engine activity for the /metrics endpoint
type Metrics struct {
	MergesApplied   prometheus.Counter
	StaleDiscards   prometheus.Counter
	ValidationDrops prometheus.Counter
	DetailFetches   prometheus.Counter
}

// NewMetrics registers the engine counters. A nil registerer yields counters
// that are counted but never exported, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MergesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "branchd_reconcile_merges_total",
			Help: "Order updates merged into the local collection.",
		}),
		StaleDiscards: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "branchd_reconcile_stale_discards_total",
			Help: "Updates discarded for moving an order backward in its lifecycle.",
		}),
		ValidationDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "branchd_reconcile_validation_drops_total",
			Help: "Updates dropped for failing payload validation.",
		}),
		DetailFetches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "branchd_reconcile_detail_fetches_total",
			Help: "Detail fetches triggered for partially-known orders.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.MergesApplied, m.StaleDiscards, m.ValidationDrops, m.DetailFetches)
	}
	return m
}
