package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus counters of the ledger. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	// Ledger mutations by operation (create, update, delete, bulk_create)
	LedgerMutations *prometheus.CounterVec

	// Aggregate recomputes by kind (session, summary) and result (ok, retry, failed)
	Recomputes *prometheus.CounterVec
}

// New registers the counters on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LedgerMutations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "milkledger_ledger_mutations_total",
			Help: "Total number of committed yield ledger mutations by operation",
		}, []string{"op"}),
		Recomputes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "milkledger_recompute_total",
			Help: "Total number of aggregate recompute attempts by kind and result",
		}, []string{"kind", "result"}),
	}
}

// Mutation counts one committed ledger mutation.
func (m *Metrics) Mutation(op string) {
	if m == nil {
		return
	}
	m.LedgerMutations.WithLabelValues(op).Inc()
}

// Recompute counts one recompute attempt outcome.
func (m *Metrics) Recompute(kind, result string) {
	if m == nil {
		return
	}
	m.Recomputes.WithLabelValues(kind, result).Inc()
}
