package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Domain counts business events: order transitions, stock adjustments and
// revenue postings. A nil *Domain is a no-op.
type Domain struct {
	transitions *prometheus.CounterVec
	stockMoved  *prometheus.CounterVec
	revenue     *prometheus.CounterVec
}

// NewDomain registers the domain counters against registerer.
func NewDomain(registerer prometheus.Registerer) *Domain {
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_order_transitions_total",
		Help: "Order status changes by source and target state.",
	}, []string{"from", "to"})
	stock := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_stock_units_moved_total",
		Help: "Units moved in or out of the catalog by direction.",
	}, []string{"direction"})
	revenue := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_revenue_entries_posted_total",
		Help: "Revenue entries written to the ledger by origin.",
	}, []string{"source"})
	registerer.MustRegister(transitions, stock, revenue)
	return &Domain{transitions: transitions, stockMoved: stock, revenue: revenue}
}

// OrderTransition counts an order entering to. from is empty on creation.
func (d *Domain) OrderTransition(from, to string) {
	if d == nil {
		return
	}
	if from == "" {
		from = "new"
	}
	d.transitions.WithLabelValues(from, to).Inc()
}

// StockMoved adds qty units for direction.
func (d *Domain) StockMoved(direction string, qty int) {
	if d == nil || qty <= 0 {
		return
	}
	d.stockMoved.WithLabelValues(direction).Add(float64(qty))
}

// RevenuePosted counts one ledger posting.
func (d *Domain) RevenuePosted(source string) {
	if d == nil {
		return
	}
	d.revenue.WithLabelValues(source).Inc()
}
