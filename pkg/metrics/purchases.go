package metrics

import "github.com/prometheus/client_golang/prometheus"

// Callback outcomes reported by the purchase engine.
const (
	CallbackApplied   = "applied"
	CallbackDuplicate = "duplicate"
	CallbackIgnored   = "ignored"
	CallbackError     = "error"
)

// PurchaseMetrics counts purchase lifecycle transitions.
type PurchaseMetrics struct {
	initiated *prometheus.CounterVec
	callbacks *prometheus.CounterVec
	webhooks  *prometheus.CounterVec
}

// NewPurchaseMetrics registers purchase counters on reg. A nil registerer
// yields a no-op recorder.
func NewPurchaseMetrics(reg prometheus.Registerer) *PurchaseMetrics {
	if reg == nil {
		return &PurchaseMetrics{}
	}
	m := &PurchaseMetrics{
		initiated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchases_initiated_total",
			Help:      "Checkout attempts by outcome.",
		}, []string{"outcome"}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchase_callbacks_total",
			Help:      "Gateway callbacks handled by kind and outcome.",
		}, []string{"kind", "outcome"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stripe_webhook_events_total",
			Help:      "Stripe webhook deliveries by event type and result.",
		}, []string{"type", "result"}),
	}
	reg.MustRegister(m.initiated, m.callbacks, m.webhooks)
	return m
}

// Initiated counts a checkout attempt; outcome is "ok" or an error code.
func (m *PurchaseMetrics) Initiated(outcome string) {
	if m == nil || m.initiated == nil {
		return
	}
	m.initiated.WithLabelValues(label(outcome)).Inc()
}

// Callback counts a handled gateway callback.
func (m *PurchaseMetrics) Callback(kind, outcome string) {
	if m == nil || m.callbacks == nil {
		return
	}
	m.callbacks.WithLabelValues(label(kind), label(outcome)).Inc()
}

// Webhook counts a received Stripe event.
func (m *PurchaseMetrics) Webhook(eventType, result string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(label(eventType), label(result)).Inc()
}
