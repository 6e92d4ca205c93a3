package metrics

import "github.com/prometheus/client_golang/prometheus"

// PaymentMetrics tracks the webhook pipeline and refund orchestration.
type PaymentMetrics struct {
	webhookEvents        *prometheus.CounterVec
	inventoryFailures    prometheus.Counter
	refundRequests       *prometheus.CounterVec
	refundPersistFailure prometheus.Counter
}

// NewPaymentMetrics registers the payment metrics on reg. A nil registerer
// yields a no-op recorder.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	m := &PaymentMetrics{
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Gateway webhook events by kind and outcome.",
		}, []string{"kind", "outcome"}),
		inventoryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inventory",
			Name:      "decrement_failures_total",
			Help:      "Line items whose stock could not be decremented after payment.",
		}),
		refundRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refund",
			Name:      "gateway_requests_total",
			Help:      "Refund creation calls to the gateway by result.",
		}, []string{"result"}),
		refundPersistFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refund",
			Name:      "persistence_failures_total",
			Help:      "Refunds accepted by the gateway whose local update failed.",
		}),
	}
	reg.MustRegister(m.webhookEvents, m.inventoryFailures, m.refundRequests, m.refundPersistFailure)
	return m
}

// ObserveWebhook counts one processed webhook delivery.
func (m *PaymentMetrics) ObserveWebhook(kind, outcome string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Inc()
}

// AddInventoryFailures counts line items that failed to decrement.
func (m *PaymentMetrics) AddInventoryFailures(n int) {
	if m == nil || m.inventoryFailures == nil || n <= 0 {
		return
	}
	m.inventoryFailures.Add(float64(n))
}

// ObserveRefundRequest counts a gateway refund call by result.
func (m *PaymentMetrics) ObserveRefundRequest(result string) {
	if m == nil || m.refundRequests == nil {
		return
	}
	m.refundRequests.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncRefundPersistenceFailure counts a refund that needs manual reconciliation.
func (m *PaymentMetrics) IncRefundPersistenceFailure() {
	if m == nil || m.refundPersistFailure == nil {
		return
	}
	m.refundPersistFailure.Inc()
}
