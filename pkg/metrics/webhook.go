package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebhookMetrics counts payment event intake outcomes.
type WebhookMetrics struct {
	received   *prometheus.CounterVec
	rejected   *prometheus.CounterVec
	duplicates prometheus.Counter
	conflicts  prometheus.Counter
}

// NewWebhookMetrics registers the webhook intake metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_received",
		Help: "Payment webhook events accepted for processing.",
	}, []string{"type"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_rejected",
		Help: "Payment webhook events rejected before processing.",
	}, []string{"reason"})
	duplicates := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_events_duplicate",
		Help: "Payment webhook events dropped by the delivery dedupe guard.",
	})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_events_stale",
		Help: "Payment webhook events discarded as stale by the grant state machine.",
	})
	reg.MustRegister(received, rejected, duplicates, conflicts)
	return &WebhookMetrics{
		received:   received,
		rejected:   rejected,
		duplicates: duplicates,
		conflicts:  conflicts,
	}
}

// IncReceived increments the received counter for the event type.
func (w *WebhookMetrics) IncReceived(eventType string) {
	if w == nil || w.received == nil {
		return
	}
	w.received.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncRejected increments the rejected counter for the given reason.
func (w *WebhookMetrics) IncRejected(reason string) {
	if w == nil || w.rejected == nil {
		return
	}
	w.rejected.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncDuplicate increments the duplicate delivery counter.
func (w *WebhookMetrics) IncDuplicate() {
	if w == nil || w.duplicates == nil {
		return
	}
	w.duplicates.Inc()
}

// IncStale increments the stale event counter.
func (w *WebhookMetrics) IncStale() {
	if w == nil || w.conflicts == nil {
		return
	}
	w.conflicts.Inc()
}
