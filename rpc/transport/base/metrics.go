package base

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"
)

// transportMetrics holds the counters of one transport type (ws, tcp, mem)
type transportMetrics struct {
	connects      *metrics.Counter
	dialFailures  *metrics.Counter
	disconnects   *metrics.Counter
	faults        *metrics.Counter
	sent          *metrics.Counter
	queued        *metrics.Counter
	queueDropped  *metrics.Counter
	received      *metrics.Counter
	deferredDials *metrics.Counter
	backoff       *metrics.Histogram
}

func newTransportMetrics(name string) *transportMetrics {
	metric := func(base string) string {
		return fmt.Sprintf(`%s{transport=%q}`, base, name)
	}
	return &transportMetrics{
		connects:      metrics.GetOrCreateCounter(metric("rws_transport_connects_total")),
		dialFailures:  metrics.GetOrCreateCounter(metric("rws_transport_dial_failures_total")),
		disconnects:   metrics.GetOrCreateCounter(metric("rws_transport_disconnects_total")),
		faults:        metrics.GetOrCreateCounter(metric("rws_transport_faults_total")),
		sent:          metrics.GetOrCreateCounter(metric("rws_transport_messages_sent_total")),
		queued:        metrics.GetOrCreateCounter(metric("rws_transport_messages_queued_total")),
		queueDropped:  metrics.GetOrCreateCounter(metric("rws_transport_queue_dropped_total")),
		received:      metrics.GetOrCreateCounter(metric("rws_transport_messages_received_total")),
		deferredDials: metrics.GetOrCreateCounter(metric("rws_transport_deferred_dials_total")),
		backoff:       metrics.GetOrCreateHistogram(metric("rws_transport_backoff_seconds")),
	}
}
