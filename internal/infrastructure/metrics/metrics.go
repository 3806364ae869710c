package metrics

import (
	"call-companion-core/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder exposes integration-core counters to Prometheus
type Recorder struct {
	channelState       *prometheus.GaugeVec
	messagesSent       *prometheus.CounterVec
	exports            *prometheus.CounterVec
	siblingsPropagated prometheus.Counter
	callsDispatched    *prometheus.CounterVec
}

// NewRecorder registers the collectors on reg
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		channelState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "callcompanion",
			Name:      "channel_state",
			Help:      "1 for the current messaging channel state, 0 otherwise.",
		}, []string{"state"}),
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callcompanion",
			Name:      "channel_messages_total",
			Help:      "Messages sent over the messaging channel.",
		}, []string{"kind", "result"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callcompanion",
			Name:      "sheet_exports_total",
			Help:      "Spreadsheet mirror exports by result.",
		}, []string{"result"}),
		siblingsPropagated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "callcompanion",
			Name:      "sibling_updates_total",
			Help:      "Sibling records updated by lead-field propagation.",
		}),
		callsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callcompanion",
			Name:      "call_dispatches_total",
			Help:      "Call requests routed to devices by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(r.channelState, r.messagesSent, r.exports, r.siblingsPropagated, r.callsDispatched)
	r.ChannelStateChanged(domain.ChannelDisconnected)
	return r
}

func (r *Recorder) ChannelStateChanged(state domain.ChannelState) {
	for _, s := range []domain.ChannelState{domain.ChannelDisconnected, domain.ChannelPairing, domain.ChannelConnected} {
		value := 0.0
		if s == state {
			value = 1
		}
		r.channelState.WithLabelValues(string(s)).Set(value)
	}
}

func (r *Recorder) MessageSent(kind string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	r.messagesSent.WithLabelValues(kind, result).Inc()
}

// ExportFinished counts by result only; collection ids would explode label cardinality
func (r *Recorder) ExportFinished(collectionID string, result string) {
	r.exports.WithLabelValues(result).Inc()
}

func (r *Recorder) SiblingsPropagated(count int) {
	if count > 0 {
		r.siblingsPropagated.Add(float64(count))
	}
}

func (r *Recorder) CallDispatched(delivered bool) {
	result := "delivered"
	if !delivered {
		result = "device_not_connected"
	}
	r.callsDispatched.WithLabelValues(result).Inc()
}
