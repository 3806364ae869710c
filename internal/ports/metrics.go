package ports

import "call-companion-core/internal/domain"

// MetricsRecorder receives operational counters from the application layer
type MetricsRecorder interface {
	ChannelStateChanged(state domain.ChannelState)
	MessageSent(kind string, err error)
	ExportFinished(collectionID string, result string)
	SiblingsPropagated(count int)
	CallDispatched(delivered bool)
}

// NopMetrics discards everything
type NopMetrics struct{}

func (NopMetrics) ChannelStateChanged(domain.ChannelState) {}
func (NopMetrics) MessageSent(string, error)                {}
func (NopMetrics) ExportFinished(string, string)            {}
func (NopMetrics) SiblingsPropagated(int)                   {}
func (NopMetrics) CallDispatched(bool)                      {}
