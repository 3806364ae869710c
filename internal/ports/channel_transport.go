package ports

import (
	"context"

	"call-companion-core/internal/domain"
)

// ChannelEventSink receives transport events. Implementations must not block.
type ChannelEventSink func(event domain.ChannelEvent)

// ChannelTransport is one connection to the external messaging network
type ChannelTransport interface {
	// Open loads persisted credentials if present and dials the network.
	// Pairing challenges, opens and closes are reported through sink until Close.
	Open(ctx context.Context, sink ChannelEventSink) error

	// Close tears the connection down without touching credentials
	Close()

	SendText(ctx context.Context, address string, text string) error
	SendImage(ctx context.Context, address string, image domain.OutboundImage, caption string) error

	// Revoke asks the remote side to end the session
	Revoke(ctx context.Context) error

	// WipeCredentials erases persisted session material
	WipeCredentials(ctx context.Context) error
}
