package domain

import "time"

// ChannelState is the messaging session state
type ChannelState string

const (
	ChannelDisconnected ChannelState = "disconnected"
	ChannelPairing      ChannelState = "pairing"
	ChannelConnected    ChannelState = "connected"
)

// PairingToken is a scannable code offered by the remote network while pairing
type PairingToken struct {
	Code      string    `json:"code"`
	QRDataURL string    `json:"qr_data_url,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ChannelStatus is a point-in-time snapshot of the messaging session
type ChannelStatus struct {
	State   ChannelState  `json:"state"`
	Pairing *PairingToken `json:"pairing,omitempty"`
	Since   time.Time     `json:"since"`
}

// ChannelEventType enumerates transport events
type ChannelEventType string

const (
	ChannelEventChallenge ChannelEventType = "pairing_challenge"
	ChannelEventOpen      ChannelEventType = "open"
	ChannelEventClose     ChannelEventType = "close"
)

// Close reasons reported by transports
const (
	CloseReasonRevoked        = "revoked"
	CloseReasonNetwork        = "network"
	CloseReasonPairingTimeout = "pairing_timeout"
	CloseReasonReplaced       = "replaced"
)

// ChannelEvent is emitted by a transport into the channel client
type ChannelEvent struct {
	Type ChannelEventType
	// Code and TTL are set for pairing challenges
	Code string
	TTL  time.Duration
	// Reason is set for closes
	Reason string
}

// Revoked reports whether the close means the remote side ended the session for good
func (e ChannelEvent) Revoked() bool {
	return e.Type == ChannelEventClose && e.Reason == CloseReasonRevoked
}

// OutboundImage is an optional image attached to an outbound message
type OutboundImage struct {
	Data     []byte
	MimeType string
}
