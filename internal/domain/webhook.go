package domain

import "time"

// WebhookEvent represents one verified inbound webhook delivery
type WebhookEvent struct {
	Topic      string    `json:"topic"`
	Source     string    `json:"source"` // Lead source, e.g. "facebook" or "website"
	Payload    []byte    `json:"-"`
	Verified   bool      `json:"verified"`
	ReceivedAt time.Time `json:"received_at"`
}

// Webhook topics handled by the integration core
const (
	TopicLeadCreated = "lead.created"
)
