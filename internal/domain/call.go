package domain

import "time"

// CallRequestEvent is the realtime event name delivered to devices
const CallRequestEvent = "call:request"

// CallRequest asks a user's mobile device to place a call to a customer
type CallRequest struct {
	RequestID   string    `json:"requestId"`
	CustomerID  string    `json:"customerId"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone"`
	RequestedAt time.Time `json:"requestedAt"`
}

// DispatchResult reports whether a call request reached a device.
// A missing device is an expected outcome, not an error.
type DispatchResult struct {
	Delivered bool        `json:"delivered"`
	RequestID string      `json:"requestId"`
	Reason    error       `json:"-"`
	Request   CallRequest `json:"request"`
}
