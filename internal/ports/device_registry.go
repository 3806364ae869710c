package ports

// DeviceEndpoint is one live realtime connection from a device
type DeviceEndpoint interface {
	ID() string
	// Emit queues a named event for delivery without blocking. It returns false if the event was dropped.
	Emit(event string, payload interface{}) bool
}

// DeviceRegistry resolves user identities to their current endpoint
type DeviceRegistry interface {
	Lookup(userID string) (DeviceEndpoint, bool)
}
