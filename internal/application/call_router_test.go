package application

import (
	"context"
	"sync"
	"testing"

	"call-companion-core/internal/domain"
	"call-companion-core/internal/infrastructure/memory"
	"call-companion-core/internal/ports"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emittedEvent struct {
	name    string
	payload interface{}
}

type fakeEndpoint struct {
	id     string
	full   bool
	mu     sync.Mutex
	events []emittedEvent
}

func (e *fakeEndpoint) ID() string { return e.id }

func (e *fakeEndpoint) Emit(event string, payload interface{}) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.full {
		return false
	}
	e.events = append(e.events, emittedEvent{name: event, payload: payload})
	return true
}

type mapRegistry map[string]ports.DeviceEndpoint

func (m mapRegistry) Lookup(userID string) (ports.DeviceEndpoint, bool) {
	ep, ok := m[userID]
	return ep, ok
}

func TestCallRouter_DeliversToBoundDevice(t *testing.T) {
	device := &fakeEndpoint{id: "ep-1"}
	router := NewCallRouter(mapRegistry{"U1": device}, memory.NewCustomerStore(), nil, zerolog.Nop())

	result := router.Dispatch("U1", domain.CallRequest{CustomerID: "c-1", Name: "Asha", Phone: "98765"})
	assert.True(t, result.Delivered)
	assert.NoError(t, result.Reason)
	assert.NotEmpty(t, result.RequestID)

	require.Len(t, device.events, 1)
	assert.Equal(t, domain.CallRequestEvent, device.events[0].name)
	req, ok := device.events[0].payload.(domain.CallRequest)
	require.True(t, ok)
	assert.Equal(t, result.RequestID, req.RequestID)
	assert.Equal(t, "98765", req.Phone)
	assert.False(t, req.RequestedAt.IsZero())
}

func TestCallRouter_UnboundUserGetsNoEvent(t *testing.T) {
	other := &fakeEndpoint{id: "ep-2"}
	router := NewCallRouter(mapRegistry{"U2": other}, memory.NewCustomerStore(), nil, zerolog.Nop())

	result := router.Dispatch("U1", domain.CallRequest{CustomerID: "c-1"})
	assert.False(t, result.Delivered)
	assert.ErrorIs(t, result.Reason, domain.ErrDeviceNotConnected)
	assert.Empty(t, other.events)
}

func TestCallRouter_FullBufferIsNotDelivered(t *testing.T) {
	router := NewCallRouter(mapRegistry{"U1": &fakeEndpoint{id: "ep-1", full: true}}, memory.NewCustomerStore(), nil, zerolog.Nop())

	result := router.Dispatch("U1", domain.CallRequest{CustomerID: "c-1"})
	assert.False(t, result.Delivered)
	assert.ErrorIs(t, result.Reason, domain.ErrDeviceNotConnected)
}

func TestCallRouter_RequestCall(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCustomerStore()
	device := &fakeEndpoint{id: "ep-1"}
	router := NewCallRouter(mapRegistry{"U1": device}, store, nil, zerolog.Nop())

	record := seedRecord(t, store, &domain.CustomerRecord{BusinessID: "B", CollectionID: "col-1", Name: "Asha", Phone: "98765"})
	noPhone := seedRecord(t, store, &domain.CustomerRecord{BusinessID: "B", CollectionID: "col-1", Name: "Ravi"})

	result, err := router.RequestCall(ctx, "B", "U1", record.ID)
	require.NoError(t, err)
	assert.True(t, result.Delivered)
	assert.Equal(t, "Asha", result.Request.Name)

	_, err = router.RequestCall(ctx, "B", "U1", noPhone.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTarget)

	_, err = router.RequestCall(ctx, "other", "U1", record.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
