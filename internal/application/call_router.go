package application

import (
	"context"
	"fmt"
	"time"

	"call-companion-core/internal/domain"
	"call-companion-core/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CallRouter delivers call requests to the device a user is currently signed in on
type CallRouter struct {
	registry ports.DeviceRegistry
	store    ports.CustomerRecordStore
	metrics  ports.MetricsRecorder
	logger   zerolog.Logger
}

// NewCallRouter creates a new call-dispatch router
func NewCallRouter(
	registry ports.DeviceRegistry,
	store ports.CustomerRecordStore,
	metrics ports.MetricsRecorder,
	logger zerolog.Logger,
) *CallRouter {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &CallRouter{
		registry: registry,
		store:    store,
		metrics:  metrics,
		logger:   logger.With().Str("component", "call_router").Logger(),
	}
}

// Dispatch emits req to userID's device without waiting. Delivery is at most once; nothing is
// queued for users without a live device.
func (r *CallRouter) Dispatch(userID string, req domain.CallRequest) domain.DispatchResult {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now().UTC()
	}
	result := domain.DispatchResult{RequestID: req.RequestID, Request: req}

	endpoint, ok := r.registry.Lookup(userID)
	if !ok {
		result.Reason = domain.ErrDeviceNotConnected
		r.metrics.CallDispatched(false)
		r.logger.Info().Str("user_id", userID).Str("request_id", req.RequestID).Msg("No device connected for call request")
		return result
	}

	if !endpoint.Emit(domain.CallRequestEvent, req) {
		result.Reason = fmt.Errorf("%w: device send buffer full", domain.ErrDeviceNotConnected)
		r.metrics.CallDispatched(false)
		r.logger.Warn().
			Str("user_id", userID).
			Str("endpoint_id", endpoint.ID()).
			Str("request_id", req.RequestID).
			Msg("Dropped call request for slow device")
		return result
	}

	result.Delivered = true
	r.metrics.CallDispatched(true)
	r.logger.Info().
		Str("user_id", userID).
		Str("endpoint_id", endpoint.ID()).
		Str("request_id", req.RequestID).
		Str("customer_id", req.CustomerID).
		Msg("Call request dispatched")
	return result
}

// RequestCall looks up a customer of businessID and dispatches a call request for it to userID
func (r *CallRouter) RequestCall(ctx context.Context, businessID, userID, customerID string) (domain.DispatchResult, error) {
	record, err := r.store.FindByID(ctx, customerID)
	if err != nil {
		return domain.DispatchResult{}, fmt.Errorf("failed to load customer: %w", err)
	}
	if record == nil || record.Deleted || (businessID != "" && record.BusinessID != businessID) {
		return domain.DispatchResult{}, fmt.Errorf("customer %s: %w", customerID, domain.ErrNotFound)
	}
	if record.Phone == "" {
		return domain.DispatchResult{}, fmt.Errorf("%w: customer has no phone number", domain.ErrInvalidTarget)
	}

	return r.Dispatch(userID, domain.CallRequest{
		CustomerID: record.ID,
		Name:       record.Name,
		Phone:      record.Phone,
	}), nil
}
