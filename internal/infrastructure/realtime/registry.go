package realtime

import (
	"fmt"
	"sync"

	"call-companion-core/internal/domain"
	"call-companion-core/internal/ports"

	"github.com/rs/zerolog"
)

// Device protocol events
const (
	EventAuthenticate = "authenticate"
	EventAuthSuccess  = "auth:success"
	EventAuthError    = "auth:error"
)

// TokenVerifier validates device identity tokens
type TokenVerifier interface {
	Verify(token string) (domain.Identity, error)
}

// Registry maps authenticated users to their live device endpoint.
// A user has at most one endpoint; the latest authentication wins.
type Registry struct {
	mu       sync.RWMutex
	byUser   map[string]ports.DeviceEndpoint
	userOf   map[string]string // endpoint id -> user id
	verifier TokenVerifier
	logger   zerolog.Logger
}

// NewRegistry creates an empty device registry
func NewRegistry(verifier TokenVerifier, logger zerolog.Logger) *Registry {
	return &Registry{
		byUser:   make(map[string]ports.DeviceEndpoint),
		userOf:   make(map[string]string),
		verifier: verifier,
		logger:   logger.With().Str("component", "device_registry").Logger(),
	}
}

// Authenticate verifies token and binds endpoint to its user, replacing any earlier binding.
// The outcome is also reported to the endpoint as auth:success or auth:error; on error the
// endpoint is left unbound.
func (r *Registry) Authenticate(endpoint ports.DeviceEndpoint, token string) (domain.Identity, error) {
	identity, err := r.verifier.Verify(token)
	if err != nil {
		r.logger.Warn().Err(err).Str("endpoint_id", endpoint.ID()).Msg("Device authentication failed")
		// A rejected token also revokes whatever identity the endpoint held before
		r.Unbind(endpoint)
		endpoint.Emit(EventAuthError, map[string]string{"message": "authentication failed"})
		return domain.Identity{}, fmt.Errorf("failed to authenticate device: %w", err)
	}

	r.mu.Lock()
	// Re-authentication as another user releases the old binding
	if prevUser, ok := r.userOf[endpoint.ID()]; ok && prevUser != identity.UserID {
		if current, ok := r.byUser[prevUser]; ok && current.ID() == endpoint.ID() {
			delete(r.byUser, prevUser)
		}
	}
	replaced := ""
	if prev, ok := r.byUser[identity.UserID]; ok && prev.ID() != endpoint.ID() {
		replaced = prev.ID()
		delete(r.userOf, prev.ID())
	}
	r.byUser[identity.UserID] = endpoint
	r.userOf[endpoint.ID()] = identity.UserID
	r.mu.Unlock()

	endpoint.Emit(EventAuthSuccess, map[string]string{"userId": identity.UserID})

	event := r.logger.Info().Str("user_id", identity.UserID).Str("endpoint_id", endpoint.ID())
	if replaced != "" {
		event = event.Str("replaced_endpoint_id", replaced)
	}
	event.Msg("Device authenticated")
	return identity, nil
}

// Unbind drops endpoint's binding if it is still the user's current endpoint
func (r *Registry) Unbind(endpoint ports.DeviceEndpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.userOf[endpoint.ID()]
	if !ok {
		return
	}
	delete(r.userOf, endpoint.ID())
	if current, ok := r.byUser[userID]; ok && current.ID() == endpoint.ID() {
		delete(r.byUser, userID)
		r.logger.Info().Str("user_id", userID).Str("endpoint_id", endpoint.ID()).Msg("Device unbound")
	}
}

// Lookup returns the user's current endpoint
func (r *Registry) Lookup(userID string) (ports.DeviceEndpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	endpoint, ok := r.byUser[userID]
	return endpoint, ok
}

// GetStats returns registry statistics
func (r *Registry) GetStats() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return map[string]interface{}{
		"bound_devices": len(r.byUser),
	}
}
