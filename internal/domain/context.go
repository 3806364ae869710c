package domain

import "context"

type contextKey string

const (
	userIDKey     contextKey = "user_id"
	businessIDKey contextKey = "business_id"
)

// WithUserID stores the authenticated user id in the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserIDFromContext returns the authenticated user id, or "" if absent
func GetUserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// WithBusinessID stores the caller's business id in the context
func WithBusinessID(ctx context.Context, businessID string) context.Context {
	return context.WithValue(ctx, businessIDKey, businessID)
}

// GetBusinessIDFromContext returns the caller's business id, or "" if absent
func GetBusinessIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(businessIDKey).(string); ok {
		return v
	}
	return ""
}
