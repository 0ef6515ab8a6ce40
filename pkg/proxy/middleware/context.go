package middleware

import "context"

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// RequestIDKey stores the unique request ID.
	RequestIDKey contextKey = "request_id"

	// StartTimeKey stores the request start time for latency calculation.
	StartTimeKey contextKey = "start_time"

	// ClientIDKey stores the authenticated project identity.
	ClientIDKey contextKey = "client_id"

	// UserIDKey stores the authenticated user identity.
	UserIDKey contextKey = "user_id"
)

// GetRequestID extracts the request ID from the context.
// Returns empty string if not found.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetClientID extracts the authenticated project identity from the context.
func GetClientID(ctx context.Context) string {
	if clientID, ok := ctx.Value(ClientIDKey).(string); ok {
		return clientID
	}
	return ""
}

// GetUserID extracts the authenticated user identity from the context.
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}

// WithIdentity returns a context carrying the authenticated identities.
func WithIdentity(ctx context.Context, clientID, userID string) context.Context {
	ctx = context.WithValue(ctx, ClientIDKey, clientID)
	return context.WithValue(ctx, UserIDKey, userID)
}
