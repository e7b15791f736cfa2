package auth

import "context"

// Context keys for auth-related values.
type contextKey int

const (
	userKey contextKey = iota
	headersKey
)

// WithUser returns a new context with the given user attached.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext retrieves the user from the context.
// Returns nil if no user is present.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userKey).(*User)
	return u
}

// UserIDFromContext retrieves the user id from the context.
// Returns empty string if no user is present.
func UserIDFromContext(ctx context.Context) string {
	u := UserFromContext(ctx)
	if u == nil {
		return ""
	}
	return u.ID
}

// WithHeaders returns a new context with the given HTTP headers attached.
// These headers are used by providers to extract credentials.
func WithHeaders(ctx context.Context, headers map[string][]string) context.Context {
	return context.WithValue(ctx, headersKey, headers)
}

// HeadersFromContext retrieves HTTP headers from the context.
// Returns nil if no headers are present.
func HeadersFromContext(ctx context.Context) map[string][]string {
	h, _ := ctx.Value(headersKey).(map[string][]string)
	return h
}

// GetHeader retrieves a single header value from the context.
// Returns the first value if multiple values exist, or empty string if not found.
func GetHeader(ctx context.Context, key string) string {
	headers := HeadersFromContext(ctx)
	if headers == nil {
		return ""
	}
	values := headers[key]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// RequestFromContext builds an AuthRequest from the context's headers
// and resolved user.
func RequestFromContext(ctx context.Context) *AuthRequest {
	return &AuthRequest{
		Headers: HeadersFromContext(ctx),
		User:    UserFromContext(ctx),
	}
}
