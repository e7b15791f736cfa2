package auth

import "net/http"

// WithAuthHeaders is HTTP middleware that extracts request headers
// into the context for use by authentication middleware.
//
// Usage:
//
//	mux.Handle("/api", auth.WithAuthHeaders(apiHandler))
func WithAuthHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithHeaders(r.Context(), r.Header)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth is HTTP middleware that authenticates each request
// through the provider and attaches the resolved user to the context.
// Unauthenticated requests are rejected with 401.
func RequireAuth(p Provider, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result := p.Authenticate(r.Context(), &AuthRequest{Headers: r.Header})
		if !result.Authenticated {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		ctx := WithUser(r.Context(), result.User)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireTool is HTTP middleware gating a handler on the capability the
// named tool requires. Requests whose context carries no user, or a
// user lacking the capability, are rejected with 403.
func RequireTool(tool string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !CanAccessTool(tool, RequestFromContext(r.Context())) {
			http.Error(w, ErrForbidden.Error(), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
