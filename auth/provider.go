package auth

import (
	"context"
	"net/http"
)

// Provider resolves inbound requests to authenticated identities.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods must honor cancellation/deadlines.
// - Errors: Authenticate and Refresh never panic past their boundary
//   and never return nil; failures are carried in the result, with
//   error text that never includes credential material.
type Provider interface {
	// Name returns a unique identifier for this provider.
	Name() string

	// Authenticate resolves the request to an identity.
	Authenticate(ctx context.Context, req *AuthRequest) *AuthResult

	// Refresh forces revalidation, bypassing any cached result.
	Refresh(ctx context.Context, req *AuthRequest) *AuthResult

	// CanAccessTool reports whether the request's resolved user may
	// invoke the named tool.
	CanAccessTool(name string, req *AuthRequest) bool

	// CanAccessResource reports whether the request's resolved user may
	// read the resource at uri.
	CanAccessResource(uri string, req *AuthRequest) bool
}

// AuthRequest carries the inbound request's authentication material.
type AuthRequest struct {
	// CallerID identifies the caller when the transport knows it.
	CallerID string

	// Headers are the inbound HTTP headers.
	Headers map[string][]string

	// Metadata is additional request context.
	Metadata map[string]any

	// User is the already-resolved identity, set after a successful
	// Authenticate. Refresh uses it to locate cached state.
	User *User
}

// GetHeader returns the first value for a header, trying the key as
// given and then in canonical form. Empty when absent.
func (r *AuthRequest) GetHeader(key string) string {
	if r == nil || r.Headers == nil {
		return ""
	}
	if values := r.Headers[key]; len(values) > 0 {
		return values[0]
	}
	if values := r.Headers[http.CanonicalHeaderKey(key)]; len(values) > 0 {
		return values[0]
	}
	return ""
}

// AuthResult is the outcome of an authentication attempt. Success
// carries a user with a fully-populated capability vector; failure
// carries the error.
type AuthResult struct {
	// Authenticated is true if authentication succeeded.
	Authenticated bool

	// User is the resolved identity. Set only on success.
	User *User

	// Extra is provider-specific context attached on success.
	Extra map[string]any

	// Err describes the failure. Set only on failure.
	Err error
}

// Success creates a successful result.
func Success(user *User) *AuthResult {
	return &AuthResult{Authenticated: true, User: user}
}

// Failure creates a failed result.
func Failure(err error) *AuthResult {
	return &AuthResult{Authenticated: false, Err: err}
}
