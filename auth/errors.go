package auth

import "errors"

// Sentinel errors for authentication and authorization. Messages never
// include API keys or tokens.
var (
	// ErrCredentialsRequired means no API key or base URL could be
	// resolved from the request or configuration.
	ErrCredentialsRequired = errors.New("auth: credentials required")

	// ErrMissingBearer means the Authorization header carried no
	// bearer token.
	ErrMissingBearer = errors.New("auth: missing bearer token")

	// ErrTokenExpired means the presented token failed the validity
	// check.
	ErrTokenExpired = errors.New("auth: token expired")

	// ErrBackendRejected means the backend refused the credential
	// during connection validation.
	ErrBackendRejected = errors.New("auth: backend rejected credentials")

	// ErrForbidden means the resolved identity lacks a required
	// capability.
	ErrForbidden = errors.New("auth: access denied")
)
