package oauth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// PKCEMethod selects how the code challenge is derived from the verifier.
type PKCEMethod string

const (
	// PKCEDisabled turns PKCE off for a provider.
	PKCEDisabled PKCEMethod = ""
	// PKCES256 derives the challenge as base64url(SHA-256(verifier)).
	PKCES256 PKCEMethod = "S256"
	// PKCEPlain sends the verifier itself as the challenge.
	PKCEPlain PKCEMethod = "plain"
)

// DefaultSessionLifetime is how long an authorization session stays
// redeemable before the sweep removes it.
const DefaultSessionLifetime = 15 * time.Minute

// DefaultValidityBuffer is the safety margin applied when no explicit
// buffer is given to a token validity check.
const DefaultValidityBuffer = 300 * time.Second

// Sentinel errors for flow validation. Messages are specific about
// which step failed and never include credential material.
var (
	ErrProviderNotRegistered = errors.New("oauth: provider not registered")
	ErrMissingCode           = errors.New("oauth: callback missing code parameter")
	ErrMissingState          = errors.New("oauth: callback missing state parameter")
	ErrInvalidState          = errors.New("oauth: invalid or expired state")
	ErrProviderMismatch      = errors.New("oauth: state belongs to a different provider")
	ErrSessionExpired        = errors.New("oauth: authorization session expired")
	ErrNoRefreshToken        = errors.New("oauth: no refresh token available")
)

// ProviderConfig describes one registered OAuth2 provider.
type ProviderConfig struct {
	// Name identifies the provider in API calls and token keys.
	Name string

	ClientID     string
	ClientSecret string

	// AuthURL is the authorization endpoint the caller is redirected to.
	AuthURL string

	// TokenURL is the token endpoint for code exchange and refresh.
	TokenURL string

	// UserInfoURL is the userinfo endpoint. Optional; when empty, a
	// placeholder identity is synthesized after exchange.
	UserInfoURL string

	// RevokeURL is the revocation endpoint. Optional; when empty, one is
	// derived from TokenURL on a best-effort basis.
	RevokeURL string

	// RedirectURI is sent with the authorization request and the exchange.
	RedirectURI string

	// Scopes requested during authorization.
	Scopes []string

	// ExtraParams are appended to every authorization URL. Call-level
	// params override these on key collision.
	ExtraParams map[string]string

	// PKCE selects the challenge method. PKCEDisabled skips PKCE.
	PKCE PKCEMethod

	// AutoRefresh lets the background sweep refresh this provider's
	// tokens before they expire.
	AutoRefresh bool

	// RefreshBuffer is how long before expiry a token counts as due for
	// refresh. Default: DefaultValidityBuffer.
	RefreshBuffer time.Duration
}

// Validate checks the fields required to run a flow.
func (c ProviderConfig) Validate() error {
	if c.Name == "" {
		return errors.New("oauth: provider name is required")
	}
	if c.ClientID == "" {
		return fmt.Errorf("oauth: provider %q: client ID is required", c.Name)
	}
	if c.AuthURL == "" {
		return fmt.Errorf("oauth: provider %q: auth URL is required", c.Name)
	}
	if c.TokenURL == "" {
		return fmt.Errorf("oauth: provider %q: token URL is required", c.Name)
	}
	if c.RedirectURI == "" {
		return fmt.Errorf("oauth: provider %q: redirect URI is required", c.Name)
	}
	switch c.PKCE {
	case PKCEDisabled, PKCES256, PKCEPlain:
	default:
		return fmt.Errorf("oauth: provider %q: unsupported PKCE method %q", c.Name, c.PKCE)
	}
	return nil
}

func (c ProviderConfig) refreshBuffer() time.Duration {
	if c.RefreshBuffer > 0 {
		return c.RefreshBuffer
	}
	return DefaultValidityBuffer
}

// Token holds externally-issued credentials for one (provider, user).
type Token struct {
	AccessToken  string
	RefreshToken string
	TokenType    string

	// ExpiresAt is when the access token expires. Zero means the
	// provider reported no expiry; such tokens are valid indefinitely.
	ExpiresAt time.Time

	// Scopes granted by the provider.
	Scopes []string

	// Metadata carries flow bookkeeping (issue/refresh timestamps and
	// similar). Merged, not replaced, across refreshes.
	Metadata map[string]any
}

// Valid reports whether the token is usable at least buffer into the
// future. A token without an access token string is never valid; a
// token without a recorded expiry always is.
func (t *Token) Valid(buffer time.Duration) bool {
	return t.ValidAt(time.Now(), buffer)
}

// ValidAt is Valid against an explicit clock reading.
func (t *Token) ValidAt(now time.Time, buffer time.Duration) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	if t.ExpiresAt.IsZero() {
		return true
	}
	return now.Add(buffer).Before(t.ExpiresAt)
}

// UserInfo is the identity a provider reports for an access token.
type UserInfo struct {
	ID    string
	Email string
	Name  string

	// Raw is the undecoded userinfo payload.
	Raw map[string]any
}

// Session is one pending authorization attempt, unique by State.
type Session struct {
	ID       string
	Provider string

	// State is the opaque CSRF value round-tripped through the redirect.
	State string

	// Verifier and Challenge are the PKCE pair; empty when PKCE is
	// disabled for the provider.
	Verifier  string
	Challenge string
	Method    PKCEMethod

	CreatedAt time.Time
	ExpiresAt time.Time

	// Metadata is caller-supplied context carried through the flow.
	Metadata map[string]any
}

// Expired reports whether the session is past its deadline.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// AuthURLOptions customize one GenerateAuthURL call.
type AuthURLOptions struct {
	// SessionID overrides the generated session id.
	SessionID string

	// Scopes override the provider's configured scopes when non-empty.
	Scopes []string

	// ExtraParams are merged over the provider's ExtraParams.
	ExtraParams map[string]string

	// Metadata is attached to the session.
	Metadata map[string]any
}

// AuthURLResult is the outcome of GenerateAuthURL.
type AuthURLResult struct {
	URL     string
	Session *Session
}

// CallbackParams carries the standard OAuth2 redirect query fields.
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
	ErrorURI         string
}

// CallbackResult is the outcome of HandleCallback. Exactly one of the
// success and failure halves is populated.
type CallbackResult struct {
	Success bool

	Provider  string
	SessionID string

	// Token and User are set on success.
	Token *Token
	User  *UserInfo

	// Err describes the failure.
	Err error

	// Provider-reported error fields, preserved when the callback
	// carried an explicit error.
	ErrorCode        string
	ErrorDescription string
	ErrorURI         string
}

// ProviderError is an error payload returned by a provider's token
// endpoint (non-2xx response or an error field in the body).
type ProviderError struct {
	Provider    string
	Code        string
	Description string
	Status      int
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("oauth: provider %q", e.Provider)
	if e.Code != "" {
		msg += ": " + e.Code
	} else if e.Status != 0 {
		msg += fmt.Sprintf(": status %d", e.Status)
	}
	if e.Description != "" {
		msg += " (" + e.Description + ")"
	}
	return msg
}

// HashUserID derives a stable, one-way user id from an access token.
// Used when a provider has no userinfo endpoint and by the bearer-token
// auth adapter, so both sides key the same token store entry.
func HashUserID(accessToken string) string {
	h := sha256.Sum256([]byte(accessToken))
	return "oauth2-" + hex.EncodeToString(h[:8])
}
