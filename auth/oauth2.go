package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jonwraymond/flowgate/oauth"
	"github.com/jonwraymond/flowgate/observe"
)

// OAuth2Config configures an OAuth2Provider.
type OAuth2Config struct {
	// ProviderName selects which flow-manager provider's stored tokens
	// are consulted for a stronger validity check. Only meaningful
	// together with WithFlowManager.
	ProviderName string

	// ValidityBuffer is the safety margin for the token validity
	// check. Default: oauth.DefaultValidityBuffer.
	ValidityBuffer time.Duration
}

// OAuth2Provider bridges a bearer token on an inbound request into the
// Provider contract.
//
// The validity check is intentionally weaker than the flow manager's:
// only the header-presented token is known, not the backend-stored
// expiry or scopes. Two refinements sharpen it: a token that parses as
// a JWT contributes its exp claim, and a provider constructed with a
// flow manager consults the manager's token store under the derived
// user id.
type OAuth2Provider struct {
	cfg     OAuth2Config
	manager *oauth.Manager
	logger  observe.Logger
	metrics *observe.AuthMetrics
	now     func() time.Time
}

// OAuth2Option configures an OAuth2Provider.
type OAuth2Option func(*OAuth2Provider)

// WithFlowManager lets the provider consult the flow manager's stored
// tokens when validating a presented bearer token.
func WithFlowManager(m *oauth.Manager) OAuth2Option {
	return func(p *OAuth2Provider) { p.manager = m }
}

// WithOAuth2Logger sets the structured logger.
func WithOAuth2Logger(l observe.Logger) OAuth2Option {
	return func(p *OAuth2Provider) { p.logger = l.WithProvider(p.Name()) }
}

// WithOAuth2Metrics sets the metrics sink.
func WithOAuth2Metrics(m *observe.AuthMetrics) OAuth2Option {
	return func(p *OAuth2Provider) { p.metrics = m }
}

// WithOAuth2Clock overrides the time source. Used by tests.
func WithOAuth2Clock(now func() time.Time) OAuth2Option {
	return func(p *OAuth2Provider) { p.now = now }
}

// NewOAuth2Provider creates the bearer-token adapter.
func NewOAuth2Provider(cfg OAuth2Config, opts ...OAuth2Option) *OAuth2Provider {
	if cfg.ValidityBuffer <= 0 {
		cfg.ValidityBuffer = oauth.DefaultValidityBuffer
	}
	p := &OAuth2Provider{
		cfg:    cfg,
		logger: observe.NopLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider identifier.
func (p *OAuth2Provider) Name() string { return "oauth2" }

// Authenticate resolves a bearer token to an identity. Never panics
// past its boundary.
func (p *OAuth2Provider) Authenticate(ctx context.Context, req *AuthRequest) (result *AuthResult) {
	defer func() {
		if r := recover(); r != nil {
			result = Failure(fmt.Errorf("auth: internal error: %v", r))
		}
		if p.metrics != nil {
			p.metrics.RecordAuth(ctx, p.Name(), result.Authenticated)
		}
	}()

	presented := bearerToken(req.GetHeader("Authorization"))
	if presented == "" {
		return Failure(ErrMissingBearer)
	}

	userID := oauth.HashUserID(presented)

	token := &oauth.Token{AccessToken: presented, TokenType: "Bearer"}
	if exp, ok := jwtExpiry(presented); ok {
		token.ExpiresAt = exp
	}
	if p.manager != nil && p.cfg.ProviderName != "" {
		if stored := p.manager.GetTokens(p.cfg.ProviderName, userID); stored != nil && stored.AccessToken == presented {
			token = stored
		}
	}

	if !token.ValidAt(p.now(), p.cfg.ValidityBuffer) {
		return Failure(ErrTokenExpired)
	}

	roles := []string{RoleOAuth2User}
	user := &User{
		ID:           userID,
		Roles:        roles,
		Capabilities: DerivePermissions(roles),
	}

	p.logger.Debug(ctx, "bearer token accepted", observe.F("user_id", userID))
	return Success(user)
}

// Refresh delegates to Authenticate; this adapter holds no cached
// state of its own.
func (p *OAuth2Provider) Refresh(ctx context.Context, req *AuthRequest) *AuthResult {
	return p.Authenticate(ctx, req)
}

// CanAccessTool reports whether the request's resolved user may invoke
// the named tool.
func (p *OAuth2Provider) CanAccessTool(name string, req *AuthRequest) bool {
	return CanAccessTool(name, req)
}

// CanAccessResource reports whether the request's resolved user may
// read the resource at uri.
func (p *OAuth2Provider) CanAccessResource(uri string, req *AuthRequest) bool {
	return CanAccessResource(uri, req)
}

// jwtExpiry extracts the exp claim from a token that parses as a JWT.
// The signature is deliberately not verified: validation belongs to
// the issuing provider, this adapter only reads the advertised expiry.
func jwtExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

var _ Provider = (*OAuth2Provider)(nil)
