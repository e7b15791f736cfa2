package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/flowgate/backend"
	"github.com/jonwraymond/flowgate/cache"
	"github.com/jonwraymond/flowgate/observe"
)

// DefaultBaseURLHeader is the inbound header overriding the backend
// base URL per request.
const DefaultBaseURLHeader = "X-N8N-URL"

// CredentialConfig configures a CredentialProvider.
type CredentialConfig struct {
	// Required gates the provider. When false, every request resolves
	// to the anonymous identity without touching the backend.
	Required bool

	// BaseURL is the default backend base URL, used when no header
	// override is present.
	BaseURL string

	// APIKey is the default key, used when the request carries none.
	APIKey string

	// ValidateConnection enables one cheap backend read before a
	// credential is accepted.
	ValidateConnection bool

	// CacheTTL is how long a successful result is reused. Zero or
	// negative disables caching entirely.
	CacheTTL time.Duration

	// DefaultRoles are merged with probe-derived roles. Typically
	// includes RoleMember.
	DefaultRoles []string

	// APIKeyHeader overrides the inbound key header.
	// Default: backend.DefaultAPIKeyHeader.
	APIKeyHeader string

	// BaseURLHeader overrides the inbound base URL header.
	// Default: DefaultBaseURLHeader.
	BaseURLHeader string
}

// CredentialProvider authenticates pre-shared backend API credentials,
// deriving roles by probing backend capabilities and caching results
// with a TTL.
type CredentialProvider struct {
	cfg     CredentialConfig
	factory backend.ClientFactory
	cache   *cache.Store[*AuthResult]
	logger  observe.Logger
	metrics *observe.AuthMetrics
	now     func() time.Time
}

// CredentialOption configures a CredentialProvider.
type CredentialOption func(*CredentialProvider)

// WithCredentialLogger sets the structured logger.
func WithCredentialLogger(l observe.Logger) CredentialOption {
	return func(p *CredentialProvider) { p.logger = l.WithProvider(p.Name()) }
}

// WithCredentialMetrics sets the metrics sink.
func WithCredentialMetrics(m *observe.AuthMetrics) CredentialOption {
	return func(p *CredentialProvider) { p.metrics = m }
}

// WithCredentialClock overrides the time source. Used by tests.
func WithCredentialClock(now func() time.Time) CredentialOption {
	return func(p *CredentialProvider) { p.now = now }
}

// NewCredentialProvider creates a provider that builds backend clients
// through factory.
func NewCredentialProvider(cfg CredentialConfig, factory backend.ClientFactory, opts ...CredentialOption) *CredentialProvider {
	if cfg.APIKeyHeader == "" {
		cfg.APIKeyHeader = backend.DefaultAPIKeyHeader
	}
	if cfg.BaseURLHeader == "" {
		cfg.BaseURLHeader = DefaultBaseURLHeader
	}

	p := &CredentialProvider{
		cfg:     cfg,
		factory: factory,
		logger:  observe.NopLogger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.cache = cache.NewStore[*AuthResult](cache.WithClock(p.now))
	return p
}

// Name returns the provider identifier.
func (p *CredentialProvider) Name() string { return "credentials" }

// Authenticate resolves the request to an identity. It never panics
// past its boundary; every failure is a structured result.
func (p *CredentialProvider) Authenticate(ctx context.Context, req *AuthRequest) (result *AuthResult) {
	defer func() {
		if r := recover(); r != nil {
			result = Failure(fmt.Errorf("auth: internal error: %v", r))
		}
		if p.metrics != nil {
			p.metrics.RecordAuth(ctx, p.Name(), result.Authenticated)
		}
	}()

	if !p.cfg.Required {
		return Success(AnonymousUser())
	}

	baseURL, apiKey := p.resolveCredentials(req)
	if baseURL == "" || apiKey == "" {
		return Failure(ErrCredentialsRequired)
	}

	key := cache.Key("cred", baseURL, apiKey)
	if cached, ok := p.cache.Get(key); ok {
		if p.metrics != nil {
			p.metrics.RecordCacheHit(ctx, p.Name())
		}
		return cached
	}

	client := p.factory(baseURL, apiKey)

	if p.cfg.ValidateConnection {
		if err := client.Validate(ctx); err != nil {
			p.logger.Warn(ctx, "backend rejected credentials", observe.F("error", err))
			return Failure(fmt.Errorf("%w: %v", ErrBackendRejected, err))
		}
	}

	roles := p.probeRoles(ctx, client)

	user := &User{
		ID:           cache.Key("user", baseURL, apiKey),
		Roles:        roles,
		Capabilities: DerivePermissions(roles),
		Credential:   &BackendCredential{BaseURL: baseURL, APIKey: apiKey},
	}
	result = Success(user)

	if p.cfg.CacheTTL > 0 {
		p.cache.Set(key, result, p.now().Add(p.cfg.CacheTTL))
	}

	p.logger.Info(ctx, "credentials authenticated",
		observe.F("user_id", user.ID),
		observe.F("roles", strings.Join(roles, ",")),
	)
	return result
}

// Refresh evicts the requesting user's cached result and revalidates.
// Without a resolved user it behaves exactly like a first-time
// Authenticate.
func (p *CredentialProvider) Refresh(ctx context.Context, req *AuthRequest) *AuthResult {
	if req != nil && req.User != nil && req.User.Credential != nil {
		cred := req.User.Credential
		p.cache.Delete(cache.Key("cred", cred.BaseURL, cred.APIKey))
	}
	return p.Authenticate(ctx, req)
}

// CanAccessTool reports whether the request's resolved user may invoke
// the named tool.
func (p *CredentialProvider) CanAccessTool(name string, req *AuthRequest) bool {
	return CanAccessTool(name, req)
}

// CanAccessResource reports whether the request's resolved user may
// read the resource at uri.
func (p *CredentialProvider) CanAccessResource(uri string, req *AuthRequest) bool {
	return CanAccessResource(uri, req)
}

// CacheStats reports credential cache statistics, evicting expired
// entries as a side effect.
func (p *CredentialProvider) CacheStats() cache.Stats {
	return p.cache.Stats()
}

// ClearCache wipes every cached result.
func (p *CredentialProvider) ClearCache() {
	p.cache.Clear()
}

// resolveCredentials applies the extraction precedence: explicit key
// header, then a Bearer-prefixed Authorization value, then the
// configured default. Base URL: header override, then default.
func (p *CredentialProvider) resolveCredentials(req *AuthRequest) (baseURL, apiKey string) {
	baseURL = req.GetHeader(p.cfg.BaseURLHeader)
	if baseURL == "" {
		baseURL = p.cfg.BaseURL
	}

	apiKey = req.GetHeader(p.cfg.APIKeyHeader)
	if apiKey == "" {
		apiKey = bearerToken(req.GetHeader("Authorization"))
	}
	if apiKey == "" {
		apiKey = p.cfg.APIKey
	}
	return baseURL, apiKey
}

// probeRoles checks the two higher-privilege endpoints concurrently.
// A probe failure means the capability is absent, never an
// authentication error.
func (p *CredentialProvider) probeRoles(ctx context.Context, client backend.Client) []string {
	var mu sync.Mutex
	probed := make(map[string]bool)

	g := &errgroup.Group{}
	g.Go(func() error {
		if err := client.ListUsers(ctx); err == nil {
			mu.Lock()
			probed[RoleAdmin] = true
			mu.Unlock()
		}
		return nil
	})
	g.Go(func() error {
		if err := client.ListProjects(ctx); err == nil {
			mu.Lock()
			probed[RoleEnterprise] = true
			mu.Unlock()
		}
		return nil
	})
	_ = g.Wait()

	roles := make([]string, 0, len(p.cfg.DefaultRoles)+2)
	seen := make(map[string]bool)
	for _, r := range p.cfg.DefaultRoles {
		if r != "" && !seen[r] {
			seen[r] = true
			roles = append(roles, r)
		}
	}
	for _, r := range []string{RoleAdmin, RoleEnterprise} {
		if probed[r] && !seen[r] {
			seen[r] = true
			roles = append(roles, r)
		}
	}
	return roles
}

// bearerToken strips a case-insensitive "Bearer " prefix. Empty when
// the value carries no such prefix.
func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

var _ Provider = (*CredentialProvider)(nil)
