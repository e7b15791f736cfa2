package oauth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/flowgate/cache"
	"github.com/jonwraymond/flowgate/observe"
)

// DefaultSweepInterval is the cadence of the background sweep.
const DefaultSweepInterval = time.Minute

// expiringSoonWindow is how close to expiry a token must be before the
// sweep emits an informational EventTokenExpiring.
const expiringSoonWindow = 5 * time.Minute

// Manager runs authorization-code flows and owns the session and token
// stores. All methods are safe for concurrent use.
type Manager struct {
	mu        sync.RWMutex
	providers map[string]ProviderConfig

	sessions *cache.Store[*Session]
	tokens   *cache.Store[*Token]

	http    *http.Client
	logger  observe.Logger
	metrics *observe.AuthMetrics
	handler EventHandler
	now     func() time.Time

	timeout         time.Duration
	sweepInterval   time.Duration
	sessionLifetime time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithHTTPClient overrides the HTTP client for provider calls.
func WithHTTPClient(c *http.Client) ManagerOption {
	return func(m *Manager) { m.http = c }
}

// WithLogger sets the structured logger.
func WithLogger(l observe.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l.WithProvider("oauth") }
}

// WithMetrics sets the metrics sink.
func WithMetrics(am *observe.AuthMetrics) ManagerOption {
	return func(m *Manager) { m.metrics = am }
}

// WithEventHandler registers the flow event sink.
func WithEventHandler(h EventHandler) ManagerOption {
	return func(m *Manager) { m.handler = h }
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithSweepInterval overrides the background sweep cadence.
func WithSweepInterval(d time.Duration) ManagerOption {
	return func(m *Manager) { m.sweepInterval = d }
}

// WithSessionLifetime overrides how long authorization sessions live.
func WithSessionLifetime(d time.Duration) ManagerOption {
	return func(m *Manager) { m.sessionLifetime = d }
}

// WithRequestTimeout bounds each provider network call.
func WithRequestTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.timeout = d }
}

// NewManager creates a Manager. Call Start to run the background sweep
// and Stop to tear it down.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		providers:       make(map[string]ProviderConfig),
		http:            &http.Client{Timeout: 30 * time.Second},
		logger:          observe.NopLogger(),
		now:             time.Now,
		timeout:         15 * time.Second,
		sweepInterval:   DefaultSweepInterval,
		sessionLifetime: DefaultSessionLifetime,
		stop:            make(chan struct{}),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.sessions = cache.NewStore[*Session](cache.WithClock(m.now))
	m.tokens = cache.NewStore[*Token](cache.WithClock(m.now))
	return m
}

// RegisterProvider adds or replaces a provider configuration.
func (m *Manager) RegisterProvider(cfg ProviderConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.providers[cfg.Name] = cfg
	m.mu.Unlock()
	return nil
}

// Provider returns the configuration registered under name.
func (m *Manager) Provider(name string) (ProviderConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.providers[name]
	return cfg, ok
}

// GenerateAuthURL starts a flow: it mints an authorization session and
// returns the URL to redirect the caller to, alongside the session.
func (m *Manager) GenerateAuthURL(provider string, opts AuthURLOptions) (*AuthURLResult, error) {
	cfg, ok := m.Provider(provider)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotRegistered, provider)
	}

	state, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("oauth: generate state: %w", err)
	}

	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	now := m.now()
	session := &Session{
		ID:        sessionID,
		Provider:  provider,
		State:     state,
		CreatedAt: now,
		ExpiresAt: now.Add(m.sessionLifetime),
		Metadata:  opts.Metadata,
	}

	if cfg.PKCE != PKCEDisabled {
		pkce, err := GeneratePKCE(cfg.PKCE)
		if err != nil {
			return nil, err
		}
		session.Verifier = pkce.Verifier
		session.Challenge = pkce.Challenge
		session.Method = pkce.Method
	}

	// Sessions carry their own deadline; expiry is enforced explicitly
	// so an expired session yields a distinct error, not a silent miss.
	m.sessions.Set(state, session, time.Time{})

	scopes := cfg.Scopes
	if len(opts.Scopes) > 0 {
		scopes = opts.Scopes
	}

	params := url.Values{
		"client_id":     {cfg.ClientID},
		"redirect_uri":  {cfg.RedirectURI},
		"response_type": {"code"},
		"state":         {state},
	}
	if len(scopes) > 0 {
		params.Set("scope", strings.Join(scopes, " "))
	}
	for k, v := range cfg.ExtraParams {
		params.Set(k, v)
	}
	for k, v := range opts.ExtraParams {
		params.Set(k, v)
	}
	if session.Challenge != "" {
		params.Set("code_challenge", session.Challenge)
		params.Set("code_challenge_method", string(session.Method))
	}

	m.logger.Debug(context.Background(), "authorization session created",
		observe.F("provider", provider),
		observe.F("session_id", sessionID),
	)

	return &AuthURLResult{
		URL:     cfg.AuthURL + "?" + params.Encode(),
		Session: session,
	}, nil
}

// HandleCallback finishes a flow from the redirect's query parameters.
// It never panics past its boundary; every failure is a structured
// result. A failed exchange leaves the session redeemable so the same
// callback can be retried until the session's natural expiry.
func (m *Manager) HandleCallback(ctx context.Context, provider string, params CallbackParams) (result *CallbackResult) {
	started := m.now()

	defer func() {
		if r := recover(); r != nil {
			result = m.fail(&CallbackResult{Provider: provider}, fmt.Errorf("oauth: internal error: %v", r))
		}
		if m.metrics != nil {
			m.metrics.RecordCallback(ctx, provider, m.now().Sub(started), result.Success)
		}
	}()

	res := &CallbackResult{Provider: provider}

	// Provider-reported error: fail immediately, consuming nothing.
	if params.Error != "" {
		res.ErrorCode = params.Error
		res.ErrorDescription = params.ErrorDescription
		res.ErrorURI = params.ErrorURI
		return m.fail(res, &ProviderError{
			Provider:    provider,
			Code:        params.Error,
			Description: params.ErrorDescription,
		})
	}

	if params.Code == "" {
		return m.fail(res, ErrMissingCode)
	}
	if params.State == "" {
		return m.fail(res, ErrMissingState)
	}

	session, ok := m.sessions.Get(params.State)
	if !ok {
		return m.fail(res, ErrInvalidState)
	}
	res.SessionID = session.ID

	if session.Provider != provider {
		return m.fail(res, fmt.Errorf("%w: session for %q, callback for %q",
			ErrProviderMismatch, session.Provider, provider))
	}
	if session.Expired(m.now()) {
		return m.fail(res, ErrSessionExpired)
	}

	cfg, ok := m.Provider(provider)
	if !ok {
		return m.fail(res, fmt.Errorf("%w: %q", ErrProviderNotRegistered, provider))
	}

	token, err := m.exchangeCode(ctx, cfg, params.Code, session.Verifier)
	if err != nil {
		// Session intentionally left untouched: transient token-endpoint
		// failures stay retryable until the session expires.
		return m.fail(res, err)
	}

	var user *UserInfo
	if cfg.UserInfoURL != "" {
		user, err = m.fetchUserInfo(ctx, cfg, token.AccessToken)
		if err != nil {
			return m.fail(res, err)
		}
	} else {
		user = &UserInfo{ID: HashUserID(token.AccessToken)}
	}

	// Consume the session exactly once. When two callbacks race for the
	// same state, Take admits a single winner; the loser observes the
	// session already deleted.
	if _, ok := m.sessions.Take(params.State); !ok {
		return m.fail(res, ErrInvalidState)
	}

	deadline := time.Time{}
	if !token.ExpiresAt.IsZero() && token.RefreshToken == "" {
		// No refresh path: the store entry can lapse with the token.
		deadline = token.ExpiresAt
	}
	m.tokens.Set(tokenKey(provider, user.ID), token, deadline)

	res.Success = true
	res.Token = token
	res.User = user

	m.logger.Info(ctx, "authorization flow completed",
		observe.F("provider", provider),
		observe.F("user_id", user.ID),
		observe.F("session_id", session.ID),
	)
	m.emit(Event{
		Type:      EventFlowCompleted,
		Provider:  provider,
		UserID:    user.ID,
		SessionID: session.ID,
	})
	return res
}

// StoreToken places a token under (provider, userID), fully replacing
// any prior value. Lets hosts import externally-obtained tokens into
// the store the sweep and the bearer adapter consult.
func (m *Manager) StoreToken(provider, userID string, token *Token) {
	m.tokens.Set(tokenKey(provider, userID), token, time.Time{})
}

// GetTokens returns the stored token for (provider, userID), or nil.
func (m *Manager) GetTokens(provider, userID string) *Token {
	token, ok := m.tokens.Get(tokenKey(provider, userID))
	if !ok {
		return nil
	}
	return token
}

// RefreshTokens redeems the stored refresh token and replaces the
// stored value. Returns nil on any failure - unknown provider, missing
// refresh token, network error or provider rejection - never an error.
func (m *Manager) RefreshTokens(ctx context.Context, provider, userID string) *Token {
	cfg, ok := m.Provider(provider)
	if !ok {
		m.logger.Warn(ctx, "refresh for unregistered provider", observe.F("provider", provider))
		return nil
	}

	key := tokenKey(provider, userID)
	existing, ok := m.tokens.Get(key)
	if !ok || existing.RefreshToken == "" {
		return nil
	}

	refreshed, err := m.refreshGrant(ctx, cfg, existing.RefreshToken)
	if m.metrics != nil {
		m.metrics.RecordRefresh(ctx, provider, err == nil)
	}
	if err != nil {
		m.logger.Warn(ctx, "token refresh failed",
			observe.F("provider", provider),
			observe.F("user_id", userID),
			observe.F("error", err),
		)
		return nil
	}

	// Providers may omit the refresh token from a refresh response;
	// the prior one stays usable.
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = existing.RefreshToken
	}
	refreshed.Metadata = mergeMetadata(existing.Metadata, refreshed.Metadata)
	refreshed.Metadata["refreshed_at"] = m.now().UTC().Format(time.RFC3339)

	m.tokens.Set(key, refreshed, time.Time{})

	m.emit(Event{
		Type:     EventTokenRefreshed,
		Provider: provider,
		UserID:   userID,
	})
	return refreshed
}

// RevokeTokens deletes the stored token, telling the provider on a
// best-effort basis. Remote failures are swallowed; the local entry is
// removed regardless.
func (m *Manager) RevokeTokens(ctx context.Context, provider, userID string) bool {
	key := tokenKey(provider, userID)

	if token, ok := m.tokens.Get(key); ok {
		if cfg, ok := m.Provider(provider); ok {
			if err := m.revokeRemote(ctx, cfg, token.AccessToken); err != nil {
				m.logger.Warn(ctx, "remote revocation failed",
					observe.F("provider", provider),
					observe.F("user_id", userID),
					observe.F("error", err),
				)
			}
		}
	}

	m.tokens.Delete(key)
	return true
}

// ActiveSessions returns all non-expired sessions, deleting any expired
// session encountered during the scan.
func (m *Manager) ActiveSessions() []*Session {
	now := m.now()
	var active []*Session

	m.sessions.Range(func(state string, s *Session) bool {
		if s.Expired(now) {
			m.sessions.Delete(state)
			return true
		}
		active = append(active, s)
		return true
	})
	return active
}

// SessionStats reports session store statistics, evicting expired
// entries as a side effect.
func (m *Manager) SessionStats() cache.Stats {
	// Session entries carry no store deadline, so expire them here
	// before reading the stats.
	m.ActiveSessions()
	return m.sessions.Stats()
}

func (m *Manager) fail(res *CallbackResult, err error) *CallbackResult {
	res.Success = false
	res.Err = err

	m.logger.Warn(context.Background(), "authorization callback failed",
		observe.F("provider", res.Provider),
		observe.F("error", err),
	)
	m.emit(Event{
		Type:      EventFlowFailed,
		Provider:  res.Provider,
		SessionID: res.SessionID,
		Details:   map[string]any{"error": err.Error()},
	})
	return res
}

// emit delivers an event to the handler, stamping the time. A panicking
// handler is contained so flow paths keep their no-throw contract.
func (m *Manager) emit(event Event) {
	if m.handler == nil {
		return
	}
	event.Time = m.now()

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error(context.Background(), "event handler panicked",
				observe.F("event", string(event.Type)),
				observe.F("panic", fmt.Sprint(r)),
			)
		}
	}()
	m.handler.HandleEvent(event)
}

func tokenKey(provider, userID string) string {
	return provider + "/" + userID
}

func splitTokenKey(key string) (provider, userID string) {
	if i := strings.Index(key, "/"); i >= 0 {
		return key[:i], key[i+1:]
	}
	return key, ""
}

func mergeMetadata(prior, next map[string]any) map[string]any {
	merged := make(map[string]any, len(prior)+len(next)+1)
	for k, v := range prior {
		merged[k] = v
	}
	for k, v := range next {
		merged[k] = v
	}
	return merged
}
