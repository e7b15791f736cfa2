package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jonwraymond/flowgate/auth"
	"github.com/jonwraymond/flowgate/oauth"
	"github.com/jonwraymond/flowgate/secret"
)

// envPrefix is prepended to every variable name this package reads.
const envPrefix = "FLOWGATE_"

// Config is the process configuration, built explicitly by the host
// through FromEnv and passed by reference to consumers. There is no
// package-level singleton.
type Config struct {
	// ActiveProvider selects the auth provider gating inbound requests:
	// "credentials" or "oauth2". Default: "credentials".
	ActiveProvider string

	// Credentials configures the credential auth provider.
	Credentials auth.CredentialConfig

	// OAuthProviders are the OAuth2 providers to register with the flow
	// manager, in declaration order.
	OAuthProviders []oauth.ProviderConfig

	// LogLevel is the minimum structured-log level. Default: "info".
	LogLevel string

	// MetricsEnabled turns the prometheus metrics pipeline on.
	MetricsEnabled bool
}

// FromEnv loads configuration from FLOWGATE_* environment variables.
//
// Secrets (the backend API key, OAuth2 client secrets) may reference
// other variables as ${VAR}; references are expanded strictly and a
// missing variable is a load error.
//
// OAuth2 providers are declared in FLOWGATE_OAUTH_PROVIDERS as a
// comma-separated name list; each name N is then configured through
// FLOWGATE_OAUTH_<N>_CLIENT_ID, _CLIENT_SECRET, _AUTH_URL, _TOKEN_URL,
// _USERINFO_URL, _REDIRECT_URI, _SCOPES, _PKCE, _AUTO_REFRESH and
// _REFRESH_BUFFER.
func FromEnv() (*Config, error) {
	cfg := &Config{
		ActiveProvider: envString("ACTIVE_PROVIDER", "credentials"),
		LogLevel:       envString("LOG_LEVEL", "info"),
		MetricsEnabled: envBool("METRICS_ENABLED", false),
	}

	apiKey, err := envSecret("N8N_API_KEY")
	if err != nil {
		return nil, err
	}

	cacheTTL, err := envDuration("AUTH_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg.Credentials = auth.CredentialConfig{
		Required:           envBool("AUTH_REQUIRED", true),
		BaseURL:            envString("N8N_URL", ""),
		APIKey:             apiKey,
		ValidateConnection: envBool("VALIDATE_CONNECTION", true),
		CacheTTL:           cacheTTL,
		DefaultRoles:       envList("DEFAULT_ROLES", []string{auth.RoleMember}),
	}

	for _, name := range envList("OAUTH_PROVIDERS", nil) {
		provider, err := oauthProviderFromEnv(name)
		if err != nil {
			return nil, err
		}
		cfg.OAuthProviders = append(cfg.OAuthProviders, provider)
	}

	return cfg, nil
}

func oauthProviderFromEnv(name string) (oauth.ProviderConfig, error) {
	key := "OAUTH_" + strings.ToUpper(name) + "_"

	clientSecret, err := envSecret(key + "CLIENT_SECRET")
	if err != nil {
		return oauth.ProviderConfig{}, err
	}
	refreshBuffer, err := envDuration(key+"REFRESH_BUFFER", 0)
	if err != nil {
		return oauth.ProviderConfig{}, err
	}

	provider := oauth.ProviderConfig{
		Name:          name,
		ClientID:      envString(key+"CLIENT_ID", ""),
		ClientSecret:  clientSecret,
		AuthURL:       envString(key+"AUTH_URL", ""),
		TokenURL:      envString(key+"TOKEN_URL", ""),
		UserInfoURL:   envString(key+"USERINFO_URL", ""),
		RedirectURI:   envString(key+"REDIRECT_URI", ""),
		Scopes:        envList(key+"SCOPES", nil),
		PKCE:          oauth.PKCEMethod(envString(key+"PKCE", string(oauth.PKCES256))),
		AutoRefresh:   envBool(key+"AUTO_REFRESH", false),
		RefreshBuffer: refreshBuffer,
	}
	if err := provider.Validate(); err != nil {
		return oauth.ProviderConfig{}, fmt.Errorf("config: provider %q: %w", name, err)
	}
	return provider, nil
}

func envString(name, fallback string) string {
	if v, ok := os.LookupEnv(envPrefix + name); ok {
		return v
	}
	return fallback
}

// envSecret reads a variable and strictly expands any ${VAR} references
// inside it, so keys can be stored indirectly.
func envSecret(name string) (string, error) {
	raw, ok := os.LookupEnv(envPrefix + name)
	if !ok {
		return "", nil
	}
	expanded, err := secret.ExpandEnvStrict(raw)
	if err != nil {
		return "", fmt.Errorf("config: %s%s: %w", envPrefix, name, err)
	}
	return expanded, nil
}

func envBool(name string, fallback bool) bool {
	v, ok := os.LookupEnv(envPrefix + name)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(name string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(envPrefix + name)
	if !ok || v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s%s: %w", envPrefix, name, err)
	}
	return d, nil
}

func envList(name string, fallback []string) []string {
	v, ok := os.LookupEnv(envPrefix + name)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
