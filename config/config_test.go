package config

import (
	"strings"
	"testing"
	"time"

	"github.com/jonwraymond/flowgate/auth"
	"github.com/jonwraymond/flowgate/oauth"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}

	if cfg.ActiveProvider != "credentials" {
		t.Errorf("ActiveProvider = %q, want credentials", cfg.ActiveProvider)
	}
	if !cfg.Credentials.Required {
		t.Error("Required = false, want true by default")
	}
	if !cfg.Credentials.ValidateConnection {
		t.Error("ValidateConnection = false, want true by default")
	}
	if cfg.Credentials.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %v, want 5m", cfg.Credentials.CacheTTL)
	}
	if len(cfg.Credentials.DefaultRoles) != 1 || cfg.Credentials.DefaultRoles[0] != auth.RoleMember {
		t.Errorf("DefaultRoles = %v, want [member]", cfg.Credentials.DefaultRoles)
	}
	if len(cfg.OAuthProviders) != 0 {
		t.Errorf("OAuthProviders = %v, want none", cfg.OAuthProviders)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestFromEnvCredentials(t *testing.T) {
	t.Setenv("FLOWGATE_AUTH_REQUIRED", "false")
	t.Setenv("FLOWGATE_N8N_URL", "https://n8n.local")
	t.Setenv("N8N_KEY_VALUE", "real-key")
	t.Setenv("FLOWGATE_N8N_API_KEY", "${N8N_KEY_VALUE}")
	t.Setenv("FLOWGATE_AUTH_CACHE_TTL", "90s")
	t.Setenv("FLOWGATE_DEFAULT_ROLES", "member, editor")
	t.Setenv("FLOWGATE_VALIDATE_CONNECTION", "false")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}

	if cfg.Credentials.Required {
		t.Error("Required = true, want false")
	}
	if cfg.Credentials.BaseURL != "https://n8n.local" {
		t.Errorf("BaseURL = %q", cfg.Credentials.BaseURL)
	}
	if cfg.Credentials.APIKey != "real-key" {
		t.Errorf("APIKey = %q, want expanded reference", cfg.Credentials.APIKey)
	}
	if cfg.Credentials.CacheTTL != 90*time.Second {
		t.Errorf("CacheTTL = %v, want 90s", cfg.Credentials.CacheTTL)
	}
	want := []string{"member", "editor"}
	if len(cfg.Credentials.DefaultRoles) != 2 ||
		cfg.Credentials.DefaultRoles[0] != want[0] ||
		cfg.Credentials.DefaultRoles[1] != want[1] {
		t.Errorf("DefaultRoles = %v, want %v", cfg.Credentials.DefaultRoles, want)
	}
	if cfg.Credentials.ValidateConnection {
		t.Error("ValidateConnection = true, want false")
	}
}

func TestFromEnvMissingSecretReference(t *testing.T) {
	t.Setenv("FLOWGATE_N8N_API_KEY", "${UNSET_SECRET_VARIABLE}")

	_, err := FromEnv()
	if err == nil {
		t.Fatal("FromEnv() error = nil, want missing-variable error")
	}
	if !strings.Contains(err.Error(), "UNSET_SECRET_VARIABLE") {
		t.Errorf("error = %v, want missing variable named", err)
	}
}

func TestFromEnvOAuthProviders(t *testing.T) {
	t.Setenv("FLOWGATE_OAUTH_PROVIDERS", "upstream")
	t.Setenv("FLOWGATE_OAUTH_UPSTREAM_CLIENT_ID", "cid")
	t.Setenv("UPSTREAM_SECRET", "cs")
	t.Setenv("FLOWGATE_OAUTH_UPSTREAM_CLIENT_SECRET", "${UPSTREAM_SECRET}")
	t.Setenv("FLOWGATE_OAUTH_UPSTREAM_AUTH_URL", "https://p/oauth/authorize")
	t.Setenv("FLOWGATE_OAUTH_UPSTREAM_TOKEN_URL", "https://p/oauth/token")
	t.Setenv("FLOWGATE_OAUTH_UPSTREAM_REDIRECT_URI", "https://gw/callback")
	t.Setenv("FLOWGATE_OAUTH_UPSTREAM_SCOPES", "openid,profile")
	t.Setenv("FLOWGATE_OAUTH_UPSTREAM_AUTO_REFRESH", "true")
	t.Setenv("FLOWGATE_OAUTH_UPSTREAM_REFRESH_BUFFER", "10m")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}

	if len(cfg.OAuthProviders) != 1 {
		t.Fatalf("OAuthProviders = %d, want 1", len(cfg.OAuthProviders))
	}
	p := cfg.OAuthProviders[0]
	if p.Name != "upstream" || p.ClientID != "cid" || p.ClientSecret != "cs" {
		t.Errorf("provider = %+v, want expanded client credentials", p)
	}
	if p.PKCE != oauth.PKCES256 {
		t.Errorf("PKCE = %q, want S256 default", p.PKCE)
	}
	if !p.AutoRefresh || p.RefreshBuffer != 10*time.Minute {
		t.Errorf("refresh policy = %v/%v, want enabled with 10m buffer", p.AutoRefresh, p.RefreshBuffer)
	}
	if len(p.Scopes) != 2 {
		t.Errorf("Scopes = %v, want 2", p.Scopes)
	}
}

func TestFromEnvIncompleteOAuthProvider(t *testing.T) {
	t.Setenv("FLOWGATE_OAUTH_PROVIDERS", "broken")
	t.Setenv("FLOWGATE_OAUTH_BROKEN_CLIENT_ID", "cid")

	_, err := FromEnv()
	if err == nil {
		t.Fatal("FromEnv() error = nil, want validation error")
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("error = %v, want provider named", err)
	}
}

func TestFromEnvBadDuration(t *testing.T) {
	t.Setenv("FLOWGATE_AUTH_CACHE_TTL", "soon")

	if _, err := FromEnv(); err == nil {
		t.Fatal("FromEnv() error = nil, want parse error")
	}
}
