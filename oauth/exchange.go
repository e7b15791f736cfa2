package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonwraymond/flowgate/resilience"
)

// tokenResponse is the token endpoint's JSON body for both the
// authorization_code and refresh_token grants.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int    `json:"expires_in"`
	Scope            string `json:"scope"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// exchangeCode redeems an authorization code at the token endpoint.
// verifier is included when the session carries a PKCE pair.
func (m *Manager) exchangeCode(ctx context.Context, cfg ProviderConfig, code, verifier string) (*Token, error) {
	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {cfg.RedirectURI},
		"client_id":    {cfg.ClientID},
	}
	if cfg.ClientSecret != "" {
		form.Set("client_secret", cfg.ClientSecret)
	}
	if verifier != "" {
		form.Set("code_verifier", verifier)
	}
	return m.postTokenEndpoint(ctx, cfg, form)
}

// refreshGrant redeems a refresh token for a new access token.
func (m *Manager) refreshGrant(ctx context.Context, cfg ProviderConfig, refreshToken string) (*Token, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {cfg.ClientID},
	}
	if cfg.ClientSecret != "" {
		form.Set("client_secret", cfg.ClientSecret)
	}
	return m.postTokenEndpoint(ctx, cfg, form)
}

func (m *Manager) postTokenEndpoint(ctx context.Context, cfg ProviderConfig, form url.Values) (*Token, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("oauth: create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oauth: token endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body tokenResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)

	// A non-2xx status or an error field in the payload is a hard
	// failure; the provider's own error code is preserved when present.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || body.Error != "" {
		return nil, &ProviderError{
			Provider:    cfg.Name,
			Code:        body.Error,
			Description: body.ErrorDescription,
			Status:      resp.StatusCode,
		}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("oauth: decode token response: %w", decodeErr)
	}
	if body.AccessToken == "" {
		return nil, fmt.Errorf("oauth: token response missing access token")
	}

	token := &Token{
		AccessToken:  body.AccessToken,
		RefreshToken: body.RefreshToken,
		TokenType:    body.TokenType,
		Metadata:     map[string]any{"issued_at": m.now().UTC().Format(time.RFC3339)},
	}
	if token.TokenType == "" {
		token.TokenType = "Bearer"
	}
	if body.ExpiresIn > 0 {
		token.ExpiresAt = m.now().Add(time.Duration(body.ExpiresIn) * time.Second)
	}
	if body.Scope != "" {
		token.Scopes = strings.Fields(body.Scope)
	}
	return token, nil
}

// fetchUserInfo resolves the token's identity at the userinfo endpoint.
// Transient network failures are retried once; protocol rejections are not.
func (m *Manager) fetchUserInfo(ctx context.Context, cfg ProviderConfig, accessToken string) (*UserInfo, error) {
	var info *UserInfo

	err := resilience.Retry(ctx, resilience.RetryConfig{MaxAttempts: 2}, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.UserInfoURL, nil)
		if err != nil {
			return fmt.Errorf("oauth: create userinfo request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Accept", "application/json")

		resp, err := m.http.Do(req)
		if err != nil {
			return fmt.Errorf("oauth: userinfo endpoint: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("oauth: userinfo endpoint: status %d", resp.StatusCode)
		}

		var raw map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
			return fmt.Errorf("oauth: decode userinfo response: %w", err)
		}

		info = &UserInfo{Raw: raw}
		if id, ok := firstString(raw, "sub", "id", "user_id"); ok {
			info.ID = id
		}
		if email, ok := firstString(raw, "email"); ok {
			info.Email = email
		}
		if name, ok := firstString(raw, "name", "display_name", "preferred_username"); ok {
			info.Name = name
		}
		if info.ID == "" {
			info.ID = HashUserID(accessToken)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// revokeRemote posts the token to the provider's revocation endpoint.
// Callers treat any error as best-effort only.
func (m *Manager) revokeRemote(ctx context.Context, cfg ProviderConfig, token string) error {
	endpoint := deriveRevokeURL(cfg)
	if endpoint == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	form := url.Values{
		"token":     {token},
		"client_id": {cfg.ClientID},
	}
	if cfg.ClientSecret != "" {
		form.Set("client_secret", cfg.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("oauth: create revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.http.Do(req)
	if err != nil {
		return fmt.Errorf("oauth: revoke endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("oauth: revoke endpoint: status %d", resp.StatusCode)
	}
	return nil
}

// deriveRevokeURL returns the configured revocation endpoint, or guesses
// one from the token endpoint's path.
func deriveRevokeURL(cfg ProviderConfig) string {
	if cfg.RevokeURL != "" {
		return cfg.RevokeURL
	}
	if strings.Contains(cfg.TokenURL, "/token") {
		return strings.Replace(cfg.TokenURL, "/token", "/revoke", 1)
	}
	return strings.TrimRight(cfg.TokenURL, "/") + "/revoke"
}

func firstString(data map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		if val, ok := data[key]; ok {
			if s, ok := val.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}
