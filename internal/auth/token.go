// internal/auth/token.go — client-credentials bearer token with caching
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// refreshSkew forces a refresh one minute before the server-reported
// expiry so a token is never presented at the edge of its lifetime.
const refreshSkew = 60 * time.Second

// Credential is a cached bearer token and its refresh deadline. It is
// replaced wholesale on every refresh, never partially mutated.
type Credential struct {
	Token  string
	Expiry time.Time
}

// Valid reports whether the credential can still be used at now.
func (c Credential) Valid(now time.Time) bool {
	return c.Token != "" && now.Before(c.Expiry)
}

// Manager obtains and caches a bearer token from the identity provider
// using the client-credentials grant. All failure modes (network,
// non-200, malformed body) collapse into a single error; no retry is
// attempted within a call, the next poll cycle retries naturally.
//
// Manager is used from the single controller goroutine only.
type Manager struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scope        string

	HTTP  *http.Client
	Log   *slog.Logger
	Clock func() time.Time

	cred Credential
}

// NewManager builds a Manager for the tenant's v2.0 token endpoint,
// requesting the default scope for the given resource host.
func NewManager(identityHost, tenant, clientID, clientSecret, resourceHost string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Manager{
		TokenURL:     fmt.Sprintf("https://%s/%s/oauth2/v2.0/token", identityHost, url.PathEscape(tenant)),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scope:        fmt.Sprintf("https://%s/.default", resourceHost),
		HTTP:         &http.Client{},
		Log:          logger,
		Clock:        time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Token returns the cached token while it is valid, otherwise performs
// a fresh exchange and caches the result.
func (m *Manager) Token(ctx context.Context) (string, error) {
	now := m.Clock()
	if m.cred.Valid(now) {
		return m.cred.Token, nil
	}

	form := url.Values{}
	form.Set("client_id", m.ClientID)
	form.Set("scope", m.Scope)
	form.Set("client_secret", m.ClientSecret)
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("token exchange: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange: unexpected status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("token exchange: decode response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", errors.New("token exchange: empty access_token in response")
	}

	m.cred = Credential{
		Token:  tr.AccessToken,
		Expiry: now.Add(time.Duration(tr.ExpiresIn)*time.Second - refreshSkew),
	}
	m.Log.Debug("bearer token refreshed", "expiry", m.cred.Expiry)
	return m.cred.Token, nil
}
