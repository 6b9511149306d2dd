// Package auth supplies Microsoft identity platform tokens to the Graph
// client. Sign-in uses the OAuth2 device authorization flow; the resulting
// token (including the refresh token from offline_access) is persisted in
// the data directory and refreshed transparently on use.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/graphmirror/internal/logger"
)

// ErrNotAuthenticated indicates no stored token exists; the user must run
// the login flow first.
var ErrNotAuthenticated = errors.New("auth: not authenticated, run login first")

// DefaultScopes are the Graph permissions the mirror needs. offline_access
// is required for refresh tokens.
var DefaultScopes = []string{
	"offline_access",
	"User.Read",
	"Mail.ReadWrite",
	"Contacts.Read",
	"Calendars.Read",
}

const tokenFileName = "token.json"

// Endpoint returns the Microsoft identity platform OAuth2 endpoint for a
// tenant. The "common" tenant supports both personal and organisational
// accounts.
func Endpoint(tenant string) oauth2.Endpoint {
	if tenant == "" {
		tenant = "common"
	}
	base := "https://login.microsoftonline.com/" + tenant
	return oauth2.Endpoint{
		AuthURL:       base + "/oauth2/v2.0/authorize",
		TokenURL:      base + "/oauth2/v2.0/token",
		DeviceAuthURL: base + "/oauth2/v2.0/devicecode",
	}
}

// Provider loads, refreshes, and persists the account token.
type Provider struct {
	cfg       *oauth2.Config
	tokenPath string

	mu  sync.Mutex
	src oauth2.TokenSource
}

// NewProvider creates a provider for the given application registration.
// clientSecret is empty for public clients. dataDir is where the token file
// lives.
func NewProvider(clientID, clientSecret, tenant, dataDir string) *Provider {
	return &Provider{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     Endpoint(tenant),
			Scopes:       DefaultScopes,
		},
		tokenPath: filepath.Join(dataDir, tokenFileName),
	}
}

// Login runs the device authorization flow, printing the verification URL
// and user code through prompt, and persists the resulting token.
func (p *Provider) Login(ctx context.Context, prompt func(verificationURL, userCode string)) error {
	resp, err := p.cfg.DeviceAuth(ctx)
	if err != nil {
		return fmt.Errorf("request device code: %w", err)
	}

	prompt(resp.VerificationURI, resp.UserCode)

	tok, err := p.cfg.DeviceAccessToken(ctx, resp)
	if err != nil {
		return fmt.Errorf("wait for device authorization: %w", err)
	}

	if err := p.saveToken(tok); err != nil {
		return err
	}

	p.mu.Lock()
	p.src = p.cfg.TokenSource(context.Background(), tok)
	p.mu.Unlock()
	return nil
}

// GetToken returns a valid access token, refreshing and re-persisting it
// when expired. A missing or unrefreshable token surfaces as
// ErrNotAuthenticated.
func (p *Provider) GetToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.src == nil {
		tok, err := p.loadToken()
		if err != nil {
			return "", err
		}
		p.src = p.cfg.TokenSource(context.Background(), tok)
	}

	tok, err := p.src.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
	}

	// Persist rotated refresh tokens. Failure here is non-fatal; the
	// in-memory token stays usable.
	if err := p.saveToken(tok); err != nil {
		logger.Warn("auth: persisting refreshed token: %v", err)
	}
	return tok.AccessToken, nil
}

// Logout deletes the stored token.
func (p *Provider) Logout() error {
	p.mu.Lock()
	p.src = nil
	p.mu.Unlock()

	if err := os.Remove(p.tokenPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

func (p *Provider) loadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(p.tokenPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("%w: corrupt token file", ErrNotAuthenticated)
	}
	return &tok, nil
}

func (p *Provider) saveToken(tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(p.tokenPath), 0o700); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	if err := os.WriteFile(p.tokenPath, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}
