package fortnox

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/s0up4200/fortnox-client/credentials"
)

// DefaultTokenExpiry is assumed when the token endpoint omits expires_in
const DefaultTokenExpiry = 3600 * time.Second

// ProbeFunc checks a token against the API and returns the response status
type ProbeFunc func(ctx context.Context, token string) (int, error)

// TokenManager returns a usable access token, refreshing and persisting it
// when the stored one is missing, expired or rejected
type TokenManager struct {
	store      credentials.Store
	provider   string
	tokenURL   string
	httpClient *http.Client
	probe      ProbeFunc
	degrade    bool
	now        func() time.Time
	logger     zerolog.Logger

	mu sync.Mutex
}

// TokenManagerOption configures a TokenManager
type TokenManagerOption func(*TokenManager)

// WithTokenClock replaces the time source used for expiry checks
func WithTokenClock(now func() time.Time) TokenManagerOption {
	return func(m *TokenManager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithDegradedTokenRefresh makes a refused refresh return an empty token
// instead of an AuthenticationError
func WithDegradedTokenRefresh(enabled bool) TokenManagerOption {
	return func(m *TokenManager) {
		m.degrade = enabled
	}
}

// NewTokenManager creates a token manager for provider
func NewTokenManager(store credentials.Store, provider, tokenURL string, httpClient *http.Client, probe ProbeFunc, logger zerolog.Logger, opts ...TokenManagerOption) *TokenManager {
	if provider == "" {
		provider = credentials.ProviderFortnox
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	m := &TokenManager{
		store:      store,
		provider:   provider,
		tokenURL:   tokenURL,
		httpClient: httpClient,
		probe:      probe,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Token returns the stored access token when it is present, unexpired and
// accepted by the probe. Otherwise it refreshes.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.store.Get(ctx, m.provider)
	if err != nil {
		return "", fmt.Errorf("failed to load credentials: %w", err)
	}

	if c.HasAccessToken() && !c.Expired(m.now()) {
		status, err := m.probe(ctx, c.AccessToken)
		if err != nil {
			return "", fmt.Errorf("token probe failed: %w", err)
		}
		if status == http.StatusOK {
			return c.AccessToken, nil
		}
		m.logger.Debug().Int("status", status).Msg("Stored access token rejected, refreshing")
	}

	return m.refreshLocked(ctx, c)
}

// ForceRefresh exchanges the refresh token regardless of the stored token
func (m *TokenManager) ForceRefresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.store.Get(ctx, m.provider)
	if err != nil {
		return "", fmt.Errorf("failed to load credentials: %w", err)
	}
	return m.refreshLocked(ctx, c)
}

func (m *TokenManager) refreshLocked(ctx context.Context, c *credentials.Credentials) (string, error) {
	if locker, ok := m.store.(credentials.Locker); ok {
		unlock, err := locker.Lock(ctx, m.provider)
		if err != nil {
			return "", fmt.Errorf("failed to lock credentials: %w", err)
		}
		defer func() {
			if err := unlock(); err != nil {
				m.logger.Error().Err(err).Msg("Failed to release credentials lock")
			}
		}()

		// another process may have refreshed while we waited
		latest, err := m.store.Get(ctx, m.provider)
		if err != nil {
			return "", fmt.Errorf("failed to load credentials: %w", err)
		}
		if latest.HasAccessToken() && latest.AccessToken != c.AccessToken && !latest.Expired(m.now()) {
			return latest.AccessToken, nil
		}
		c = latest
	}

	token, err := m.exchange(ctx, c)
	if err != nil {
		var authErr *AuthenticationError
		if m.degrade && errors.As(err, &authErr) {
			m.logger.Warn().Err(err).Msg("Token refresh failed, continuing without a token")
			return "", nil
		}
		return "", err
	}

	expiresAt := token.Expiry
	if expiresAt.IsZero() {
		expiresAt = m.now().Add(DefaultTokenExpiry)
	}
	refreshToken := token.RefreshToken
	if refreshToken == "" {
		refreshToken = c.RefreshToken
	}

	update := credentials.TokenUpdate{
		AccessToken:  token.AccessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}
	if err := m.store.UpdateTokens(ctx, m.provider, update); err != nil {
		m.logger.Error().Err(err).Msg("Failed to persist refreshed token")
		return "", fmt.Errorf("failed to persist refreshed token: %w", err)
	}

	m.logger.Info().
		Str("provider", m.provider).
		Time("expires_at", expiresAt).
		Msg("Refreshed Fortnox access token")

	return token.AccessToken, nil
}

// exchange performs the refresh_token grant with HTTP Basic client auth
func (m *TokenManager) exchange(ctx context.Context, c *credentials.Credentials) (*oauth2.Token, error) {
	if c.RefreshToken == "" {
		return nil, &AuthenticationError{Err: errors.New("no refresh token stored")}
	}

	cfg := &oauth2.Config{
		ClientID:     c.ClientIdentity,
		ClientSecret: c.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  m.tokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.basicAuthClient(c))
	token, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: c.RefreshToken}).Token()
	if err == nil {
		return token, nil
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		authErr := &AuthenticationError{Body: string(retrieveErr.Body), Err: err}
		if retrieveErr.Response != nil {
			authErr.StatusCode = retrieveErr.Response.StatusCode
		}
		return nil, authErr
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) || ctx.Err() != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}

	// malformed success responses, e.g. a missing access_token
	return nil, &AuthenticationError{Err: err}
}

// basicAuthClient returns a copy of the HTTP client that authenticates with
// base64 of the raw "id:secret". oauth2 URL-escapes both parts first, which
// Fortnox rejects for secrets containing characters such as + / =.
func (m *TokenManager) basicAuthClient(c *credentials.Credentials) *http.Client {
	base := m.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	hc := *m.httpClient
	hc.Transport = &basicAuthTransport{base: base, id: c.ClientIdentity, secret: c.ClientSecret}
	return &hc
}

type basicAuthTransport struct {
	base   http.RoundTripper
	id     string
	secret string
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.id, t.secret)
	return t.base.RoundTrip(req)
}
