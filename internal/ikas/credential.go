package ikas

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"tnf-api/internal/util"

	"go.uber.org/zap"
)

// TokenValidity is how long a fetched token is trusted, regardless of the
// expiry the token endpoint declares.
const TokenValidity = time.Hour

// Credential is a cached bearer token.
type Credential struct {
	Token      string    `json:"token"`
	ValidUntil time.Time `json:"valid_until"`
}

// ValidAt reports whether the credential can be used at t.
func (c Credential) ValidAt(t time.Time) bool {
	return c.Token != "" && t.Before(c.ValidUntil)
}

// CredentialStore holds the current commerce platform credential.
type CredentialStore interface {
	Load(ctx context.Context) (Credential, bool)
	Save(ctx context.Context, cred Credential) error
}

// MemoryCredentialStore keeps the credential in process.
type MemoryCredentialStore struct {
	mu   sync.RWMutex
	cred Credential
	set  bool
}

func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{}
}

func (m *MemoryCredentialStore) Load(_ context.Context) (Credential, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cred, m.set
}

func (m *MemoryCredentialStore) Save(_ context.Context, cred Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = cred
	m.set = true
	return nil
}

// TokenSource performs the OAuth client-credentials exchange and caches the
// result in a CredentialStore. Concurrent callers past expiry may each
// refresh; the token endpoint tolerates that.
type TokenSource struct {
	httpClient   *http.Client
	tokenURL     string
	clientID     string
	clientSecret string
	store        CredentialStore
	now          func() time.Time
	logger       *zap.Logger
}

// NewTokenSource creates a token source. A nil store falls back to memory.
func NewTokenSource(httpClient *http.Client, tokenURL, clientID, clientSecret string, store CredentialStore) *TokenSource {
	if store == nil {
		store = NewMemoryCredentialStore()
	}
	return &TokenSource{
		httpClient:   httpClient,
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		store:        store,
		now:          time.Now,
		logger:       util.Named("ikas.token"),
	}
}

// WithClock replaces the clock, for tests.
func (ts *TokenSource) WithClock(now func() time.Time) *TokenSource {
	ts.now = now
	return ts
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// AccessToken returns a cached token while it is valid, otherwise exchanges
// client credentials for a new one.
func (ts *TokenSource) AccessToken(ctx context.Context) (string, error) {
	if cred, ok := ts.store.Load(ctx); ok && cred.ValidAt(ts.now()) {
		return cred.Token, nil
	}

	ctx, span := util.StartSpan(ctx, "ikas.TokenSource.AccessToken")
	defer span.End()

	token, err := ts.exchange(ctx)
	if err != nil {
		return "", util.RecordError(span, err)
	}

	cred := Credential{Token: token, ValidUntil: ts.now().Add(TokenValidity)}
	if err := ts.store.Save(ctx, cred); err != nil {
		ts.logger.Warn("Failed to cache access token", zap.Error(err))
	}

	util.GatewayTokenRefreshTotal.Inc()
	return token, nil
}

func (ts *TokenSource) exchange(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", ts.clientID)
	form.Set("client_secret", ts.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := ts.httpClient.Do(req)
	if err != nil {
		observe("token", start, err)
		return "", fmt.Errorf("failed to execute token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("%w: token endpoint returned status %d", ErrUpstream, resp.StatusCode)
		observe("token", start, err)
		return "", err
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		observe("token", start, err)
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		err := fmt.Errorf("%w: token endpoint returned an empty token", ErrUpstream)
		observe("token", start, err)
		return "", err
	}

	observe("token", start, nil)
	return tr.AccessToken, nil
}

func observe(operation string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	util.GatewayRequestDuration.WithLabelValues("ikas", operation, outcome).Observe(time.Since(start).Seconds())
}
