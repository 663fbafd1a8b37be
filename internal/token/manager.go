package token

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrCredentialUnavailable means no refresh token is known.
	ErrCredentialUnavailable = errors.New("calendar credential unavailable")
	// ErrRefreshFailed means the token endpoint rejected or failed a refresh.
	ErrRefreshFailed = errors.New("calendar credential refresh failed")
)

// Credential is an OAuth access token plus the refresh token that renews it.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
}

func (c *Credential) validAt(now time.Time, margin time.Duration) bool {
	return c != nil && c.AccessToken != "" && !c.Expiry.IsZero() && now.Add(margin).Before(c.Expiry)
}

func (c *Credential) clone() *Credential {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// Store persists the single calendar credential.
// LoadCredential returns nil, nil when nothing is stored.
type Store interface {
	LoadCredential(ctx context.Context) (*Credential, error)
	SaveCredential(ctx context.Context, c *Credential) error
}

// Refresher exchanges a refresh token for a new credential.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*Credential, error)
}

// Status is a snapshot of the credential lifecycle.
type Status struct {
	HasAccessToken   bool       `json:"has_access_token"`
	HasRefreshToken  bool       `json:"has_refresh_token"`
	IsExpired        bool       `json:"is_expired"`
	ExpiresInMinutes int        `json:"expires_in_minutes"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	LastRefresh      *time.Time `json:"last_refresh,omitempty"`
	LastError        string     `json:"last_error,omitempty"`
}

// Manager owns the calendar credential. Every reader gets a token that is
// valid for at least the safety margin, and concurrent refreshes collapse
// into a single call to the token endpoint.
type Manager struct {
	store     Store
	refresher Refresher
	margin    time.Duration
	logger    *zap.Logger
	now       func() time.Time

	mu          sync.RWMutex
	current     *Credential
	lastRefresh time.Time
	lastError   string

	// refreshMu serializes check-then-refresh-then-persist
	refreshMu sync.Mutex
	group     singleflight.Group
}

// NewManager creates a manager. Call Load or Seed before first use.
func NewManager(store Store, refresher Refresher, margin time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:     store,
		refresher: refresher,
		margin:    margin,
		logger:    logger,
		now:       time.Now,
	}
}

// Load reads the persisted credential into memory.
func (m *Manager) Load(ctx context.Context) error {
	c, err := m.store.LoadCredential(ctx)
	if err != nil {
		return fmt.Errorf("failed to load credential: %w", err)
	}

	m.mu.Lock()
	m.current = c
	m.mu.Unlock()
	return nil
}

// Seed installs a refresh token from configuration when none is persisted
// or when the configured one differs from the stored one.
func (m *Manager) Seed(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && m.current.RefreshToken == refreshToken {
		return nil
	}

	c := &Credential{RefreshToken: refreshToken}
	if err := m.store.SaveCredential(ctx, c); err != nil {
		return fmt.Errorf("failed to seed credential: %w", err)
	}
	m.current = c
	return nil
}

// ValidCredential returns a credential valid for at least the safety margin,
// refreshing first when needed.
func (m *Manager) ValidCredential(ctx context.Context) (*Credential, error) {
	m.mu.RLock()
	c := m.current.clone()
	m.mu.RUnlock()

	if c.validAt(m.now(), m.margin) {
		return c, nil
	}
	return m.refresh(ctx, false)
}

// ForceRefresh renews the credential regardless of its expiry.
func (m *Manager) ForceRefresh(ctx context.Context) (*Credential, error) {
	return m.refresh(ctx, true)
}

func (m *Manager) refresh(ctx context.Context, force bool) (*Credential, error) {
	key := "refresh"
	if force {
		key = "force"
	}

	v, err, _ := m.group.Do(key, func() (interface{}, error) {
		m.refreshMu.Lock()
		defer m.refreshMu.Unlock()

		m.mu.RLock()
		cur := m.current.clone()
		m.mu.RUnlock()

		// Another caller may have refreshed while we waited
		if !force && cur.validAt(m.now(), m.margin) {
			return cur, nil
		}
		if cur == nil || cur.RefreshToken == "" {
			return nil, ErrCredentialUnavailable
		}

		fresh, err := m.refresher.Refresh(ctx, cur.RefreshToken)
		if err != nil {
			m.mu.Lock()
			m.lastError = err.Error()
			m.mu.Unlock()
			m.logger.Warn("credential refresh failed", zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
		}
		if fresh.RefreshToken == "" {
			fresh.RefreshToken = cur.RefreshToken
		}

		// The provider may have rotated the refresh token, so the fresh
		// credential is kept in memory even when it cannot be saved
		lastError := ""
		if err := m.store.SaveCredential(ctx, fresh); err != nil {
			m.logger.Error("failed to persist refreshed credential", zap.Error(err))
			lastError = "refreshed credential not persisted: " + err.Error()
		}

		m.mu.Lock()
		m.current = fresh.clone()
		m.lastRefresh = m.now()
		m.lastError = lastError
		m.mu.Unlock()

		m.logger.Info("credential refreshed", zap.Time("expiry", fresh.Expiry))
		return fresh.clone(), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Credential).clone(), nil
}

// Status reports the current credential state.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	s := Status{
		IsExpired: !m.current.validAt(now, m.margin),
		LastError: m.lastError,
	}
	if c := m.current; c != nil {
		s.HasAccessToken = c.AccessToken != ""
		s.HasRefreshToken = c.RefreshToken != ""
		if !c.Expiry.IsZero() {
			exp := c.Expiry
			s.ExpiresAt = &exp
			if left := exp.Sub(now); left > 0 {
				s.ExpiresInMinutes = int(left.Minutes())
			}
		}
	}
	if !m.lastRefresh.IsZero() {
		lr := m.lastRefresh
		s.LastRefresh = &lr
	}
	return s
}

// TokenSource adapts the manager for oauth2-aware HTTP clients.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &managerSource{ctx: ctx, m: m}
}

type managerSource struct {
	ctx context.Context
	m   *Manager
}

func (s *managerSource) Token() (*oauth2.Token, error) {
	c, err := s.m.ValidCredential(s.ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       c.Expiry,
	}, nil
}

// OAuthRefresher refreshes against the provider's token endpoint.
type OAuthRefresher struct {
	config *oauth2.Config
}

// NewOAuthRefresher wraps an oauth2 client configuration.
func NewOAuthRefresher(config *oauth2.Config) *OAuthRefresher {
	return &OAuthRefresher{config: config}
}

// Refresh performs the refresh_token grant.
func (r *OAuthRefresher) Refresh(ctx context.Context, refreshToken string) (*Credential, error) {
	src := r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, err
	}
	return &Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}, nil
}
