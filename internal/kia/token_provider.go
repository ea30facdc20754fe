package kia

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// AccessToken is a cached broker auth token with its own refresh horizon.
type AccessToken struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
	RefreshAt time.Time
	Mode      Mode
}

// AuthIssuer performs the actual broker auth call for a mode.
type AuthIssuer func(mode Mode) (AccessToken, error)

// TokenProvider caches one AccessToken per mode and coalesces concurrent
// refreshes for the same mode into a single issuer call via singleflight —
// every other caller waiting on the same mode gets the one in-flight result.
type TokenProvider struct {
	issuer AuthIssuer
	nowFn  func() time.Time

	mu    sync.RWMutex
	cache map[Mode]AccessToken
	group singleflight.Group
}

// NewTokenProvider builds a provider backed by issuer.
func NewTokenProvider(issuer AuthIssuer) *TokenProvider {
	return &TokenProvider{
		issuer: issuer,
		nowFn:  func() time.Time { return time.Now().UTC() },
		cache:  make(map[Mode]AccessToken),
	}
}

func (p *TokenProvider) cached(mode Mode) (AccessToken, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	tok, ok := p.cache[mode]
	return tok, ok
}

// GetValidToken returns a cached, still-fresh token for mode, or blocks
// until exactly one refresh call completes.
func (p *TokenProvider) GetValidToken(mode Mode) (AccessToken, error) {
	if tok, ok := p.cached(mode); ok && p.nowFn().Before(tok.RefreshAt) {
		return tok, nil
	}
	return p.refresh(mode)
}

// ForceRefresh invalidates any cached token and issues a new one, coalesced
// the same way as GetValidToken.
func (p *TokenProvider) ForceRefresh(mode Mode) (AccessToken, error) {
	p.Invalidate(mode)
	return p.refresh(mode)
}

func (p *TokenProvider) refresh(mode Mode) (AccessToken, error) {
	v, err, _ := p.group.Do(string(mode), func() (any, error) {
		if tok, ok := p.cached(mode); ok && p.nowFn().Before(tok.RefreshAt) {
			return tok, nil
		}
		tok, err := p.issuer(mode)
		if err != nil {
			return AccessToken{}, err
		}
		p.mu.Lock()
		p.cache[mode] = tok
		p.mu.Unlock()
		return tok, nil
	})
	if err != nil {
		return AccessToken{}, err
	}
	return v.(AccessToken), nil
}

// Invalidate drops any cached token for mode.
func (p *TokenProvider) Invalidate(mode Mode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.cache, mode)
}
