package sources

import (
	"context"
	"errors"
	"sync"
	"time"
)

const (
	// DefaultTokenMargin refreshes a token this long before it expires.
	DefaultTokenMargin = 10 * time.Second
	// DefaultTokenTTL applies when the issuer omits expires_in.
	DefaultTokenTTL = time.Hour
)

// ErrUnauthorized is returned by fetchers when the upstream rejected the
// bearer token. Adapters react by invalidating the cache and retrying once.
var ErrUnauthorized = errors.New("upstream rejected credentials")

// Token is a bearer token and its lifetime.
type Token struct {
	AccessToken string
	ExpiresIn   time.Duration
}

// RefreshFunc obtains a fresh token from the issuer.
type RefreshFunc func(ctx context.Context) (Token, error)

// TokenCache holds one adapter's bearer token. It is safe for concurrent use
// and never shared between adapters.
type TokenCache struct {
	mu        sync.Mutex
	refresh   RefreshFunc
	margin    time.Duration
	token     string
	expiresAt time.Time
}

// NewTokenCache builds a cache around refresh. margin <= 0 uses DefaultTokenMargin.
func NewTokenCache(refresh RefreshFunc, margin time.Duration) *TokenCache {
	if margin <= 0 {
		margin = DefaultTokenMargin
	}
	return &TokenCache{refresh: refresh, margin: margin}
}

// Get returns the cached token while it is valid beyond the safety margin,
// refreshing it otherwise.
func (tc *TokenCache) Get(ctx context.Context, now time.Time) (string, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.token != "" && tc.expiresAt.After(now.Add(tc.margin)) {
		return tc.token, nil
	}

	tok, err := tc.refresh(ctx)
	if err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", errors.New("token endpoint returned an empty access token")
	}

	ttl := tok.ExpiresIn
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	tc.token = tok.AccessToken
	tc.expiresAt = now.Add(ttl)

	return tc.token, nil
}

// Token satisfies the affiliation token source contract using wall clock time.
func (tc *TokenCache) Token(ctx context.Context) (string, error) {
	return tc.Get(ctx, time.Now())
}

// Invalidate forces the next Get to refresh.
func (tc *TokenCache) Invalidate() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.token = ""
	tc.expiresAt = time.Time{}
}

// WithReauth runs call with a token and, if it reports ErrUnauthorized,
// invalidates the cache and runs it exactly once more.
func WithReauth[T any](ctx context.Context, tc *TokenCache, call func(token string) (T, error)) (T, error) {
	var zero T

	token, err := tc.Token(ctx)
	if err != nil {
		return zero, err
	}
	out, err := call(token)
	if !errors.Is(err, ErrUnauthorized) {
		return out, err
	}

	tc.Invalidate()
	token, err = tc.Token(ctx)
	if err != nil {
		return zero, err
	}
	return call(token)
}
