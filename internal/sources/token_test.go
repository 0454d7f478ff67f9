package sources

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestTokenCacheReusesUntilMargin(t *testing.T) {
	calls := 0
	tc := NewTokenCache(func(ctx context.Context) (Token, error) {
		calls++
		return Token{AccessToken: fmt.Sprintf("tok-%d", calls), ExpiresIn: time.Minute}, nil
	}, 10*time.Second)

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	first, err := tc.Get(ctx, now)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	second, _ := tc.Get(ctx, now.Add(49*time.Second))
	if first != second || calls != 1 {
		t.Errorf("token should be reused inside the margin, got %s/%s after %d calls", first, second, calls)
	}

	third, _ := tc.Get(ctx, now.Add(51*time.Second))
	if third == first || calls != 2 {
		t.Errorf("token should refresh within the safety margin, got %s after %d calls", third, calls)
	}
}

func TestTokenCacheDefaultTTL(t *testing.T) {
	tc := NewTokenCache(func(ctx context.Context) (Token, error) {
		return Token{AccessToken: "tok"}, nil
	}, 0)

	now := time.Now()
	if _, err := tc.Get(context.Background(), now); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if want := now.Add(DefaultTokenTTL); !tc.expiresAt.Equal(want) {
		t.Errorf("expiresAt = %v, want %v", tc.expiresAt, want)
	}
}

func TestTokenCacheRefreshError(t *testing.T) {
	tc := NewTokenCache(func(ctx context.Context) (Token, error) {
		return Token{}, errors.New("boom")
	}, 0)
	if _, err := tc.Get(context.Background(), time.Now()); err == nil {
		t.Error("Get() should surface refresh errors")
	}

	empty := NewTokenCache(func(ctx context.Context) (Token, error) {
		return Token{}, nil
	}, 0)
	if _, err := empty.Get(context.Background(), time.Now()); err == nil {
		t.Error("Get() should reject empty tokens")
	}
}

func TestWithReauth(t *testing.T) {
	refreshes := 0
	tc := NewTokenCache(func(ctx context.Context) (Token, error) {
		refreshes++
		return Token{AccessToken: fmt.Sprintf("tok-%d", refreshes), ExpiresIn: time.Hour}, nil
	}, 0)

	t.Run("retries once after unauthorized", func(t *testing.T) {
		var seen []string
		out, err := WithReauth(context.Background(), tc, func(token string) (string, error) {
			seen = append(seen, token)
			if len(seen) == 1 {
				return "", ErrUnauthorized
			}
			return "ok", nil
		})
		if err != nil || out != "ok" {
			t.Fatalf("WithReauth() = %q, %v", out, err)
		}
		if len(seen) != 2 || seen[0] == seen[1] {
			t.Errorf("expected two calls with different tokens, got %v", seen)
		}
	})

	t.Run("gives up after second unauthorized", func(t *testing.T) {
		calls := 0
		_, err := WithReauth(context.Background(), tc, func(token string) (int, error) {
			calls++
			return 0, ErrUnauthorized
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Errorf("WithReauth() error = %v, want ErrUnauthorized", err)
		}
		if calls != 2 {
			t.Errorf("call count = %d, want 2", calls)
		}
	})
}
