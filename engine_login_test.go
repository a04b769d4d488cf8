package authengine

import (
	"context"
	"errors"
	"testing"
)

func TestLoginSuccessIssuesFreshPair(t *testing.T) {
	engine, _, done := buildTestEngine(t, engineTestConfig(t))
	defer done()

	registerTestUser(t, engine, "alice", "alice@example.com", "correct-horse")

	first, err := engine.Login(context.Background(), "alice", "correct-horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	second, err := engine.Login(context.Background(), "alice", "correct-horse")
	if err != nil {
		t.Fatalf("second Login failed: %v", err)
	}

	if first.AccessToken == "" || first.RefreshToken == "" {
		t.Fatal("expected both tokens on login")
	}
	if first.RefreshToken == second.RefreshToken {
		t.Fatal("expected a fresh refresh token per login")
	}
	if !first.RefreshExpiresAt.After(first.AccessExpiresAt) {
		t.Fatal("expected refresh token to outlive access token")
	}
}

func TestLoginWrongPasswordAndUnknownUserCollapse(t *testing.T) {
	engine, _, done := buildTestEngine(t, engineTestConfig(t))
	defer done()

	registerTestUser(t, engine, "alice", "alice@example.com", "correct-horse")

	_, wrongPass := engine.Login(context.Background(), "alice", "wrong-password")
	_, unknownUser := engine.Login(context.Background(), "nobody", "wrong-password")

	if !errors.Is(wrongPass, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", wrongPass)
	}
	if !errors.Is(unknownUser, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", unknownUser)
	}
	// Both paths must be observationally identical.
	if wrongPass.Error() != unknownUser.Error() {
		t.Fatalf("error mismatch leaks account existence: %q vs %q", wrongPass, unknownUser)
	}
}

func TestLoginEmptyPasswordRejected(t *testing.T) {
	engine, _, done := buildTestEngine(t, engineTestConfig(t))
	defer done()

	registerTestUser(t, engine, "alice", "alice@example.com", "correct-horse")

	if _, err := engine.Login(context.Background(), "alice", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginStoreFailureSurfacesAsUnavailable(t *testing.T) {
	engine, store, done := buildTestEngine(t, engineTestConfig(t))
	defer done()

	registerTestUser(t, engine, "alice", "alice@example.com", "correct-horse")
	store.findErr = errors.New("connection refused")

	_, err := engine.Login(context.Background(), "alice", "correct-horse")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestLoginThrottleLocksOutAfterFailures(t *testing.T) {
	cfg := engineTestConfig(t)
	cfg.Security.EnableLoginThrottle = true
	cfg.Security.MaxLoginAttempts = 2

	engine, _, done := buildTestEngine(t, cfg)
	defer done()

	registerTestUser(t, engine, "alice", "alice@example.com", "correct-horse")

	ctx := WithClientIP(context.Background(), "203.0.113.7")
	for i := 0; i < 3; i++ {
		_, _ = engine.Login(ctx, "alice", "wrong-password")
	}

	_, err := engine.Login(ctx, "alice", "correct-horse")
	if !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("expected ErrLoginRateLimited after repeated failures, got %v", err)
	}
}
