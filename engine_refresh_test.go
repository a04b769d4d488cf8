package authengine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zgoteam/authengine/jwt"
)

func TestRefreshRotatesToken(t *testing.T) {
	engine, _, done := buildTestEngine(t, engineTestConfig(t))
	defer done()

	pair := registerTestUser(t, engine, "alice", "alice@example.com", "correct-horse")

	next, err := engine.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatal("rotation must issue a new refresh token")
	}
	if next.AccessToken == "" {
		t.Fatal("expected a new access token")
	}

	// The successor keeps working.
	if _, err := engine.Refresh(context.Background(), next.RefreshToken); err != nil {
		t.Fatalf("successor Refresh failed: %v", err)
	}
}

func TestRefreshReuseOfSpentTokenDetected(t *testing.T) {
	cfg := engineTestConfig(t)
	cfg.Metrics.Enabled = true

	engine, _, done := buildTestEngine(t, cfg)
	defer done()

	pair := registerTestUser(t, engine, "alice", "alice@example.com", "correct-horse")

	if _, err := engine.Refresh(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	_, err := engine.Refresh(context.Background(), pair.RefreshToken)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials on replay, got %v", err)
	}

	snap := engine.MetricsSnapshot()
	if got := snap.Counters[MetricRefreshReuseDetected]; got != 1 {
		t.Fatalf("expected one reuse detection, got %d", got)
	}
}

func TestRefreshAfterRevokeRejected(t *testing.T) {
	engine, _, done := buildTestEngine(t, engineTestConfig(t))
	defer done()

	pair := registerTestUser(t, engine, "alice", "alice@example.com", "correct-horse")

	if err := engine.Revoke(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if _, err := engine.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials after revoke, got %v", err)
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	engine, _, done := buildTestEngine(t, engineTestConfig(t))
	defer done()

	pair := registerTestUser(t, engine, "alice", "alice@example.com", "correct-horse")

	for i := 0; i < 3; i++ {
		if err := engine.Revoke(context.Background(), pair.RefreshToken); err != nil {
			t.Fatalf("Revoke round %d failed: %v", i, err)
		}
	}
	if err := engine.Revoke(context.Background(), "never-issued"); err != nil {
		t.Fatalf("Revoke of unknown token failed: %v", err)
	}
	if err := engine.Revoke(context.Background(), ""); err != nil {
		t.Fatalf("Revoke of empty token failed: %v", err)
	}
}

func TestRefreshEmptyTokenRejected(t *testing.T) {
	engine, _, done := buildTestEngine(t, engineTestConfig(t))
	defer done()

	if _, err := engine.Refresh(context.Background(), ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestRefreshExpiredTokenRejected(t *testing.T) {
	cfg := engineTestConfig(t)

	mr, rdb := newTestRedis(t)
	defer mr.Close()
	defer rdb.Close()

	store := newMemStore()
	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(store).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	pair := registerTestUser(t, engine, "alice", "alice@example.com", "correct-horse")

	// Past the record's Redis TTL, retention window included, the key is gone.
	mr.FastForward(cfg.Refresh.TTL + 8*24*time.Hour)

	if _, err := engine.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for expired token, got %v", err)
	}
}

func TestRefreshDeletedUserRejected(t *testing.T) {
	engine, store, done := buildTestEngine(t, engineTestConfig(t))
	defer done()

	pair := registerTestUser(t, engine, "alice", "alice@example.com", "correct-horse")
	store.Delete("alice")

	if _, err := engine.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for deleted user, got %v", err)
	}
}

func TestRefreshPicksUpRoleChanges(t *testing.T) {
	cfg := engineTestConfig(t)

	engine, store, done := buildTestEngine(t, cfg)
	defer done()

	pair := registerTestUser(t, engine, "alice", "alice@example.com", "correct-horse")
	store.SetRoles("alice", []Role{RoleUser, RoleAdmin})

	next, err := engine.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	verifier, err := jwt.NewManager(jwt.Config{
		AccessTTL:    cfg.JWT.AccessTTL,
		Issuer:       cfg.JWT.Issuer,
		Leeway:       cfg.JWT.Leeway,
		PublicKeyPEM: cfg.JWT.PublicKeyPEM,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	claims, err := verifier.ParseAccess(next.AccessToken, time.Now())
	if err != nil {
		t.Fatalf("ParseAccess failed: %v", err)
	}

	found := false
	for _, role := range claims.Roles {
		if role == string(RoleAdmin) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected ADMIN in refreshed token roles, got %v", claims.Roles)
	}
}
