package authengine

import (
	"context"
	"errors"
	"testing"
)

func TestRegisterSuccessGrantsUserRole(t *testing.T) {
	engine, _, done := buildTestEngine(t, engineTestConfig(t))
	defer done()

	user, pair, err := engine.Register(context.Background(), RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if !HasRole(user.Roles, RoleUser) {
		t.Fatalf("expected USER role, got %v", user.Roles)
	}
	if HasRole(user.Roles, RoleAdmin) {
		t.Fatalf("expected no ADMIN role, got %v", user.Roles)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected token pair on registration")
	}
	if user.PasswordHash == "correct-horse" {
		t.Fatal("password stored in plaintext")
	}
}

func TestRegisterAdminRoleWhenSelfGrantAllowed(t *testing.T) {
	engine, _, done := buildTestEngine(t, engineTestConfig(t))
	defer done()

	user, _, err := engine.Register(context.Background(), RegisterRequest{
		Username: "root",
		Email:    "root@example.com",
		Password: "correct-horse",
		Roles:    []string{"ADMIN"},
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if !HasRole(user.Roles, RoleAdmin) {
		t.Fatalf("expected ADMIN role, got %v", user.Roles)
	}
	if !HasRole(user.Roles, RoleUser) {
		t.Fatalf("expected implicit USER role, got %v", user.Roles)
	}
}

func TestRegisterAdminRoleRejectedWhenSelfGrantDisabled(t *testing.T) {
	cfg := engineTestConfig(t)
	cfg.Registration.AllowSelfGrantedAdmin = false

	engine, _, done := buildTestEngine(t, cfg)
	defer done()

	_, _, err := engine.Register(context.Background(), RegisterRequest{
		Username: "mallory",
		Email:    "mallory@example.com",
		Password: "correct-horse",
		Roles:    []string{"ADMIN"},
	})
	if !errors.Is(err, ErrRoleNotGrantable) {
		t.Fatalf("expected ErrRoleNotGrantable, got %v", err)
	}
}

func TestRegisterUnknownRoleRejected(t *testing.T) {
	engine, _, done := buildTestEngine(t, engineTestConfig(t))
	defer done()

	_, _, err := engine.Register(context.Background(), RegisterRequest{
		Username: "bob",
		Email:    "bob@example.com",
		Password: "correct-horse",
		Roles:    []string{"SUPERUSER"},
	})
	if !errors.Is(err, ErrRoleNotGrantable) {
		t.Fatalf("expected ErrRoleNotGrantable, got %v", err)
	}
}

func TestRegisterUsernameConflictReportedBeforeEmail(t *testing.T) {
	engine, _, done := buildTestEngine(t, engineTestConfig(t))
	defer done()

	registerTestUser(t, engine, "alice", "alice@example.com", "correct-horse")

	// Both the username and the email collide; the username wins.
	_, _, err := engine.Register(context.Background(), RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "correct-horse",
	})
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}

	_, _, err = engine.Register(context.Background(), RegisterRequest{
		Username: "alice2",
		Email:    "alice@example.com",
		Password: "correct-horse",
	})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestRegisterPasswordTooShort(t *testing.T) {
	engine, _, done := buildTestEngine(t, engineTestConfig(t))
	defer done()

	_, _, err := engine.Register(context.Background(), RegisterRequest{
		Username: "carol",
		Email:    "carol@example.com",
		Password: "short",
	})
	if !errors.Is(err, ErrRegistrationInvalid) {
		t.Fatalf("expected ErrRegistrationInvalid, got %v", err)
	}
}

func TestRegisterDisabled(t *testing.T) {
	cfg := engineTestConfig(t)
	cfg.Registration.Enabled = false

	engine, _, done := buildTestEngine(t, cfg)
	defer done()

	_, _, err := engine.Register(context.Background(), RegisterRequest{
		Username: "dave",
		Email:    "dave@example.com",
		Password: "correct-horse",
	})
	if !errors.Is(err, ErrRegistrationDisabled) {
		t.Fatalf("expected ErrRegistrationDisabled, got %v", err)
	}
}
