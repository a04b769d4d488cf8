package authengine

import (
	"context"
	"time"
)

// Role is an enumerated authorization tag attached to a user account.
//
// Role instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Role string

const (
	// RoleUser is an exported constant or variable used by the token lifecycle engine.
	RoleUser Role = "USER"
	// RoleAdmin is an exported constant or variable used by the token lifecycle engine.
	RoleAdmin Role = "ADMIN"
)

// HasRole reports whether roles contains want.
func HasRole(roles []Role, want Role) bool {
	for _, r := range roles {
		if r == want {
			return true
		}
	}
	return false
}

// RoleStrings converts roles to their string form for embedding in token claims.
func RoleStrings(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

// User is the account record exchanged with a [UserStore]. PasswordHash is
// the PHC-encoded Argon2id hash; the engine never sees or stores plaintext.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Roles        []Role
	CreatedAt    time.Time
}

// UserStore is the interface callers must implement to integrate the engine
// with their user database. Lookups return [ErrUserNotFound] (possibly
// wrapped) when no account matches; any other error is treated as a backend
// failure and surfaces to the caller.
//
// Create must enforce username and email uniqueness and return
// [ErrUsernameTaken] or [ErrEmailTaken] on conflict; the engine pre-checks
// both but relies on the store for the race window.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, user *User) (*User, error)
}

// HashUpgrader is an optional interface a [UserStore] may implement to accept
// upgraded password hashes when the configured Argon2 parameters strengthen.
// Updates are best-effort and never block a successful login.
type HashUpgrader interface {
	UpdatePasswordHash(ctx context.Context, username, hash string) error
}

// TokenPair is the credential pair issued by [Engine.Register], [Engine.Login],
// and [Engine.Refresh]: a short-lived signed access token and a long-lived
// opaque refresh token.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Identity is the authenticated caller attached to a request context by the
// middleware guard. Roles are re-resolved from the [UserStore] at
// authentication time; the roles claim inside the access token is
// informational only and never trusted for authorization.
type Identity struct {
	Username string
	Roles    []Role
}

// HasRole reports whether the identity carries the given role.
func (id *Identity) HasRole(want Role) bool {
	if id == nil {
		return false
	}
	return HasRole(id.Roles, want)
}

// RegisterRequest is the input for [Engine.Register]. Roles lists requested
// role names; anything beyond the implicit USER grant is subject to
// [RegistrationConfig] policy.
type RegisterRequest struct {
	Username string
	Email    string
	Password string
	Roles    []string
}
