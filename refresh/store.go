package refresh

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"
)

var (
	// ErrTokenNotFound is returned when no record exists for a token value.
	ErrTokenNotFound = errors.New("refresh token not found")
	// ErrTokenExpired is returned when the record exists but its expiry has passed.
	ErrTokenExpired = errors.New("refresh token expired")
	// ErrTokenRevoked is returned when the record is flagged revoked. On the
	// rotation path this is the replay signal: someone presented a token that
	// was already spent.
	ErrTokenRevoked = errors.New("refresh token revoked")
	// ErrUnavailable is returned when the backing store cannot be reached.
	ErrUnavailable = errors.New("refresh store unavailable")
)

const tokenValueSize = 32

// Token is a stored refresh-token record. Value is the opaque secret handed
// to the client; ID is the stable record identifier safe to log and audit.
//
// Token instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Token struct {
	ID        string
	Value     string
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Revoked   bool
}

// Store is the persistence contract for refresh tokens. Rotate is the only
// operation with concurrency semantics: when N callers race on the same
// value, exactly one receives the successor token and the rest receive
// [ErrTokenRevoked].
type Store interface {
	// Create persists a fresh token for username, expiring at now+TTL.
	Create(ctx context.Context, username string, now time.Time) (*Token, error)
	// Rotate atomically revokes the record identified by value and creates
	// its successor. Fails with ErrTokenNotFound, ErrTokenExpired, or
	// ErrTokenRevoked without side effects.
	Rotate(ctx context.Context, value string, now time.Time) (*Token, error)
	// Revoke flags the record revoked. Unknown and already-revoked values
	// are silent no-ops.
	Revoke(ctx context.Context, value string) error
	// Valid reports whether value identifies a live token: present, not
	// revoked, not expired at now. It never mutates state.
	Valid(ctx context.Context, value string, now time.Time) (bool, error)
	// Get returns the record for value, including revoked and expired ones.
	Get(ctx context.Context, value string) (*Token, error)
}

// NewTokenValue returns a fresh opaque token value: 32 bytes of
// crypto/rand, base64url without padding.
func NewTokenValue() (string, error) {
	var raw [tokenValueSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}
