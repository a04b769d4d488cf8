package refresh

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresStore is a SQL-backed [Store] for deployments that keep refresh
// tokens next to their user data. The rotation compare-and-set is the
// conditional UPDATE: under READ COMMITTED a losing racer blocks on the row
// lock, re-evaluates the predicate against the winner's commit, and matches
// zero rows.
type PostgresStore struct {
	db  *sql.DB
	ttl time.Duration
}

// NewPostgresStore creates a [PostgresStore] over db with the given token
// lifetime. The refresh_tokens table must exist; see the migrations package.
func NewPostgresStore(db *sql.DB, ttl time.Duration) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("nil db handle")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be > 0")
	}
	return &PostgresStore{db: db, ttl: ttl}, nil
}

// Create implements [Store].
func (s *PostgresStore) Create(ctx context.Context, username string, now time.Time) (*Token, error) {
	value, err := NewTokenValue()
	if err != nil {
		return nil, err
	}

	token := &Token{
		ID:        uuid.NewString(),
		Value:     value,
		Username:  username,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, token, username, issued_at, expires_at, revoked)
		 VALUES ($1, $2, $3, $4, $5, FALSE)`,
		token.ID, token.Value, token.Username, token.IssuedAt, token.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return token, nil
}

// Rotate implements [Store]. The revoke of the old row and the insert of the
// successor commit together or not at all.
func (s *PostgresStore) Rotate(ctx context.Context, value string, now time.Time) (*Token, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	var username string
	err = tx.QueryRowContext(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE
		 WHERE token = $1 AND revoked = FALSE AND expires_at > $2
		 RETURNING username`,
		value, now,
	).Scan(&username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.classifyRotateMiss(ctx, tx, value)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	next := &Token{
		ID:        uuid.NewString(),
		Username:  username,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}
	next.Value, err = NewTokenValue()
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, token, username, issued_at, expires_at, revoked)
		 VALUES ($1, $2, $3, $4, $5, FALSE)`,
		next.ID, next.Value, next.Username, next.IssuedAt, next.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return next, nil
}

func (s *PostgresStore) classifyRotateMiss(ctx context.Context, tx *sql.Tx, value string) error {
	var (
		revoked   bool
		expiresAt time.Time
	)
	err := tx.QueryRowContext(ctx,
		`SELECT revoked, expires_at FROM refresh_tokens WHERE token = $1`,
		value,
	).Scan(&revoked, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrTokenNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if revoked {
		return ErrTokenRevoked
	}
	return ErrTokenExpired
}

// Revoke implements [Store]. Zero matched rows is success.
func (s *PostgresStore) Revoke(ctx context.Context, value string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1`,
		value,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Valid implements [Store].
func (s *PostgresStore) Valid(ctx context.Context, value string, now time.Time) (bool, error) {
	token, err := s.Get(ctx, value)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return false, nil
		}
		return false, err
	}
	return !token.Revoked && token.ExpiresAt.After(now), nil
}

// Get implements [Store].
func (s *PostgresStore) Get(ctx context.Context, value string) (*Token, error) {
	token := &Token{Value: value}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, issued_at, expires_at, revoked
		 FROM refresh_tokens WHERE token = $1`,
		value,
	).Scan(&token.ID, &token.Username, &token.IssuedAt, &token.ExpiresAt, &token.Revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return token, nil
}
