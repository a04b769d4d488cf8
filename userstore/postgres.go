package userstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/zgoteam/authengine"
)

const uniqueViolationCode = "23505"

// PostgresStore implements authengine.UserStore on top of a Postgres users
// table. Roles are stored as a comma-joined text column; the set is small and
// closed, so a join table buys nothing here.
//
// PostgresStore instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore describes the newpostgresstore operation and its observable behavior.
//
// NewPostgresStore may return an error when input validation, dependency calls, or security checks fail.
// NewPostgresStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("userstore: nil db")
	}
	return &PostgresStore{db: db}, nil
}

// FindByUsername describes the findbyusername operation and its observable behavior.
//
// FindByUsername may return an error when input validation, dependency calls, or security checks fail.
// FindByUsername does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (*authengine.User, error) {
	return s.findBy(ctx, "username", username)
}

// FindByEmail describes the findbyemail operation and its observable behavior.
//
// FindByEmail may return an error when input validation, dependency calls, or security checks fail.
// FindByEmail does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*authengine.User, error) {
	return s.findBy(ctx, "email", email)
}

func (s *PostgresStore) findBy(ctx context.Context, column, value string) (*authengine.User, error) {
	// Uniqueness is enforced on lower(username) and lower(email); lookups
	// match the same way so "Alice" and "alice" are one account.
	query := `SELECT id, username, email, password_hash, roles, created_at
		 FROM users
		 WHERE lower(` + column + `) = lower($1)`

	var (
		user  authengine.User
		roles string
	)
	err := s.db.QueryRowContext(ctx, query, value).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &roles, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authengine.ErrUserNotFound
		}
		return nil, fmt.Errorf("userstore: query failed: %w", err)
	}

	user.Roles = decodeRoles(roles)
	return &user, nil
}

// Create describes the create operation and its observable behavior.
//
// Create may return an error when input validation, dependency calls, or security checks fail.
// Create does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *PostgresStore) Create(ctx context.Context, user *authengine.User) (*authengine.User, error) {
	query := `INSERT INTO users (id, username, email, password_hash, roles, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`

	out := *user
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}

	err := s.db.QueryRowContext(ctx, query,
		out.ID, out.Username, out.Email, out.PasswordHash, encodeRoles(out.Roles), out.CreatedAt,
	).Scan(&out.ID)
	if err != nil {
		if conflictErr := classifyConflict(err); conflictErr != nil {
			return nil, conflictErr
		}
		return nil, fmt.Errorf("userstore: insert failed: %w", err)
	}

	return &out, nil
}

// UpdatePasswordHash implements the optional authengine.HashUpgrader
// interface so logins can carry forward strengthened Argon2 parameters.
func (s *PostgresStore) UpdatePasswordHash(ctx context.Context, username, hash string) error {
	query := `UPDATE users SET password_hash = $2 WHERE username = $1`

	res, err := s.db.ExecContext(ctx, query, username, hash)
	if err != nil {
		return fmt.Errorf("userstore: update failed: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return authengine.ErrUserNotFound
	}
	return nil
}

func classifyConflict(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolationCode {
		return nil
	}
	if strings.Contains(pgErr.ConstraintName, "email") {
		return authengine.ErrEmailTaken
	}
	return authengine.ErrUsernameTaken
}

func encodeRoles(roles []authengine.Role) string {
	return strings.Join(authengine.RoleStrings(roles), ",")
}

func decodeRoles(encoded string) []authengine.Role {
	if encoded == "" {
		return nil
	}
	parts := strings.Split(encoded, ",")
	roles := make([]authengine.Role, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			roles = append(roles, authengine.Role(p))
		}
	}
	return roles
}
