package authengine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/zgoteam/authengine/internal/rate"
	"github.com/zgoteam/authengine/jwt"
	"github.com/zgoteam/authengine/password"
	"github.com/zgoteam/authengine/refresh"
)

// Engine defines a public type used by authengine APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config       Config
	userStore    UserStore
	refreshStore refresh.Store
	rateLimiter  *rate.Limiter
	audit        *auditDispatcher
	metrics      *Metrics
	passwordHash *password.Hasher
	jwtManager   *jwt.Manager
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Register describes the register operation and its observable behavior.
//
// Register may return an error when input validation, dependency calls, or security checks fail.
// Register does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*User, *TokenPair, error) {
	if e == nil || e.userStore == nil || e.passwordHash == nil {
		return nil, nil, ErrEngineNotReady
	}
	if !e.config.Registration.Enabled {
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, req.Username, "", ErrRegistrationDisabled, func() map[string]string {
			return map[string]string{
				"reason": "registration_disabled",
			}
		})
		return nil, nil, ErrRegistrationDisabled
	}
	if req.Username == "" || req.Email == "" {
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, req.Username, "", ErrRegistrationInvalid, func() map[string]string {
			return map[string]string{
				"reason": "missing_identifier",
			}
		})
		return nil, nil, fmt.Errorf("%w: username and email are required", ErrRegistrationInvalid)
	}
	if len(req.Password) < e.config.Registration.MinPasswordLength {
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, req.Username, "", ErrRegistrationInvalid, func() map[string]string {
			return map[string]string{
				"reason": "password_too_short",
			}
		})
		return nil, nil, fmt.Errorf("%w: password shorter than %d characters", ErrRegistrationInvalid, e.config.Registration.MinPasswordLength)
	}

	roles, err := e.grantableRoles(req.Roles)
	if err != nil {
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, req.Username, "", err, func() map[string]string {
			return map[string]string{
				"reason": "role_policy",
			}
		})
		return nil, nil, err
	}

	// Username conflict is reported before email conflict when both collide.
	if _, err := e.userStore.FindByUsername(ctx, req.Username); err == nil {
		e.metricInc(MetricRegisterConflict)
		e.emitAudit(ctx, auditEventRegisterConflict, false, req.Username, "", ErrUsernameTaken, nil)
		return nil, nil, ErrUsernameTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, req.Username, "", err, nil)
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if _, err := e.userStore.FindByEmail(ctx, req.Email); err == nil {
		e.metricInc(MetricRegisterConflict)
		e.emitAudit(ctx, auditEventRegisterConflict, false, req.Username, "", ErrEmailTaken, nil)
		return nil, nil, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, req.Username, "", err, nil)
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	hash, err := e.passwordHash.Hash(req.Password)
	if err != nil {
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, req.Username, "", err, func() map[string]string {
			return map[string]string{
				"reason": "hash_failed",
			}
		})
		return nil, nil, err
	}
	req.Password = ""

	user, err := e.userStore.Create(ctx, &User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Roles:        roles,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		// The store rechecks uniqueness; the pre-checks above leave a race window.
		if errors.Is(err, ErrUsernameTaken) || errors.Is(err, ErrEmailTaken) {
			e.metricInc(MetricRegisterConflict)
			e.emitAudit(ctx, auditEventRegisterConflict, false, req.Username, "", err, nil)
			return nil, nil, err
		}
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, req.Username, "", err, func() map[string]string {
			return map[string]string{
				"reason": "store_create_failed",
			}
		})
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	pair, err := e.issueTokenPair(ctx, user, time.Now())
	if err != nil {
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, user.Username, "", err, func() map[string]string {
			return map[string]string{
				"reason": "issue_pair_failed",
			}
		})
		return nil, nil, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, user.Username, "", nil, nil)

	return user, pair, nil
}

// Login describes the login operation and its observable behavior.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Login(ctx context.Context, username, passwd string) (*TokenPair, error) {
	if e == nil || e.userStore == nil || e.passwordHash == nil {
		return nil, ErrEngineNotReady
	}
	ip := clientIPFromContext(ctx)

	if e.rateLimiter != nil {
		if err := e.rateLimiter.CheckLogin(ctx, username, ip); err != nil {
			return nil, e.loginRateLimited(ctx, username)
		}
	}
	if passwd == "" {
		return nil, e.loginFailed(ctx, username, ip, "empty_password")
	}

	user, err := e.userStore.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, e.loginFailed(ctx, username, ip, "user_not_found")
		}
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, username, "", err, nil)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	ok, err := e.passwordHash.Verify(passwd, user.PasswordHash)
	if err != nil || !ok {
		return nil, e.loginFailed(ctx, username, ip, "password_mismatch")
	}
	e.maybeUpgradeHash(ctx, user, passwd)
	passwd = ""

	if e.rateLimiter != nil {
		if err := e.rateLimiter.ResetLogin(ctx, username, ip); err != nil {
			return nil, e.loginRateLimited(ctx, username)
		}
	}

	pair, err := e.issueTokenPair(ctx, user, time.Now())
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.Username, "", err, func() map[string]string {
			return map[string]string{
				"reason": "issue_pair_failed",
			}
		})
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.Username, "", nil, nil)

	return pair, nil
}

// loginFailed collapses every credential failure into [ErrInvalidCredentials]
// so a caller cannot distinguish an unknown username from a wrong password.
func (e *Engine) loginFailed(ctx context.Context, username, ip, reason string) error {
	if e.rateLimiter != nil {
		if err := e.rateLimiter.IncrementLogin(ctx, username, ip); err != nil {
			return e.loginRateLimited(ctx, username)
		}
	}
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, username, "", ErrInvalidCredentials, func() map[string]string {
		return map[string]string{
			"reason": reason,
		}
	})
	return ErrInvalidCredentials
}

func (e *Engine) loginRateLimited(ctx context.Context, username string) error {
	e.metricInc(MetricLoginRateLimited)
	e.emitAudit(ctx, auditEventLoginRateLimited, false, username, "", ErrLoginRateLimited, nil)
	e.emitRateLimit(ctx, "login", func() map[string]string {
		return map[string]string{
			"identifier": username,
		}
	})
	return ErrLoginRateLimited
}

func (e *Engine) maybeUpgradeHash(ctx context.Context, user *User, passwd string) {
	upgrader, ok := e.userStore.(HashUpgrader)
	if !ok {
		return
	}
	needs, err := e.passwordHash.NeedsRehash(user.PasswordHash)
	if err != nil || !needs {
		return
	}
	newHash, err := e.passwordHash.Hash(passwd)
	if err != nil {
		log.Print("authengine: password hash upgrade generation failed")
		return
	}
	// Rehash update is best-effort and must not block successful login.
	if err := upgrader.UpdatePasswordHash(ctx, user.Username, newHash); err != nil {
		log.Print("authengine: password hash upgrade update failed")
	}
}

// Refresh describes the refresh operation and its observable behavior.
//
// Refresh may return an error when input validation, dependency calls, or security checks fail.
// Refresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil || e.refreshStore == nil || e.userStore == nil {
		return nil, ErrEngineNotReady
	}
	if refreshToken == "" {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"reason": "empty_token",
			}
		})
		return nil, ErrInvalidCredentials
	}

	if e.rateLimiter != nil {
		if err := e.rateLimiter.CheckRefresh(ctx, refreshToken); err != nil {
			e.metricInc(MetricRefreshRateLimited)
			e.emitAudit(ctx, auditEventRefreshRateLimited, false, "", "", ErrRefreshRateLimited, nil)
			e.emitRateLimit(ctx, "refresh", nil)
			return nil, ErrRefreshRateLimited
		}
	}

	now := time.Now()
	next, err := e.refreshStore.Rotate(ctx, refreshToken, now)
	if err != nil {
		switch {
		case errors.Is(err, refresh.ErrTokenRevoked):
			// Replay: the token was already spent or revoked. The caller sees
			// the same generic failure as any other invalid token.
			e.metricInc(MetricRefreshReuseDetected)
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshReuseDetected, false, "", "", err, nil)
			return nil, ErrInvalidCredentials
		case errors.Is(err, refresh.ErrTokenNotFound), errors.Is(err, refresh.ErrTokenExpired):
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", err, nil)
			return nil, ErrInvalidCredentials
		default:
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", err, func() map[string]string {
				return map[string]string{
					"reason": "rotate_failed",
				}
			})
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	user, err := e.userStore.FindByUsername(ctx, next.Username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Account removed after the token was issued. The successor token
			// must not stay spendable.
			if revokeErr := e.refreshStore.Revoke(ctx, next.Value); revokeErr != nil {
				log.Print("authengine: orphaned refresh token revocation failed")
			}
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, next.Username, next.ID, ErrInvalidCredentials, func() map[string]string {
				return map[string]string{
					"reason": "user_not_found",
				}
			})
			return nil, ErrInvalidCredentials
		}
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, next.Username, next.ID, err, nil)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	access, accessExp, err := e.jwtManager.CreateAccess(user.Username, RoleStrings(user.Roles), now)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, user.Username, next.ID, err, func() map[string]string {
			return map[string]string{
				"reason": "issue_access_failed",
			}
		})
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, user.Username, next.ID, nil, nil)

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     next.Value,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: next.ExpiresAt,
	}, nil
}

// Revoke describes the revoke operation and its observable behavior.
//
// Revoke may return an error when input validation, dependency calls, or security checks fail.
// Revoke does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Revoke(ctx context.Context, refreshToken string) error {
	if e == nil || e.refreshStore == nil {
		return ErrEngineNotReady
	}
	if refreshToken == "" {
		return nil
	}

	// Revoking an unknown or already-revoked token is a success: the caller's
	// goal, that the token cannot be spent, already holds.
	if err := e.refreshStore.Revoke(ctx, refreshToken); err != nil {
		e.emitAudit(ctx, auditEventRevoke, false, "", "", err, nil)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricRevoke)
	e.emitAudit(ctx, auditEventRevoke, true, "", "", nil, nil)
	return nil
}

// AuthenticateHeader describes the authenticateheader operation and its observable behavior.
//
// AuthenticateHeader may return an error when input validation, dependency calls, or security checks fail.
// AuthenticateHeader does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuthenticateHeader(ctx context.Context, header string) (*Identity, bool) {
	token, ok := bearerToken(header)
	if !ok {
		e.metricInc(MetricAuthenticateAnonymous)
		return nil, false
	}
	return e.AuthenticateToken(ctx, token)
}

// AuthenticateToken describes the authenticatetoken operation and its observable behavior.
//
// AuthenticateToken may return an error when input validation, dependency calls, or security checks fail.
// AuthenticateToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuthenticateToken(ctx context.Context, tokenStr string) (*Identity, bool) {
	if e == nil || e.jwtManager == nil || e.userStore == nil {
		return nil, false
	}
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricAuthenticateLatency, time.Since(start)) }()
	}

	claims, err := e.jwtManager.ParseAccess(tokenStr, time.Now())
	if err != nil {
		e.metricInc(MetricAuthenticateRejected)
		e.emitAudit(ctx, auditEventAuthenticateRejected, false, "", "", ErrTokenInvalid, func() map[string]string {
			return map[string]string{
				"reason": "parse_failed",
			}
		})
		return nil, false
	}

	// Roles come from the store, not the token, so grants and revocations
	// apply within one request rather than one access-token lifetime.
	user, err := e.userStore.FindByUsername(ctx, claims.Subject)
	if err != nil {
		e.metricInc(MetricAuthenticateRejected)
		e.emitAudit(ctx, auditEventAuthenticateRejected, false, claims.Subject, "", err, func() map[string]string {
			return map[string]string{
				"reason": "user_lookup_failed",
			}
		})
		return nil, false
	}

	e.metricInc(MetricAuthenticateSuccess)
	return &Identity{
		Username: user.Username,
		Roles:    user.Roles,
	}, true
}

func (e *Engine) issueTokenPair(ctx context.Context, user *User, now time.Time) (*TokenPair, error) {
	if e.refreshStore == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	rt, err := e.refreshStore.Create(ctx, user.Username, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	access, accessExp, err := e.jwtManager.CreateAccess(user.Username, RoleStrings(user.Roles), now)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     rt.Value,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: rt.ExpiresAt,
	}, nil
}

func (e *Engine) grantableRoles(requested []string) ([]Role, error) {
	roles := []Role{RoleUser}
	for _, name := range requested {
		switch Role(name) {
		case RoleUser:
			// Implicit grant, already present.
		case RoleAdmin:
			if !e.config.Registration.AllowSelfGrantedAdmin {
				return nil, fmt.Errorf("%w: %s", ErrRoleNotGrantable, name)
			}
			if !HasRole(roles, RoleAdmin) {
				roles = append(roles, RoleAdmin)
			}
		default:
			return nil, fmt.Errorf("%w: %s", ErrRoleNotGrantable, name)
		}
	}
	return roles, nil
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
