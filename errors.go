package authengine

import "errors"

var (
	// ErrUnauthorized is an exported constant or variable used by the token lifecycle engine.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is an exported constant or variable used by the token lifecycle engine.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is an exported constant or variable used by the token lifecycle engine.
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken is an exported constant or variable used by the token lifecycle engine.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrEmailTaken is an exported constant or variable used by the token lifecycle engine.
	ErrEmailTaken = errors.New("email already registered")
	// ErrLoginRateLimited is an exported constant or variable used by the token lifecycle engine.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrRefreshRateLimited is an exported constant or variable used by the token lifecycle engine.
	ErrRefreshRateLimited = errors.New("refresh rate limited")
	// ErrRegistrationDisabled is an exported constant or variable used by the token lifecycle engine.
	ErrRegistrationDisabled = errors.New("registration disabled")
	// ErrRegistrationInvalid is an exported constant or variable used by the token lifecycle engine.
	ErrRegistrationInvalid = errors.New("invalid registration request")
	// ErrRoleNotGrantable is an exported constant or variable used by the token lifecycle engine.
	ErrRoleNotGrantable = errors.New("requested role cannot be self-granted")
	// ErrRefreshInvalid is an exported constant or variable used by the token lifecycle engine.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrRefreshReuse is an exported constant or variable used by the token lifecycle engine.
	ErrRefreshReuse = errors.New("refresh token reuse detected")
	// ErrTokenInvalid is an exported constant or variable used by the token lifecycle engine.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrEngineNotReady is an exported constant or variable used by the token lifecycle engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrStoreUnavailable is an exported constant or variable used by the token lifecycle engine.
	ErrStoreUnavailable = errors.New("backing store unavailable")
)
