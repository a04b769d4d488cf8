package test

import (
	"context"
	"net/http"
	"testing"

	"github.com/zgoteam/authengine"
	"github.com/zgoteam/authengine/middleware"
)

// This test intentionally guards public API compile-compat for consumers.
func TestPublicAPISurfaceCompile(t *testing.T) {
	_ = authengine.New

	var _ *authengine.Engine
	var _ authengine.Config
	var _ authengine.RegisterRequest
	var _ *authengine.User
	var _ *authengine.TokenPair
	var _ *authengine.Identity
	var _ authengine.UserStore
	var _ authengine.AuditSink

	var _ error = authengine.ErrInvalidCredentials
	var _ error = authengine.ErrUsernameTaken
	var _ error = authengine.ErrEmailTaken
	var _ error = authengine.ErrRoleNotGrantable
	var _ error = authengine.ErrRegistrationDisabled
	var _ error = authengine.ErrStoreUnavailable
	var _ error = authengine.ErrLoginRateLimited
	var _ error = authengine.ErrRefreshRateLimited

	var _ func(*authengine.Engine, ...string) func(http.Handler) http.Handler = middleware.Guard
	var _ func() func(http.Handler) http.Handler = middleware.RequireAuthenticated
	var _ func(authengine.Role) func(http.Handler) http.Handler = middleware.RequireRole

	var _ func(*authengine.Engine, context.Context, string, string) (*authengine.TokenPair, error) = (*authengine.Engine).Login
	var _ func(*authengine.Engine, context.Context, string) (*authengine.TokenPair, error) = (*authengine.Engine).Refresh
	var _ func(*authengine.Engine, context.Context, string) error = (*authengine.Engine).Revoke
	var _ func(*authengine.Engine, context.Context, string) (*authengine.Identity, bool) = (*authengine.Engine).AuthenticateHeader
}
