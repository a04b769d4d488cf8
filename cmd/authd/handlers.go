package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	authengine "github.com/zgoteam/authengine"
	"github.com/zgoteam/authengine/middleware"
)

type registerRequest struct {
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Roles    []string `json:"roles,omitempty"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPairResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type identityResponse struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type apiHandler struct {
	engine *authengine.Engine
	logger *slog.Logger
}

func (h *apiHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	_, pair, err := h.engine.Register(withClientIP(r), authengine.RegisterRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Roles:    req.Roles,
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, pairResponse(pair))
}

func (h *apiHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pair, err := h.engine.Login(withClientIP(r), req.Username, req.Password)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pairResponse(pair))
}

func (h *apiHandler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pair, err := h.engine.Refresh(withClientIP(r), req.RefreshToken)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pairResponse(pair))
}

func (h *apiHandler) revoke(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.engine.Revoke(withClientIP(r), req.RefreshToken); err != nil {
		h.writeEngineError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *apiHandler) me(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	writeJSON(w, http.StatusOK, identityResponse{
		Username: id.Username,
		Roles:    authengine.RoleStrings(id.Roles),
	})
}

func (h *apiHandler) adminStats(w http.ResponseWriter, r *http.Request) {
	snapshot := h.engine.MetricsSnapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"counters":      snapshot.Counters,
		"audit_dropped": h.engine.AuditDropped(),
	})
}

func (h *apiHandler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authengine.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, authengine.ErrUsernameTaken):
		writeError(w, http.StatusConflict, "username already taken")
	case errors.Is(err, authengine.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email already taken")
	case errors.Is(err, authengine.ErrRegistrationDisabled):
		writeError(w, http.StatusForbidden, "registration disabled")
	case errors.Is(err, authengine.ErrRoleNotGrantable):
		writeError(w, http.StatusForbidden, "requested role is not grantable")
	case errors.Is(err, authengine.ErrRegistrationInvalid):
		writeError(w, http.StatusBadRequest, "invalid registration request")
	case errors.Is(err, authengine.ErrLoginRateLimited),
		errors.Is(err, authengine.ErrRefreshRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	default:
		h.logger.Error("request failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func withClientIP(r *http.Request) context.Context {
	return authengine.WithClientIP(r.Context(), r.RemoteAddr)
}

func pairResponse(pair *authengine.TokenPair) tokenPairResponse {
	return tokenPairResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
