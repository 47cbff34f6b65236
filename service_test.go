// Copyright (c) 2025 The chatauth Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/barkline/chatauth/codec"
	"github.com/barkline/chatauth/config"
	"github.com/barkline/chatauth/middleware"
	"github.com/barkline/chatauth/tokenstore"
	"github.com/barkline/chatauth/users"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubVerifier accepts alice/correct-horse and rejects everyone else.
type stubVerifier struct{}

func (stubVerifier) Authenticate(ctx context.Context, username, password string) (string, error) {
	if username == "alice" && password == "correct-horse" {
		return "42", nil
	}
	return "", users.ErrInvalidCredentials
}

func setupTestServer(t *testing.T) (*gin.Engine, tokenstore.TokenStore) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	cfg := &config.Config{}
	cfg.Auth.Backend = config.BackendLocal
	cfg.Auth.TokenTTL = 3600

	store := tokenstore.NewMockStore()
	jwtCodec := codec.NewJWT("test-secret-at-least-256-bits-long!!", "chatauth-test")
	service := NewAuthService(cfg, jwtCodec, store, stubVerifier{})
	authMiddleware := middleware.NewAuthMiddleware(jwtCodec, store)

	r.POST("/api/auth/login", service.LoginHandler)
	r.POST("/api/auth/logout", authMiddleware.Handler(), service.LogoutHandler)
	r.POST("/api/auth/logout-all", authMiddleware.Handler(), service.LogoutAllHandler)
	r.GET("/api/auth/sessions", authMiddleware.Handler(), service.SessionsHandler)

	return r, store
}

func doLogin(t *testing.T, r *gin.Engine) TokenResponse {
	t.Helper()

	req := httptest.NewRequest("POST", "/api/auth/login",
		strings.NewReader(`{"username":"alice","password":"correct-horse"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)

	return resp
}

func TestLogin(t *testing.T) {
	r, store := setupTestServer(t)

	t.Run("Success", func(t *testing.T) {
		resp := doLogin(t, r)

		assert.True(t, resp.ExpiresAt.After(time.Now()))
		assert.True(t, store.IsActive(context.Background(), resp.AccessToken))

		owner, found := store.OwnerOf(context.Background(), resp.AccessToken)
		assert.True(t, found)
		assert.Equal(t, "42", owner)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/auth/login",
			strings.NewReader(`{"username":"alice","password":"nope"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("MissingFields", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/auth/login",
			strings.NewReader(`{"username":"alice"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestLogout(t *testing.T) {
	r, store := setupTestServer(t)
	resp := doLogin(t, r)

	req := httptest.NewRequest("POST", "/api/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+resp.AccessToken)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, store.IsActive(context.Background(), resp.AccessToken))

	// The revoked token no longer opens the door.
	req = httptest.NewRequest("POST", "/api/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+resp.AccessToken)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutAll(t *testing.T) {
	r, store := setupTestServer(t)

	first := doLogin(t, r)
	second := doLogin(t, r)

	req := httptest.NewRequest("POST", "/api/auth/logout-all", nil)
	req.Header.Set("Authorization", "Bearer "+first.AccessToken)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, store.IsActive(context.Background(), first.AccessToken))
	assert.False(t, store.IsActive(context.Background(), second.AccessToken))
}

func TestSessions(t *testing.T) {
	r, _ := setupTestServer(t)

	first := doLogin(t, r)
	_ = doLogin(t, r)

	req := httptest.NewRequest("GET", "/api/auth/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+first.AccessToken)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var sessions []SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sessions))
	assert.Len(t, sessions, 2)
}
