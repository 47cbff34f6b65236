// Copyright (c) 2025 The chatauth Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/barkline/chatauth/codec"
	"github.com/barkline/chatauth/config"
	"github.com/barkline/chatauth/metrics"
	"github.com/barkline/chatauth/middleware"
	"github.com/barkline/chatauth/tokenstore"
	"github.com/barkline/chatauth/users"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// CredentialVerifier is what the login handler needs from the users
// package.
type CredentialVerifier interface {
	Authenticate(ctx context.Context, username, password string) (string, error)
}

// AuthService wires the token codec, the token store and the user
// repository behind the HTTP handlers.
type AuthService struct {
	cfg   *config.Config
	codec codec.TokenCodec
	store tokenstore.TokenStore
	users CredentialVerifier
}

func NewAuthService(cfg *config.Config, c codec.TokenCodec, store tokenstore.TokenStore, verifier CredentialVerifier) *AuthService {
	return &AuthService{
		cfg:   cfg,
		codec: c,
		store: store,
		users: verifier,
	}
}

// LoginRequest carries login credentials.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse carries a freshly issued access token.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// SessionResponse describes one active session.
type SessionResponse struct {
	Token      string    `json:"token"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	ClientInfo string    `json:"client_info,omitempty"`
}

// @Summary     Log in
// @Description Exchange username and password for a bearer access token.
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body LoginRequest true "Credentials"
// @Success     200 {object} TokenResponse
// @Failure     401 {object} map[string]string
// @Router      /api/auth/login [post]
func (s *AuthService) LoginHandler(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}

	owner, err := s.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			metrics.LoginAttempts.WithLabelValues("rejected").Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		log.Error().Err(err).Msg("credential verification failed")
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	expiresAt := time.Now().Add(time.Duration(s.cfg.Auth.TokenTTL) * time.Second)
	token, err := s.codec.Encode(owner, expiresAt)
	if err != nil {
		log.Error().Err(err).Msg("token encoding failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	clientInfo := c.ClientIP() + " " + c.Request.UserAgent()
	if err := s.store.Issue(c.Request.Context(), owner, token, expiresAt, clientInfo); err != nil {
		log.Error().Err(err).Msg("token issuance failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	metrics.TokensIssued.Inc()
	c.JSON(http.StatusOK, TokenResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt,
	})
}

// @Summary     Log out
// @Description Revoke the presented access token.
// @Tags        auth
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string]string
// @Router      /api/auth/logout [post]
func (s *AuthService) LogoutHandler(c *gin.Context) {
	token := c.GetString(middleware.ContextTokenKey)

	if err := s.store.Revoke(c.Request.Context(), token); err != nil {
		log.Error().Err(err).Msg("token revocation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}

	metrics.TokensRevoked.WithLabelValues("single").Inc()
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

// @Summary     Log out everywhere
// @Description Revoke every token issued to the current user.
// @Tags        auth
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string]string
// @Router      /api/auth/logout-all [post]
func (s *AuthService) LogoutAllHandler(c *gin.Context) {
	owner := c.GetString(middleware.ContextOwnerKey)

	if err := s.store.RevokeAll(c.Request.Context(), owner); err != nil {
		log.Error().Err(err).Msg("bulk token revocation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}

	metrics.TokensRevoked.WithLabelValues("all").Inc()
	c.JSON(http.StatusOK, gin.H{"status": "logged out everywhere"})
}

// @Summary     Active sessions
// @Description List the current user's active sessions.
// @Tags        auth
// @Produce     json
// @Security    BearerAuth
// @Success     200 {array} SessionResponse
// @Router      /api/auth/sessions [get]
func (s *AuthService) SessionsHandler(c *gin.Context) {
	owner := c.GetString(middleware.ContextOwnerKey)

	records := s.store.ActiveTokensFor(c.Request.Context(), owner)
	sessions := make([]SessionResponse, 0, len(records))
	for _, rec := range records {
		sessions = append(sessions, SessionResponse{
			Token:      rec.Token,
			IssuedAt:   rec.IssuedAt,
			ExpiresAt:  rec.ExpiresAt,
			ClientInfo: rec.ClientInfo,
		})
	}

	c.JSON(http.StatusOK, sessions)
}
