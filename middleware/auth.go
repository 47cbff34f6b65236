// Copyright (c) 2025 The chatauth Authors
// SPDX-License-Identifier: BSD-3-Clause

package middleware

import (
	"net/http"
	"strings"

	"github.com/barkline/chatauth/codec"
	"github.com/barkline/chatauth/metrics"
	"github.com/barkline/chatauth/tokenstore"
	"github.com/gin-gonic/gin"
)

// Context keys populated for downstream handlers.
const (
	ContextOwnerKey = "auth.owner"
	ContextTokenKey = "auth.token"
)

// AuthMiddleware handles bearer token authentication: the presented
// token must decode cleanly and still be active in the token store
// before its owner is trusted.
type AuthMiddleware struct {
	codec codec.TokenCodec
	store tokenstore.TokenStore
}

// NewAuthMiddleware creates a new auth middleware instance.
func NewAuthMiddleware(c codec.TokenCodec, store tokenstore.TokenStore) *AuthMiddleware {
	return &AuthMiddleware{
		codec: c,
		store: store,
	}
}

// Handler returns the gin middleware handler function.
func (m *AuthMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		// Decode failure means the string was never ours or is
		// malformed, not that it was revoked.
		if _, _, ok := m.codec.Decode(token); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		if !m.store.IsActive(c.Request.Context(), token) {
			metrics.TokenChecks.WithLabelValues("inactive").Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}
		metrics.TokenChecks.WithLabelValues("active").Inc()

		owner, found := m.store.OwnerOf(c.Request.Context(), token)
		if !found {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Set(ContextOwnerKey, owner)
		c.Set(ContextTokenKey, token)
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}

	return parts[1]
}
