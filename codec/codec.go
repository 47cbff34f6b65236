// Copyright (c) 2025 The chatauth Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package codec turns user identifiers into signed bearer tokens and
// back. It is stateless: whether a decoded token is still honored is the
// token store's call, and a decode failure only ever means the string
// was malformed or never ours, never that it was revoked.
package codec

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// TokenCodec encodes and decodes signed access tokens.
type TokenCodec interface {
	Encode(owner string, expiresAt time.Time) (string, error)
	Decode(token string) (owner string, expiresAt time.Time, ok bool)
}

// JWT is an HMAC-SHA256 TokenCodec.
type JWT struct {
	secret []byte
	issuer string
}

func NewJWT(secret, issuer string) *JWT {
	return &JWT{
		secret: []byte(secret),
		issuer: issuer,
	}
}

func (c *JWT) Encode(owner string, expiresAt time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   owner,
		Issuer:    c.issuer,
		IssuedAt:  jwt.NewNumericDate(NowTimeFunc()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        uuid.New().String(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

func (c *JWT) Decode(token string) (string, time.Time, bool) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (interface{}, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return NowTimeFunc() }),
	)
	if err != nil || !parsed.Valid {
		return "", time.Time{}, false
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" || claims.ExpiresAt == nil {
		return "", time.Time{}, false
	}
	return claims.Subject, claims.ExpiresAt.Time, true
}
