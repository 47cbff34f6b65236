// Copyright (c) 2025 The chatauth Authors
// SPDX-License-Identifier: BSD-3-Clause

package tokenstore

import (
	"context"
	"fmt"
	"time"
)

// TokenStore tracks which bearer access tokens are currently honored,
// who owns them, and how they are revoked. Implementations must be safe
// for concurrent use.
type TokenStore interface {
	// Issue upserts the record for token and indexes it under owner.
	// Issuing the same token string twice refreshes the record instead of
	// duplicating it. An empty token or an expiry that is not strictly in
	// the future is skipped with a warning, never an error.
	Issue(ctx context.Context, owner, token string, expiresAt time.Time, clientInfo string) error

	// IsActive reports whether token is known, unexpired and not revoked.
	// Unknown tokens are simply inactive. Backend failures degrade to
	// false (fail closed), never to an error.
	IsActive(ctx context.Context, token string) bool

	// OwnerOf resolves token back to its owner. found is false whenever
	// IsActive would report false.
	OwnerOf(ctx context.Context, token string) (owner string, found bool)

	// Revoke invalidates a single token. Revoking a token that was never
	// issued (or already expired) is a no-op.
	Revoke(ctx context.Context, token string) error

	// RevokeAll invalidates every token currently indexed under owner.
	RevokeAll(ctx context.Context, owner string) error

	// ActiveTokensFor returns a snapshot of the owner's currently valid
	// records, filtering out anything expired or revoked even if the
	// owner index still references it.
	ActiveTokensFor(ctx context.Context, owner string) []TokenRecord

	// Cleanup reconciles backend-internal bookkeeping and returns the
	// number of stale entries removed. It never touches a valid token.
	Cleanup(ctx context.Context) int

	// Close releases backend resources.
	Close() error
}

// TokenRecord is the value stored per active token.
type TokenRecord struct {
	Owner      string    `json:"owner"`
	Token      string    `json:"token"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	ClientInfo string    `json:"client_info,omitempty"`
}

// Valid reports whether the record is unexpired at the given instant.
func (r TokenRecord) Valid(now time.Time) bool {
	return now.Before(r.ExpiresAt)
}

// TokenStoreError wraps a backend I/O failure on a write path.
type TokenStoreError struct {
	Op  string
	Err error
}

func (e *TokenStoreError) Error() string {
	return fmt.Sprintf("tokenstore: %s: %v", e.Op, e.Err)
}

func (e *TokenStoreError) Unwrap() error {
	return e.Err
}
