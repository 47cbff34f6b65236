// Copyright (c) 2025 The chatauth Authors
// SPDX-License-Identifier: BSD-3-Clause

package tokenstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Both backends and the mock satisfy the contract.
var (
	_ TokenStore = (*LocalStore)(nil)
	_ TokenStore = (*RedisStore)(nil)
	_ TokenStore = (*MockStore)(nil)
)

func TestTokenStoreInterface(t *testing.T) {
	var store TokenStore = NewMockStore()
	ctx := context.Background()

	assert.False(t, store.IsActive(ctx, "test-token"))

	err := store.Issue(ctx, "42", "test-token", time.Now().Add(time.Hour), "")
	assert.NoError(t, err)
	assert.True(t, store.IsActive(ctx, "test-token"))

	owner, found := store.OwnerOf(ctx, "test-token")
	assert.True(t, found)
	assert.Equal(t, "42", owner)
}

func TestTokenRecordValid(t *testing.T) {
	now := time.Now()
	rec := TokenRecord{
		Owner:     "42",
		Token:     "abc",
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}

	assert.True(t, rec.Valid(now))
	assert.True(t, rec.Valid(now.Add(59*time.Minute)))
	assert.False(t, rec.Valid(now.Add(time.Hour)))
	assert.False(t, rec.Valid(now.Add(2*time.Hour)))
}

func TestTokenStoreError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &TokenStoreError{Op: "issue", Err: cause}

	assert.Contains(t, err.Error(), "issue")
	assert.ErrorIs(t, err, cause)
}
