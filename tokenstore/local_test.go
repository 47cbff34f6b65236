// Copyright (c) 2025 The chatauth Authors
// SPDX-License-Identifier: BSD-3-Clause

package tokenstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLocalTest(t *testing.T) *LocalStore {
	store, err := NewLocalStore(DefaultLocalConfig())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestLocalStoreIssueAndCheck(t *testing.T) {
	store := setupLocalTest(t)
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	t.Run("RoundTrip", func(t *testing.T) {
		err := store.Issue(ctx, "42", "abc", expiry, "test-client")
		assert.NoError(t, err)

		assert.True(t, store.IsActive(ctx, "abc"))

		owner, found := store.OwnerOf(ctx, "abc")
		assert.True(t, found)
		assert.Equal(t, "42", owner)
	})

	t.Run("UnknownToken", func(t *testing.T) {
		assert.False(t, store.IsActive(ctx, "never-issued"))

		owner, found := store.OwnerOf(ctx, "never-issued")
		assert.False(t, found)
		assert.Empty(t, owner)

		assert.NoError(t, store.Revoke(ctx, "never-issued"))
	})

	t.Run("EmptyToken", func(t *testing.T) {
		before := len(store.ActiveTokensFor(ctx, "42"))
		err := store.Issue(ctx, "42", "", expiry, "")
		assert.NoError(t, err)
		assert.Len(t, store.ActiveTokensFor(ctx, "42"), before)
	})

	t.Run("AlreadyExpired", func(t *testing.T) {
		err := store.Issue(ctx, "42", "stale", time.Now().Add(-time.Minute), "")
		assert.NoError(t, err)
		assert.False(t, store.IsActive(ctx, "stale"))
	})
}

func TestLocalStoreExpiry(t *testing.T) {
	store := setupLocalTest(t)
	ctx := context.Background()

	err := store.Issue(ctx, "42", "short-lived", time.Now().Add(time.Hour), "")
	require.NoError(t, err)
	require.True(t, store.IsActive(ctx, "short-lived"))

	// Age the store past the token's expiry.
	store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	assert.False(t, store.IsActive(ctx, "short-lived"))

	_, found := store.OwnerOf(ctx, "short-lived")
	assert.False(t, found)
	assert.Empty(t, store.ActiveTokensFor(ctx, "42"))
}

func TestLocalStoreRevoke(t *testing.T) {
	store := setupLocalTest(t)
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	t.Run("RevokeIsFinal", func(t *testing.T) {
		require.NoError(t, store.Issue(ctx, "42", "abc", expiry, ""))
		require.True(t, store.IsActive(ctx, "abc"))

		assert.NoError(t, store.Revoke(ctx, "abc"))
		assert.False(t, store.IsActive(ctx, "abc"))
		assert.Empty(t, store.ActiveTokensFor(ctx, "42"))
	})

	t.Run("ReissueResurrects", func(t *testing.T) {
		require.NoError(t, store.Issue(ctx, "42", "abc", expiry, ""))
		assert.True(t, store.IsActive(ctx, "abc"))
	})
}

func TestLocalStoreRevokeAll(t *testing.T) {
	store := setupLocalTest(t)
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	for _, token := range []string{"t1", "t2", "t3"} {
		require.NoError(t, store.Issue(ctx, "42", token, expiry, ""))
	}
	require.NoError(t, store.Issue(ctx, "43", "other", expiry, ""))

	assert.NoError(t, store.RevokeAll(ctx, "42"))

	assert.False(t, store.IsActive(ctx, "t1"))
	assert.False(t, store.IsActive(ctx, "t2"))
	assert.False(t, store.IsActive(ctx, "t3"))
	assert.Empty(t, store.ActiveTokensFor(ctx, "42"))

	// Unrelated owners keep their tokens.
	assert.True(t, store.IsActive(ctx, "other"))
}

func TestLocalStoreIdempotentIssue(t *testing.T) {
	store := setupLocalTest(t)
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	require.NoError(t, store.Issue(ctx, "42", "abc", expiry, "first-device"))
	require.NoError(t, store.Issue(ctx, "42", "abc", expiry, "second-device"))

	records := store.ActiveTokensFor(ctx, "42")
	require.Len(t, records, 1)
	assert.Equal(t, "abc", records[0].Token)
	assert.Equal(t, "second-device", records[0].ClientInfo)
}

func TestLocalStoreCleanup(t *testing.T) {
	store := setupLocalTest(t)
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	require.NoError(t, store.Issue(ctx, "42", "kept", expiry, ""))
	require.NoError(t, store.Issue(ctx, "42", "dropped", expiry, ""))

	// Simulate a record vanishing from the primary cache without the
	// index hearing about it.
	store.cache.Del("dropped")
	store.cache.Wait()

	removed := store.Cleanup(ctx)
	assert.Equal(t, 1, removed)

	records := store.ActiveTokensFor(ctx, "42")
	require.Len(t, records, 1)
	assert.Equal(t, "kept", records[0].Token)

	// A second pass has nothing left to do.
	assert.Equal(t, 0, store.Cleanup(ctx))
}

func TestLocalStoreConcurrency(t *testing.T) {
	store := setupLocalTest(t)
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			owner := fmt.Sprintf("user-%d", n%4)
			for j := 0; j < 50; j++ {
				token := fmt.Sprintf("tok-%d-%d", n, j)
				_ = store.Issue(ctx, owner, token, expiry, "")
				store.IsActive(ctx, token)
				store.ActiveTokensFor(ctx, owner)
				if j%5 == 0 {
					_ = store.Revoke(ctx, token)
				}
			}
		}(i)
	}
	wg.Wait()

	// Every revoked token must read as inactive.
	for i := 0; i < 16; i++ {
		for j := 0; j < 50; j += 5 {
			token := fmt.Sprintf("tok-%d-%d", i, j)
			assert.False(t, store.IsActive(ctx, token))
		}
	}
}
