// Copyright (c) 2025 The chatauth Authors
// SPDX-License-Identifier: BSD-3-Clause

package tokenstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/rs/zerolog/log"
)

// LocalConfig holds tuning knobs for the in-process backend.
type LocalConfig struct {
	// MaxEntries bounds the number of tracked tokens. Beyond it the cache
	// evicts, which callers cannot distinguish from natural expiry.
	MaxEntries int64

	// MaxTTL caps how long a record may live regardless of its expiry.
	MaxTTL time.Duration
}

// DefaultLocalConfig returns production defaults: 100k tokens, 24h cap.
func DefaultLocalConfig() LocalConfig {
	return LocalConfig{
		MaxEntries: 100_000,
		MaxTTL:     24 * time.Hour,
	}
}

// LocalStore is the single-process TokenStore backend: an expiring
// token->record cache plus a secondary owner->tokens index. The cache's
// eviction callback is the only place TTL and capacity evictions remove
// index entries, so the index can never permanently outlive a record.
type LocalStore struct {
	cache *ristretto.Cache[string, TokenRecord]
	cfg   LocalConfig

	mu    sync.RWMutex
	owned map[string][]string

	now func() time.Time
}

// NewLocalStore builds the in-process backend.
func NewLocalStore(cfg LocalConfig) (*LocalStore, error) {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultLocalConfig().MaxEntries
	}
	if cfg.MaxTTL <= 0 {
		cfg.MaxTTL = DefaultLocalConfig().MaxTTL
	}

	s := &LocalStore{
		cfg:   cfg,
		owned: make(map[string][]string),
		now:   time.Now,
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, TokenRecord]{
		NumCounters: cfg.MaxEntries * 10,
		MaxCost:     cfg.MaxEntries,
		BufferItems: 64,
		OnEvict:     s.onEvict,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token cache: %w", err)
	}
	s.cache = cache

	return s, nil
}

// onEvict keeps the owner index consistent with the primary cache for
// TTL and capacity evictions.
func (s *LocalStore) onEvict(item *ristretto.Item[TokenRecord]) {
	rec := item.Value
	if rec.Token == "" {
		return
	}
	s.removeFromIndex(rec.Owner, rec.Token)
	log.Debug().
		Str("token", tokenPrefix(rec.Token)).
		Str("owner", rec.Owner).
		Msg("token evicted from cache")
}

func (s *LocalStore) Issue(ctx context.Context, owner, token string, expiresAt time.Time, clientInfo string) error {
	now := s.now()
	ttl := expiresAt.Sub(now)
	if token == "" || ttl <= 0 {
		log.Warn().
			Str("owner", owner).
			Dur("ttl", ttl).
			Msg("skipping issuance of empty or already-expired token")
		return nil
	}
	if ttl > s.cfg.MaxTTL {
		ttl = s.cfg.MaxTTL
	}

	rec := TokenRecord{
		Owner:      owner,
		Token:      token,
		IssuedAt:   now,
		ExpiresAt:  expiresAt,
		ClientInfo: clientInfo,
	}

	// Record first, index second: a reader that sees the index entry
	// before the record simply filters it out.
	s.cache.SetWithTTL(token, rec, 1, ttl)
	s.cache.Wait()

	s.addToIndex(owner, token)

	log.Debug().Str("owner", owner).Msg("token issued")
	return nil
}

func (s *LocalStore) IsActive(ctx context.Context, token string) bool {
	rec, found := s.cache.Get(token)
	if !found {
		return false
	}
	if !rec.Valid(s.now()) {
		s.remove(rec)
		return false
	}
	return true
}

func (s *LocalStore) OwnerOf(ctx context.Context, token string) (string, bool) {
	rec, found := s.cache.Get(token)
	if !found || !rec.Valid(s.now()) {
		return "", false
	}
	return rec.Owner, true
}

func (s *LocalStore) Revoke(ctx context.Context, token string) error {
	rec, found := s.cache.Get(token)
	if !found {
		return nil
	}
	s.remove(rec)
	log.Debug().Str("token", tokenPrefix(token)).Msg("token revoked")
	return nil
}

func (s *LocalStore) RevokeAll(ctx context.Context, owner string) error {
	s.mu.RLock()
	tokens := s.owned[owner]
	s.mu.RUnlock()

	for _, token := range tokens {
		s.cache.Del(token)
	}
	// A RevokeAll caller must observe its own revocations immediately.
	s.cache.Wait()

	s.mu.Lock()
	delete(s.owned, owner)
	s.mu.Unlock()

	log.Debug().Str("owner", owner).Int("count", len(tokens)).Msg("all tokens revoked")
	return nil
}

func (s *LocalStore) ActiveTokensFor(ctx context.Context, owner string) []TokenRecord {
	s.mu.RLock()
	tokens := s.owned[owner]
	s.mu.RUnlock()

	now := s.now()
	records := make([]TokenRecord, 0, len(tokens))
	for _, token := range tokens {
		rec, found := s.cache.Get(token)
		if found && rec.Valid(now) {
			records = append(records, rec)
		}
	}
	return records
}

// Cleanup drops index entries whose primary record is gone and returns
// how many were removed. Valid records are never touched.
func (s *LocalStore) Cleanup(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for owner, tokens := range s.owned {
		live := make([]string, 0, len(tokens))
		for _, token := range tokens {
			if _, found := s.cache.Get(token); found {
				live = append(live, token)
			} else {
				removed++
			}
		}
		switch {
		case len(live) == 0:
			delete(s.owned, owner)
		case len(live) != len(tokens):
			s.owned[owner] = live
		}
	}
	return removed
}

func (s *LocalStore) Close() error {
	s.cache.Clear()
	s.cache.Close()
	return nil
}

// remove deletes a record and its index membership. Used by the explicit
// revocation paths; TTL and capacity evictions go through onEvict instead.
func (s *LocalStore) remove(rec TokenRecord) {
	s.cache.Del(rec.Token)
	s.cache.Wait()
	s.removeFromIndex(rec.Owner, rec.Token)
}

// addToIndex records token under owner, replacing the slice rather than
// mutating it so concurrent readers never observe a partial update.
func (s *LocalStore) addToIndex(owner, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.owned[owner]
	next := make([]string, 0, len(current)+1)
	for _, t := range current {
		if t != token {
			next = append(next, t)
		}
	}
	next = append(next, token)
	s.owned[owner] = next
}

func (s *LocalStore) removeFromIndex(owner, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.owned[owner]
	if !ok {
		return
	}
	next := make([]string, 0, len(current))
	for _, t := range current {
		if t != token {
			next = append(next, t)
		}
	}
	if len(next) == 0 {
		delete(s.owned, owner)
	} else {
		s.owned[owner] = next
	}
}

// tokenPrefix truncates a token for log output.
func tokenPrefix(token string) string {
	if len(token) <= 10 {
		return token
	}
	return token[:10] + "..."
}
