// Copyright (c) 2025 The chatauth Authors
// SPDX-License-Identifier: BSD-3-Clause

package tokenstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisConfig holds connection settings for the distributed backend.
type RedisConfig struct {
	Host      string
	Port      int
	DB        int
	Password  string
	Namespace string
}

// RedisStore is the multi-process TokenStore backend. Every token is a
// separate key with its remaining lifetime as TTL, mirrored under the
// owner's namespace for reverse enumeration. Revocations additionally
// write a deny-list entry whose TTL equals the token's remaining life,
// closing the gap between "revoke requested" and natural expiry across
// replicas.
//
// Read paths fail closed: if Redis cannot be reached, the token is
// reported inactive. Write paths surface a TokenStoreError.
type RedisStore struct {
	client *redis.Client
	ns     string

	now func() time.Time
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	ns := cfg.Namespace
	if ns == "" {
		ns = "chatauth"
	}

	return &RedisStore{
		client: client,
		ns:     ns,
		now:    time.Now,
	}, nil
}

func (s *RedisStore) tokenKey(token string) string {
	return s.ns + ":token:" + token
}

func (s *RedisStore) ownerKey(owner, token string) string {
	return s.ns + ":owner:" + owner + ":" + token
}

func (s *RedisStore) ownerPattern(owner string) string {
	return s.ns + ":owner:" + owner + ":*"
}

func (s *RedisStore) denyKey(token string) string {
	return s.ns + ":denylist:" + token
}

func (s *RedisStore) denyPattern() string {
	return s.ns + ":denylist:*"
}

func (s *RedisStore) Issue(ctx context.Context, owner, token string, expiresAt time.Time, clientInfo string) error {
	now := s.now()
	ttl := expiresAt.Sub(now)
	if token == "" || ttl <= 0 {
		log.Warn().
			Str("owner", owner).
			Dur("ttl", ttl).
			Msg("skipping issuance of empty or already-expired token")
		return nil
	}

	rec := TokenRecord{
		Owner:      owner,
		Token:      token,
		IssuedAt:   now,
		ExpiresAt:  expiresAt,
		ClientInfo: clientInfo,
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return &TokenStoreError{Op: "issue", Err: err}
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.tokenKey(token), payload, ttl)
	pipe.Set(ctx, s.ownerKey(owner, token), payload, ttl)
	// A legitimately re-issued token must be honored again, so any
	// leftover deny-list entry for the same string is cleared.
	pipe.Del(ctx, s.denyKey(token))
	if _, err := pipe.Exec(ctx); err != nil {
		return &TokenStoreError{Op: "issue", Err: err}
	}

	log.Debug().Str("owner", owner).Msg("token issued")
	return nil
}

func (s *RedisStore) IsActive(ctx context.Context, token string) bool {
	rec, found := s.lookup(ctx, token)
	return found && rec.Valid(s.now())
}

func (s *RedisStore) OwnerOf(ctx context.Context, token string) (string, bool) {
	rec, found := s.lookup(ctx, token)
	if !found || !rec.Valid(s.now()) {
		return "", false
	}
	return rec.Owner, true
}

// lookup fetches a token's record, honoring the deny-list first so a
// revocation always wins over a stale primary entry. Any backend failure
// reads as "not found".
func (s *RedisStore) lookup(ctx context.Context, token string) (TokenRecord, bool) {
	denied, err := s.client.Exists(ctx, s.denyKey(token)).Result()
	if err != nil {
		log.Warn().Err(err).Msg("deny-list check failed, failing closed")
		return TokenRecord{}, false
	}
	if denied == 1 {
		return TokenRecord{}, false
	}

	payload, err := s.client.Get(ctx, s.tokenKey(token)).Bytes()
	if err == redis.Nil {
		return TokenRecord{}, false
	}
	if err != nil {
		log.Warn().Err(err).Msg("token lookup failed, failing closed")
		return TokenRecord{}, false
	}

	var rec TokenRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		log.Warn().Err(err).Str("token", tokenPrefix(token)).Msg("corrupt token record")
		return TokenRecord{}, false
	}
	return rec, true
}

func (s *RedisStore) Revoke(ctx context.Context, token string) error {
	payload, err := s.client.Get(ctx, s.tokenKey(token)).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return &TokenStoreError{Op: "revoke", Err: err}
	}

	var rec TokenRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		log.Warn().Err(err).Str("token", tokenPrefix(token)).Msg("dropping corrupt token record")
		s.client.Del(ctx, s.tokenKey(token))
		return nil
	}

	if err := s.denylist(ctx, rec); err != nil {
		return &TokenStoreError{Op: "revoke", Err: err}
	}
	if err := s.client.Del(ctx, s.tokenKey(token), s.ownerKey(rec.Owner, token)).Err(); err != nil {
		return &TokenStoreError{Op: "revoke", Err: err}
	}

	log.Debug().Str("token", tokenPrefix(token)).Msg("token revoked")
	return nil
}

func (s *RedisStore) RevokeAll(ctx context.Context, owner string) error {
	var stale []string

	iter := s.client.Scan(ctx, 0, s.ownerPattern(owner), 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		payload, err := s.client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return &TokenStoreError{Op: "revoke_all", Err: err}
		}

		var rec TokenRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("dropping corrupt token record")
			stale = append(stale, key)
			continue
		}

		// Deny-list before delete: a crash mid-loop leaves the token
		// revoked even if its keys survive until natural expiry.
		if err := s.denylist(ctx, rec); err != nil {
			return &TokenStoreError{Op: "revoke_all", Err: err}
		}
		stale = append(stale, key, s.tokenKey(rec.Token))
	}
	if err := iter.Err(); err != nil {
		return &TokenStoreError{Op: "revoke_all", Err: err}
	}

	if len(stale) > 0 {
		if err := s.client.Del(ctx, stale...).Err(); err != nil {
			return &TokenStoreError{Op: "revoke_all", Err: err}
		}
	}

	log.Debug().Str("owner", owner).Int("count", len(stale)/2).Msg("all tokens revoked")
	return nil
}

func (s *RedisStore) ActiveTokensFor(ctx context.Context, owner string) []TokenRecord {
	var records []TokenRecord
	now := s.now()

	iter := s.client.Scan(ctx, 0, s.ownerPattern(owner), 100).Iterator()
	for iter.Next(ctx) {
		payload, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}

		var rec TokenRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			continue
		}
		if !rec.Valid(now) {
			continue
		}

		denied, err := s.client.Exists(ctx, s.denyKey(rec.Token)).Result()
		if err != nil || denied == 1 {
			continue
		}
		records = append(records, rec)
	}
	if err := iter.Err(); err != nil {
		log.Warn().Err(err).Str("owner", owner).Msg("active token enumeration failed")
	}
	return records
}

// Cleanup drains deny-list entries that no longer protect anything:
// entries whose key already vanished between scan and inspection, and
// entries missing a TTL, which would otherwise live forever. Tokens'
// primary keys are never touched.
func (s *RedisStore) Cleanup(ctx context.Context) int {
	removed := 0

	iter := s.client.Scan(ctx, 0, s.denyPattern(), 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		ttl, err := s.client.PTTL(ctx, key).Result()
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("deny-list TTL check failed")
			continue
		}
		if ttl < 0 {
			if err := s.client.Del(ctx, key).Err(); err == nil {
				removed++
			}
		}
	}
	if err := iter.Err(); err != nil {
		log.Warn().Err(err).Msg("deny-list cleanup scan failed")
	}

	if removed > 0 {
		log.Info().Int("count", removed).Msg("cleaned up expired deny-list entries")
	}
	return removed
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// denylist marks a record's token as revoked for its remaining lifetime.
// Sizing the entry to the remaining TTL means it can never outlive the
// token it suppresses.
func (s *RedisStore) denylist(ctx context.Context, rec TokenRecord) error {
	remaining := rec.ExpiresAt.Sub(s.now())
	if remaining <= 0 {
		return nil
	}
	return s.client.Set(ctx, s.denyKey(rec.Token), "revoked", remaining).Err()
}
