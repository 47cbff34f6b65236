// Copyright (c) 2025 The chatauth Authors
// SPDX-License-Identifier: BSD-3-Clause

package tokenstore

import (
	"context"
	"sync"
	"time"
)

// MockStore is a map-backed TokenStore for tests.
type MockStore struct {
	mu      sync.Mutex
	records map[string]TokenRecord

	// CleanupCalls counts Cleanup invocations, for janitor tests.
	CleanupCalls int
}

func NewMockStore() *MockStore {
	return &MockStore{
		records: make(map[string]TokenRecord),
	}
}

func (m *MockStore) Issue(ctx context.Context, owner, token string, expiresAt time.Time, clientInfo string) error {
	if token == "" || !expiresAt.After(time.Now()) {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[token] = TokenRecord{
		Owner:      owner,
		Token:      token,
		IssuedAt:   time.Now(),
		ExpiresAt:  expiresAt,
		ClientInfo: clientInfo,
	}
	return nil
}

func (m *MockStore) IsActive(ctx context.Context, token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[token]
	return ok && rec.Valid(time.Now())
}

func (m *MockStore) OwnerOf(ctx context.Context, token string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[token]
	if !ok || !rec.Valid(time.Now()) {
		return "", false
	}
	return rec.Owner, true
}

func (m *MockStore) Revoke(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, token)
	return nil
}

func (m *MockStore) RevokeAll(ctx context.Context, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for token, rec := range m.records {
		if rec.Owner == owner {
			delete(m.records, token)
		}
	}
	return nil
}

func (m *MockStore) ActiveTokensFor(ctx context.Context, owner string) []TokenRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var records []TokenRecord
	now := time.Now()
	for _, rec := range m.records {
		if rec.Owner == owner && rec.Valid(now) {
			records = append(records, rec)
		}
	}
	return records
}

func (m *MockStore) Cleanup(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CleanupCalls++
	removed := 0
	now := time.Now()
	for token, rec := range m.records {
		if !rec.Valid(now) {
			delete(m.records, token)
			removed++
		}
	}
	return removed
}

func (m *MockStore) Close() error {
	return nil
}
