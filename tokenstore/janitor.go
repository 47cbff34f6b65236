// Copyright (c) 2025 The chatauth Authors
// SPDX-License-Identifier: BSD-3-Clause

package tokenstore

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/barkline/chatauth/metrics"
)

// Janitor periodically runs a store's Cleanup: reconciling the owner
// index in the local backend, draining dead deny-list entries in the
// distributed one.
type Janitor struct {
	store    TokenStore
	interval time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewJanitor builds a janitor for the given store. A non-positive
// interval defaults to 10 minutes.
func NewJanitor(store TokenStore, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Janitor{
		store:    store,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the cleanup loop in its own goroutine.
func (j *Janitor) Start() {
	go j.run()
}

func (j *Janitor) run() {
	defer close(j.done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := j.store.Cleanup(context.Background())
			if removed > 0 {
				metrics.CleanupRemoved.Add(float64(removed))
				log.Info().Int("removed", removed).Msg("janitor pass completed")
			}
		case <-j.stop:
			return
		}
	}
}

// Stop terminates the loop and waits for the in-flight pass, if any, to
// finish. Safe to call more than once.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() {
		close(j.stop)
	})
	<-j.done
}
