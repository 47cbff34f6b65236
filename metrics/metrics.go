// Copyright (c) 2025 The chatauth Authors
// SPDX-License-Identifier: BSD-3-Clause

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TokensIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatauth_tokens_issued_total",
		Help: "Total number of access tokens issued",
	})

	TokensRevoked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatauth_tokens_revoked_total",
		Help: "Total number of access tokens revoked",
	}, []string{"scope"}) // single or all

	TokenChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatauth_token_checks_total",
		Help: "Token activity checks by outcome",
	}, []string{"result"}) // active or inactive

	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatauth_login_attempts_total",
		Help: "Login attempts by outcome",
	}, []string{"status"})

	CleanupRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatauth_cleanup_removed_total",
		Help: "Stale entries removed by token store cleanup passes",
	})
)
