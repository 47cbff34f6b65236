// Copyright (c) 2025 The chatauth Authors
// SPDX-License-Identifier: BSD-3-Clause

package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/barkline/chatauth/config"
	_ "github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials covers both unknown usernames and wrong
// passwords, so callers cannot tell the two apart.
var ErrInvalidCredentials = errors.New("invalid credentials")

const credentialQuery = "SELECT id, password_hash FROM users WHERE username = $1"

// PostgresRepo verifies login credentials against the users table.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(cfg *config.Config) (*PostgresRepo, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Users.Postgres.Host,
		cfg.Users.Postgres.Port,
		cfg.Users.Postgres.User,
		cfg.Users.Postgres.Password,
		cfg.Users.Postgres.DBName,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("postgres connection failed: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return &PostgresRepo{db: db}, nil
}

// Authenticate returns the user's id when username and password match.
func (r *PostgresRepo) Authenticate(ctx context.Context, username, password string) (string, error) {
	var id, passwordHash string
	err := r.db.QueryRowContext(ctx, credentialQuery, username).Scan(&id, &passwordHash)
	if err == sql.ErrNoRows {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("credential lookup failed: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}
	return id, nil
}

func (r *PostgresRepo) Close() error {
	return r.db.Close()
}
