// Copyright (c) 2025 The chatauth Authors
// SPDX-License-Identifier: BSD-3-Clause

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Backend names recognized for auth.backend.
const (
	BackendLocal       = "local"
	BackendDistributed = "distributed"
)

type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`

	Auth struct {
		// Backend selects the token store: "local" for the in-process
		// cache with no cross-instance visibility, "distributed" for
		// the shared Redis store.
		Backend  string `yaml:"backend"`
		TokenTTL int    `yaml:"token_ttl"` // seconds

		JWT struct {
			Secret string `yaml:"secret"`
			Issuer string `yaml:"issuer"`
		} `yaml:"jwt"`

		Local struct {
			MaxEntries int64 `yaml:"max_entries"`
			MaxTTL     int   `yaml:"max_ttl"` // seconds
		} `yaml:"local"`

		Redis struct {
			Host      string `yaml:"host"`
			Port      int    `yaml:"port"`
			DB        int    `yaml:"db"`
			Password  string `yaml:"password"`
			Namespace string `yaml:"namespace"`
		} `yaml:"redis"`

		Janitor struct {
			Enabled  bool `yaml:"enabled"`
			Interval int  `yaml:"interval"` // seconds
		} `yaml:"janitor"`
	} `yaml:"auth"`

	Users struct {
		Postgres struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			User     string `yaml:"user"`
			Password string `yaml:"password"`
			DBName   string `yaml:"dbname"`
		} `yaml:"postgres"`
	} `yaml:"users"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Set defaults if not specified
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.Host == "" {
		config.Server.Host = "localhost"
	}
	if config.Auth.Backend == "" {
		config.Auth.Backend = BackendLocal
	}
	if config.Auth.TokenTTL == 0 {
		config.Auth.TokenTTL = 86400
	}
	if config.Auth.JWT.Issuer == "" {
		config.Auth.JWT.Issuer = "chatauth"
	}
	if config.Auth.Local.MaxEntries == 0 {
		config.Auth.Local.MaxEntries = 100_000
	}
	if config.Auth.Local.MaxTTL == 0 {
		config.Auth.Local.MaxTTL = 86400
	}
	if config.Auth.Redis.Port == 0 {
		config.Auth.Redis.Port = 6379
	}
	if config.Auth.Redis.Namespace == "" {
		config.Auth.Redis.Namespace = "chatauth"
	}
	if config.Auth.Janitor.Interval == 0 {
		config.Auth.Janitor.Interval = 600
	}
	if config.Metrics.Path == "" {
		config.Metrics.Path = "/metrics"
	}

	if config.Auth.Backend != BackendLocal && config.Auth.Backend != BackendDistributed {
		return nil, fmt.Errorf("unknown auth backend %q (want %q or %q)",
			config.Auth.Backend, BackendLocal, BackendDistributed)
	}

	return config, nil
}
