// Copyright (c) 2025 The chatauth Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/barkline/chatauth/codec"
	"github.com/barkline/chatauth/config"
	"github.com/barkline/chatauth/middleware"
	"github.com/barkline/chatauth/tokenstore"
	"github.com/barkline/chatauth/users"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

var (
	configFile = flag.String("config", "config.yaml", "Path to configuration file")
	debug      = flag.Bool("debug", false, "Enable debug logging")
)

// @title           Chatauth Service
// @version         1.0
// @description     Authentication service issuing, validating and revoking bearer access tokens.
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
func main() {
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	store, err := newTokenStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize token store")
	}
	defer store.Close()
	log.Info().Str("backend", cfg.Auth.Backend).Msg("token store initialized")

	var janitor *tokenstore.Janitor
	if cfg.Auth.Janitor.Enabled {
		janitor = tokenstore.NewJanitor(store, time.Duration(cfg.Auth.Janitor.Interval)*time.Second)
		janitor.Start()
		defer janitor.Stop()
	}

	userRepo, err := users.NewPostgresRepo(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to user database")
	}
	defer userRepo.Close()

	jwtCodec := codec.NewJWT(cfg.Auth.JWT.Secret, cfg.Auth.JWT.Issuer)
	service := NewAuthService(cfg, jwtCodec, store, userRepo)
	authMiddleware := middleware.NewAuthMiddleware(jwtCodec, store)

	r := gin.Default()

	r.POST("/api/auth/login", service.LoginHandler)
	r.POST("/api/auth/logout", authMiddleware.Handler(), service.LogoutHandler)
	r.POST("/api/auth/logout-all", authMiddleware.Handler(), service.LogoutAllHandler)
	r.GET("/api/auth/sessions", authMiddleware.Handler(), service.SessionsHandler)

	// These endpoints remain public
	r.GET("/health", healthCheck)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Add Prometheus metrics endpoint if enabled
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info().Str("addr", addr).Msg("Starting server")
	if err := r.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("Server exited")
	}
}

// newTokenStore builds the backend selected in the configuration.
func newTokenStore(cfg *config.Config) (tokenstore.TokenStore, error) {
	switch cfg.Auth.Backend {
	case config.BackendDistributed:
		return tokenstore.NewRedisStore(tokenstore.RedisConfig{
			Host:      cfg.Auth.Redis.Host,
			Port:      cfg.Auth.Redis.Port,
			DB:        cfg.Auth.Redis.DB,
			Password:  cfg.Auth.Redis.Password,
			Namespace: cfg.Auth.Redis.Namespace,
		})
	case config.BackendLocal:
		return tokenstore.NewLocalStore(tokenstore.LocalConfig{
			MaxEntries: cfg.Auth.Local.MaxEntries,
			MaxTTL:     time.Duration(cfg.Auth.Local.MaxTTL) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown auth backend %q", cfg.Auth.Backend)
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status"`
}

// @Summary     Health check endpoint
// @Description Get API health status
// @Tags        health
// @Produce     json
// @Success     200 {object} HealthResponse
// @Router      /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(200, HealthResponse{Status: "ok"})
}
