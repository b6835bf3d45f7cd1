package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	devotphandler "github.com/hungle-ag/task-manager-server/internal/devotp/handler"
	healthhandler "github.com/hungle-ag/task-manager-server/internal/health/handler"
	otphandler "github.com/hungle-ag/task-manager-server/internal/otp/handler"
	"github.com/hungle-ag/task-manager-server/internal/server/middleware"
)

// RouterDeps holds the HTTP handlers and their shared dependencies.
type RouterDeps struct {
	Logger zerolog.Logger
	// Auth serves /api/auth. Required.
	Auth *otphandler.Handler
	// Tokens validates session tokens for protected routes. If nil, GET /api/auth/me is not mounted.
	Tokens middleware.SessionValidator
	// Health serves /healthz and /readyz. If nil, only a static /healthz is mounted.
	Health *healthhandler.Server
	// DevOTP serves /api/dev. Set only when dev OTP mode is enabled.
	DevOTP *devotphandler.Handler
}

// NewRouter builds the gin engine with request logging, panic recovery and all routes.
func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(deps.Logger), middleware.ClientIPContext())

	if deps.Health != nil {
		r.GET("/healthz", deps.Health.Liveness)
		r.GET("/readyz", deps.Health.Readiness)
	} else {
		r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	}

	var auth gin.HandlerFunc
	if deps.Tokens != nil {
		auth = middleware.BearerAuth(deps.Tokens)
	}
	if deps.Auth != nil {
		deps.Auth.Register(r.Group("/api/auth"), auth)
	}
	if deps.DevOTP != nil {
		deps.DevOTP.Register(r.Group("/api/dev"))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Not found"})
	})
	return r
}
