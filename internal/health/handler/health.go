// Package handler reports service health over HTTP and keeps the gRPC health service in sync.
package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// checkTimeout bounds each dependency check.
const checkTimeout = 2 * time.Second

// Pinger is used for readiness (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker is used for readiness (e.g. the OPA channel policy).
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server checks the database and the channel policy.
type Server struct {
	pinger Pinger
	policy PolicyChecker
	logger zerolog.Logger
}

// NewServer returns a health Server. pinger and policy may be nil; the matching check is then skipped.
func NewServer(pinger Pinger, policy PolicyChecker, logger zerolog.Logger) *Server {
	return &Server{pinger: pinger, policy: policy, logger: logger}
}

// Check returns nil when every configured dependency is healthy.
func (s *Server) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if s.pinger != nil {
		if err := s.pinger.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if s.policy != nil {
		if err := s.policy.HealthCheck(ctx); err != nil {
			return fmt.Errorf("policy: %w", err)
		}
	}
	return nil
}

// Liveness handles GET /healthz. It does not touch dependencies.
func (s *Server) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness handles GET /readyz.
func (s *Server) Readiness(c *gin.Context) {
	if err := s.Check(c.Request.Context()); err != nil {
		s.logger.Warn().Err(err).Msg("readiness check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Sync sets the overall status of hs from one Check.
func (s *Server) Sync(ctx context.Context, hs *health.Server) {
	status := healthpb.HealthCheckResponse_SERVING
	if err := s.Check(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("health check failed")
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.SetServingStatus("", status)
}

// Watch calls Sync every interval until ctx is done.
func (s *Server) Watch(ctx context.Context, hs *health.Server, interval time.Duration) {
	s.Sync(ctx, hs)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sync(ctx, hs)
		}
	}
}
