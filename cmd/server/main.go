// Server runs the OTP authentication API over HTTP and the gRPC health service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	accesscodedomain "github.com/hungle-ag/task-manager-server/internal/accesscode/domain"
	accesscoderepo "github.com/hungle-ag/task-manager-server/internal/accesscode/repository"
	"github.com/hungle-ag/task-manager-server/internal/audit"
	auditrepo "github.com/hungle-ag/task-manager-server/internal/audit/repository"
	"github.com/hungle-ag/task-manager-server/internal/config"
	"github.com/hungle-ag/task-manager-server/internal/db"
	"github.com/hungle-ag/task-manager-server/internal/db/migrate"
	"github.com/hungle-ag/task-manager-server/internal/delivery"
	"github.com/hungle-ag/task-manager-server/internal/devotp"
	devotphandler "github.com/hungle-ag/task-manager-server/internal/devotp/handler"
	healthhandler "github.com/hungle-ag/task-manager-server/internal/health/handler"
	"github.com/hungle-ag/task-manager-server/internal/logger"
	"github.com/hungle-ag/task-manager-server/internal/otp"
	otphandler "github.com/hungle-ag/task-manager-server/internal/otp/handler"
	"github.com/hungle-ag/task-manager-server/internal/otp/issuelock"
	"github.com/hungle-ag/task-manager-server/internal/policy/engine"
	"github.com/hungle-ag/task-manager-server/internal/security"
	"github.com/hungle-ag/task-manager-server/internal/server"
	"github.com/hungle-ag/task-manager-server/internal/server/middleware"
	"github.com/hungle-ag/task-manager-server/internal/telemetry"
	telemetryotel "github.com/hungle-ag/task-manager-server/internal/telemetry/otel"
	"github.com/hungle-ag/task-manager-server/internal/telemetry/producer"
	userrepo "github.com/hungle-ag/task-manager-server/internal/user/repository"
)

const (
	shutdownTimeout     = 10 * time.Second
	healthCheckInterval = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, os.Stdout)
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.ExportConfig{
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("telemetry shutdown")
		}
	}()

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer conn.Close()
	schema, err := migrate.Run(cfg.DatabaseURL, migrate.Options{Direction: "up"})
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info().Uint("version", schema.Version).Bool("dirty", schema.Dirty).Msg("schema migrated")

	tokens, err := security.NewTokenProviderFromConfig(cfg.JWTPrivateKey, cfg.JWTPublicKey, cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
	if err != nil {
		return fmt.Errorf("token provider: %w", err)
	}
	log.Info().Str("alg", tokens.Alg()).Msg("session tokens configured")

	policy, err := newPolicy(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("channel policy: %w", err)
	}

	metrics, err := telemetryotel.NewOTPMetrics(providers.MeterProvider)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	events := telemetry.Fanout{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	if kafka := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.IdentityEventsTopic); kafka != nil {
		defer kafka.Close()
		events = append(events, kafka)
		log.Info().Str("topic", cfg.IdentityEventsTopic).Msg("identity events published to kafka")
	}

	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(conn), middleware.ClientIP, log)

	opts := []otp.Option{
		otp.WithTTL(cfg.OTPTTL()),
		otp.WithThrottleFailOpen(cfg.OTPThrottleFailOpen),
		otp.WithPolicy(policy),
		otp.WithEvents(events),
		otp.WithAuditLogger(auditLogger),
		otp.WithMetrics(metrics),
	}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		lock := issuelock.New(rdb)
		if err := lock.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable; issue lock will follow the throttle fail-open setting")
		}
		opts = append(opts, otp.WithIssueLock(lock))
	}
	var devStore *devotp.MemoryStore
	if cfg.OTPReturnToClient {
		devStore = devotp.NewMemoryStore()
		opts = append(opts, otp.WithDevOTP(devStore))
		log.Warn().Msg("dev OTP mode enabled: passcodes are returned to clients")
	}

	svc := otp.NewService(
		accesscoderepo.NewPostgresRepository(conn),
		userrepo.NewPostgresRepository(conn),
		newDispatcher(cfg, log),
		tokens,
		log,
		opts...,
	)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	healthSrv := healthhandler.NewServer(conn, policy, log)
	routes := server.RouterDeps{
		Logger: log,
		Auth:   otphandler.NewHandler(svc, log),
		Tokens: tokens,
		Health: healthSrv,
	}
	if devStore != nil {
		routes.DevOTP = devotphandler.NewHandler(devStore)
	}
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.NewRouter(routes),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()

	grpcSrv := server.NewGRPCServer(log)
	hs := server.RegisterServices(grpcSrv, server.Deps{})
	go healthSrv.Watch(ctx, hs, healthCheckInterval)
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
		}
		go func() {
			log.Info().Str("addr", cfg.GRPCAddr).Msg("gRPC health server listening")
			if err := grpcSrv.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case runErr = <-errCh:
		log.Error().Err(runErr).Msg("server failed, shutting down")
	}

	hs.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	grpcSrv.GracefulStop()
	// Let in-flight async emits finish before the providers and producer close.
	time.Sleep(telemetry.ShutdownDrainDuration)
	log.Info().Msg("servers stopped")
	return runErr
}

// newPolicy returns the OPA channel policy from CHANNEL_POLICY_FILE, or the built-in policy.
func newPolicy(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*engine.OPAEvaluator, error) {
	if cfg.ChannelPolicyFile != "" {
		return engine.NewOPAEvaluatorFromFile(ctx, cfg.ChannelPolicyFile, log)
	}
	return engine.NewOPAEvaluator(ctx, engine.DefaultRegoPolicy, log)
}

// newDispatcher registers a sender per configured provider. A channel without a provider only logs the
// delivery in dev OTP mode, where the code is readable from the API; otherwise it stays unregistered and
// issuance on it fails with a delivery error.
func newDispatcher(cfg *config.Config, log zerolog.Logger) *delivery.Dispatcher {
	d := delivery.NewDispatcher(log)
	logOnly := cfg.OTPReturnToClient && !cfg.IsProduction()
	if cfg.SMTPHost != "" {
		d.Register(accesscodedomain.ChannelEmail, delivery.NewEmailSender(delivery.EmailConfig{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.SMTPFrom,
		}, cfg.OTPTTL()))
	} else if logOnly {
		log.Warn().Msg("SMTP_HOST not set; email passcodes are only logged")
		d.Register(accesscodedomain.ChannelEmail, delivery.LogSender{Logger: log, Channel: accesscodedomain.ChannelEmail})
	} else {
		log.Warn().Msg("SMTP_HOST not set; email logins will fail")
	}
	if cfg.SMSLocalAPIKey != "" {
		d.Register(accesscodedomain.ChannelSMS, delivery.NewSMSLocalClient(cfg.SMSLocalAPIKey, cfg.SMSLocalBaseURL, cfg.SMSLocalSender))
	} else if logOnly {
		log.Warn().Msg("SMS_LOCAL_API_KEY not set; SMS passcodes are only logged")
		d.Register(accesscodedomain.ChannelSMS, delivery.LogSender{Logger: log, Channel: accesscodedomain.ChannelSMS})
	} else {
		log.Warn().Msg("SMS_LOCAL_API_KEY not set; phone logins will fail")
	}
	return d
}
