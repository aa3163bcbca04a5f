package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ComUnity/signup-risk-gate/internal/client"
	"github.com/ComUnity/signup-risk-gate/internal/config"
	"github.com/ComUnity/signup-risk-gate/internal/handler"
	"github.com/ComUnity/signup-risk-gate/internal/metrics"
	"github.com/ComUnity/signup-risk-gate/internal/middleware"
	"github.com/ComUnity/signup-risk-gate/internal/service"
	"github.com/ComUnity/signup-risk-gate/internal/telemetry"
	"github.com/ComUnity/signup-risk-gate/internal/util/logger"
)

var version = "development"

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/app-config.yaml"
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		panic(fmt.Errorf("failed to load config: %w", err))
	}
	logger.ReplaceGlobal(&logger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Encoding,
		Output: os.Stdout,
	})
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsConfig, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.AWS.Region))
	if err != nil {
		logger.Fatalf("Failed to load AWS config: %v", err)
	}

	if config.HasReferences(cfg) {
		loadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := config.ResolveReferences(loadCtx, cfg, config.Resolvers{
			Params:  config.NewSSMLoader(awsConfig),
			Secrets: config.NewAWSSecretsLoader(awsConfig),
			KMS:     config.NewKMSDecrypter(awsConfig, map[string]string{"service": "signup-risk-gate"}),
		})
		cancel()
		if err != nil {
			logger.Fatalf("Failed to resolve config references: %v", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	shipper, err := telemetry.NewKafkaAuditShipper(cfg.Telemetry.Kafka)
	if err != nil {
		logger.Fatalf("Failed to create audit shipper: %v", err)
	}
	shipper.Start()

	oracle := client.NewFraudDetectorClient(awsConfig, client.FraudDetectorConfig{
		Timeout:     cfg.Oracle.Timeout,
		MaxAttempts: cfg.Oracle.MaxAttempts,
		MaxBackoff:  cfg.Oracle.MaxBackoff,
		Endpoint:    cfg.AWS.Endpoint,
		CircuitBreaker: client.CircuitBreakerConfig{
			Enabled:      cfg.Oracle.CircuitBreaker.Enabled,
			FailureRatio: cfg.Oracle.CircuitBreaker.FailureRatio,
			RecoveryTime: cfg.Oracle.CircuitBreaker.RecoveryTime,
			MinRequests:  cfg.Oracle.CircuitBreaker.MinRequests,
		},
	}, m)

	gate, err := service.NewRiskGate(oracle, service.RiskGateConfig{
		Detector: service.DetectorSettings{
			DetectorID:      cfg.Detector.ID,
			DetectorVersion: cfg.Detector.Version,
			EventTypeName:   cfg.Detector.EventTypeName,
			EntityType:      cfg.Detector.EntityType,
		},
		BlockOutcome: cfg.Verdict.BlockOutcome,
		ScoreName:    cfg.Verdict.ScoreName,
		EmailPepper:  []byte(cfg.Telemetry.EmailPepper),
	},
		service.WithAuditPublisher(shipper),
		service.WithDecisionRecorder(m),
	)
	if err != nil {
		logger.Fatalf("Failed to create risk gate: %v", err)
	}

	var auth *middleware.AuthConfig
	if cfg.Auth.Enabled {
		auth = &middleware.AuthConfig{
			SigningKey: []byte(cfg.Auth.SigningKey),
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
			ClockSkew:  cfg.Auth.ClockSkew,
		}
	} else {
		logger.Warnf("Caller authentication disabled; %s must only be reachable from trusted callers", "/v1/signup/verify")
	}

	router := handler.NewRouter(handler.RouterConfig{
		Signup: handler.NewSignupHandler(gate),
		Health: handler.NewHealthHandler(cfg.Env, version,
			handler.BreakerChecker{State: oracle.CircuitBreakerState},
			handler.AuditChecker{Shipper: shipper},
		),
		Network: middleware.NetworkConfig{
			TrustedProxyIPHeaders: cfg.Network.TrustedProxyIPHeaders,
			TrustedProxyCIDRs:     cfg.Network.TrustedProxyCIDRs,
		},
		Auth:     auth,
		Gatherer: prometheus.DefaultGatherer,
		// Leave room for every SDK attempt plus JSON handling.
		RequestTimeout: cfg.Oracle.Timeout + 2*time.Second,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.Oracle.Timeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Infof("Starting signup risk gate %s on %s (detector %s v%s)", version, addr, cfg.Detector.ID, cfg.Detector.Version)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()

	logger.Infof("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown error: %v", err)
	}
	shipper.Stop(shutdownCtx)

	logger.Infof("Shutdown complete")
}
