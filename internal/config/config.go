package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

type Config struct {
	Env    string       `yaml:"env" env:"APP_ENV"`
	Port   int          `yaml:"port" env:"PORT"`
	Logger LoggerConfig `yaml:"logger"`

	AWS      AWSConfig      `yaml:"aws"`
	Detector DetectorConfig `yaml:"detector"`
	Oracle   OracleConfig   `yaml:"oracle"`
	Verdict  VerdictConfig  `yaml:"verdict"`

	Auth      AuthConfig      `yaml:"auth"`
	Network   NetworkConfig   `yaml:"network"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type LoggerConfig struct {
	Level    string `yaml:"level" env:"LOG_LEVEL"`
	Encoding string `yaml:"encoding" env:"LOG_ENCODING"`
}

type AWSConfig struct {
	Region string `yaml:"region" env:"AWS_REGION"`
	// Endpoint overrides the Fraud Detector endpoint (local stacks, VPC endpoints).
	Endpoint string `yaml:"endpoint" env:"FRAUD_DETECTOR_ENDPOINT"`
}

// DetectorConfig identifies the Fraud Detector detector. Constant per deployment.
type DetectorConfig struct {
	ID            string `yaml:"id" env:"FRAUD_DETECTOR_NAME"`
	Version       string `yaml:"version" env:"FRAUD_DETECTOR_VERSION"`
	EventTypeName string `yaml:"event_type_name" env:"FRAUD_DETECTOR_EVENT_NAME"`
	EntityType    string `yaml:"entity_type"`
}

type OracleConfig struct {
	Timeout        time.Duration        `yaml:"timeout" env:"ORACLE_TIMEOUT"`
	MaxAttempts    int                  `yaml:"max_attempts" env:"ORACLE_MAX_ATTEMPTS"`
	MaxBackoff     time.Duration        `yaml:"max_backoff"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `yaml:"enabled"`
	FailureRatio float64       `yaml:"failure_ratio"`
	RecoveryTime time.Duration `yaml:"recovery_time"`
	MinRequests  uint64        `yaml:"min_requests"`
}

type VerdictConfig struct {
	BlockOutcome string `yaml:"block_outcome"`
	// ScoreName selects the model score to report. Empty picks the
	// lexicographically smallest score name.
	ScoreName string `yaml:"score_name" env:"FRAUD_DETECTOR_SCORE_NAME"`
}

type AuthConfig struct {
	Enabled    bool          `yaml:"enabled" env:"AUTH_ENABLED"`
	SigningKey string        `yaml:"signing_key" env:"AUTH_SIGNING_KEY"`
	Issuer     string        `yaml:"issuer"`
	Audience   string        `yaml:"audience"`
	ClockSkew  time.Duration `yaml:"clock_skew"`
}

type NetworkConfig struct {
	TrustedProxyIPHeaders []string `yaml:"trusted_proxy_ip_headers"`
	TrustedProxyCIDRs     []string `yaml:"trusted_proxy_cidrs"`
}

type TelemetryConfig struct {
	// EmailPepper keys the hash applied to emails in audit events.
	EmailPepper string           `yaml:"email_pepper" env:"AUDIT_EMAIL_PEPPER"`
	Kafka       KafkaAuditConfig `yaml:"kafka"`
}

type KafkaAuditConfig struct {
	Enabled       bool          `yaml:"enabled" env:"KAFKA_AUDIT_ENABLED"`
	Brokers       []string      `yaml:"brokers" env:"KAFKA_BROKERS"`
	Topic         string        `yaml:"topic"`
	BatchSize     int           `yaml:"batch_size"`
	FlushEvery    time.Duration `yaml:"flush_every"`
	QueueCapacity int           `yaml:"queue_capacity"`
	DialTimeout   time.Duration `yaml:"dial_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	TLS           bool          `yaml:"tls"`
}

// ApplyDefaults fills zero values with production defaults.
func (c *Config) ApplyDefaults() {
	if c.Env == "" {
		c.Env = "development"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Encoding == "" {
		c.Logger.Encoding = "json"
	}
	if c.Detector.EntityType == "" {
		c.Detector.EntityType = "customer"
	}
	if c.Oracle.Timeout <= 0 {
		c.Oracle.Timeout = 3 * time.Second
	}
	if c.Oracle.MaxAttempts <= 0 {
		c.Oracle.MaxAttempts = 3
	}
	if c.Oracle.MaxBackoff <= 0 {
		c.Oracle.MaxBackoff = 500 * time.Millisecond
	}
	cb := &c.Oracle.CircuitBreaker
	if cb.FailureRatio <= 0 {
		cb.FailureRatio = 0.5
	}
	if cb.RecoveryTime <= 0 {
		cb.RecoveryTime = 30 * time.Second
	}
	if cb.MinRequests == 0 {
		cb.MinRequests = 10
	}
	if c.Verdict.BlockOutcome == "" {
		c.Verdict.BlockOutcome = "high_risk"
	}
	if c.Auth.ClockSkew <= 0 {
		c.Auth.ClockSkew = 30 * time.Second
	}
	if c.Telemetry.Kafka.Topic == "" {
		c.Telemetry.Kafka.Topic = "signup-risk-decisions"
	}
}

// Validate checks the settings the gate cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.Detector.ID == "" {
		errs = append(errs, errors.New("detector.id is required"))
	}
	if c.Detector.Version == "" {
		errs = append(errs, errors.New("detector.version is required"))
	}
	if c.Detector.EventTypeName == "" {
		errs = append(errs, errors.New("detector.event_type_name is required"))
	}
	if c.Auth.Enabled && len(c.Auth.SigningKey) < 32 {
		errs = append(errs, errors.New("auth.signing_key must be at least 32 bytes when auth is enabled"))
	}
	if c.Telemetry.Kafka.Enabled && len(c.Telemetry.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("telemetry.kafka.brokers is required when kafka is enabled"))
	}
	for _, cidr := range c.Network.TrustedProxyCIDRs {
		if _, _, err := net.ParseCIDR(strings.TrimSpace(cidr)); err != nil {
			errs = append(errs, fmt.Errorf("network.trusted_proxy_cidrs: invalid CIDR %q", cidr))
		}
	}
	return errors.Join(errs...)
}
