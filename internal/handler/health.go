package handler

import (
	"net/http"
	"time"

	"github.com/ComUnity/signup-risk-gate/internal/util/httpjson"
	"github.com/ComUnity/signup-risk-gate/internal/util/logger"
)

var startTime = time.Now()

// HealthStatus represents the overall health status
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

type HealthResponse struct {
	Status      HealthStatus           `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Version     string                 `json:"version,omitempty"`
	Environment string                 `json:"environment"`
	Uptime      string                 `json:"uptime"`
	Checks      map[string]CheckResult `json:"checks,omitempty"`
}

type CheckResult struct {
	Status   HealthStatus   `json:"status"`
	Message  string         `json:"message,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// HealthChecker reports on one dependency. Checks must not block: the oracle
// is never called from a health probe.
type HealthChecker interface {
	Name() string
	Check() CheckResult
}

type HealthHandler struct {
	env      string
	version  string
	checkers []HealthChecker
}

func NewHealthHandler(env, version string, checkers ...HealthChecker) *HealthHandler {
	return &HealthHandler{env: env, version: version, checkers: checkers}
}

// ServeHTTP handles GET /healthz. Degraded still answers 200 because the gate
// keeps answering (failing closed) while a dependency is impaired.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:      HealthStatusHealthy,
		Timestamp:   time.Now().UTC(),
		Version:     h.version,
		Environment: h.env,
		Uptime:      time.Since(startTime).Round(time.Second).String(),
		Checks:      make(map[string]CheckResult, len(h.checkers)),
	}

	for _, c := range h.checkers {
		res := c.Check()
		resp.Checks[c.Name()] = res
		switch res.Status {
		case HealthStatusUnhealthy:
			resp.Status = HealthStatusUnhealthy
		case HealthStatusDegraded:
			if resp.Status != HealthStatusUnhealthy {
				resp.Status = HealthStatusDegraded
			}
		}
	}

	status := http.StatusOK
	if resp.Status == HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	if resp.Status != HealthStatusHealthy {
		logger.Warnf("[Health] status %s", resp.Status)
	}
	httpjson.Write(w, status, resp)
}

// LivenessHandler answers as long as the process serves HTTP.
func (h *HealthHandler) LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// BreakerChecker reports the oracle circuit breaker.
type BreakerChecker struct {
	State func() string
}

func (BreakerChecker) Name() string { return "fraud_detector" }

func (b BreakerChecker) Check() CheckResult {
	state := b.State()
	res := CheckResult{Status: HealthStatusHealthy, Metadata: map[string]any{"circuit_breaker": state}}
	if state == "open" {
		res.Status = HealthStatusDegraded
		res.Message = "circuit open, sign-ups are failing closed"
	}
	return res
}

// AuditShipper is the view of the audit shipper the health check needs.
type AuditShipper interface {
	Enabled() bool
	Dropped() uint64
}

type AuditChecker struct {
	Shipper AuditShipper
}

func (AuditChecker) Name() string { return "decision_audit" }

func (a AuditChecker) Check() CheckResult {
	if a.Shipper == nil || !a.Shipper.Enabled() {
		return CheckResult{Status: HealthStatusHealthy, Message: "disabled"}
	}
	dropped := a.Shipper.Dropped()
	res := CheckResult{Status: HealthStatusHealthy, Metadata: map[string]any{"dropped": dropped}}
	if dropped > 0 {
		res.Status = HealthStatusDegraded
		res.Message = "audit events dropped under backpressure"
	}
	return res
}
