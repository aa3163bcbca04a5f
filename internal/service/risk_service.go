package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ComUnity/signup-risk-gate/internal/models"
	"github.com/ComUnity/signup-risk-gate/internal/telemetry"
	"github.com/ComUnity/signup-risk-gate/internal/util/logger"
)

// Oracle scores one request synchronously. Implementations return errors
// matching ErrOracleUnavailable or ErrOracleError.
type Oracle interface {
	Predict(ctx context.Context, req *models.ScoringRequest) (*models.Verdict, error)
}

// AuditPublisher accepts decision audit events without blocking.
type AuditPublisher interface {
	Publish(ev telemetry.DecisionAuditEvent)
}

// DecisionRecorder receives decision metrics.
type DecisionRecorder interface {
	RecordDecision(outcome, reason string)
	ObserveScore(score float64)
}

type RiskGateConfig struct {
	Detector     DetectorSettings
	BlockOutcome string
	ScoreName    string
	EmailPepper  []byte
}

// RiskGate runs normalize, build, score and interpret for one sign-up
// attempt. It holds no per-invocation state and is safe for concurrent use.
type RiskGate struct {
	oracle      Oracle
	builder     *RequestBuilder
	interpreter *VerdictInterpreter
	pepper      []byte

	audit    AuditPublisher
	recorder DecisionRecorder
	now      func() time.Time
}

type GateOption func(*RiskGate)

func WithAuditPublisher(p AuditPublisher) GateOption {
	return func(g *RiskGate) { g.audit = p }
}

func WithDecisionRecorder(r DecisionRecorder) GateOption {
	return func(g *RiskGate) { g.recorder = r }
}

// WithGateClock sets the clock for both request timestamps and audit events.
func WithGateClock(now func() time.Time) GateOption {
	return func(g *RiskGate) {
		g.now = now
		WithClock(now)(g.builder)
	}
}

// WithGateEventIDs sets the correlation id generator.
func WithGateEventIDs(newID func() string) GateOption {
	return func(g *RiskGate) { WithEventIDs(newID)(g.builder) }
}

func NewRiskGate(oracle Oracle, cfg RiskGateConfig, opts ...GateOption) (*RiskGate, error) {
	if oracle == nil {
		return nil, errors.New("risk gate: oracle is required")
	}
	if cfg.Detector.DetectorID == "" || cfg.Detector.DetectorVersion == "" || cfg.Detector.EventTypeName == "" {
		return nil, errors.New("risk gate: detector id, version and event type are required")
	}
	g := &RiskGate{
		oracle:      oracle,
		builder:     NewRequestBuilder(cfg.Detector),
		interpreter: NewVerdictInterpreter(cfg.BlockOutcome, cfg.ScoreName),
		pepper:      cfg.EmailPepper,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Evaluate decides one sign-up attempt.
//
// The returned event is the input event with autoConfirmUser forced to false.
// It is returned unscored when any attribute is empty, and after scoring when
// the oracle does not flag the attempt. A flagged attempt yields a
// *FraudDetectedError; every other failure is returned wrapped and must be
// treated as a block by the caller.
func (g *RiskGate) Evaluate(ctx context.Context, event *models.SignupEvent, net models.NetworkContext) (*models.SignupEvent, error) {
	if event == nil {
		return nil, errors.New("risk gate: nil sign-up event")
	}
	start := g.now()
	event.Response.AutoConfirmUser = false

	audit := telemetry.DecisionAuditEvent{
		ClientID:      event.CallerContext.ClientID,
		UserPoolID:    event.UserPoolID,
		TriggerSource: event.TriggerSource,
		IPBucket:      telemetry.IPBucket(net.IP),
	}

	record, err := NormalizeAttributes(event.Request.UserAttributes, net)
	if errors.Is(err, ErrIncompleteAttributes) {
		logger.Infow("[SignupGate] empty attribute, passing through unscored",
			"client_id", audit.ClientID, "user_pool_id", audit.UserPoolID)
		g.finish(audit, models.OutcomePassthrough, "incomplete_attributes", start)
		return event, nil
	}
	if err != nil {
		return nil, g.fail(audit, err, start)
	}
	audit.EmailHash = telemetry.HashIdentifier(record.Email, g.pepper)

	req, err := g.builder.Build(record, event.CallerContext.ClientID)
	if err != nil {
		return nil, g.fail(audit, err, start)
	}
	audit.EventID = req.EventID

	verdict, err := g.oracle.Predict(ctx, req)
	if err != nil {
		return nil, g.fail(audit, fmt.Errorf("score event %s: %w", req.EventID, err), start)
	}

	decision, err := g.interpreter.Interpret(verdict)
	if err != nil {
		return nil, g.fail(audit, fmt.Errorf("interpret event %s: %w", req.EventID, err), start)
	}
	audit.RiskScore = decision.Score
	audit.ScoreName = decision.ScoreName
	audit.RuleID = decision.RuleID
	if g.recorder != nil {
		g.recorder.ObserveScore(decision.Score)
	}

	if decision.Blocked {
		logger.Warnw("[SignupGate] sign-up blocked",
			"event_id", req.EventID, "client_id", audit.ClientID,
			"rule_id", decision.RuleID, "score", decision.Score)
		g.finish(audit, models.OutcomeBlock, "fraud_detected", start)
		return nil, &FraudDetectedError{Score: decision.Score, EventID: req.EventID}
	}

	logger.Infow("[SignupGate] sign-up allowed",
		"event_id", req.EventID, "client_id", audit.ClientID, "score", decision.Score)
	g.finish(audit, models.OutcomeAllow, "not_fraud", start)
	return event, nil
}

func (g *RiskGate) fail(audit telemetry.DecisionAuditEvent, err error, start time.Time) error {
	reason := FailureReason(err)
	logger.Errorf("[SignupGate] sign-up check failed (%s) for client %s: %v", reason, audit.ClientID, err)
	g.finish(audit, models.OutcomeError, reason, start)
	return err
}

func (g *RiskGate) finish(audit telemetry.DecisionAuditEvent, outcome models.Outcome, reason string, start time.Time) {
	end := g.now()
	if g.recorder != nil {
		g.recorder.RecordDecision(string(outcome), reason)
	}
	if g.audit != nil {
		audit.Timestamp = end.UTC()
		audit.Outcome = string(outcome)
		audit.Reason = reason
		audit.DurationMs = end.Sub(start).Milliseconds()
		g.audit.Publish(audit)
	}
}

// FailureReason maps a gate error onto a stable, low-cardinality label.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFraudDetected):
		return "fraud_detected"
	case errors.Is(err, ErrMissingField):
		return "missing_field"
	case errors.Is(err, ErrOracleUnavailable):
		return "oracle_unavailable"
	case errors.Is(err, ErrOracleError):
		return "oracle_error"
	case errors.Is(err, ErrMalformedVerdict):
		return "malformed_verdict"
	default:
		return "internal"
	}
}
