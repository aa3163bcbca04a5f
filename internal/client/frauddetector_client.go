package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/service/frauddetector"
	"github.com/aws/aws-sdk-go-v2/service/frauddetector/types"
	"github.com/aws/smithy-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ComUnity/signup-risk-gate/internal/models"
	"github.com/ComUnity/signup-risk-gate/internal/service"
	"github.com/ComUnity/signup-risk-gate/internal/util/logger"
)

// FraudDetectorAPI is the subset of the Fraud Detector client the gate uses.
type FraudDetectorAPI interface {
	GetEventPrediction(ctx context.Context, params *frauddetector.GetEventPredictionInput, optFns ...func(*frauddetector.Options)) (*frauddetector.GetEventPredictionOutput, error)
}

// OracleObserver receives per-call metrics. Optional.
type OracleObserver interface {
	ObserveOracleCall(d time.Duration, result string)
	SetCircuitOpen(open bool)
}

type FraudDetectorConfig struct {
	// Timeout bounds one Predict call, SDK retries included.
	Timeout        time.Duration
	MaxAttempts    int
	MaxBackoff     time.Duration
	Endpoint       string
	CircuitBreaker CircuitBreakerConfig
}

// FraudDetectorClient is the scoring oracle backed by Amazon Fraud Detector.
type FraudDetectorClient struct {
	api      FraudDetectorAPI
	cfg      FraudDetectorConfig
	tracer   trace.Tracer
	cb       *circuitBreaker
	observer OracleObserver
}

func withDefaults(cfg FraudDetectorConfig) FraudDetectorConfig {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 500 * time.Millisecond
	}
	return cfg
}

// NewFraudDetectorClient builds the SDK client with a bounded standard
// retryer. Throttling and transient transport errors are retried up to
// MaxAttempts; validation and not-found errors are not.
func NewFraudDetectorClient(awsCfg aws.Config, cfg FraudDetectorConfig, observer OracleObserver) *FraudDetectorClient {
	cfg = withDefaults(cfg)
	api := frauddetector.NewFromConfig(awsCfg, func(o *frauddetector.Options) {
		o.Retryer = retry.AddWithMaxBackoffDelay(
			retry.AddWithMaxAttempts(retry.NewStandard(), cfg.MaxAttempts),
			cfg.MaxBackoff,
		)
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return WithFraudDetectorAPI(api, cfg, observer)
}

// WithFraudDetectorAPI wraps an existing API implementation.
func WithFraudDetectorAPI(api FraudDetectorAPI, cfg FraudDetectorConfig, observer OracleObserver) *FraudDetectorClient {
	cfg = withDefaults(cfg)
	return &FraudDetectorClient{
		api:      api,
		cfg:      cfg,
		tracer:   otel.Tracer("frauddetector"),
		cb:       newCircuitBreaker(cfg.CircuitBreaker),
		observer: observer,
	}
}

// CircuitBreakerState returns "closed", "open", "half-open" or "disabled".
func (c *FraudDetectorClient) CircuitBreakerState() string {
	return c.cb.currentState()
}

// Predict sends one scoring request and returns the verdict. Errors match
// service.ErrOracleUnavailable or service.ErrOracleError.
func (c *FraudDetectorClient) Predict(ctx context.Context, req *models.ScoringRequest) (*models.Verdict, error) {
	if !c.cb.allow() {
		c.observe(0, "circuit_open")
		return nil, fmt.Errorf("%w: circuit breaker open", service.ErrOracleUnavailable)
	}

	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "frauddetector.GetEventPrediction",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("rpc.system", "aws-api"),
			attribute.String("rpc.service", "FraudDetector"),
			attribute.String("frauddetector.detector_id", req.DetectorID),
			attribute.String("frauddetector.event_id", req.EventID),
		),
	)
	defer span.End()

	start := time.Now()
	out, err := c.api.GetEventPrediction(ctx, toPredictionInput(req))
	elapsed := time.Since(start)

	if err != nil {
		// The caller gave up (client disconnect, request deadline). Says
		// nothing about the oracle, so the breaker is left alone.
		if parent.Err() != nil {
			c.observe(elapsed, "canceled")
			span.SetStatus(codes.Error, "caller context done")
			logger.Warnf("[FraudDetector] GetEventPrediction %s abandoned by caller after %s: %v", req.EventID, elapsed, parent.Err())
			return nil, fmt.Errorf("%w: caller context done: %v", service.ErrOracleUnavailable, parent.Err())
		}
		classified := classifyError(err)
		if errors.Is(classified, service.ErrOracleUnavailable) {
			c.cb.recordFailure()
			c.observe(elapsed, "unavailable")
		} else {
			c.cb.recordSuccess()
			c.observe(elapsed, "error")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, classified.Error())
		logger.Errorf("[FraudDetector] GetEventPrediction %s failed after %s: %v", req.EventID, elapsed, err)
		return nil, classified
	}

	c.cb.recordSuccess()
	c.observe(elapsed, "ok")
	verdict := fromPredictionOutput(out)
	span.SetAttributes(
		attribute.Int("frauddetector.rule_results", len(verdict.RuleResults)),
		attribute.Int("frauddetector.model_scores", len(verdict.ModelScores)),
	)
	return verdict, nil
}

func (c *FraudDetectorClient) observe(d time.Duration, result string) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveOracleCall(d, result)
	c.observer.SetCircuitOpen(c.cb.currentState() == breakerOpen)
}

// classifyError separates "could not get an answer" from "the service gave a
// definitive error answer".
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", service.ErrOracleUnavailable, err)
	}

	var (
		throttled   *types.ThrottlingException
		internal    *types.InternalServerException
		unavailable *types.ResourceUnavailableException
	)
	if errors.As(err, &throttled) || errors.As(err, &internal) || errors.As(err, &unavailable) {
		return fmt.Errorf("%w: %v", service.ErrOracleUnavailable, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if apiErr.ErrorFault() == smithy.FaultServer {
			return fmt.Errorf("%w: %s: %s", service.ErrOracleUnavailable, apiErr.ErrorCode(), apiErr.ErrorMessage())
		}
		return fmt.Errorf("%w: %s: %s", service.ErrOracleError, apiErr.ErrorCode(), apiErr.ErrorMessage())
	}

	return fmt.Errorf("%w: %v", service.ErrOracleUnavailable, err)
}

func toPredictionInput(req *models.ScoringRequest) *frauddetector.GetEventPredictionInput {
	entities := make([]types.Entity, 0, len(req.Entities))
	for _, e := range req.Entities {
		entities = append(entities, types.Entity{
			EntityType: aws.String(e.Type),
			EntityId:   aws.String(e.ID),
		})
	}
	return &frauddetector.GetEventPredictionInput{
		DetectorId:        aws.String(req.DetectorID),
		DetectorVersionId: aws.String(req.DetectorVersion),
		EventId:           aws.String(req.EventID),
		EventTypeName:     aws.String(req.EventTypeName),
		Entities:          entities,
		EventTimestamp:    aws.String(req.EventTimestamp),
		EventVariables:    req.EventVariables,
	}
}

func fromPredictionOutput(out *frauddetector.GetEventPredictionOutput) *models.Verdict {
	v := &models.Verdict{}
	if out == nil {
		return v
	}
	for _, rr := range out.RuleResults {
		v.RuleResults = append(v.RuleResults, models.RuleResult{
			RuleID:   aws.ToString(rr.RuleId),
			Outcomes: rr.Outcomes,
		})
	}
	for _, ms := range out.ModelScores {
		score := models.ModelScore{Scores: make(map[string]float64, len(ms.Scores))}
		if mv := ms.ModelVersion; mv != nil {
			score.ModelID = aws.ToString(mv.ModelId)
			score.ModelType = string(mv.ModelType)
			score.ModelVersion = aws.ToString(mv.ModelVersionNumber)
		}
		for name, s := range ms.Scores {
			score.Scores[name] = float64(s)
		}
		v.ModelScores = append(v.ModelScores, score)
	}
	return v
}
