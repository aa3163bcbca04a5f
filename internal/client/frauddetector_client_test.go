package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/frauddetector"
	"github.com/aws/aws-sdk-go-v2/service/frauddetector/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ComUnity/signup-risk-gate/internal/models"
	"github.com/ComUnity/signup-risk-gate/internal/service"
)

type fakeFraudDetector struct {
	mu     sync.Mutex
	out    *frauddetector.GetEventPredictionOutput
	err    error
	block  bool
	inputs []*frauddetector.GetEventPredictionInput
}

func (f *fakeFraudDetector) GetEventPrediction(ctx context.Context, in *frauddetector.GetEventPredictionInput, _ ...func(*frauddetector.Options)) (*frauddetector.GetEventPredictionOutput, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, in)
	block, out, err := f.block, f.out, f.err
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return out, err
}

func (f *fakeFraudDetector) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inputs)
}

type recordingObserver struct {
	results []string
	open    bool
}

func (o *recordingObserver) ObserveOracleCall(_ time.Duration, result string) {
	o.results = append(o.results, result)
}

func (o *recordingObserver) SetCircuitOpen(open bool) { o.open = open }

func scoringRequest() *models.ScoringRequest {
	return &models.ScoringRequest{
		DetectorID:      "signup_detector",
		DetectorVersion: "1",
		EventID:         "7a1c3c55-8a0e-4b8c-9f0e-1f1b3a9d2c10",
		EventTypeName:   "registration",
		Entities:        []models.Entity{{Type: "customer", ID: "tenant-7"}},
		EventTimestamp:  "2026-10-18T12:00:00.000Z",
		EventVariables:  map[string]string{"email_address": "a@b.com", "ip_address": "203.0.113.10"},
	}
}

func predictionOutput() *frauddetector.GetEventPredictionOutput {
	return &frauddetector.GetEventPredictionOutput{
		RuleResults: []types.RuleResult{
			{RuleId: aws.String("high_fraud_risk"), Outcomes: []string{"high_risk"}},
		},
		ModelScores: []types.ModelScores{
			{
				ModelVersion: &types.ModelVersion{
					ModelId:            aws.String("signup_model"),
					ModelType:          types.ModelTypeEnumOnlineFraudInsights,
					ModelVersionNumber: aws.String("1.0"),
				},
				Scores: map[string]float32{"signup_model_insightscore": 942},
			},
		},
	}
}

func TestPredictMapsRequestAndVerdict(t *testing.T) {
	api := &fakeFraudDetector{out: predictionOutput()}
	obs := &recordingObserver{}
	c := WithFraudDetectorAPI(api, FraudDetectorConfig{}, obs)

	v, err := c.Predict(context.Background(), scoringRequest())
	require.NoError(t, err)

	require.Len(t, api.inputs, 1)
	in := api.inputs[0]
	assert.Equal(t, "signup_detector", aws.ToString(in.DetectorId))
	assert.Equal(t, "1", aws.ToString(in.DetectorVersionId))
	assert.Equal(t, "7a1c3c55-8a0e-4b8c-9f0e-1f1b3a9d2c10", aws.ToString(in.EventId))
	assert.Equal(t, "registration", aws.ToString(in.EventTypeName))
	assert.Equal(t, "2026-10-18T12:00:00.000Z", aws.ToString(in.EventTimestamp))
	require.Len(t, in.Entities, 1)
	assert.Equal(t, "customer", aws.ToString(in.Entities[0].EntityType))
	assert.Equal(t, "tenant-7", aws.ToString(in.Entities[0].EntityId))
	assert.Equal(t, "a@b.com", in.EventVariables["email_address"])

	require.Len(t, v.RuleResults, 1)
	assert.Equal(t, "high_fraud_risk", v.RuleResults[0].RuleID)
	assert.Equal(t, []string{"high_risk"}, v.RuleResults[0].Outcomes)
	require.Len(t, v.ModelScores, 1)
	assert.Equal(t, "signup_model", v.ModelScores[0].ModelID)
	assert.Equal(t, "1.0", v.ModelScores[0].ModelVersion)
	assert.Equal(t, 942.0, v.ModelScores[0].Scores["signup_model_insightscore"])

	assert.Equal(t, []string{"ok"}, obs.results)
	assert.Equal(t, "disabled", c.CircuitBreakerState())
}

func TestPredictEmptyOutputYieldsEmptyVerdict(t *testing.T) {
	c := WithFraudDetectorAPI(&fakeFraudDetector{out: &frauddetector.GetEventPredictionOutput{}}, FraudDetectorConfig{}, nil)

	v, err := c.Predict(context.Background(), scoringRequest())
	require.NoError(t, err)
	assert.Empty(t, v.RuleResults)

	_, err = service.NewVerdictInterpreter("", "").Interpret(v)
	assert.ErrorIs(t, err, service.ErrMalformedVerdict)
}

func TestPredictErrorClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"throttling", &types.ThrottlingException{Message: aws.String("rate exceeded")}, service.ErrOracleUnavailable},
		{"internal server", &types.InternalServerException{Message: aws.String("boom")}, service.ErrOracleUnavailable},
		{"resource unavailable", &types.ResourceUnavailableException{Message: aws.String("warming")}, service.ErrOracleUnavailable},
		{"validation", &types.ValidationException{Message: aws.String("bad variable")}, service.ErrOracleError},
		{"not found", &types.ResourceNotFoundException{Message: aws.String("no detector")}, service.ErrOracleError},
		{"access denied", &types.AccessDeniedException{Message: aws.String("nope")}, service.ErrOracleError},
		{"generic server fault", &smithy.GenericAPIError{Code: "ServiceUnavailable", Fault: smithy.FaultServer}, service.ErrOracleUnavailable},
		{"generic client fault", &smithy.GenericAPIError{Code: "Weird", Fault: smithy.FaultClient}, service.ErrOracleError},
		{"transport", errors.New("dial tcp: connection refused"), service.ErrOracleUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := WithFraudDetectorAPI(&fakeFraudDetector{err: tc.err}, FraudDetectorConfig{}, nil)
			v, err := c.Predict(context.Background(), scoringRequest())
			assert.Nil(t, v)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestPredictTimeout(t *testing.T) {
	api := &fakeFraudDetector{block: true}
	c := WithFraudDetectorAPI(api, FraudDetectorConfig{Timeout: 20 * time.Millisecond}, nil)

	start := time.Now()
	_, err := c.Predict(context.Background(), scoringRequest())
	assert.ErrorIs(t, err, service.ErrOracleUnavailable)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPredictCircuitBreaker(t *testing.T) {
	api := &fakeFraudDetector{err: &types.InternalServerException{Message: aws.String("down")}}
	obs := &recordingObserver{}
	c := WithFraudDetectorAPI(api, FraudDetectorConfig{
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:      true,
			FailureRatio: 0.5,
			RecoveryTime: time.Minute,
			MinRequests:  2,
		},
	}, obs)
	now := time.Now()
	c.cb.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		_, err := c.Predict(context.Background(), scoringRequest())
		require.ErrorIs(t, err, service.ErrOracleUnavailable)
	}
	assert.Equal(t, "open", c.CircuitBreakerState())
	assert.True(t, obs.open)

	_, err := c.Predict(context.Background(), scoringRequest())
	require.ErrorIs(t, err, service.ErrOracleUnavailable)
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.Equal(t, 2, api.calls(), "open circuit fails closed without calling the oracle")

	// After the recovery window one success closes the circuit again.
	now = now.Add(2 * time.Minute)
	api.mu.Lock()
	api.err, api.out = nil, predictionOutput()
	api.mu.Unlock()

	_, err = c.Predict(context.Background(), scoringRequest())
	require.NoError(t, err)
	assert.Equal(t, "closed", c.CircuitBreakerState())
	assert.False(t, obs.open)
}

func TestDefinitiveErrorsDoNotTripBreaker(t *testing.T) {
	api := &fakeFraudDetector{err: &types.ValidationException{Message: aws.String("bad")}}
	c := WithFraudDetectorAPI(api, FraudDetectorConfig{
		CircuitBreaker: CircuitBreakerConfig{Enabled: true, FailureRatio: 0.5, RecoveryTime: time.Minute, MinRequests: 1},
	}, nil)

	for i := 0; i < 3; i++ {
		_, err := c.Predict(context.Background(), scoringRequest())
		require.ErrorIs(t, err, service.ErrOracleError)
	}
	assert.Equal(t, "closed", c.CircuitBreakerState())
	assert.Equal(t, 3, api.calls())
}

func TestCallerCancellationDoesNotTripBreaker(t *testing.T) {
	api := &fakeFraudDetector{block: true}
	obs := &recordingObserver{}
	c := WithFraudDetectorAPI(api, FraudDetectorConfig{
		Timeout: time.Second,
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:      true,
			FailureRatio: 0.5,
			RecoveryTime: time.Minute,
			MinRequests:  2,
		},
	}, obs)

	for i := 0; i < 10; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(5 * time.Millisecond)
			cancel()
		}()
		_, err := c.Predict(ctx, scoringRequest())
		require.ErrorIs(t, err, service.ErrOracleUnavailable)
		cancel()
	}

	assert.Equal(t, "closed", c.CircuitBreakerState())
	assert.Equal(t, 10, api.calls())
	assert.False(t, obs.open)
	assert.Equal(t, "canceled", obs.results[len(obs.results)-1])
}

func TestOwnTimeoutStillTripsBreaker(t *testing.T) {
	api := &fakeFraudDetector{block: true}
	c := WithFraudDetectorAPI(api, FraudDetectorConfig{
		Timeout: 10 * time.Millisecond,
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:      true,
			FailureRatio: 0.5,
			RecoveryTime: time.Minute,
			MinRequests:  2,
		},
	}, nil)

	for i := 0; i < 2; i++ {
		_, err := c.Predict(context.Background(), scoringRequest())
		require.ErrorIs(t, err, service.ErrOracleUnavailable)
	}
	assert.Equal(t, "open", c.CircuitBreakerState())
}
