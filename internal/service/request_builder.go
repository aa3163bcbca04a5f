package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/ComUnity/signup-risk-gate/internal/models"
)

// EventTimestampLayout is the timezone-qualified ISO-8601 form the detector
// expects, always rendered in UTC with millisecond precision.
const EventTimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// DetectorSettings are deployment constants identifying the detector.
type DetectorSettings struct {
	DetectorID      string
	DetectorVersion string
	EventTypeName   string
	EntityType      string
}

type RequestBuilder struct {
	detector DetectorSettings
	now      func() time.Time
	newID    func() string
}

type BuilderOption func(*RequestBuilder)

// WithClock injects the time source used for event timestamps.
func WithClock(now func() time.Time) BuilderOption {
	return func(b *RequestBuilder) { b.now = now }
}

// WithEventIDs injects the correlation id generator.
func WithEventIDs(newID func() string) BuilderOption {
	return func(b *RequestBuilder) { b.newID = newID }
}

func NewRequestBuilder(detector DetectorSettings, opts ...BuilderOption) *RequestBuilder {
	if detector.EntityType == "" {
		detector.EntityType = "customer"
	}
	b := &RequestBuilder{
		detector: detector,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build produces the scoring request for one sign-up attempt. Every call gets
// a fresh correlation id and the current time.
func (b *RequestBuilder) Build(record models.IdentityRecord, clientID string) (*models.ScoringRequest, error) {
	if err := checkComplete(record); err != nil {
		return nil, err
	}
	if clientID == "" {
		return nil, &MissingFieldError{Field: "client_id"}
	}

	return &models.ScoringRequest{
		DetectorID:      b.detector.DetectorID,
		DetectorVersion: b.detector.DetectorVersion,
		EventID:         b.newID(),
		EventTypeName:   b.detector.EventTypeName,
		Entities: []models.Entity{
			{Type: b.detector.EntityType, ID: clientID},
		},
		EventTimestamp: b.now().UTC().Format(EventTimestampLayout),
		EventVariables: record.EventVariables(),
	}, nil
}
