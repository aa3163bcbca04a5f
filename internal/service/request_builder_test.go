package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ComUnity/signup-risk-gate/internal/models"
)

var testDetector = DetectorSettings{
	DetectorID:      "signup_detector",
	DetectorVersion: "1",
	EventTypeName:   "registration",
}

func fullRecord() models.IdentityRecord {
	rec, err := NormalizeAttributes(completeAttributes(), testNet)
	if err != nil {
		panic(err)
	}
	return rec
}

func TestRequestBuilderBuild(t *testing.T) {
	fixed := time.Date(2026, 3, 4, 9, 15, 30, 123_000_000, time.FixedZone("EST", -5*3600))
	b := NewRequestBuilder(testDetector,
		WithClock(func() time.Time { return fixed }),
		WithEventIDs(func() string { return "evt-1" }),
	)

	req, err := b.Build(fullRecord(), "tenant-7")
	require.NoError(t, err)

	assert.Equal(t, "signup_detector", req.DetectorID)
	assert.Equal(t, "1", req.DetectorVersion)
	assert.Equal(t, "registration", req.EventTypeName)
	assert.Equal(t, "evt-1", req.EventID)
	assert.Equal(t, []models.Entity{{Type: "customer", ID: "tenant-7"}}, req.Entities)
	assert.Equal(t, "2026-03-04T14:15:30.123Z", req.EventTimestamp)

	assert.Equal(t, map[string]string{
		"email_address":   "a@b.com",
		"phone_number":    "555",
		"billing_address": "1 Main St",
		"billing_postal":  "10001",
		"billing_state":   "NY",
		"ip_address":      "203.0.113.10",
		"user_agent":      "Mozilla/5.0",
	}, req.EventVariables)
	assert.NotContains(t, req.EventVariables, "email")
	assert.NotContains(t, req.EventVariables, "ip")
}

func TestRequestBuilderDefaults(t *testing.T) {
	b := NewRequestBuilder(testDetector)

	first, err := b.Build(fullRecord(), "tenant-7")
	require.NoError(t, err)
	second, err := b.Build(fullRecord(), "tenant-7")
	require.NoError(t, err)

	_, err = uuid.Parse(first.EventID)
	assert.NoError(t, err, "event id is a UUID")
	assert.NotEqual(t, first.EventID, second.EventID)

	ts, err := time.Parse(EventTimestampLayout, first.EventTimestamp)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), ts, 5*time.Second)
}

func TestRequestBuilderRejectsIncompleteInput(t *testing.T) {
	b := NewRequestBuilder(testDetector)

	rec := fullRecord()
	rec.BillingPostal = ""
	_, err := b.Build(rec, "tenant-7")
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = b.Build(fullRecord(), "")
	require.ErrorIs(t, err, ErrMissingField)
	assert.Contains(t, err.Error(), "client_id")
}
