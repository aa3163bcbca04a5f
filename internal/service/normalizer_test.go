package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ComUnity/signup-risk-gate/internal/models"
)

var testNet = models.NetworkContext{IP: "203.0.113.10", UserAgent: "Mozilla/5.0"}

func completeAttributes() map[string]string {
	return map[string]string{
		"email":           "a@b.com",
		"phone_number":    "555",
		"billing_address": "1 Main St",
		"billing_postal":  "10001",
		"billing_state":   "NY",
	}
}

func TestNormalizeAttributes(t *testing.T) {
	t.Run("bare keys map onto the record", func(t *testing.T) {
		rec, err := NormalizeAttributes(completeAttributes(), testNet)
		require.NoError(t, err)
		assert.Equal(t, models.IdentityRecord{
			Email:          "a@b.com",
			PhoneNumber:    "555",
			BillingAddress: "1 Main St",
			BillingPostal:  "10001",
			BillingState:   "NY",
			IP:             "203.0.113.10",
			UserAgent:      "Mozilla/5.0",
		}, rec)
	})

	t.Run("namespaced keys behave like bare keys", func(t *testing.T) {
		bare, err := NormalizeAttributes(completeAttributes(), testNet)
		require.NoError(t, err)

		namespaced := map[string]string{}
		for k, v := range completeAttributes() {
			namespaced["custom:"+k] = v
		}
		got, err := NormalizeAttributes(namespaced, testNet)
		require.NoError(t, err)
		assert.Equal(t, bare, got)
	})

	t.Run("bare key wins over namespaced duplicate", func(t *testing.T) {
		attrs := completeAttributes()
		attrs["custom:billing_state"] = "CA"
		for i := 0; i < 20; i++ {
			rec, err := NormalizeAttributes(attrs, testNet)
			require.NoError(t, err)
			require.Equal(t, "NY", rec.BillingState)
		}
	})

	t.Run("empty value short-circuits before anything else", func(t *testing.T) {
		attrs := map[string]string{"email": "a@b.com", "custom:unknown": ""}
		_, err := NormalizeAttributes(attrs, testNet)
		assert.ErrorIs(t, err, ErrIncompleteAttributes)
	})

	t.Run("unknown keys are dropped", func(t *testing.T) {
		attrs := completeAttributes()
		attrs["sub"] = "b5e0c8a2"
		attrs["cognito:user_status"] = "UNCONFIRMED"
		attrs["custom:loyalty_tier"] = "gold"
		_, err := NormalizeAttributes(attrs, testNet)
		assert.NoError(t, err)
	})

	t.Run("ip and user agent come from network context only", func(t *testing.T) {
		attrs := completeAttributes()
		attrs["ip"] = "1.1.1.1"
		attrs["custom:user_agent"] = "Chrome"
		rec, err := NormalizeAttributes(attrs, testNet)
		require.NoError(t, err)
		assert.Equal(t, "203.0.113.10", rec.IP)
		assert.Equal(t, "Mozilla/5.0", rec.UserAgent)
	})
}

func TestNormalizeAttributesMissingField(t *testing.T) {
	cases := []struct {
		name  string
		drop  string
		net   models.NetworkContext
		field string
	}{
		{"email", "email", testNet, "email"},
		{"phone", "phone_number", testNet, "phone_number"},
		{"address", "billing_address", testNet, "billing_address"},
		{"postal", "billing_postal", testNet, "billing_postal"},
		{"state", "billing_state", testNet, "billing_state"},
		{"ip", "", models.NetworkContext{UserAgent: "ua"}, "ip"},
		{"user agent", "", models.NetworkContext{IP: "203.0.113.10"}, "user_agent"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			attrs := completeAttributes()
			delete(attrs, tc.drop)

			_, err := NormalizeAttributes(attrs, tc.net)
			require.ErrorIs(t, err, ErrMissingField)

			var mf *MissingFieldError
			require.True(t, errors.As(err, &mf))
			assert.Equal(t, tc.field, mf.Field)
		})
	}
}
