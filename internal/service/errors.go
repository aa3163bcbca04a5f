package service

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrIncompleteAttributes signals an empty attribute value. The gate
	// recovers from it by passing the event through unscored.
	ErrIncompleteAttributes = errors.New("incomplete user attributes")

	ErrMissingField      = errors.New("missing required field")
	ErrOracleUnavailable = errors.New("fraud scoring oracle unavailable")
	ErrOracleError       = errors.New("fraud scoring oracle error")
	ErrMalformedVerdict  = errors.New("malformed fraud verdict")
	ErrFraudDetected     = errors.New("fraud detected")
)

// MissingFieldError names the canonical field that could not be populated.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}

func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}

// FraudDetectedError is the deliberate block. Its message is shown to the end
// user by the sign-up orchestrator.
type FraudDetectedError struct {
	Score   float64
	EventID string
}

func (e *FraudDetectedError) Error() string {
	return fmt.Sprintf(
		"Cannot authenticate users due to high risk fraud (fraud_score: %s), please contact support for more details",
		strconv.FormatFloat(e.Score, 'f', -1, 64),
	)
}

func (e *FraudDetectedError) Is(target error) bool {
	return target == ErrFraudDetected
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedVerdict, fmt.Sprintf(format, args...))
}
