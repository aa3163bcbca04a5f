package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/ComUnity/signup-risk-gate/internal/middleware"
	"github.com/ComUnity/signup-risk-gate/internal/models"
	"github.com/ComUnity/signup-risk-gate/internal/service"
	"github.com/ComUnity/signup-risk-gate/internal/util/httpjson"
	"github.com/ComUnity/signup-risk-gate/internal/util/logger"
)

const maxSignupBody = 64 << 10

// Gate evaluates one pre-sign-up event.
type Gate interface {
	Evaluate(ctx context.Context, event *models.SignupEvent, net models.NetworkContext) (*models.SignupEvent, error)
}

// SignupHandler serves the pre-sign-up risk check.
type SignupHandler struct {
	gate Gate
}

func NewSignupHandler(gate Gate) *SignupHandler {
	return &SignupHandler{gate: gate}
}

// Verify handles POST /v1/signup/verify. A 200 carries the event back with
// only response.autoConfirmUser rewritten; fields the gate does not model are
// returned untouched. Every other status means the sign-up must not proceed.
func (h *SignupHandler) Verify(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSignupBody))
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var event models.SignupEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	out, err := h.gate.Evaluate(r.Context(), &event, networkFor(r, event.CallerContext))
	if err != nil {
		status, msg := statusFor(err)
		if status >= http.StatusInternalServerError {
			logger.Errorf("[SignupHandler] %s: %v", service.FailureReason(err), err)
		}
		httpjson.Error(w, status, msg)
		return
	}

	patched, err := patchAutoConfirm(raw, out.Response.AutoConfirmUser)
	if err != nil {
		logger.Warnf("[SignupHandler] re-encoding typed event: %v", err)
		httpjson.Write(w, http.StatusOK, out)
		return
	}
	httpjson.Write(w, http.StatusOK, patched)
}

// patchAutoConfirm sets response.autoConfirmUser in the original body and
// leaves every other member as received.
func patchAutoConfirm(raw []byte, autoConfirm bool) (json.RawMessage, error) {
	var event map[string]json.RawMessage
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, err
	}
	if event == nil {
		return nil, errors.New("event is not a JSON object")
	}

	response := map[string]json.RawMessage{}
	if r, ok := event["response"]; ok {
		if err := json.Unmarshal(r, &response); err != nil {
			return nil, fmt.Errorf("response: %w", err)
		}
		if response == nil {
			response = map[string]json.RawMessage{}
		}
	}
	flag, _ := json.Marshal(autoConfirm)
	response["autoConfirmUser"] = flag

	encoded, err := json.Marshal(response)
	if err != nil {
		return nil, err
	}
	event["response"] = encoded
	return json.Marshal(event)
}

// networkFor prefers the end-user origin reported inside the event and falls
// back to the transport-level values when the event does not carry them.
func networkFor(r *http.Request, cc models.CallerContext) models.NetworkContext {
	transport, _ := middleware.NetworkFromContext(r.Context())

	nc := models.NetworkContext{
		IP:        strings.TrimSpace(cc.SourceIP),
		UserAgent: middleware.SanitizeUserAgent(cc.UserAgent),
	}
	if net.ParseIP(nc.IP) == nil {
		nc.IP = transport.IP
	}
	if nc.UserAgent == "" {
		nc.UserAgent = transport.UserAgent
	}
	return nc
}

func statusFor(err error) (int, string) {
	var fraud *service.FraudDetectedError
	switch {
	case errors.As(err, &fraud):
		return http.StatusForbidden, fraud.Error()
	case errors.Is(err, service.ErrMissingField):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, service.ErrOracleUnavailable):
		return http.StatusServiceUnavailable, "risk check temporarily unavailable"
	case errors.Is(err, service.ErrOracleError), errors.Is(err, service.ErrMalformedVerdict):
		return http.StatusBadGateway, "risk check failed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
