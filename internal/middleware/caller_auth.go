package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/ComUnity/signup-risk-gate/internal/util/httpjson"
	"github.com/ComUnity/signup-risk-gate/internal/util/logger"
)

// AuthConfig configures bearer-token authentication of the calling system
// (the identity provider hook or an upstream gateway), not of the end user.
type AuthConfig struct {
	SigningKey []byte
	Issuer     string
	Audience   string
	ClockSkew  time.Duration
	// Now is used for expiry checks. Defaults to time.Now.
	Now func() time.Time
}

// Caller identifies an authenticated calling system.
type Caller struct {
	Subject string
	TokenID string
}

var (
	errMissingToken = errors.New("missing bearer token")
	errInvalidToken = errors.New("invalid token")
)

// CallerFromContext returns the caller set by CallerAuth.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(ctxCallerKey).(Caller)
	return c, ok
}

// CallerAuth rejects requests without a valid HS256 bearer token.
func CallerAuth(cfg AuthConfig) func(next http.Handler) http.Handler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, err := authenticate(r, parser, cfg)
			if err != nil {
				logger.Warnw("[CallerAuth] rejected request",
					"path", r.URL.Path, "remote_addr", r.RemoteAddr, "error", err.Error())
				w.Header().Set("WWW-Authenticate", `Bearer realm="signup-risk-gate"`)
				httpjson.Error(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			recordCaller(r.Context(), caller)
			ctx := context.WithValue(r.Context(), ctxCallerKey, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(r *http.Request, parser *jwt.Parser, cfg AuthConfig) (Caller, error) {
	raw, ok := bearerToken(r)
	if !ok {
		return Caller{}, errMissingToken
	}

	claims := &jwt.RegisteredClaims{}
	token, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return cfg.SigningKey, nil
	})
	if err != nil {
		return Caller{}, fmt.Errorf("%w: %v", errInvalidToken, err)
	}
	if !token.Valid {
		return Caller{}, errInvalidToken
	}

	now := cfg.Now()
	if !claims.VerifyExpiresAt(now.Add(-cfg.ClockSkew), true) {
		return Caller{}, fmt.Errorf("%w: expired", errInvalidToken)
	}
	if !claims.VerifyNotBefore(now.Add(cfg.ClockSkew), false) {
		return Caller{}, fmt.Errorf("%w: not yet valid", errInvalidToken)
	}
	if cfg.Issuer != "" && !claims.VerifyIssuer(cfg.Issuer, true) {
		return Caller{}, fmt.Errorf("%w: issuer mismatch", errInvalidToken)
	}
	if cfg.Audience != "" && !claims.VerifyAudience(cfg.Audience, true) {
		return Caller{}, fmt.Errorf("%w: audience mismatch", errInvalidToken)
	}
	return Caller{Subject: claims.Subject, TokenID: claims.ID}, nil
}

func bearerToken(r *http.Request) (string, bool) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(h[len(prefix):])
	return tok, tok != ""
}
