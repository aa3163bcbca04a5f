package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/ComUnity/signup-risk-gate/internal/models"
)

type ctxKey int

const (
	ctxNetworkKey ctxKey = iota + 1
	ctxCallerKey
	ctxAuditKey
)

const maxUserAgentLen = 1024

// NetworkConfig controls how the end-user IP is resolved behind proxies.
// Proxy headers are honoured only when the immediate peer is inside one of
// TrustedProxyCIDRs.
type NetworkConfig struct {
	TrustedProxyIPHeaders []string
	TrustedProxyCIDRs     []string
}

func (cfg NetworkConfig) Validate() error {
	for _, c := range cfg.TrustedProxyCIDRs {
		if _, _, err := net.ParseCIDR(strings.TrimSpace(c)); err != nil {
			return fmt.Errorf("invalid CIDR: %s", c)
		}
	}
	return nil
}

// NetworkFromContext returns the network context captured for the request.
func NetworkFromContext(ctx context.Context) (models.NetworkContext, bool) {
	nc, ok := ctx.Value(ctxNetworkKey).(models.NetworkContext)
	return nc, ok
}

// NetworkContext records the transport-level IP and User-Agent of the caller.
// Handlers prefer the values carried inside the sign-up event and fall back to
// these.
func NetworkContext(cfg NetworkConfig) func(next http.Handler) http.Handler {
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	proxyNets := mustParseCIDRs(cfg.TrustedProxyCIDRs)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			nc := models.NetworkContext{
				UserAgent: sanitizeHeader(r.UserAgent(), maxUserAgentLen),
			}
			if ip := clientIP(r, cfg.TrustedProxyIPHeaders, proxyNets); ip != nil {
				nc.IP = ip.String()
			}
			ctx := context.WithValue(r.Context(), ctxNetworkKey, nc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SanitizeUserAgent bounds and strips control characters from a UA string.
func SanitizeUserAgent(ua string) string {
	return sanitizeHeader(ua, maxUserAgentLen)
}

func sanitizeHeader(v string, maxLen int) string {
	v = strings.TrimSpace(v)
	if maxLen > 0 && len(v) > maxLen {
		v = v[:maxLen]
	}
	// Drop control characters and DEL.
	return strings.Map(func(r rune) rune {
		if r >= 32 && r != 127 {
			return r
		}
		return -1
	}, v)
}

// clientIP returns nil when no address can be determined.
func clientIP(r *http.Request, hdrs []string, trusted []*net.IPNet) net.IP {
	remoteIP := remoteAddrIP(r.RemoteAddr)

	if len(hdrs) == 0 {
		return remoteIP
	}
	// Trust proxy headers only if the immediate peer is trusted
	if !ipInCIDRs(remoteIP, trusted) {
		return remoteIP
	}

	for _, h := range hdrs {
		v := strings.TrimSpace(r.Header.Get(h))
		if v == "" {
			continue
		}
		if strings.EqualFold(h, "X-Forwarded-For") {
			// Left-most entry is the originating client.
			for _, part := range strings.Split(v, ",") {
				if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
					return ip
				}
			}
			continue
		}
		if ip := net.ParseIP(v); ip != nil {
			return ip
		}
	}
	return remoteIP
}

func remoteAddrIP(remoteAddr string) net.IP {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return net.ParseIP(remoteAddr)
	}
	return net.ParseIP(host)
}

func ipInCIDRs(ip net.IP, nets []*net.IPNet) bool {
	if ip == nil {
		return false
	}
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func mustParseCIDRs(cidrs []string) []*net.IPNet {
	if len(cidrs) == 0 {
		return nil
	}
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(strings.TrimSpace(c))
		if err == nil && n != nil {
			out = append(out, n)
		}
	}
	return out
}
