package telemetry

import (
	"crypto/sha256"
	"encoding/base64"
	"net/netip"
	"strings"
	"time"
)

// DecisionAuditEvent records one gate invocation. It never carries raw PII:
// the email is reduced to a peppered hash and the IP to a network bucket.
type DecisionAuditEvent struct {
	Timestamp     time.Time `json:"@timestamp"`
	EventID       string    `json:"event_id,omitempty"`
	ClientID      string    `json:"client_id,omitempty"`
	UserPoolID    string    `json:"user_pool_id,omitempty"`
	TriggerSource string    `json:"trigger_source,omitempty"`
	Outcome       string    `json:"outcome"`
	Reason        string    `json:"reason,omitempty"`
	RuleID        string    `json:"rule_id,omitempty"`
	ScoreName     string    `json:"score_name,omitempty"`
	RiskScore     float64   `json:"risk_score"`
	EmailHash     string    `json:"email_hash,omitempty"`
	IPBucket      string    `json:"ip_bucket,omitempty"`
	DurationMs    int64     `json:"duration_ms"`
}

// HashIdentifier returns a peppered, URL-safe SHA-256 of a case-folded
// identifier such as an email address.
func HashIdentifier(value string, pepper []byte) string {
	if value == "" {
		return ""
	}
	h := sha256.New()
	if len(pepper) > 0 {
		h.Write(pepper[:min(len(pepper), 64)])
	}
	h.Write([]byte(strings.ToLower(strings.TrimSpace(value))))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// IPBucket returns a privacy-preserving network bucket: /24 for IPv4 and /64
// for IPv6. Unparseable input yields "".
func IPBucket(ip string) string {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return ""
	}
	addr = addr.Unmap()
	if addr.Is4() {
		p, _ := addr.Prefix(24)
		return "v4:" + p.String()
	}
	p, _ := addr.Prefix(64)
	return "v6:" + p.String()
}
