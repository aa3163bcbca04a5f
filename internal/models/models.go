package models

// SignupEvent is the pre-sign-up trigger payload posted by the sign-up
// orchestrator. Field names follow the Cognito trigger event so that a thin
// forwarder can relay it verbatim.
type SignupEvent struct {
	Version       string         `json:"version,omitempty"`
	TriggerSource string         `json:"triggerSource,omitempty"`
	Region        string         `json:"region,omitempty"`
	UserPoolID    string         `json:"userPoolId,omitempty"`
	UserName      string         `json:"userName,omitempty"`
	CallerContext CallerContext  `json:"callerContext"`
	Request       SignupRequest  `json:"request"`
	Response      SignupResponse `json:"response"`
}

// CallerContext describes the tenant/client that initiated the sign-up.
// SourceIP and UserAgent describe the end user's client when the
// orchestrator knows them.
type CallerContext struct {
	AWSSDKVersion string `json:"awsSdkVersion,omitempty"`
	ClientID      string `json:"clientId"`
	SourceIP      string `json:"sourceIp,omitempty"`
	UserAgent     string `json:"userAgent,omitempty"`
}

type SignupRequest struct {
	UserAttributes map[string]string `json:"userAttributes"`
	ValidationData map[string]string `json:"validationData,omitempty"`
	ClientMetadata map[string]string `json:"clientMetadata,omitempty"`
}

// SignupResponse is mutated by the gate. AutoConfirmUser is never set to true.
type SignupResponse struct {
	AutoConfirmUser bool `json:"autoConfirmUser"`
	AutoVerifyEmail bool `json:"autoVerifyEmail"`
	AutoVerifyPhone bool `json:"autoVerifyPhone"`
}

// NetworkContext carries the end user's network origin.
type NetworkContext struct {
	IP        string
	UserAgent string
}

// Outcome is the terminal state of one gate invocation.
type Outcome string

const (
	OutcomePassthrough Outcome = "passthrough"
	OutcomeAllow       Outcome = "allow"
	OutcomeBlock       Outcome = "block"
	OutcomeError       Outcome = "error"
)

// Decision is the interpreted result of one scoring call.
type Decision struct {
	Outcome   Outcome
	Blocked   bool
	Score     float64
	ScoreName string
	RuleID    string
}
