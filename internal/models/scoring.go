package models

// Canonical attribute names accepted from the raw attribute map.
const (
	FieldEmail          = "email"
	FieldPhoneNumber    = "phone_number"
	FieldBillingAddress = "billing_address"
	FieldBillingPostal  = "billing_postal"
	FieldBillingState   = "billing_state"
	FieldIP             = "ip"
	FieldUserAgent      = "user_agent"
)

// Event variable names that differ from the canonical field names.
const (
	VariableEmailAddress = "email_address"
	VariableIPAddress    = "ip_address"
)

// IdentityRecord is the fully populated, canonical view of a sign-up candidate.
type IdentityRecord struct {
	Email          string
	PhoneNumber    string
	BillingAddress string
	BillingPostal  string
	BillingState   string
	IP             string
	UserAgent      string
}

// EventVariables renders the record in the detector's variable naming.
func (r IdentityRecord) EventVariables() map[string]string {
	return map[string]string{
		VariableEmailAddress: r.Email,
		FieldPhoneNumber:     r.PhoneNumber,
		FieldBillingAddress:  r.BillingAddress,
		FieldBillingPostal:   r.BillingPostal,
		FieldBillingState:    r.BillingState,
		VariableIPAddress:    r.IP,
		FieldUserAgent:       r.UserAgent,
	}
}

type Entity struct {
	Type string
	ID   string
}

// ScoringRequest is the oracle-facing request.
type ScoringRequest struct {
	DetectorID      string
	DetectorVersion string
	EventID         string
	EventTypeName   string
	Entities        []Entity
	EventTimestamp  string
	EventVariables  map[string]string
}

type RuleResult struct {
	RuleID   string
	Outcomes []string
}

type ModelScore struct {
	ModelID      string
	ModelType    string
	ModelVersion string
	Scores       map[string]float64
}

// Verdict is the oracle's structured response. Slice order is the order the
// oracle returned.
type Verdict struct {
	RuleResults []RuleResult
	ModelScores []ModelScore
}
