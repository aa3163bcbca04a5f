package service

import (
	"strings"

	"github.com/ComUnity/signup-risk-gate/internal/models"
	"github.com/ComUnity/signup-risk-gate/internal/util/logger"
)

const customAttributePrefix = "custom:"

// NormalizeAttributes maps raw user attributes onto the canonical identity
// record. Any empty value yields ErrIncompleteAttributes before anything else
// is looked at. Keys may carry the "custom:" namespace; a bare key wins over a
// namespaced key with the same suffix. Unknown keys are dropped. IP and user
// agent always come from net, never from the attribute map.
func NormalizeAttributes(attrs map[string]string, net models.NetworkContext) (models.IdentityRecord, error) {
	for _, v := range attrs {
		if v == "" {
			return models.IdentityRecord{}, ErrIncompleteAttributes
		}
	}

	fields := make(map[string]string, len(attrs))
	for key, value := range attrs {
		name, namespaced := strings.CutPrefix(key, customAttributePrefix)
		if namespaced {
			if _, bare := attrs[name]; bare {
				continue
			}
		}
		if !isUserField(name) {
			logger.Debugf("[SignupGate] dropping unrecognized attribute %q", key)
			continue
		}
		fields[name] = value
	}

	record := models.IdentityRecord{
		Email:          fields[models.FieldEmail],
		PhoneNumber:    fields[models.FieldPhoneNumber],
		BillingAddress: fields[models.FieldBillingAddress],
		BillingPostal:  fields[models.FieldBillingPostal],
		BillingState:   fields[models.FieldBillingState],
		IP:             net.IP,
		UserAgent:      net.UserAgent,
	}
	if err := checkComplete(record); err != nil {
		return models.IdentityRecord{}, err
	}
	return record, nil
}

// isUserField reports whether name is a canonical field the user may supply.
// ip and user_agent are context derived and ignored when present in the map.
func isUserField(name string) bool {
	switch name {
	case models.FieldEmail,
		models.FieldPhoneNumber,
		models.FieldBillingAddress,
		models.FieldBillingPostal,
		models.FieldBillingState:
		return true
	}
	return false
}

func checkComplete(r models.IdentityRecord) error {
	required := []struct {
		name  string
		value string
	}{
		{models.FieldEmail, r.Email},
		{models.FieldPhoneNumber, r.PhoneNumber},
		{models.FieldBillingAddress, r.BillingAddress},
		{models.FieldBillingPostal, r.BillingPostal},
		{models.FieldBillingState, r.BillingState},
		{models.FieldIP, r.IP},
		{models.FieldUserAgent, r.UserAgent},
	}
	for _, f := range required {
		if f.value == "" {
			return &MissingFieldError{Field: f.name}
		}
	}
	return nil
}
