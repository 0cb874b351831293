package core

import (
	"errors"
	"fmt"
)

// Validation error codes surfaced to API callers. Each code identifies the
// exact rule that rejected the write.
const (
	CodeMissingRequiredServices = "missing_required_services"
	CodePopulationLimitExceeded = "population_limit_exceeded"
	CodeMissingMailDomain       = "missing_mail_domain"
	CodeMissingIDPID            = "missing_idp_id"
	CodeIDPIDImmutable          = "idp_id_immutable"
	CodeDomainConflict          = "domain_conflict"
	CodeInvalidEntitlement      = "invalid_entitlement"
	CodeInvalidAutoAdmin        = "invalid_auto_admin"
	CodeInvalidIdentifier       = "invalid_identifier"
)

// ValidationError is a rejected write at the model boundary. Callers are
// expected to handle it; it is never swallowed.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationError(code, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsValidation unwraps err into a ValidationError, if it is one.
func AsValidation(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
