package errorutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes raised while processing onboarding incidents.
const (
	CodeMissingRequiredField   = "MISSING_REQUIRED_FIELD"
	CodeMalformedField         = "MALFORMED_FIELD"
	CodeLookupNotFound         = "LOOKUP_NOT_FOUND"
	CodeDuplicateTicket        = "DUPLICATE_TICKET"
	CodeStorageUnavailable     = "STORAGE_UNAVAILABLE"
	CodeProviderRejected       = "PROVIDER_REJECTED"
	CodeDateParseError         = "DATE_PARSE_ERROR"
	CodeUnrecognizedCostCenter = "UNRECOGNIZED_COST_CENTER"
	CodeCallTimeout            = "CALL_TIMEOUT"

	CodeUnauthorized  = "UNAUTHORIZED"
	CodeConflict      = "CONFLICT"
	CodeInternalError = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// NewMissingRequiredField reports recognized ticket labels that were absent or empty.
func NewMissingRequiredField(labels []string) error {
	return NewDomainError(CodeMissingRequiredField,
		fmt.Sprintf("missing required fields: %s", strings.Join(labels, ", ")),
		http.StatusUnprocessableEntity,
		map[string]any{"labels": labels})
}

func NewMalformedField(label, value, expected string) error {
	return NewDomainError(CodeMalformedField,
		fmt.Sprintf("field %q is malformed, expected %s", label, expected),
		http.StatusUnprocessableEntity,
		map[string]any{"label": label, "value": value})
}

// NewLookupNotFound reports a manager or group reference that resolved to nothing.
func NewLookupNotFound(resource, key string) error {
	return NewDomainError(CodeLookupNotFound,
		fmt.Sprintf("%s %q not found", resource, key),
		http.StatusNotFound,
		map[string]any{"resource": resource, "key": key})
}

func NewDuplicateTicket(incidentID string) error {
	return NewDomainError(CodeDuplicateTicket,
		fmt.Sprintf("incident %s already processed", incidentID),
		http.StatusConflict,
		map[string]any{"incident_id": incidentID})
}

func NewStorageUnavailable(op string, err error) error {
	return &DomainError{
		Code:       CodeStorageUnavailable,
		Message:    fmt.Sprintf("ledger %s failed", op),
		HTTPStatus: http.StatusServiceUnavailable,
		Details:    map[string]any{"operation": op},
		Err:        err,
	}
}

// NewProviderRejected wraps a 4xx answer from an external provisioning API.
func NewProviderRejected(provider string, details map[string]any, err error) error {
	if details == nil {
		details = map[string]any{}
	}
	details["provider"] = provider
	return &DomainError{
		Code:       CodeProviderRejected,
		Message:    fmt.Sprintf("%s rejected the request", provider),
		HTTPStatus: http.StatusBadGateway,
		Details:    details,
		Err:        err,
	}
}

func NewDateParseError(value string, err error) error {
	return &DomainError{
		Code:       CodeDateParseError,
		Message:    fmt.Sprintf("invalid start date %q", value),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"value": value},
		Err:        err,
	}
}

func NewUnrecognizedCostCenter(costCenter string) error {
	return NewDomainError(CodeUnrecognizedCostCenter,
		fmt.Sprintf("unrecognized cost center %q", costCenter),
		http.StatusUnprocessableEntity,
		map[string]any{"cost_center": costCenter})
}

// NewCallTimeout reports an external call that exceeded its deadline.
func NewCallTimeout(op string, err error) error {
	return &DomainError{
		Code:       CodeCallTimeout,
		Message:    fmt.Sprintf("%s timed out", op),
		HTTPStatus: http.StatusGatewayTimeout,
		Details:    map[string]any{"operation": op},
		Err:        err,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternalError,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		if de, ok := NewCallTimeout("operation", err).(*DomainError); ok {
			return de
		}
	}
	return &DomainError{
		Code:       CodeInternalError,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// CodeOf returns the code of the first DomainError in err's chain.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	return ToDomainError(err).Code
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}
