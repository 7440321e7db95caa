package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrMissingAsset          = errors.New("no asset found for tenant")
	ErrConfigurationNotFound = errors.New("configuration not found")
	ErrHubNotFound           = errors.New("hub not found for application instance")
	ErrAppInstanceNotFound   = errors.New("application instance not found")
	ErrSchemaNotCached       = errors.New("tenant schema not cached")
)

// MissingRequiredFieldError is returned when an OA document lacks a field the
// adapter cannot work without.
type MissingRequiredFieldError struct {
	Object string
	Field  string
}

func (e *MissingRequiredFieldError) Error() string {
	return fmt.Sprintf("%s: missing required field %q", e.Object, e.Field)
}

// InvalidPhoneError is returned for telephone values that cannot be normalised.
type InvalidPhoneError struct {
	Value string
}

func (e *InvalidPhoneError) Error() string {
	return fmt.Sprintf(`Invalid telephone format. Expected format: "7#999#999#9999", "79999999999" or "+79999999999 ext. 0". Passed "%s"`, e.Value)
}

// InvalidPeriodError is returned for billing events the adapter cannot turn
// into a period.
type InvalidPeriodError struct {
	Reason string
}

func (e *InvalidPeriodError) Error() string {
	return e.Reason
}

// ConnectError is a non-2xx answer from Connect.
type ConnectError struct {
	StatusCode int
	ErrorCode  string
	Errors     []string
	Params     ConflictParams
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect: status %d %s: %s", e.StatusCode, e.ErrorCode, e.Joined())
}

// Joined renders every error message as one line.
func (e *ConnectError) Joined() string {
	return strings.Join(e.Errors, ", ")
}

// FirstError returns the first error message or "".
func (e *ConnectError) FirstError() string {
	if len(e.Errors) == 0 {
		return ""
	}
	return e.Errors[0]
}

// Contains reports whether any error message equals msg.
func (e *ConnectError) Contains(msg string) bool {
	for _, m := range e.Errors {
		if m == msg {
			return true
		}
	}
	return false
}

// Duplicate reports whether the error describes an existing request.
func (e *ConnectError) Duplicate() bool {
	return e.Params.RequestStatus != "" || e.Params.AssetStatus != ""
}

// FailMessage is the embedded fail message, or the joined errors.
func (e *ConnectError) FailMessage() string {
	if e.Params.FailMessage != nil {
		return *e.Params.FailMessage
	}
	return e.Joined()
}

// OAError is a non-2xx answer from the OA bus.
type OAError struct {
	StatusCode int
	Method     string
	URL        string
	Body       string
}

func (e *OAError) Error() string {
	return fmt.Sprintf("oa: %s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// TransactionLost reports whether OA no longer knows the bound transaction.
func (e *OAError) TransactionLost() bool {
	return strings.Contains(e.Body, "Transaction not found by")
}

// UnexpectedBackendError is returned when Connect answers with an error the
// adapter has no rule for.
type UnexpectedBackendError struct {
	Cause *ConnectError
}

func (e *UnexpectedBackendError) Error() string {
	return fmt.Sprintf("unexpected backend error: %v", e.Cause)
}

func (e *UnexpectedBackendError) Unwrap() error {
	return e.Cause
}

// TransitionError is returned when an action is not valid for the current
// request status.
type TransitionError struct {
	Action  RequestAction
	Current RequestStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("action %q is not valid from status %q", e.Action, e.Current)
}
