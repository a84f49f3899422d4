package core

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a ledger failure. Every failure is fatal to the operation
// it occurs in; the caller resubmits with corrected input.
type Code string

const (
	CodeCapacityExceeded     Code = "capacity_exceeded"
	CodeDuplicateMembership  Code = "duplicate_membership"
	CodePositionUnavailable  Code = "position_unavailable"
	CodeInvalidDepositAmount Code = "invalid_deposit_amount"
	CodeStaleVersion         Code = "stale_version"
	CodeUnauthorizedCaller   Code = "unauthorized_caller"
	CodeRecordNotFound       Code = "record_not_found"
	CodeInvariantViolation   Code = "invariant_violation"
	CodeInsufficientBalance  Code = "insufficient_balance"
	CodeEntryLocked          Code = "entry_locked"
	CodeInvalidArgument      Code = "invalid_argument"
)

// StatusCode maps the code onto the HTTP status returned to callers.
func (c Code) StatusCode() int {
	switch c {
	case CodeRecordNotFound:
		return http.StatusNotFound
	case CodeUnauthorizedCaller:
		return http.StatusForbidden
	case CodeCapacityExceeded,
		CodeDuplicateMembership,
		CodePositionUnavailable,
		CodeStaleVersion,
		CodeEntryLocked:
		return http.StatusConflict
	case CodeInvalidDepositAmount, CodeInsufficientBalance:
		return http.StatusUnprocessableEntity
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeInvariantViolation:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Error is the ledger error type. Two errors match under errors.Is
// when their codes are equal.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.Cause.Error())
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Sentinels for errors.Is checks.
var (
	ErrCapacityExceeded     = &Error{Code: CodeCapacityExceeded, Message: "capacity exceeded"}
	ErrDuplicateMembership  = &Error{Code: CodeDuplicateMembership, Message: "already a member"}
	ErrPositionUnavailable  = &Error{Code: CodePositionUnavailable, Message: "no free position"}
	ErrInvalidDepositAmount = &Error{Code: CodeInvalidDepositAmount, Message: "invalid deposit amount"}
	ErrStaleVersion         = &Error{Code: CodeStaleVersion, Message: "stale version"}
	ErrUnauthorizedCaller   = &Error{Code: CodeUnauthorizedCaller, Message: "unauthorized caller"}
	ErrRecordNotFound       = &Error{Code: CodeRecordNotFound, Message: "record not found"}
	ErrInvariantViolation   = &Error{Code: CodeInvariantViolation, Message: "invariant violation"}
	ErrInsufficientBalance  = &Error{Code: CodeInsufficientBalance, Message: "insufficient balance"}
	ErrEntryLocked          = &Error{Code: CodeEntryLocked, Message: "entry locked"}
	ErrInvalidArgument      = &Error{Code: CodeInvalidArgument, Message: "invalid argument"}
)

func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}
