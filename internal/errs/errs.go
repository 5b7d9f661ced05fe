// Package errs is the error taxonomy shared by every service. Callers switch
// on Kind; Code is a stable machine-readable reason inside a kind.
package errs

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind classifies a failure for callers.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindNotFound            Kind = "not_found"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindUnauthorized        Kind = "unauthorized"
	KindConflict            Kind = "conflict"
	KindSystem              Kind = "system"
)

// Reason codes
const (
	CodeInvalidAmount        = "invalid_amount"
	CodeInvalidPINFormat     = "invalid_pin_format"
	CodeInvalidCode          = "invalid_referral_code"
	CodeInvalidInput         = "invalid_input"
	CodeMissingPayoutDetails = "missing_payout_details"
	CodeInvalidPayoutAddress = "invalid_payout_address"
	CodeInvalidMethod        = "invalid_payout_method"
	CodeSelfTransfer         = "self_transfer"
	CodeAlreadyActive        = "already_active"
	CodeAlreadyProcessed     = "already_processed"
	CodeRootExists           = "root_exists"
	CodeTooManyAttempts      = "too_many_attempts"
	CodeInactiveAccount      = "inactive_account"
	CodeBadCredential        = "bad_credential"
	CodePINNotSet            = "pin_not_set"
	CodeAdminRequired        = "admin_required"
	CodeUnknownEvent         = "unknown_event"
	CodeInvalidRecord        = "invalid_record"
	CodeUserNotFound         = "user_not_found"
	CodeSponsorNotFound      = "sponsor_not_found"
	CodeReceiverNotFound     = "receiver_not_found"
	CodeWithdrawalNotFound   = "withdrawal_not_found"
	CodeRetriesExhausted     = "retries_exhausted"
	CodeTimeout              = "timeout"
	CodeStorage              = "storage_error"
)

// Error is the error type returned across service boundaries.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	// Shortfall is set for insufficient balance failures.
	Shortfall decimal.Decimal
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind and code so errors.Is works against template values.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Code == "" || e.Code == t.Code)
}

func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func Unauthorized(code, message string) *Error {
	return &Error{Kind: KindUnauthorized, Code: code, Message: message}
}

func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

// InsufficientBalance reports how much more the account would need.
func InsufficientBalance(balance, required decimal.Decimal) *Error {
	shortfall := required.Sub(balance)
	return &Error{
		Kind:      KindInsufficientBalance,
		Code:      "insufficient_balance",
		Message:   fmt.Sprintf("insufficient balance: have %s, need %s", balance.StringFixed(2), required.StringFixed(2)),
		Shortfall: shortfall,
	}
}

// System wraps an infrastructure failure. The effect of the operation is unknown.
func System(code string, err error) *Error {
	return &Error{Kind: KindSystem, Code: code, Message: "internal error", Err: err}
}

// KindOf returns the kind of err, or KindSystem for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindSystem
}

// CodeOf returns the reason code of err, if it carries one.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// As extracts the *Error from err.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// InvalidRecord reports a ledger row that failed validation. Such rows are
// produced by the engine itself, so this is a storage failure, not user input.
func InvalidRecord(message string) *Error {
	return &Error{Kind: KindSystem, Code: CodeInvalidRecord, Message: message}
}
