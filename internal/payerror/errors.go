// Package payerror defines the error taxonomy surfaced by the ledger engine.
// Every failure is a typed error that callers can inspect with errors.As, and
// local validation failures carry a sentinel reason usable with errors.Is.
package payerror

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Reasons for a ValidationError.
var (
	ErrOvercharge              = errors.New("amount exceeds the remaining amount")
	ErrExceedsCancelableAmount = errors.New("amount exceeds the cancelable amount")
	ErrInvalidState            = errors.New("operation not allowed in the current payment state")
	ErrAlreadyAuthorized       = errors.New("payment already has an open authorization")
	ErrNoOpenAuthorization     = errors.New("payment has no authorization to charge against")
	ErrInvalidAmount           = errors.New("amount must be greater than zero")
	ErrCurrencyMismatch        = errors.New("currency does not match the payment currency")
	ErrUnsavedResource         = errors.New("resource has no id yet")
	ErrAlreadyPersisted        = errors.New("resource already has an id")
	ErrInconsistentLedger      = errors.New("ledger amounts are inconsistent")
	ErrForeignPayment          = errors.New("transaction belongs to another payment")
	ErrMissingPaymentType      = errors.New("no payment type given")
	ErrInvalidRequest          = errors.New("request is invalid")
)

// TransportError is a network failure or timeout. The ledger never retries it.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError is a request the gateway received and rejected. ClientMessage is safe
// to show to the paying customer; MerchantMessage is not.
type APIError struct {
	StatusCode      int
	Code            string
	MerchantMessage string
	ClientMessage   string
	ErrorID         string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.MerchantMessage)
	}
	return fmt.Sprintf("api error %s (status %d): %s", e.Code, e.StatusCode, e.MerchantMessage)
}

// NotFoundError means the gateway has no resource at Path.
type NotFoundError struct {
	Path            string
	Code            string
	MerchantMessage string
}

func (e *NotFoundError) Error() string {
	if e.MerchantMessage == "" {
		return fmt.Sprintf("resource not found: %s", e.Path)
	}
	return fmt.Sprintf("resource not found: %s: %s", e.Path, e.MerchantMessage)
}

// ValidationError is raised locally before any network call.
type ValidationError struct {
	Op        string
	Reason    error
	Requested decimal.Decimal
	Available decimal.Decimal
	Detail    string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Reason)
	switch {
	case errors.Is(e.Reason, ErrOvercharge), errors.Is(e.Reason, ErrExceedsCancelableAmount):
		msg = fmt.Sprintf("%s (requested %s, available %s)", msg, e.Requested.String(), e.Available.String())
	case errors.Is(e.Reason, ErrInvalidAmount):
		msg = fmt.Sprintf("%s (requested %s)", msg, e.Requested.String())
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return e.Reason
}

// DetachedResourceError is raised when a capability verb is invoked on a resource
// that is not bound to an active session.
type DetachedResourceError struct {
	Resource string
	Reason   string
}

func (e *DetachedResourceError) Error() string {
	return fmt.Sprintf("%s is detached: %s", e.Resource, e.Reason)
}

// RefreshError reports that a mutation succeeded on the gateway but the payment
// refresh that followed it failed. The created transaction is still valid.
type RefreshError struct {
	Op            string
	PaymentID     string
	TransactionID string
	Err           error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("%s %s succeeded but refreshing payment %s failed: %v",
		e.Op, e.TransactionID, e.PaymentID, e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// ResponseError reports that the gateway accepted a mutation but its response
// could not be read. The mutation is booked remotely; refetch the payment to
// see it.
type ResponseError struct {
	Op   string
	Path string
	Err  error
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s on %s was accepted but the response could not be read: %v", e.Op, e.Path, e.Err)
}

func (e *ResponseError) Unwrap() error {
	return e.Err
}

// DecodeError is a snapshot field that could not be read into its local type.
type DecodeError struct {
	Resource string
	Field    string
	Value    string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: failed to decode %s='%s': %v", e.Resource, e.Field, e.Value, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Overcharge builds the ValidationError for a charge above the remaining amount.
func Overcharge(op string, requested, remaining decimal.Decimal) error {
	return &ValidationError{Op: op, Reason: ErrOvercharge, Requested: requested, Available: remaining}
}

// ExceedsCancelable builds the ValidationError for a cancel no target can absorb.
func ExceedsCancelable(op string, requested, available decimal.Decimal) error {
	return &ValidationError{Op: op, Reason: ErrExceedsCancelableAmount, Requested: requested, Available: available}
}

// InvalidAmount builds the ValidationError for a non-positive amount.
func InvalidAmount(op string, requested decimal.Decimal) error {
	return &ValidationError{Op: op, Reason: ErrInvalidAmount, Requested: requested}
}

// Invalid builds a ValidationError with a free-form detail.
func Invalid(op string, reason error, detail string) error {
	return &ValidationError{Op: op, Reason: reason, Detail: detail}
}

// IsLocal reports whether err was raised locally, before any network call.
func IsLocal(err error) bool {
	var r *ResponseError
	if errors.As(err, &r) {
		return false
	}
	var v *ValidationError
	var d *DetachedResourceError
	return errors.As(err, &v) || errors.As(err, &d)
}
