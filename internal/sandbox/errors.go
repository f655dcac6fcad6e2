package sandbox

import (
	"errors"
	"net/http"

	"fjacquet/payledger/internal/payerror"
)

// Error codes returned by the sandbox, in the gateway's API.xxx.xxx.xxx format.
const (
	CodeInvalidRequest      = "API.320.000.001"
	CodeInvalidAmount       = "API.330.100.023"
	CodeCurrencyMismatch    = "API.330.100.024"
	CodeOvercharge          = "API.330.100.007"
	CodeExceedsCancelable   = "API.340.100.014"
	CodeAlreadyAuthorized   = "API.340.100.015"
	CodeInvalidState        = "API.340.100.016"
	CodeUnknownType         = "API.320.200.138"
	CodeUnsupportedByType   = "API.320.200.139"
	CodeNotFound            = "API.310.100.003"
	CodeMethodNotAllowed    = "API.310.100.004"
	CodeIdempotencyConflict = "API.410.100.001"
	CodeStorage             = "API.500.100.001"
)

func reject(code, merchant, customer string) error {
	return &payerror.APIError{
		StatusCode:      http.StatusBadRequest,
		Code:            code,
		MerchantMessage: merchant,
		ClientMessage:   customer,
	}
}

func invalidRequest(merchant string) error {
	return reject(CodeInvalidRequest, merchant, "The payment could not be processed.")
}

func notFound(path string) error {
	return &payerror.NotFoundError{Path: path, Code: CodeNotFound, MerchantMessage: "no resource at " + path}
}

func storageError(err error) error {
	return &payerror.APIError{
		StatusCode:      http.StatusInternalServerError,
		Code:            CodeStorage,
		MerchantMessage: err.Error(),
		ClientMessage:   "An unexpected error occurred.",
	}
}

// rejectLedger turns a ledger rule violation into the gateway's answer.
func rejectLedger(err error) error {
	const customer = "The amount is not valid for this payment."
	switch {
	case errors.Is(err, payerror.ErrOvercharge):
		return reject(CodeOvercharge, err.Error(), customer)
	case errors.Is(err, payerror.ErrExceedsCancelableAmount):
		return reject(CodeExceedsCancelable, err.Error(), customer)
	case errors.Is(err, payerror.ErrInvalidAmount):
		return reject(CodeInvalidAmount, err.Error(), customer)
	default:
		return reject(CodeInvalidState, err.Error(), customer)
	}
}
