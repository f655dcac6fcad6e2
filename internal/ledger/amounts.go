// Package ledger is the money arithmetic of a payment: the four ledger amounts,
// their invariants, the lifecycle state derived from them, and the choice of
// which transaction a cancellation lands on.
package ledger

import (
	"fmt"

	"fjacquet/payledger/internal/payerror"

	"github.com/shopspring/decimal"
)

// Amounts is a payment's ledger. After every sync with the gateway
// Remaining == Total - Charged - Canceled and Charged + Canceled <= Total.
type Amounts struct {
	Total     decimal.Decimal
	Charged   decimal.Decimal
	Canceled  decimal.Decimal
	Remaining decimal.Decimal
}

// Validate checks the ledger invariants.
func (a Amounts) Validate() error {
	for name, v := range map[string]decimal.Decimal{
		"total": a.Total, "charged": a.Charged, "canceled": a.Canceled, "remaining": a.Remaining,
	} {
		if v.IsNegative() {
			return payerror.Invalid("validate ledger", payerror.ErrInconsistentLedger,
				fmt.Sprintf("%s is negative (%s)", name, v.String()))
		}
	}
	if a.Charged.Add(a.Canceled).GreaterThan(a.Total) {
		return payerror.Invalid("validate ledger", payerror.ErrInconsistentLedger,
			fmt.Sprintf("charged %s + canceled %s exceeds total %s", a.Charged, a.Canceled, a.Total))
	}
	if expected := a.Total.Sub(a.Charged).Sub(a.Canceled); !expected.Equal(a.Remaining) {
		return payerror.Invalid("validate ledger", payerror.ErrInconsistentLedger,
			fmt.Sprintf("remaining %s, expected %s", a.Remaining, expected))
	}
	return nil
}

// Equal compares amounts by value, ignoring decimal scale.
func (a Amounts) Equal(b Amounts) bool {
	return a.Total.Equal(b.Total) && a.Charged.Equal(b.Charged) &&
		a.Canceled.Equal(b.Canceled) && a.Remaining.Equal(b.Remaining)
}

func (a Amounts) String() string {
	return fmt.Sprintf("{total %s, charged %s, canceled %s, remaining %s}",
		a.Total, a.Charged, a.Canceled, a.Remaining)
}

func requirePositive(op string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return payerror.InvalidAmount(op, amount)
	}
	return nil
}

// Authorize reserves amount: total and remaining grow.
func (a Amounts) Authorize(amount decimal.Decimal) (Amounts, error) {
	if err := requirePositive("authorize", amount); err != nil {
		return a, err
	}
	a.Total = a.Total.Add(amount)
	a.Remaining = a.Remaining.Add(amount)
	return a, nil
}

// DirectCharge books a charge with no prior authorization: total and charged grow.
// Payouts are booked the same way.
func (a Amounts) DirectCharge(amount decimal.Decimal) (Amounts, error) {
	if err := requirePositive("charge", amount); err != nil {
		return a, err
	}
	a.Total = a.Total.Add(amount)
	a.Charged = a.Charged.Add(amount)
	return a, nil
}

// Capture charges against the authorized remainder.
func (a Amounts) Capture(amount decimal.Decimal) (Amounts, error) {
	if err := requirePositive("charge", amount); err != nil {
		return a, err
	}
	if amount.GreaterThan(a.Remaining) {
		return a, payerror.Overcharge("charge", amount, a.Remaining)
	}
	a.Charged = a.Charged.Add(amount)
	a.Remaining = a.Remaining.Sub(amount)
	return a, nil
}

// Reverse cancels part of the uncaptured authorization.
func (a Amounts) Reverse(amount decimal.Decimal) (Amounts, error) {
	if err := requirePositive("cancel", amount); err != nil {
		return a, err
	}
	if amount.GreaterThan(a.Remaining) {
		return a, payerror.ExceedsCancelable("cancel", amount, a.Remaining)
	}
	a.Canceled = a.Canceled.Add(amount)
	a.Remaining = a.Remaining.Sub(amount)
	return a, nil
}

// Refund moves captured money to canceled. Remaining is unaffected.
func (a Amounts) Refund(amount decimal.Decimal) (Amounts, error) {
	if err := requirePositive("cancel", amount); err != nil {
		return a, err
	}
	if amount.GreaterThan(a.Charged) {
		return a, payerror.ExceedsCancelable("cancel", amount, a.Charged)
	}
	a.Charged = a.Charged.Sub(amount)
	a.Canceled = a.Canceled.Add(amount)
	return a, nil
}

// Cancel applies a cancellation on a target of the given kind.
func (a Amounts) Cancel(kind TargetKind, amount decimal.Decimal) (Amounts, error) {
	if kind == TargetCharge {
		return a.Refund(amount)
	}
	return a.Reverse(amount)
}
