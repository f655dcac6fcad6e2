package ledger

import (
	"fjacquet/payledger/internal/payerror"

	"github.com/shopspring/decimal"
)

// TargetKind says what a cancellation is attached to.
type TargetKind int

const (
	TargetAuthorization TargetKind = iota
	TargetCharge
)

func (k TargetKind) String() string {
	if k == TargetCharge {
		return "charge"
	}
	return "authorization"
}

// Target is a transaction a cancellation can land on, with the amount it can
// still absorb.
type Target struct {
	Kind       TargetKind
	ID         string
	Cancelable decimal.Decimal
}

// ResolveCancel picks where a cancellation of amount lands. targets are ordered
// oldest first; the first one able to absorb the whole amount wins. A nil amount
// means the full cancelable amount of the oldest open target. Amounts are never
// split across targets or clamped.
func ResolveCancel(op string, targets []Target, amount *decimal.Decimal) (Target, decimal.Decimal, error) {
	if amount == nil {
		for _, t := range targets {
			if t.Cancelable.IsPositive() {
				return t, t.Cancelable, nil
			}
		}
		return Target{}, decimal.Zero, &payerror.ValidationError{
			Op:     op,
			Reason: payerror.ErrExceedsCancelableAmount,
			Detail: "nothing left to cancel",
		}
	}

	if !amount.IsPositive() {
		return Target{}, decimal.Zero, payerror.InvalidAmount(op, *amount)
	}
	largest := decimal.Zero
	for _, t := range targets {
		if t.Cancelable.GreaterThanOrEqual(*amount) {
			return t, *amount, nil
		}
		if t.Cancelable.GreaterThan(largest) {
			largest = t.Cancelable
		}
	}
	return Target{}, decimal.Zero, payerror.ExceedsCancelable(op, *amount, largest)
}
