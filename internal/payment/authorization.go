package payment

import (
	"context"

	"fjacquet/payledger/internal/ledger"
	"fjacquet/payledger/internal/resource"
	"fjacquet/payledger/internal/transport"

	"github.com/shopspring/decimal"
)

// Authorization reserves money on a payment. Its reversals are kept in
// creation order.
type Authorization struct {
	TransactionBase
	cancellations []*Cancellation
}

func newAuthorization(s *Session, paymentID string) *Authorization {
	return &Authorization{TransactionBase: newBase(KindAuthorization, s, paymentID)}
}

func (a *Authorization) Path() string {
	return resource.JoinPath("payments", a.paymentID, "authorize", a.ID())
}

func (a *Authorization) Serialize() transport.Snapshot {
	return a.serializeBase()
}

func (a *Authorization) Deserialize(snap transport.Snapshot) error {
	next, err := a.decodeBase(snap)
	if err != nil {
		return err
	}
	a.TransactionBase = next
	return nil
}

// Cancellations returns the reversals of this authorization, oldest first.
func (a *Authorization) Cancellations() []*Cancellation {
	return append([]*Cancellation(nil), a.cancellations...)
}

// Cancellation returns the reversal with the given id.
func (a *Authorization) Cancellation(id string) (*Cancellation, bool) {
	for _, c := range a.cancellations {
		if c.ID() == id {
			return c, true
		}
	}
	return nil, false
}

// Cancel reverses amount of this authorization, or everything still reserved
// when amount is nil. The owning payment is refreshed afterwards.
func (a *Authorization) Cancel(ctx context.Context, amount *decimal.Decimal, opts ...CallOption) (*Cancellation, error) {
	p, err := a.Payment()
	if err != nil {
		return nil, err
	}
	target := ledger.Target{Kind: ledger.TargetAuthorization, ID: a.ID(), Cancelable: p.amounts.Remaining}
	return p.cancel(ctx, []ledger.Target{target}, amount, opts)
}

// Charge captures amount against this authorization, or the full remaining
// amount when amount is nil.
func (a *Authorization) Charge(ctx context.Context, amount *decimal.Decimal, opts ...CallOption) (*Charge, error) {
	p, err := a.Payment()
	if err != nil {
		return nil, err
	}
	return p.Charge(ctx, amount, "", opts...)
}
