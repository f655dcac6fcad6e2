package payment

import (
	"context"

	"fjacquet/payledger/internal/ledger"
	"fjacquet/payledger/internal/resource"
	"fjacquet/payledger/internal/transport"

	"github.com/shopspring/decimal"
)

// Instructions are the bank transfer details the gateway returns for charges
// the customer settles by transfer, e.g. prepayment.
type Instructions struct {
	Holder     string
	IBAN       string
	BIC        string
	Descriptor string
}

// Charge moves money. Its refunds are kept in creation order.
type Charge struct {
	TransactionBase
	invoiceID        resource.Field[string]
	paymentReference resource.Field[string]
	instructions     Instructions
	cancellations    []*Cancellation
}

func newCharge(s *Session, paymentID string) *Charge {
	return &Charge{TransactionBase: newBase(KindCharge, s, paymentID)}
}

func (c *Charge) Path() string {
	return resource.JoinPath("payments", c.paymentID, "charges", c.ID())
}

func (c *Charge) InvoiceID() string          { return c.invoiceID.Or("") }
func (c *Charge) PaymentReference() string   { return c.paymentReference.Or("") }
func (c *Charge) Instructions() Instructions { return c.instructions }

func (c *Charge) Serialize() transport.Snapshot {
	s := c.serializeBase()
	resource.Put(s, "invoiceId", c.invoiceID, nil)
	resource.Put(s, "paymentReference", c.paymentReference, nil)
	putNonEmpty(s, "holder", c.instructions.Holder)
	putNonEmpty(s, "iban", c.instructions.IBAN)
	putNonEmpty(s, "bic", c.instructions.BIC)
	putNonEmpty(s, "descriptor", c.instructions.Descriptor)
	return s
}

func (c *Charge) Deserialize(snap transport.Snapshot) error {
	next, err := c.decodeBase(snap)
	if err != nil {
		return err
	}
	c.TransactionBase = next
	c.invoiceID = resource.Merge(c.invoiceID, resource.StringField(snap, "invoiceId"))
	c.paymentReference = resource.Merge(c.paymentReference, resource.StringField(snap, "paymentReference"))
	if v := snap.Str("holder"); v != "" {
		c.instructions.Holder = v
	}
	if v := snap.Str("iban"); v != "" {
		c.instructions.IBAN = v
	}
	if v := snap.Str("bic"); v != "" {
		c.instructions.BIC = v
	}
	if v := snap.Str("descriptor"); v != "" {
		c.instructions.Descriptor = v
	}
	return nil
}

// Cancellations returns the refunds of this charge, oldest first.
func (c *Charge) Cancellations() []*Cancellation {
	return append([]*Cancellation(nil), c.cancellations...)
}

// Cancellation returns the refund with the given id.
func (c *Charge) Cancellation(id string) (*Cancellation, bool) {
	for _, r := range c.cancellations {
		if r.ID() == id {
			return r, true
		}
	}
	return nil, false
}

// Cancelable is the charged amount not yet refunded.
func (c *Charge) Cancelable() decimal.Decimal {
	left := c.amount
	for _, r := range c.cancellations {
		left = left.Sub(r.amount)
	}
	if left.IsNegative() {
		return decimal.Zero
	}
	return left
}

// Cancel refunds amount of this charge, or everything not yet refunded when
// amount is nil. The owning payment is refreshed afterwards.
func (c *Charge) Cancel(ctx context.Context, amount *decimal.Decimal, opts ...CallOption) (*Cancellation, error) {
	p, err := c.Payment()
	if err != nil {
		return nil, err
	}
	target := ledger.Target{Kind: ledger.TargetCharge, ID: c.ID(), Cancelable: c.Cancelable()}
	return p.cancel(ctx, []ledger.Target{target}, amount, opts)
}

func putNonEmpty(s transport.Snapshot, key, value string) {
	if value != "" {
		s[key] = value
	}
}
