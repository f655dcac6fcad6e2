// Package paymenttype holds the payment methods a payment can be made with.
// Each type implements only the capabilities its method supports, so asking a
// prepayment for an authorization does not compile.
package paymenttype

import (
	"context"
	"strings"

	"fjacquet/payledger/internal/payment"
	"fjacquet/payledger/internal/resource"
	"fjacquet/payledger/internal/transport"
)

// Type names as they appear in gateway paths.
const (
	NameCard            = "card"
	NameSepaDirectDebit = "sepa-direct-debit"
	NamePrepayment      = "prepayment"
	NamePaypal          = "paypal"
)

func typePath(name, id string) string {
	return resource.JoinPath("types", name, id)
}

func serializeID(id string) transport.Snapshot {
	s := transport.Snapshot{}
	if id != "" {
		s["id"] = id
	}
	return s
}

func mergeString(dst *string, snap transport.Snapshot, key string) {
	if v := snap.Str(key); v != "" {
		*dst = v
	}
}

// New returns an empty payment type for name, e.g. to fetch it by id.
func New(name string) (payment.PaymentType, bool) {
	switch name {
	case NameCard:
		return &Card{}, true
	case NameSepaDirectDebit:
		return &SepaDirectDebit{}, true
	case NamePrepayment:
		return &Prepayment{}, true
	case NamePaypal:
		return &Paypal{}, true
	}
	return nil, false
}

// idPrefixes maps the short code in a type id, e.g. "crd" in "s-crd-1", to
// the type name.
var idPrefixes = map[string]string{
	"crd": NameCard,
	"sdd": NameSepaDirectDebit,
	"ppy": NamePrepayment,
	"ppl": NamePaypal,
}

// FromID returns an empty payment type carrying id, for ids of the form
// "s-crd-..." or "p-sdd-...". The caller fetches it to load its fields.
func FromID(id string) (payment.PaymentType, bool) {
	parts := strings.SplitN(id, "-", 3)
	if len(parts) != 3 || parts[2] == "" {
		return nil, false
	}
	name, ok := idPrefixes[parts[1]]
	if !ok {
		return nil, false
	}
	pt, _ := New(name)
	if err := pt.Deserialize(transport.Snapshot{"id": id}); err != nil {
		return nil, false
	}
	return pt, true
}

// Card is a credit or debit card. The gateway only ever returns the masked
// number; the CVC is write-only.
type Card struct {
	payment.TypeBase
	Number     string
	ExpiryDate string
	Holder     string
	CVC        string
	Brand      string
}

var (
	_ payment.Authorizable = (*Card)(nil)
	_ payment.Chargeable   = (*Card)(nil)
	_ payment.Payoutable   = (*Card)(nil)
)

func (c *Card) TypeName() string { return NameCard }
func (c *Card) Path() string     { return typePath(NameCard, c.ID()) }

func (c *Card) Serialize() transport.Snapshot {
	s := serializeID(c.ID())
	s["number"] = c.Number
	s["expiryDate"] = c.ExpiryDate
	if c.Holder != "" {
		s["cardHolder"] = c.Holder
	}
	if c.CVC != "" {
		s["cvc"] = c.CVC
	}
	if c.Brand != "" {
		s["brand"] = c.Brand
	}
	return s
}

func (c *Card) Deserialize(snap transport.Snapshot) error {
	if err := c.AssignID(snap.Str("id")); err != nil {
		return err
	}
	mergeString(&c.Number, snap, "number")
	mergeString(&c.ExpiryDate, snap, "expiryDate")
	mergeString(&c.Holder, snap, "cardHolder")
	mergeString(&c.Brand, snap, "brand")
	c.CVC = ""
	return nil
}

func (c *Card) Authorize(ctx context.Context, s *payment.Session, req payment.AuthorizeRequest, opts ...payment.CallOption) (*payment.Authorization, error) {
	return s.Authorize(ctx, c, req, opts...)
}

func (c *Card) Charge(ctx context.Context, s *payment.Session, req payment.ChargeRequest, opts ...payment.CallOption) (*payment.Charge, error) {
	return s.Charge(ctx, c, req, opts...)
}

func (c *Card) Payout(ctx context.Context, s *payment.Session, req payment.PayoutRequest, opts ...payment.CallOption) (*payment.Payout, error) {
	return s.Payout(ctx, c, req, opts...)
}

// SepaDirectDebit pulls money from a bank account under a mandate.
type SepaDirectDebit struct {
	payment.TypeBase
	IBAN   string
	BIC    string
	Holder string
}

var (
	_ payment.Chargeable = (*SepaDirectDebit)(nil)
	_ payment.Payoutable = (*SepaDirectDebit)(nil)
)

func (sd *SepaDirectDebit) TypeName() string { return NameSepaDirectDebit }
func (sd *SepaDirectDebit) Path() string     { return typePath(NameSepaDirectDebit, sd.ID()) }

func (sd *SepaDirectDebit) Serialize() transport.Snapshot {
	s := serializeID(sd.ID())
	s["iban"] = sd.IBAN
	if sd.BIC != "" {
		s["bic"] = sd.BIC
	}
	if sd.Holder != "" {
		s["holder"] = sd.Holder
	}
	return s
}

func (sd *SepaDirectDebit) Deserialize(snap transport.Snapshot) error {
	if err := sd.AssignID(snap.Str("id")); err != nil {
		return err
	}
	mergeString(&sd.IBAN, snap, "iban")
	mergeString(&sd.BIC, snap, "bic")
	mergeString(&sd.Holder, snap, "holder")
	return nil
}

func (sd *SepaDirectDebit) Charge(ctx context.Context, s *payment.Session, req payment.ChargeRequest, opts ...payment.CallOption) (*payment.Charge, error) {
	return s.Charge(ctx, sd, req, opts...)
}

func (sd *SepaDirectDebit) Payout(ctx context.Context, s *payment.Session, req payment.PayoutRequest, opts ...payment.CallOption) (*payment.Payout, error) {
	return s.Payout(ctx, sd, req, opts...)
}

// Prepayment is settled by bank transfer. The charge carries the transfer
// instructions to show to the customer.
type Prepayment struct {
	payment.TypeBase
}

var _ payment.Chargeable = (*Prepayment)(nil)

func (pp *Prepayment) TypeName() string { return NamePrepayment }
func (pp *Prepayment) Path() string     { return typePath(NamePrepayment, pp.ID()) }

func (pp *Prepayment) Serialize() transport.Snapshot {
	return serializeID(pp.ID())
}

func (pp *Prepayment) Deserialize(snap transport.Snapshot) error {
	return pp.AssignID(snap.Str("id"))
}

func (pp *Prepayment) Charge(ctx context.Context, s *payment.Session, req payment.ChargeRequest, opts ...payment.CallOption) (*payment.Charge, error) {
	return s.Charge(ctx, pp, req, opts...)
}

// Paypal redirects the customer to PayPal to approve the payment.
type Paypal struct {
	payment.TypeBase
	Email string
}

var (
	_ payment.Authorizable = (*Paypal)(nil)
	_ payment.Chargeable   = (*Paypal)(nil)
)

func (pp *Paypal) TypeName() string { return NamePaypal }
func (pp *Paypal) Path() string     { return typePath(NamePaypal, pp.ID()) }

func (pp *Paypal) Serialize() transport.Snapshot {
	s := serializeID(pp.ID())
	if pp.Email != "" {
		s["email"] = pp.Email
	}
	return s
}

func (pp *Paypal) Deserialize(snap transport.Snapshot) error {
	if err := pp.AssignID(snap.Str("id")); err != nil {
		return err
	}
	mergeString(&pp.Email, snap, "email")
	return nil
}

func (pp *Paypal) Authorize(ctx context.Context, s *payment.Session, req payment.AuthorizeRequest, opts ...payment.CallOption) (*payment.Authorization, error) {
	return s.Authorize(ctx, pp, req, opts...)
}

func (pp *Paypal) Charge(ctx context.Context, s *payment.Session, req payment.ChargeRequest, opts ...payment.CallOption) (*payment.Charge, error) {
	return s.Charge(ctx, pp, req, opts...)
}
