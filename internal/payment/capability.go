package payment

import (
	"context"

	"fjacquet/payledger/internal/payerror"
	"fjacquet/payledger/internal/resource"

	"github.com/shopspring/decimal"
)

// PaymentType is a payment method resource such as a card. Concrete types embed
// TypeBase.
type PaymentType interface {
	resource.Resource
	TypeName() string
	typeBase() *TypeBase
}

// TypeBase gives a payment type its identity and remembers the session that
// created or fetched it.
type TypeBase struct {
	resource.Base
	sessionID string
}

func (b *TypeBase) typeBase() *TypeBase { return b }

// Authorizable payment types can reserve money.
type Authorizable interface {
	PaymentType
	Authorize(ctx context.Context, s *Session, req AuthorizeRequest, opts ...CallOption) (*Authorization, error)
}

// Chargeable payment types can be charged without a prior authorization.
type Chargeable interface {
	PaymentType
	Charge(ctx context.Context, s *Session, req ChargeRequest, opts ...CallOption) (*Charge, error)
}

// Payoutable payment types can receive money.
type Payoutable interface {
	PaymentType
	Payout(ctx context.Context, s *Session, req PayoutRequest, opts ...CallOption) (*Payout, error)
}

// Payable resources open a payment that the customer completes elsewhere.
type Payable interface {
	Pay(ctx context.Context, s *Session, mode PayMode, opts ...CallOption) (*Payment, error)
}

// Cancelable is implemented by Payment, Authorization and Charge.
type Cancelable interface {
	Cancel(ctx context.Context, amount *decimal.Decimal, opts ...CallOption) (*Cancellation, error)
}

var (
	_ Cancelable = (*Payment)(nil)
	_ Cancelable = (*Authorization)(nil)
	_ Cancelable = (*Charge)(nil)
	_ Payable    = (*Paypage)(nil)
)

// PayoutRequest describes a payout.
type PayoutRequest struct {
	Amount           decimal.Decimal
	Currency         string
	ReturnURL        string
	CustomerID       string
	OrderID          string
	InvoiceID        string
	PaymentReference string
}

func typeLabel(pt PaymentType) string {
	if pt.ID() == "" {
		return pt.TypeName() + " (unsaved)"
	}
	return pt.TypeName() + " " + pt.ID()
}

// checkType fails when pt cannot act through s.
func (s *Session) checkType(pt PaymentType) error {
	if pt == nil {
		return payerror.Invalid("use payment type", payerror.ErrMissingPaymentType, "nil payment type")
	}
	if err := s.active(typeLabel(pt)); err != nil {
		return err
	}
	switch b := pt.typeBase(); {
	case !b.IsPersisted():
		return &payerror.DetachedResourceError{Resource: typeLabel(pt), Reason: "payment type has not been created"}
	case b.sessionID != s.id:
		return &payerror.DetachedResourceError{Resource: typeLabel(pt), Reason: "payment type belongs to another session"}
	}
	return nil
}

// CreatePaymentType registers pt with the gateway and binds it to s.
func (s *Session) CreatePaymentType(ctx context.Context, pt PaymentType) error {
	if err := s.active(typeLabel(pt)); err != nil {
		return err
	}
	if err := resource.Create(ctx, s.transport, pt); err != nil {
		return err
	}
	pt.typeBase().sessionID = s.id
	return nil
}

// FetchPaymentType loads pt, which must carry an id, and binds it to s.
func (s *Session) FetchPaymentType(ctx context.Context, pt PaymentType) error {
	if err := s.active(typeLabel(pt)); err != nil {
		return err
	}
	if err := resource.Fetch(ctx, s.transport, pt); err != nil {
		return err
	}
	pt.typeBase().sessionID = s.id
	return nil
}

// Authorize opens a new payment with an authorization on pt.
func (s *Session) Authorize(ctx context.Context, pt PaymentType, req AuthorizeRequest, opts ...CallOption) (*Authorization, error) {
	if err := s.checkType(pt); err != nil {
		return nil, err
	}
	req.TypeID = pt.ID()
	return newPayment(s).Authorize(ctx, req, opts...)
}

// Charge opens a new payment with a direct charge on pt.
func (s *Session) Charge(ctx context.Context, pt PaymentType, req ChargeRequest, opts ...CallOption) (*Charge, error) {
	if err := s.checkType(pt); err != nil {
		return nil, err
	}
	req.TypeID = pt.ID()
	return newPayment(s).directCharge(ctx, req, opts)
}

// Payout opens a new payment that sends req.Amount to pt.
func (s *Session) Payout(ctx context.Context, pt PaymentType, req PayoutRequest, opts ...CallOption) (*Payout, error) {
	const op = "payout"
	if err := s.checkType(pt); err != nil {
		return nil, err
	}
	p := newPayment(s)
	currency, err := p.resolveCurrency(op, req.Currency, true)
	if err != nil {
		return nil, err
	}
	if err := checkReturnURL(op, req.ReturnURL); err != nil {
		return nil, err
	}
	next, err := p.amounts.DirectCharge(req.Amount)
	if err != nil {
		return nil, err
	}

	po := newPayout(s, "")
	po.amount = req.Amount
	po.currency = currency
	po.returnURL = resource.Optional(req.ReturnURL)
	po.orderID = resource.Optional(req.OrderID)
	po.typeID = pt.ID()
	po.customerID = req.CustomerID
	po.invoiceID = resource.Optional(req.InvoiceID)
	po.paymentReference = resource.Optional(req.PaymentReference)

	got, err := p.mutate(ctx, op, po, func() {
		p.amounts = next
		p.currency = currency
		p.typeID = pt.ID()
		p.customerID = req.CustomerID
		p.orderID = po.orderID
		p.attach(po)
	}, opts)
	return outcome(po, got, err)
}
