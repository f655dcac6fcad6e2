package payment

import (
	"context"
	"errors"

	"fjacquet/payledger/internal/currencyutils"
	"fjacquet/payledger/internal/logging"
	"fjacquet/payledger/internal/payerror"
	"fjacquet/payledger/internal/resource"
	"fjacquet/payledger/internal/transport"

	"github.com/shopspring/decimal"
)

// PayMode is what a hosted payment page does once the customer confirms.
type PayMode string

const (
	PayModeCharge    PayMode = "charge"
	PayModeAuthorize PayMode = "authorize"
)

// Paypage is a hosted payment page. Initialising it opens a payment and yields
// the URL the customer is redirected to.
type Paypage struct {
	resource.Base
	Amount          decimal.Decimal
	Currency        string
	ReturnURL       string
	CustomerID      string
	OrderID         resource.Field[string]
	InvoiceID       resource.Field[string]
	ShopName        resource.Field[string]
	ShopDescription resource.Field[string]
	Tagline         resource.Field[string]
	LogoImage       resource.Field[string]

	mode        PayMode
	paymentID   string
	redirectURL string
}

func (pp *Paypage) Path() string {
	mode := pp.mode
	if mode == "" {
		mode = PayModeCharge
	}
	return resource.JoinPath("paypage", string(mode), pp.ID())
}

func (pp *Paypage) Mode() PayMode       { return pp.mode }
func (pp *Paypage) PaymentID() string   { return pp.paymentID }
func (pp *Paypage) RedirectURL() string { return pp.redirectURL }

func (pp *Paypage) Serialize() transport.Snapshot {
	s := transport.Snapshot{
		"amount":    resource.EncodeAmount(pp.Amount),
		"currency":  pp.Currency,
		"returnUrl": pp.ReturnURL,
	}
	if pp.ID() != "" {
		s["id"] = pp.ID()
	}
	if pp.redirectURL != "" {
		s["redirectUrl"] = pp.redirectURL
	}
	resource.Put(s, "orderId", pp.OrderID, nil)
	resource.Put(s, "invoiceId", pp.InvoiceID, nil)
	resource.Put(s, "shopName", pp.ShopName, nil)
	resource.Put(s, "shopDescription", pp.ShopDescription, nil)
	resource.Put(s, "tagline", pp.Tagline, nil)
	resource.Put(s, "logoImage", pp.LogoImage, nil)
	resources := transport.Snapshot{}
	if pp.paymentID != "" {
		resources["paymentId"] = pp.paymentID
	}
	if pp.CustomerID != "" {
		resources["customerId"] = pp.CustomerID
	}
	if len(resources) > 0 {
		s["resources"] = resources
	}
	return s
}

func (pp *Paypage) Deserialize(snap transport.Snapshot) error {
	amount, _, err := snap.Decimal("amount")
	if err != nil {
		return &payerror.DecodeError{Resource: "paypage", Field: "amount", Value: snap.Str("amount"), Err: err}
	}
	if err := pp.AssignID(snap.Str("id")); err != nil {
		return err
	}
	if !amount.IsZero() {
		pp.Amount = amount
	}
	if v := snap.Str("currency"); v != "" {
		pp.Currency = v
	}
	if v := snap.Str("returnUrl"); v != "" {
		pp.ReturnURL = v
	}
	if v := snap.Str("redirectUrl"); v != "" {
		pp.redirectURL = v
	}
	pp.OrderID = resource.Merge(pp.OrderID, resource.StringField(snap, "orderId"))
	pp.InvoiceID = resource.Merge(pp.InvoiceID, resource.StringField(snap, "invoiceId"))
	pp.ShopName = resource.Merge(pp.ShopName, resource.StringField(snap, "shopName"))
	pp.ShopDescription = resource.Merge(pp.ShopDescription, resource.StringField(snap, "shopDescription"))
	pp.Tagline = resource.Merge(pp.Tagline, resource.StringField(snap, "tagline"))
	pp.LogoImage = resource.Merge(pp.LogoImage, resource.StringField(snap, "logoImage"))
	if res, ok := snap.Object("resources"); ok {
		if v := res.Str("paymentId"); v != "" {
			pp.paymentID = v
		}
		if v := res.Str("customerId"); v != "" {
			pp.CustomerID = v
		}
	}
	return nil
}

// Pay initialises the page in the given mode and returns the payment it opened.
func (pp *Paypage) Pay(ctx context.Context, s *Session, mode PayMode, opts ...CallOption) (*Payment, error) {
	return s.InitPaypage(ctx, pp, mode, opts...)
}

// InitPaypage creates the hosted page on the gateway, registers the payment it
// opened and refreshes it. When only the refresh fails the payment is returned
// together with a *payerror.RefreshError.
func (s *Session) InitPaypage(ctx context.Context, pp *Paypage, mode PayMode, opts ...CallOption) (*Payment, error) {
	const op = "init paypage"
	if err := s.active("paypage"); err != nil {
		return nil, err
	}
	if mode != PayModeCharge && mode != PayModeAuthorize {
		return nil, payerror.Invalid(op, payerror.ErrInvalidRequest, "unknown pay mode "+string(mode))
	}
	if pp.ID() != "" {
		return nil, payerror.Invalid(op, payerror.ErrAlreadyPersisted, "paypage "+pp.ID())
	}
	if !pp.Amount.IsPositive() {
		return nil, payerror.InvalidAmount(op, pp.Amount)
	}
	currency, err := currencyutils.NormalizeCurrency(pp.Currency)
	if err != nil {
		return nil, payerror.Invalid(op, payerror.ErrInvalidRequest, err.Error())
	}
	if pp.ReturnURL == "" {
		return nil, payerror.Invalid(op, payerror.ErrInvalidRequest, "return URL is required")
	}
	if err := checkReturnURL(op, pp.ReturnURL); err != nil {
		return nil, err
	}
	pp.Currency = currency
	pp.mode = mode

	cfg := collect(opts)
	if cfg.idempotencyKey != "" {
		ctx = transport.WithIdempotencyKey(ctx, cfg.idempotencyKey)
	}
	if err := resource.Create(ctx, s.transport, pp); err != nil {
		return nil, err
	}
	if pp.paymentID == "" {
		return nil, &payerror.DecodeError{Resource: "paypage", Field: "resources.paymentId", Err: errors.New("response names no payment")}
	}

	p := newPayment(s)
	_ = p.AssignID(pp.paymentID)
	p.currency = currency
	p.orderID = pp.OrderID
	p.customerID = pp.CustomerID
	if pp.redirectURL != "" {
		p.redirectURL = resource.Set(pp.redirectURL)
	}
	p = s.registry.Register(p)

	s.logger.Info("Paypage initialised",
		logging.F(logging.FieldPaymentID, p.ID()),
		logging.F(logging.FieldOperation, string(mode)))

	if cfg.deferRefresh {
		return p, nil
	}
	if err := s.Refresh(ctx, p); err != nil {
		return p, &payerror.RefreshError{Op: op, PaymentID: p.ID(), TransactionID: pp.ID(), Err: err}
	}
	return p, nil
}
