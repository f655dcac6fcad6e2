package payment

import (
	"context"

	"fjacquet/payledger/internal/payerror"
	"fjacquet/payledger/internal/resource"
)

// FetchPayment loads the payment with the given id, including all of its
// transactions, and registers it in the session. A payment that is already
// registered is refreshed in place.
func (s *Session) FetchPayment(ctx context.Context, id string) (*Payment, error) {
	if err := s.active("payment " + id); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, payerror.Invalid("fetch payment", payerror.ErrUnsavedResource, "no payment id given")
	}
	if p, ok := s.registry.Lookup(id); ok {
		if err := s.Refresh(ctx, p); err != nil {
			return nil, err
		}
		return p, nil
	}

	p := newPayment(s)
	_ = p.AssignID(id)
	if err := s.Refresh(ctx, p); err != nil {
		return nil, err
	}
	return s.registry.Register(p), nil
}

func notFound(path string) error {
	return &payerror.NotFoundError{Path: path, MerchantMessage: "no such transaction on the payment"}
}

// FetchAuthorization returns the authorization of a payment.
func (s *Session) FetchAuthorization(ctx context.Context, paymentID string) (*Authorization, error) {
	p, err := s.FetchPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.authorization == nil {
		return nil, notFound(resource.JoinPath("payments", paymentID, "authorize"))
	}
	return p.authorization, nil
}

// FetchCharge returns one charge of a payment.
func (s *Session) FetchCharge(ctx context.Context, paymentID, chargeID string) (*Charge, error) {
	p, err := s.FetchPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if c, ok := p.ChargeByID(chargeID); ok {
		return c, nil
	}
	return nil, notFound(resource.JoinPath("payments", paymentID, "charges", chargeID))
}

// FetchReversal returns a reversal of the payment's authorization.
func (s *Session) FetchReversal(ctx context.Context, paymentID, cancellationID string) (*Cancellation, error) {
	auth, err := s.FetchAuthorization(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if c, ok := auth.Cancellation(cancellationID); ok {
		return c, nil
	}
	return nil, notFound(resource.JoinPath(auth.Path(), "cancels", cancellationID))
}

// FetchReversalByAuthorization refreshes the authorization's payment and
// returns one of the authorization's reversals.
func (s *Session) FetchReversalByAuthorization(ctx context.Context, auth *Authorization, cancellationID string) (*Cancellation, error) {
	if auth == nil {
		return nil, payerror.Invalid("fetch reversal", payerror.ErrUnsavedResource, "no authorization given")
	}
	p, err := s.FetchPayment(ctx, auth.PaymentID())
	if err != nil {
		return nil, err
	}
	if p.authorization == nil || p.authorization.ID() != auth.ID() {
		return nil, notFound(auth.Path())
	}
	if c, ok := p.authorization.Cancellation(cancellationID); ok {
		return c, nil
	}
	return nil, notFound(resource.JoinPath(auth.Path(), "cancels", cancellationID))
}

// FetchRefund returns a refund of one of the payment's charges.
func (s *Session) FetchRefund(ctx context.Context, paymentID, chargeID, cancellationID string) (*Cancellation, error) {
	c, err := s.FetchCharge(ctx, paymentID, chargeID)
	if err != nil {
		return nil, err
	}
	if r, ok := c.Cancellation(cancellationID); ok {
		return r, nil
	}
	return nil, notFound(resource.JoinPath(c.Path(), "cancels", cancellationID))
}

// FetchShipment returns one shipment of a payment.
func (s *Session) FetchShipment(ctx context.Context, paymentID, shipmentID string) (*Shipment, error) {
	p, err := s.FetchPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	for _, sh := range p.shipments {
		if sh.ID() == shipmentID {
			return sh, nil
		}
	}
	return nil, notFound(resource.JoinPath("payments", paymentID, "shipments", shipmentID))
}

// FetchPayout returns the payout of a payment.
func (s *Session) FetchPayout(ctx context.Context, paymentID string) (*Payout, error) {
	p, err := s.FetchPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.payout == nil {
		return nil, notFound(resource.JoinPath("payments", paymentID, "payouts"))
	}
	return p.payout, nil
}
