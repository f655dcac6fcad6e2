package payment

import (
	"context"
	"errors"

	"fjacquet/payledger/internal/currencyutils"
	"fjacquet/payledger/internal/ledger"
	"fjacquet/payledger/internal/logging"
	"fjacquet/payledger/internal/payerror"
	"fjacquet/payledger/internal/resource"
	"fjacquet/payledger/internal/transport"
	"fjacquet/payledger/internal/validation"

	"github.com/shopspring/decimal"
)

// AuthorizeRequest describes a reservation.
type AuthorizeRequest struct {
	Amount     decimal.Decimal
	Currency   string
	ReturnURL  string
	TypeID     string
	CustomerID string
	OrderID    string
}

// ChargeRequest describes a charge that opens a payment without a prior
// authorization.
type ChargeRequest struct {
	Amount           decimal.Decimal
	Currency         string
	ReturnURL        string
	TypeID           string
	CustomerID       string
	OrderID          string
	InvoiceID        string
	PaymentReference string
}

// Amount returns a pointer to d, for the optional amount of Charge and Cancel.
func Amount(d decimal.Decimal) *decimal.Decimal {
	return &d
}

func (p *Payment) label() string {
	if p.ID() == "" {
		return "payment (unsaved)"
	}
	return "payment " + p.ID()
}

// Authorize reserves req.Amount on the payment. It fails with
// payerror.ErrAlreadyAuthorized while an earlier authorization still has money
// reserved.
func (p *Payment) Authorize(ctx context.Context, req AuthorizeRequest, opts ...CallOption) (*Authorization, error) {
	const op = "authorize"
	if err := p.session.active(p.label()); err != nil {
		return nil, err
	}
	if p.authorization != nil {
		if p.amounts.Remaining.IsPositive() {
			return nil, payerror.Invalid(op, payerror.ErrAlreadyAuthorized, p.authorization.ID())
		}
		return nil, payerror.Invalid(op, payerror.ErrInvalidState,
			"authorization "+p.authorization.ID()+" is already resolved")
	}
	if len(p.history) > 0 {
		return nil, payerror.Invalid(op, payerror.ErrInvalidState, "payment already has transactions")
	}
	currency, err := p.resolveCurrency(op, req.Currency, true)
	if err != nil {
		return nil, err
	}
	typeID, err := p.resolveType(op, req.TypeID)
	if err != nil {
		return nil, err
	}
	if err := checkReturnURL(op, req.ReturnURL); err != nil {
		return nil, err
	}
	next, err := p.amounts.Authorize(req.Amount)
	if err != nil {
		return nil, err
	}

	auth := newAuthorization(p.session, p.ID())
	auth.amount = req.Amount
	auth.currency = currency
	auth.returnURL = resource.Optional(req.ReturnURL)
	auth.orderID = resource.Merge(p.orderID, resource.Optional(req.OrderID))
	auth.typeID = typeID
	auth.customerID = firstNonEmpty(req.CustomerID, p.customerID)

	got, err := p.mutate(ctx, op, auth, func() {
		p.amounts = next
		p.currency = currency
		p.typeID = typeID
		p.customerID = auth.customerID
		p.orderID = auth.orderID
		p.attach(auth)
	}, opts)
	return outcome(auth, got, err)
}

// Charge captures amount against the authorization, or the full remaining
// amount when amount is nil. currency may be empty; when given it must match
// the payment currency.
func (p *Payment) Charge(ctx context.Context, amount *decimal.Decimal, currency string, opts ...CallOption) (*Charge, error) {
	const op = "charge"
	if err := p.session.active(p.label()); err != nil {
		return nil, err
	}
	if p.authorization == nil && p.amounts.Total.IsZero() {
		return nil, payerror.Invalid(op, payerror.ErrNoOpenAuthorization, p.label())
	}
	cur, err := p.resolveCurrency(op, currency, false)
	if err != nil {
		return nil, err
	}
	amt := p.amounts.Remaining
	if amount != nil {
		amt = *amount
	} else if !amt.IsPositive() {
		return nil, payerror.Invalid(op, payerror.ErrInvalidState, "nothing left to charge")
	}
	next, err := p.amounts.Capture(amt)
	if err != nil {
		return nil, err
	}

	ch := newCharge(p.session, p.ID())
	ch.amount = amt
	ch.currency = cur
	ch.typeID = p.typeID
	ch.orderID = p.orderID

	got, err := p.mutate(ctx, op, ch, func() {
		p.amounts = next
		p.attach(ch)
	}, opts)
	return outcome(ch, got, err)
}

// directCharge opens the payment with a charge and no authorization.
func (p *Payment) directCharge(ctx context.Context, req ChargeRequest, opts []CallOption) (*Charge, error) {
	const op = "charge"
	if err := p.session.active(p.label()); err != nil {
		return nil, err
	}
	if len(p.history) > 0 {
		return nil, payerror.Invalid(op, payerror.ErrInvalidState, "payment already has transactions")
	}
	currency, err := p.resolveCurrency(op, req.Currency, true)
	if err != nil {
		return nil, err
	}
	typeID, err := p.resolveType(op, req.TypeID)
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

	ch := newCharge(p.session, p.ID())
	ch.amount = req.Amount
	ch.currency = currency
	ch.returnURL = resource.Optional(req.ReturnURL)
	ch.orderID = resource.Optional(req.OrderID)
	ch.typeID = typeID
	ch.customerID = req.CustomerID
	ch.invoiceID = resource.Optional(req.InvoiceID)
	ch.paymentReference = resource.Optional(req.PaymentReference)

	got, err := p.mutate(ctx, op, ch, func() {
		p.amounts = next
		p.currency = currency
		p.typeID = typeID
		p.customerID = req.CustomerID
		p.orderID = ch.orderID
		p.attach(ch)
	}, opts)
	return outcome(ch, got, err)
}

// Cancel gives back amount, or the full cancelable amount of the oldest open
// transaction when amount is nil. Candidates are the authorization and then
// the charges, oldest first; the first one able to absorb the whole amount is
// used. Amounts are never split or clamped.
func (p *Payment) Cancel(ctx context.Context, amount *decimal.Decimal, opts ...CallOption) (*Cancellation, error) {
	if err := p.session.active(p.label()); err != nil {
		return nil, err
	}
	return p.cancel(ctx, p.cancelTargets(), amount, opts)
}

func (p *Payment) cancelTargets() []ledger.Target {
	var targets []ledger.Target
	if p.authorization != nil {
		targets = append(targets, ledger.Target{
			Kind: ledger.TargetAuthorization, ID: p.authorization.ID(), Cancelable: p.amounts.Remaining,
		})
	}
	for _, c := range p.charges {
		targets = append(targets, ledger.Target{Kind: ledger.TargetCharge, ID: c.ID(), Cancelable: c.Cancelable()})
	}
	return targets
}

func (p *Payment) cancel(ctx context.Context, targets []ledger.Target, amount *decimal.Decimal, opts []CallOption) (*Cancellation, error) {
	const op = "cancel"
	target, amt, err := ledger.ResolveCancel(op, targets, amount)
	if err != nil {
		return nil, err
	}
	next, err := p.amounts.Cancel(target.Kind, amt)
	if err != nil {
		return nil, err
	}

	c := newCancellation(p.session, p.ID(), target.Kind, target.ID)
	c.amount = amt
	c.currency = p.currency

	got, err := p.mutate(ctx, op, c, func() {
		p.amounts = next
		p.attach(c)
	}, opts)
	return outcome(c, got, err)
}

// Ship reports the shipment of a completed payment.
func (p *Payment) Ship(ctx context.Context, invoiceID string, opts ...CallOption) (*Shipment, error) {
	const op = "ship"
	if err := p.session.active(p.label()); err != nil {
		return nil, err
	}
	if p.state != ledger.Completed {
		return nil, payerror.Invalid(op, payerror.ErrInvalidState, p.label()+" is "+p.state.String())
	}

	sh := newShipment(p.session, p.ID())
	sh.currency = p.currency
	sh.invoiceID = resource.Optional(invoiceID)

	got, err := p.mutate(ctx, op, sh, func() {
		p.attach(sh)
	}, opts)
	return outcome(sh, got, err)
}

// mutate posts tx and, once the gateway accepted it, runs commit to attach it
// and apply the ledger delta. It then refreshes the payment unless the caller
// deferred that or the response already carried the full payment.
//
// A response naming a transaction the payment already holds is a replay of an
// idempotent request: the known transaction is updated and returned, and commit
// does not run.
func (p *Payment) mutate(ctx context.Context, op string, tx Transaction, commit func(), opts []CallOption) (Transaction, error) {
	s := p.session
	cfg := collect(opts)
	if cfg.idempotencyKey != "" {
		ctx = transport.WithIdempotencyKey(ctx, cfg.idempotencyKey)
	}
	log := s.logger.WithFields(
		logging.F(logging.FieldOperation, op),
		logging.F(logging.FieldPaymentID, p.ID()),
		logging.F(logging.FieldAmount, tx.Amount().String()),
	)

	path := tx.Path()
	snap, err := s.transport.Send(ctx, transport.MethodPost, path, tx.Serialize())
	if err != nil {
		log.WithError(err).Warn("Gateway did not accept " + op)
		return nil, err
	}
	unreadable := func(err error) error {
		log.WithError(err).Error("Gateway accepted " + op + " but the response is unreadable")
		return &payerror.ResponseError{Op: op, Path: path, Err: err}
	}
	if err := tx.Deserialize(snap); err != nil {
		return nil, unreadable(err)
	}

	b := tx.base()
	owner := p
	if !p.IsPersisted() {
		if b.paymentID == "" {
			return nil, unreadable(&payerror.DecodeError{Resource: op, Field: "resources.paymentId", Err: errors.New("response names no payment")})
		}
		if existing, ok := s.registry.Lookup(b.paymentID); ok {
			if _, known := existing.transaction(tx.Kind(), tx.ID()); known {
				owner = existing
			}
		}
	}
	if known, ok := owner.transaction(tx.Kind(), tx.ID()); ok {
		if err := known.Deserialize(snap); err != nil {
			return nil, unreadable(err)
		}
		log.Info("Gateway replayed "+op,
			logging.F(logging.FieldTransactionID, known.ID()),
			logging.F(logging.FieldPaymentID, owner.ID()))
		return known, owner.settle(ctx, op, known, snap, cfg, log)
	}

	if !p.IsPersisted() {
		if err := p.AssignID(b.paymentID); err != nil {
			return nil, unreadable(err)
		}
		s.registry.Register(p)
	} else if err := b.bindPayment(p.ID()); err != nil {
		return nil, unreadable(err)
	}
	if url := b.RedirectURL(); url != "" {
		p.redirectURL = resource.Set(url)
	}

	commit()
	p.state = ledger.Derive(p.amounts, p.flag)
	log.Info("Gateway accepted "+op,
		logging.F(logging.FieldTransactionID, tx.ID()),
		logging.F(logging.FieldPaymentID, p.ID()),
		logging.F(logging.FieldState, p.state.String()))
	return tx, p.settle(ctx, op, tx, snap, cfg, log)
}

// settle brings p up to date after the gateway accepted tx.
func (p *Payment) settle(ctx context.Context, op string, tx Transaction, snap transport.Snapshot, cfg callOptions, log logging.Logger) error {
	if embedded, ok := snap.Object("payment"); ok {
		if err := p.Deserialize(embedded); err == nil {
			return nil
		}
	}
	if cfg.deferRefresh {
		return nil
	}
	if err := p.session.Refresh(ctx, p); err != nil {
		log.WithError(err).Warn("Refresh after " + op + " failed")
		return &payerror.RefreshError{Op: op, PaymentID: p.ID(), TransactionID: tx.ID(), Err: err}
	}
	return nil
}

// transaction finds a transaction p already holds.
func (p *Payment) transaction(kind Kind, id string) (Transaction, bool) {
	if id == "" {
		return nil, false
	}
	for _, tx := range p.history {
		if tx.Kind() == kind && tx.ID() == id {
			return tx, true
		}
	}
	return nil, false
}

// outcome returns the transaction the gateway holds: the known one on a
// replay, else fresh. It is kept when only the refresh failed.
func outcome[T Transaction](fresh T, got Transaction, err error) (T, error) {
	tx := fresh
	if known, ok := got.(T); ok {
		tx = known
	}
	if err == nil {
		return tx, nil
	}
	var refreshErr *payerror.RefreshError
	if errors.As(err, &refreshErr) {
		return tx, err
	}
	var zero T
	return zero, err
}

func (p *Payment) resolveCurrency(op, currency string, required bool) (string, error) {
	if currency == "" {
		if required && p.currency == "" {
			return "", payerror.Invalid(op, payerror.ErrInvalidRequest, "currency is required")
		}
		return p.currency, nil
	}
	norm, err := currencyutils.NormalizeCurrency(currency)
	if err != nil {
		return "", payerror.Invalid(op, payerror.ErrInvalidRequest, err.Error())
	}
	if p.currency != "" && norm != p.currency {
		return "", payerror.Invalid(op, payerror.ErrCurrencyMismatch, norm+" != "+p.currency)
	}
	return norm, nil
}

func (p *Payment) resolveType(op, typeID string) (string, error) {
	if id := firstNonEmpty(typeID, p.typeID); id != "" {
		return id, nil
	}
	return "", payerror.Invalid(op, payerror.ErrMissingPaymentType, p.label())
}

func checkReturnURL(op, url string) error {
	if err := validation.IsValidReturnURL(url); err != nil {
		return payerror.Invalid(op, payerror.ErrInvalidRequest, err.Error())
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
