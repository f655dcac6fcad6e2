package sandbox

import (
	"fmt"
	"strings"
	"time"

	"fjacquet/payledger/internal/ledger"
	"fjacquet/payledger/internal/transport"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sandbox bank account shown in prepayment instructions.
const (
	sandboxHolder = "Payledger Sandbox"
	sandboxIBAN   = "DE89370400440532013000"
	sandboxBIC    = "COBADEFFXXX"
)

type typeSpec struct {
	prefix string
	can    map[string]bool
}

var typeSpecs = map[string]typeSpec{
	"card":              {prefix: "crd", can: map[string]bool{"authorize": true, "charge": true, "payout": true}},
	"sepa-direct-debit": {prefix: "sdd", can: map[string]bool{"charge": true, "payout": true}},
	"prepayment":        {prefix: "ppy", can: map[string]bool{"charge": true}},
	"paypal":            {prefix: "ppl", can: map[string]bool{"authorize": true, "charge": true}},
}

type cardRequest struct {
	Number     string `validate:"required,numeric,min=12,max=19"`
	ExpiryDate string `validate:"required,len=7"`
	Holder     string `validate:"max=255"`
	CVC        string `validate:"omitempty,numeric,min=3,max=4"`
	Brand      string `validate:"max=32"`
}

type sepaRequest struct {
	IBAN   string `validate:"required,alphanum,min=15,max=34"`
	BIC    string `validate:"omitempty,alphanum,min=8,max=11"`
	Holder string `validate:"max=255"`
}

type paypalRequest struct {
	Email string `validate:"omitempty,email"`
}

// txRequest is the part of a transaction request the sandbox looks at.
type txRequest struct {
	Amount           decimal.Decimal `validate:"-"`
	HasAmount        bool            `validate:"-"`
	Currency         string          `validate:"omitempty,len=3,alpha,uppercase"`
	ReturnURL        string          `validate:"omitempty,url"`
	OrderID          string          `validate:"max=255"`
	InvoiceID        string          `validate:"max=255"`
	PaymentReference string          `validate:"max=255"`
	TypeID           string          `validate:"max=64"`
	CustomerID       string          `validate:"max=64"`
}

func (g *Gateway) parseTransaction(body transport.Snapshot) (txRequest, error) {
	var req txRequest
	amount, ok, err := body.Decimal("amount")
	if err != nil {
		return req, reject(CodeInvalidAmount, err.Error(), "The amount is not valid.")
	}
	req.Amount, req.HasAmount = amount, ok
	req.Currency = body.Str("currency")
	req.ReturnURL = body.Str("returnUrl")
	req.OrderID = body.Str("orderId")
	req.InvoiceID = body.Str("invoiceId")
	req.PaymentReference = body.Str("paymentReference")
	if res, ok := body.Object("resources"); ok {
		req.TypeID = res.Str("typeId")
		req.CustomerID = res.Str("customerId")
	}
	if err := g.validate.Struct(req); err != nil {
		return req, invalidRequest(err.Error())
	}
	return req, nil
}

func (g *Gateway) createType(name string, body transport.Snapshot) (transport.Snapshot, error) {
	kind, ok := typeSpecs[name]
	if !ok {
		return nil, reject(CodeUnknownType, "unknown payment type "+name, "This payment method is not available.")
	}

	fields := map[string]string{}
	var req any
	switch name {
	case "card":
		card := cardRequest{
			Number:     body.Str("number"),
			ExpiryDate: body.Str("expiryDate"),
			Holder:     body.Str("cardHolder"),
			CVC:        body.Str("cvc"),
			Brand:      body.Str("brand"),
		}
		req = card
		fields["number"] = maskCardNumber(card.Number)
		fields["expiryDate"] = card.ExpiryDate
		fields["cardHolder"] = card.Holder
		fields["brand"] = card.Brand
	case "sepa-direct-debit":
		sepa := sepaRequest{IBAN: body.Str("iban"), BIC: body.Str("bic"), Holder: body.Str("holder")}
		req = sepa
		fields["iban"] = sepa.IBAN
		fields["bic"] = sepa.BIC
		fields["holder"] = sepa.Holder
	case "paypal":
		pp := paypalRequest{Email: body.Str("email")}
		req = pp
		fields["email"] = pp.Email
	}
	if req != nil {
		if err := g.validate.Struct(req); err != nil {
			return nil, invalidRequest(err.Error())
		}
	}
	for k, v := range fields {
		if v == "" {
			delete(fields, k)
		}
	}

	seq, err := g.store.NextSequence(BucketTypes)
	if err != nil {
		return nil, storageError(err)
	}
	t := typeRecord{ID: fmt.Sprintf("s-%s-%d", kind.prefix, seq), Name: name, Fields: fields}
	if err := g.store.Put(BucketTypes, t.ID, t); err != nil {
		return nil, storageError(err)
	}
	return t.snapshot(), nil
}

// typeFor resolves the payment type a transaction runs on and checks that it
// supports op.
func (g *Gateway) typeFor(p *paymentRecord, req txRequest, op string) (*typeRecord, error) {
	id := req.TypeID
	if id == "" && p != nil {
		id = p.TypeID
	}
	if id == "" {
		return nil, invalidRequest("resources.typeId is required")
	}
	t, err := g.loadType(id)
	if err != nil {
		return nil, reject(CodeUnknownType, "unknown payment type "+id, "This payment method is not available.")
	}
	if !typeSpecs[t.Name].can[op] {
		return nil, reject(CodeUnsupportedByType, t.Name+" does not support "+op, "This payment method is not available.")
	}
	return t, nil
}

// open returns p, or a new payment when p is nil, after checking the request
// currency against it.
func (g *Gateway) open(p *paymentRecord, req txRequest) (*paymentRecord, error) {
	if p == nil {
		if req.Currency == "" {
			return nil, invalidRequest("currency is required")
		}
		seq, err := g.store.NextSequence(BucketPayments)
		if err != nil {
			return nil, storageError(err)
		}
		return &paymentRecord{
			ID:         fmt.Sprintf("s-pay-%d", seq),
			Currency:   req.Currency,
			OrderID:    req.OrderID,
			CustomerID: req.CustomerID,
		}, nil
	}
	if err := checkCurrency(p, req); err != nil {
		return nil, err
	}
	if p.Currency == "" {
		p.Currency = req.Currency
	}
	return p, nil
}

func checkCurrency(p *paymentRecord, req txRequest) error {
	if req.Currency != "" && p.Currency != "" && req.Currency != p.Currency {
		return reject(CodeCurrencyMismatch,
			fmt.Sprintf("currency %s does not match payment currency %s", req.Currency, p.Currency),
			"The currency is not valid for this payment.")
	}
	return nil
}

func requireAmount(req txRequest) (decimal.Decimal, error) {
	if !req.HasAmount || !req.Amount.IsPositive() {
		return decimal.Zero, reject(CodeInvalidAmount,
			"amount must be greater than zero, got "+req.Amount.String(), "The amount is not valid.")
	}
	return req.Amount, nil
}

func (g *Gateway) newTransaction(p *paymentRecord, kind string, amount decimal.Decimal, req txRequest) (*txRecord, error) {
	seq, err := g.store.NextSequence(BucketProcessing)
	if err != nil {
		return nil, storageError(err)
	}
	now := g.now().UTC().Truncate(time.Second)
	trace := strings.ReplaceAll(uuid.NewString(), "-", "")
	return &txRecord{
		Kind:             kind,
		ID:               p.nextID(kind),
		Amount:           amount,
		Currency:         p.Currency,
		Date:             now,
		OrderID:          req.OrderID,
		ReturnURL:        req.ReturnURL,
		InvoiceID:        req.InvoiceID,
		PaymentReference: req.PaymentReference,
		TypeID:           p.TypeID,
		CustomerID:       firstNonEmpty(req.CustomerID, p.CustomerID),
		UniqueID:         strings.ToUpper(trace),
		ShortID:          fmt.Sprintf("%s.%04d", now.Format("0102.1504"), seq%10000),
		TraceID:          trace,
		Status:           statusSuccess,
		Message: message{
			Code:     "COR.000.100.112",
			Merchant: "Request successfully processed in sandbox mode",
			Customer: "Your payment has been processed.",
		},
	}, nil
}

// commit books tx on p, persists p and renders the response.
func (g *Gateway) commit(p *paymentRecord, tx *txRecord) (transport.Snapshot, error) {
	p.Transactions = append(p.Transactions, *tx)
	if err := g.store.Put(BucketPayments, p.ID, p); err != nil {
		return nil, storageError(err)
	}
	resp := tx.snapshot(p.ID)
	if g.embedPayment {
		resp["payment"] = p.snapshot()
	}
	return resp, nil
}

// redirect sends the customer away for types that need their confirmation.
func (g *Gateway) redirect(p *paymentRecord, tx *txRecord, t *typeRecord) {
	if t.Name != "paypal" || tx.ReturnURL == "" {
		return
	}
	tx.Status = statusPending
	tx.RedirectURL = fmt.Sprintf("%s/paypal/%s/%s", g.redirectBase, p.ID, tx.ID)
	p.RedirectURL = tx.RedirectURL
}

func (g *Gateway) authorize(p *paymentRecord, req txRequest) (transport.Snapshot, error) {
	if p != nil && p.authorization() != nil {
		return nil, reject(CodeAlreadyAuthorized, "payment "+p.ID+" is already authorized", "The payment was already made.")
	}
	if p != nil && len(p.Transactions) > 0 {
		return nil, reject(CodeInvalidState, "payment "+p.ID+" already has transactions", "The payment was already made.")
	}
	t, err := g.typeFor(p, req, "authorize")
	if err != nil {
		return nil, err
	}
	amount, err := requireAmount(req)
	if err != nil {
		return nil, err
	}
	if p, err = g.open(p, req); err != nil {
		return nil, err
	}
	next, err := p.Amounts.Authorize(amount)
	if err != nil {
		return nil, rejectLedger(err)
	}
	p.TypeID = t.ID
	tx, err := g.newTransaction(p, kindAuthorize, amount, req)
	if err != nil {
		return nil, err
	}
	g.redirect(p, tx, t)
	p.Amounts = next
	return g.commit(p, tx)
}

func (g *Gateway) directCharge(p *paymentRecord, req txRequest) (transport.Snapshot, error) {
	if p != nil && len(p.Transactions) > 0 {
		return nil, reject(CodeInvalidState, "payment "+p.ID+" already has transactions", "The payment was already made.")
	}
	t, err := g.typeFor(p, req, "charge")
	if err != nil {
		return nil, err
	}
	amount, err := requireAmount(req)
	if err != nil {
		return nil, err
	}
	if p, err = g.open(p, req); err != nil {
		return nil, err
	}
	next, err := p.Amounts.DirectCharge(amount)
	if err != nil {
		return nil, rejectLedger(err)
	}
	p.TypeID = t.ID
	tx, err := g.newTransaction(p, kindCharge, amount, req)
	if err != nil {
		return nil, err
	}
	if t.Name == "prepayment" {
		tx.Status = statusPending
		tx.Instructions = &instructions{
			Holder:     sandboxHolder,
			IBAN:       sandboxIBAN,
			BIC:        sandboxBIC,
			Descriptor: tx.ShortID,
		}
	}
	g.redirect(p, tx, t)
	p.Amounts = next
	return g.commit(p, tx)
}

func (g *Gateway) capture(p *paymentRecord, req txRequest) (transport.Snapshot, error) {
	if p.authorization() == nil {
		return nil, reject(CodeInvalidState, "payment "+p.ID+" has no authorization to charge", "The payment could not be processed.")
	}
	if err := checkCurrency(p, req); err != nil {
		return nil, err
	}
	amount := p.Amounts.Remaining
	if req.HasAmount {
		amount = req.Amount
	}
	next, err := p.Amounts.Capture(amount)
	if err != nil {
		return nil, rejectLedger(err)
	}
	tx, err := g.newTransaction(p, kindCharge, amount, req)
	if err != nil {
		return nil, err
	}
	p.Amounts = next
	return g.commit(p, tx)
}

func (g *Gateway) reverse(p *paymentRecord, authID string, req txRequest) (transport.Snapshot, error) {
	auth := p.find(kindAuthorize, authID)
	if auth == nil {
		return nil, notFound(fmt.Sprintf("payments/%s/authorize/%s", p.ID, authID))
	}
	amount := p.Amounts.Remaining
	if req.HasAmount {
		amount = req.Amount
	}
	next, err := p.Amounts.Reverse(amount)
	if err != nil {
		return nil, rejectLedger(err)
	}
	tx, err := g.newTransaction(p, kindReversal, amount, req)
	if err != nil {
		return nil, err
	}
	tx.ParentID = authID
	p.Amounts = next
	return g.commit(p, tx)
}

func (g *Gateway) refund(p *paymentRecord, chargeID string, req txRequest) (transport.Snapshot, error) {
	charge := p.find(kindCharge, chargeID)
	if charge == nil {
		return nil, notFound(fmt.Sprintf("payments/%s/charges/%s", p.ID, chargeID))
	}
	left := p.refundable(charge)
	amount := left
	if req.HasAmount {
		amount = req.Amount
	}
	if amount.GreaterThan(left) {
		return nil, reject(CodeExceedsCancelable,
			fmt.Sprintf("refund %s exceeds %s left on charge %s", amount, left, chargeID),
			"The amount is not valid for this payment.")
	}
	next, err := p.Amounts.Refund(amount)
	if err != nil {
		return nil, rejectLedger(err)
	}
	tx, err := g.newTransaction(p, kindRefund, amount, req)
	if err != nil {
		return nil, err
	}
	tx.ParentID = chargeID
	p.Amounts = next
	return g.commit(p, tx)
}

func (g *Gateway) ship(p *paymentRecord, req txRequest) (transport.Snapshot, error) {
	if st := p.state(); st != ledger.Completed {
		return nil, reject(CodeInvalidState, "payment "+p.ID+" is "+st.String()+", not completed", "The order cannot be shipped yet.")
	}
	tx, err := g.newTransaction(p, kindShipment, p.Amounts.Charged, req)
	if err != nil {
		return nil, err
	}
	return g.commit(p, tx)
}

func (g *Gateway) payout(req txRequest) (transport.Snapshot, error) {
	t, err := g.typeFor(nil, req, "payout")
	if err != nil {
		return nil, err
	}
	amount, err := requireAmount(req)
	if err != nil {
		return nil, err
	}
	p, err := g.open(nil, req)
	if err != nil {
		return nil, err
	}
	next, err := p.Amounts.DirectCharge(amount)
	if err != nil {
		return nil, rejectLedger(err)
	}
	p.TypeID = t.ID
	tx, err := g.newTransaction(p, kindPayout, amount, req)
	if err != nil {
		return nil, err
	}
	p.Amounts = next
	return g.commit(p, tx)
}

func (g *Gateway) initPaypage(mode string, body transport.Snapshot) (transport.Snapshot, error) {
	if mode != "charge" && mode != "authorize" {
		return nil, invalidRequest("unknown paypage mode " + mode)
	}
	req, err := g.parseTransaction(body)
	if err != nil {
		return nil, err
	}
	if _, err := requireAmount(req); err != nil {
		return nil, err
	}
	if req.ReturnURL == "" {
		return nil, invalidRequest("returnUrl is required")
	}
	p, err := g.open(nil, req)
	if err != nil {
		return nil, err
	}
	seq, err := g.store.NextSequence(BucketPaypages)
	if err != nil {
		return nil, storageError(err)
	}
	id := fmt.Sprintf("s-ppg-%d", seq)
	pp := paypageRecord{
		ID:          id,
		Mode:        mode,
		PaymentID:   p.ID,
		RedirectURL: g.redirectBase + "/paypage/" + id,
		Request:     body.Clone(),
	}
	p.RedirectURL = pp.RedirectURL
	if err := g.store.Put(BucketPayments, p.ID, p); err != nil {
		return nil, storageError(err)
	}
	if err := g.store.Put(BucketPaypages, pp.ID, pp); err != nil {
		return nil, storageError(err)
	}
	return pp.snapshot(), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
