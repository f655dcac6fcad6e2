package payment

import (
	"fmt"
	"strings"
	"time"

	"fjacquet/payledger/internal/ledger"
	"fjacquet/payledger/internal/payerror"
	"fjacquet/payledger/internal/resource"
	"fjacquet/payledger/internal/transport"

	"github.com/shopspring/decimal"
)

// Payment is the aggregate root of the ledger. It is created implicitly by its
// first transaction and afterwards changes only by attaching a transaction the
// gateway accepted or by replacing its fields from a snapshot.
//
// A Payment is meant for one caller at a time; different payments may be used
// concurrently.
type Payment struct {
	resource.Base
	session     *Session
	currency    string
	orderID     resource.Field[string]
	redirectURL resource.Field[string]
	typeID      string
	customerID  string
	amounts     ledger.Amounts
	flag        ledger.Flag
	state       ledger.State

	// history holds every transaction in creation order; the typed views below
	// are derived from it.
	history       []Transaction
	authorization *Authorization
	charges       []*Charge
	cancellations []*Cancellation
	shipments     []*Shipment
	payout        *Payout
}

// NewPayment returns an unsaved payment that is not bound to any session. It is
// useful for decoding snapshots; operations on it fail as detached.
func NewPayment() *Payment {
	return &Payment{}
}

func newPayment(s *Session) *Payment {
	return &Payment{session: s}
}

func (p *Payment) Path() string {
	return resource.JoinPath("payments", p.ID())
}

func (p *Payment) Currency() string              { return p.currency }
func (p *Payment) OrderID() string               { return p.orderID.Or("") }
func (p *Payment) RedirectURL() string           { return p.redirectURL.Or("") }
func (p *Payment) TypeID() string                { return p.typeID }
func (p *Payment) CustomerID() string            { return p.customerID }
func (p *Payment) Amounts() ledger.Amounts       { return p.amounts }
func (p *Payment) State() ledger.State           { return p.state }
func (p *Payment) Authorization() *Authorization { return p.authorization }
func (p *Payment) Payout() *Payout               { return p.payout }

func (p *Payment) IsPending() bool   { return p.state == ledger.Pending }
func (p *Payment) IsCompleted() bool { return p.state == ledger.Completed }
func (p *Payment) IsCanceled() bool  { return p.state == ledger.Canceled }

// Charges returns the charges oldest first.
func (p *Payment) Charges() []*Charge {
	return append([]*Charge(nil), p.charges...)
}

// ChargeByID returns the charge with the given id.
func (p *Payment) ChargeByID(id string) (*Charge, bool) {
	for _, c := range p.charges {
		if c.ID() == id {
			return c, true
		}
	}
	return nil, false
}

// Cancellations returns reversals and refunds together, in creation order.
func (p *Payment) Cancellations() []*Cancellation {
	return append([]*Cancellation(nil), p.cancellations...)
}

// Shipments returns the shipments oldest first.
func (p *Payment) Shipments() []*Shipment {
	return append([]*Shipment(nil), p.shipments...)
}

// Transactions returns every transaction in creation order.
func (p *Payment) Transactions() []Transaction {
	return append([]Transaction(nil), p.history...)
}

// Serialize renders the payment in the gateway's payment format, including a
// summary of every transaction.
func (p *Payment) Serialize() transport.Snapshot {
	s := transport.Snapshot{}
	if p.ID() != "" {
		s["id"] = p.ID()
	}
	if p.currency != "" {
		s["currency"] = p.currency
	}
	resource.Put(s, "orderId", p.orderID, nil)
	resource.Put(s, "redirectUrl", p.redirectURL, nil)
	s["state"] = transport.Snapshot{"id": int(p.state), "name": p.state.String()}
	s["amount"] = transport.Snapshot{
		"total":     resource.EncodeAmount(p.amounts.Total),
		"charged":   resource.EncodeAmount(p.amounts.Charged),
		"canceled":  resource.EncodeAmount(p.amounts.Canceled),
		"remaining": resource.EncodeAmount(p.amounts.Remaining),
		"currency":  p.currency,
	}
	resources := transport.Snapshot{}
	if p.ID() != "" {
		resources["paymentId"] = p.ID()
	}
	if p.typeID != "" {
		resources["typeId"] = p.typeID
	}
	if p.customerID != "" {
		resources["customerId"] = p.customerID
	}
	s["resources"] = resources

	txs := make([]any, 0, len(p.history))
	for _, tx := range p.history {
		entry := transport.Snapshot{
			"type":   string(tx.Kind()),
			"url":    tx.Path(),
			"amount": resource.EncodeAmount(tx.Amount()),
		}
		if !tx.Date().IsZero() {
			entry["date"] = resource.EncodeDate(tx.Date())
		}
		if st := tx.base().status; st != StatusUnknown {
			entry["status"] = string(st)
		}
		txs = append(txs, entry)
	}
	s["transactions"] = txs
	return s
}

// Deserialize replaces the payment's fields with snap. Child transactions are
// matched by id, so existing objects are updated in place rather than replaced.
// Nothing is applied when snap is inconsistent.
func (p *Payment) Deserialize(snap transport.Snapshot) error {
	view, err := decodePayment(snap)
	if err != nil {
		return err
	}
	return p.apply(view)
}

// paymentView is a decoded payment snapshot not yet applied.
type paymentView struct {
	id          string
	currency    string
	orderID     resource.Field[string]
	redirectURL resource.Field[string]
	typeID      string
	customerID  string
	amounts     *ledger.Amounts
	flag        ledger.Flag
	hasFlag     bool
	entries     []txEntry
	hasEntries  bool
}

// txEntry is one element of a payment's transaction list.
type txEntry struct {
	kind     Kind
	id       string
	parentID string
	amount   *decimal.Decimal
	date     time.Time
	status   Status
	// fetched is the entry's transaction decoded from its own resource, if
	// the caller already loaded it.
	fetched Transaction
}

func (e txEntry) key() string {
	return string(e.kind) + "/" + e.id
}

func decodePayment(snap transport.Snapshot) (*paymentView, error) {
	v := &paymentView{
		id:          snap.Str("id"),
		currency:    snap.Str("currency"),
		orderID:     resource.StringField(snap, "orderId"),
		redirectURL: resource.StringField(snap, "redirectUrl"),
	}

	if amount, ok := snap.Object("amount"); ok {
		var a ledger.Amounts
		for _, f := range []struct {
			key string
			dst *decimal.Decimal
		}{
			{"total", &a.Total}, {"charged", &a.Charged}, {"canceled", &a.Canceled}, {"remaining", &a.Remaining},
		} {
			d, _, err := amount.Decimal(f.key)
			if err != nil {
				return nil, &payerror.DecodeError{Resource: "payment", Field: "amount." + f.key, Value: amount.Str(f.key), Err: err}
			}
			*f.dst = d
		}
		if err := a.Validate(); err != nil {
			return nil, err
		}
		v.amounts = &a
		if v.currency == "" {
			v.currency = amount.Str("currency")
		}
	}

	if state, ok := snap.Object("state"); ok {
		if id, ok := state.Int("id"); ok {
			st, err := ledger.StateFromID(id)
			if err != nil {
				return nil, &payerror.DecodeError{Resource: "payment", Field: "state.id", Value: fmt.Sprint(id), Err: err}
			}
			v.flag, v.hasFlag = ledger.FlagOf(st), true
		}
	}

	if res, ok := snap.Object("resources"); ok {
		if v.id == "" {
			v.id = res.Str("paymentId")
		}
		v.typeID = res.Str("typeId")
		v.customerID = res.Str("customerId")
	}

	if snap.Has("transactions") {
		v.hasEntries = true
		for _, raw := range snap.List("transactions") {
			entry, err := decodeEntry(raw)
			if err != nil {
				return nil, err
			}
			v.entries = append(v.entries, entry)
		}
		if err := checkParents(v.entries); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// decodeEntry reads a transaction summary. Its kind and ids come from the url,
// e.g. "payments/s-pay-1/charges/s-chg-1/cancels/s-cnl-1".
func decodeEntry(raw transport.Snapshot) (txEntry, error) {
	url := raw.Str("url")
	bad := func(reason string) error {
		return &payerror.DecodeError{Resource: "payment", Field: "transactions.url", Value: url, Err: fmt.Errorf("%s", reason)}
	}

	idx := strings.Index(url, "payments/")
	if idx < 0 {
		return txEntry{}, bad("not a payment transaction url")
	}
	parts := strings.Split(strings.Trim(url[idx:], "/"), "/")
	if len(parts) < 3 {
		return txEntry{}, bad("missing transaction path")
	}
	// parts[0] == "payments", parts[1] == payment id
	rest := parts[2:]
	var e txEntry
	switch {
	case len(rest) == 2 && rest[0] == "authorize":
		e = txEntry{kind: KindAuthorization, id: rest[1]}
	case len(rest) == 2 && rest[0] == "charges":
		e = txEntry{kind: KindCharge, id: rest[1]}
	case len(rest) == 4 && rest[0] == "authorize" && rest[2] == "cancels":
		e = txEntry{kind: KindReversal, parentID: rest[1], id: rest[3]}
	case len(rest) == 4 && rest[0] == "charges" && rest[2] == "cancels":
		e = txEntry{kind: KindRefund, parentID: rest[1], id: rest[3]}
	case len(rest) == 2 && rest[0] == "shipments":
		e = txEntry{kind: KindShipment, id: rest[1]}
	case len(rest) == 2 && rest[0] == "payouts":
		e = txEntry{kind: KindPayout, id: rest[1]}
	default:
		return txEntry{}, bad("unknown transaction url")
	}

	if amount, ok, err := raw.Decimal("amount"); err != nil {
		return txEntry{}, &payerror.DecodeError{Resource: "payment", Field: "transactions.amount", Value: raw.Str("amount"), Err: err}
	} else if ok {
		e.amount = &amount
	}
	date, err := resource.DateField(raw, "date")
	if err != nil {
		return txEntry{}, &payerror.DecodeError{Resource: "payment", Field: "transactions.date", Value: raw.Str("date"), Err: err}
	}
	e.date = date.Or(time.Time{})
	e.status = Status(raw.Str("status"))
	return e, nil
}

// checkParents enforces that every cancellation points at a listed parent.
func checkParents(entries []txEntry) error {
	seen := map[string]bool{}
	for _, e := range entries {
		seen[e.key()] = true
	}
	for _, e := range entries {
		var parent string
		switch e.kind {
		case KindReversal:
			parent = string(KindAuthorization) + "/" + e.parentID
		case KindRefund:
			parent = string(KindCharge) + "/" + e.parentID
		default:
			continue
		}
		if !seen[parent] {
			return &payerror.DecodeError{
				Resource: "payment", Field: "transactions", Value: e.id,
				Err: fmt.Errorf("cancellation has no parent %s", parent),
			}
		}
	}
	return nil
}

// apply commits a decoded view.
func (p *Payment) apply(v *paymentView) error {
	if err := p.AssignID(v.id); err != nil {
		return err
	}
	if v.currency != "" {
		p.currency = v.currency
	}
	p.orderID = resource.Merge(p.orderID, v.orderID)
	p.redirectURL = resource.Merge(p.redirectURL, v.redirectURL)
	if v.typeID != "" {
		p.typeID = v.typeID
	}
	if v.customerID != "" {
		p.customerID = v.customerID
	}
	if v.amounts != nil {
		p.amounts = *v.amounts
	}
	if v.hasFlag {
		p.flag = v.flag
	}
	if v.hasEntries {
		p.rebuild(v.entries)
	}
	p.state = ledger.Derive(p.amounts, p.flag)
	return nil
}

// rebuild replaces the child collections with entries, reusing the objects that
// are already known.
func (p *Payment) rebuild(entries []txEntry) {
	known := make(map[string]Transaction, len(p.history))
	for _, tx := range p.history {
		known[string(tx.Kind())+"/"+tx.ID()] = tx
	}

	p.history = p.history[:0]
	p.authorization = nil
	p.charges = nil
	p.cancellations = nil
	p.shipments = nil
	p.payout = nil

	for _, e := range entries {
		tx, ok := known[e.key()]
		switch {
		case ok:
		case e.fetched != nil:
			tx = e.fetched
		default:
			tx = p.stub(e)
		}
		b := tx.base()
		if e.amount != nil {
			b.amount = *e.amount
		}
		if !e.date.IsZero() {
			b.date = e.date
		}
		if e.status != StatusUnknown {
			b.status = e.status
		}
		p.attach(tx)
	}
}

func (p *Payment) stub(e txEntry) Transaction {
	var tx Transaction
	switch e.kind {
	case KindAuthorization:
		tx = newAuthorization(p.session, p.ID())
	case KindCharge:
		tx = newCharge(p.session, p.ID())
	case KindReversal:
		tx = newCancellation(p.session, p.ID(), ledger.TargetAuthorization, e.parentID)
	case KindRefund:
		tx = newCancellation(p.session, p.ID(), ledger.TargetCharge, e.parentID)
	case KindShipment:
		tx = newShipment(p.session, p.ID())
	default:
		tx = newPayout(p.session, p.ID())
	}
	_ = tx.base().AssignID(e.id)
	if tx.base().currency == "" {
		tx.base().currency = p.currency
	}
	return tx
}

// attach adds tx to the history and to its typed collection. A cancellation is
// also added to its parent.
func (p *Payment) attach(tx Transaction) {
	p.history = append(p.history, tx)
	switch t := tx.(type) {
	case *Authorization:
		t.cancellations = nil
		p.authorization = t
	case *Charge:
		t.cancellations = nil
		p.charges = append(p.charges, t)
	case *Cancellation:
		p.cancellations = append(p.cancellations, t)
		if t.IsReversal() && p.authorization != nil && p.authorization.ID() == t.parentID {
			p.authorization.cancellations = append(p.authorization.cancellations, t)
		} else if parent, ok := p.ChargeByID(t.parentID); ok && t.IsRefund() {
			parent.cancellations = append(parent.cancellations, t)
		}
	case *Shipment:
		p.shipments = append(p.shipments, t)
	case *Payout:
		p.payout = t
	}
}
