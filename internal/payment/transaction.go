package payment

import (
	"time"

	"fjacquet/payledger/internal/payerror"
	"fjacquet/payledger/internal/resource"
	"fjacquet/payledger/internal/transport"

	"github.com/shopspring/decimal"
)

// Kind identifies a transaction variant. The values match the type names the
// gateway uses in a payment's transaction list.
type Kind string

const (
	KindAuthorization Kind = "authorize"
	KindCharge        Kind = "charge"
	KindReversal      Kind = "cancel-authorize"
	KindRefund        Kind = "cancel-charge"
	KindShipment      Kind = "shipment"
	KindPayout        Kind = "payout"
)

// Status is the processing outcome the gateway reports for a transaction.
type Status string

const (
	StatusUnknown Status = ""
	StatusSuccess Status = "success"
	StatusPending Status = "pending"
	StatusError   Status = "error"
)

// Message is the gateway's processing message. Customer is safe to show to the
// paying customer.
type Message struct {
	Code     string
	Merchant string
	Customer string
}

// Transaction is what every transaction variant exposes.
type Transaction interface {
	resource.Resource
	Kind() Kind
	PaymentID() string
	Amount() decimal.Decimal
	Currency() string
	Date() time.Time
	base() *TransactionBase
}

// TransactionBase holds the fields shared by all transaction variants. A
// transaction reaches its payment through the session registry by id; it never
// holds the payment itself.
type TransactionBase struct {
	resource.Base
	kind        Kind
	uniqueID    string
	shortID     string
	traceID     string
	amount      decimal.Decimal
	currency    string
	date        time.Time
	orderID     resource.Field[string]
	returnURL   resource.Field[string]
	redirectURL resource.Field[string]
	typeID      string
	customerID  string
	message     Message
	status      Status
	paymentID   string
	session     *Session
}

func (t *TransactionBase) base() *TransactionBase { return t }

func (t *TransactionBase) Kind() Kind { return t.kind }

// UniqueID is the gateway's processing id; ShortID is the short reference shown
// to customers, e.g. as a bank transfer descriptor.
func (t *TransactionBase) UniqueID() string { return t.uniqueID }
func (t *TransactionBase) ShortID() string  { return t.shortID }
func (t *TransactionBase) TraceID() string  { return t.traceID }

func (t *TransactionBase) Amount() decimal.Decimal { return t.amount }
func (t *TransactionBase) Currency() string        { return t.currency }
func (t *TransactionBase) Date() time.Time         { return t.date }

func (t *TransactionBase) OrderID() string     { return t.orderID.Or("") }
func (t *TransactionBase) ReturnURL() string   { return t.returnURL.Or("") }
func (t *TransactionBase) RedirectURL() string { return t.redirectURL.Or("") }
func (t *TransactionBase) TypeID() string      { return t.typeID }
func (t *TransactionBase) CustomerID() string  { return t.customerID }
func (t *TransactionBase) Message() Message    { return t.message }
func (t *TransactionBase) Status() Status      { return t.status }

// PaymentID is the id of the owning payment. It is set once and never changes.
func (t *TransactionBase) PaymentID() string { return t.paymentID }

// Payment looks up the owning payment in the session registry.
func (t *TransactionBase) Payment() (*Payment, error) {
	if err := t.session.active(describe(t)); err != nil {
		return nil, err
	}
	p, ok := t.session.registry.Lookup(t.paymentID)
	if !ok {
		return nil, &payerror.DetachedResourceError{
			Resource: describe(t),
			Reason:   "payment " + t.paymentID + " is not registered in the session",
		}
	}
	return p, nil
}

func (t *TransactionBase) bindPayment(id string) error {
	switch {
	case id == "" || id == t.paymentID:
		return nil
	case t.paymentID != "":
		return payerror.Invalid("bind "+string(t.kind), payerror.ErrForeignPayment,
			describe(t)+" belongs to "+t.paymentID+", not "+id)
	}
	t.paymentID = id
	return nil
}

func describe(t *TransactionBase) string {
	if t.ID() == "" {
		return string(t.kind) + " (unsaved)"
	}
	return string(t.kind) + " " + t.ID()
}

// serializeBase writes the shared fields. Server-assigned fields are included
// so that Deserialize(Serialize(x)) reproduces x; the gateway ignores them on
// requests.
func (t *TransactionBase) serializeBase() transport.Snapshot {
	s := transport.Snapshot{}
	if t.ID() != "" {
		s["id"] = t.ID()
	}
	if !t.amount.IsZero() {
		s["amount"] = resource.EncodeAmount(t.amount)
	}
	if t.currency != "" {
		s["currency"] = t.currency
	}
	if !t.date.IsZero() {
		s["date"] = resource.EncodeDate(t.date)
	}
	resource.Put(s, "orderId", t.orderID, nil)
	resource.Put(s, "returnUrl", t.returnURL, nil)
	resource.Put(s, "redirectUrl", t.redirectURL, nil)

	resources := transport.Snapshot{}
	if t.paymentID != "" {
		resources["paymentId"] = t.paymentID
	}
	if t.typeID != "" {
		resources["typeId"] = t.typeID
	}
	if t.customerID != "" {
		resources["customerId"] = t.customerID
	}
	if len(resources) > 0 {
		s["resources"] = resources
	}

	processing := transport.Snapshot{}
	if t.uniqueID != "" {
		processing["uniqueId"] = t.uniqueID
	}
	if t.shortID != "" {
		processing["shortId"] = t.shortID
	}
	if t.traceID != "" {
		processing["traceId"] = t.traceID
	}
	if len(processing) > 0 {
		s["processing"] = processing
	}

	if t.message != (Message{}) {
		s["message"] = transport.Snapshot{
			"code":     t.message.Code,
			"merchant": t.message.Merchant,
			"customer": t.message.Customer,
		}
	}
	switch t.status {
	case StatusSuccess:
		s["isSuccess"], s["isPending"], s["isError"] = true, false, false
	case StatusPending:
		s["isSuccess"], s["isPending"], s["isError"] = false, true, false
	case StatusError:
		s["isSuccess"], s["isPending"], s["isError"] = false, false, true
	}
	return s
}

// decodeBase returns a copy of t with snap applied. t itself is untouched so
// that a failed decode leaves no partial state.
func (t *TransactionBase) decodeBase(snap transport.Snapshot) (TransactionBase, error) {
	next := *t
	name := string(t.kind)

	if err := next.AssignID(snap.Str("id")); err != nil {
		return next, err
	}
	amount, err := resource.DecimalField(snap, "amount")
	if err != nil {
		return next, &payerror.DecodeError{Resource: name, Field: "amount", Value: snap.Str("amount"), Err: err}
	}
	if v, ok := amount.Get(); ok {
		next.amount = v
	}
	if c := snap.Str("currency"); c != "" {
		next.currency = c
	}
	date, err := resource.DateField(snap, "date")
	if err != nil {
		return next, &payerror.DecodeError{Resource: name, Field: "date", Value: snap.Str("date"), Err: err}
	}
	if when, ok := date.Get(); ok {
		next.date = when
	}
	next.orderID = resource.Merge(next.orderID, resource.StringField(snap, "orderId"))
	next.returnURL = resource.Merge(next.returnURL, resource.StringField(snap, "returnUrl"))
	next.redirectURL = resource.Merge(next.redirectURL, resource.StringField(snap, "redirectUrl"))

	if res, ok := snap.Object("resources"); ok {
		if err := next.bindPayment(res.Str("paymentId")); err != nil {
			return next, err
		}
		if id := res.Str("typeId"); id != "" {
			next.typeID = id
		}
		if id := res.Str("customerId"); id != "" {
			next.customerID = id
		}
	}
	if proc, ok := snap.Object("processing"); ok {
		if v := proc.Str("uniqueId"); v != "" {
			next.uniqueID = v
		}
		if v := proc.Str("shortId"); v != "" {
			next.shortID = v
		}
		if v := proc.Str("traceId"); v != "" {
			next.traceID = v
		}
	}
	if msg, ok := snap.Object("message"); ok {
		next.message = Message{Code: msg.Str("code"), Merchant: msg.Str("merchant"), Customer: msg.Str("customer")}
	}
	switch {
	case resource.BoolField(snap, "isError").Or(false):
		next.status = StatusError
	case resource.BoolField(snap, "isPending").Or(false):
		next.status = StatusPending
	case resource.BoolField(snap, "isSuccess").Or(false):
		next.status = StatusSuccess
	}
	return next, nil
}

func newBase(kind Kind, s *Session, paymentID string) TransactionBase {
	return TransactionBase{kind: kind, session: s, paymentID: paymentID}
}
