package sandbox

import (
	"fmt"
	"strings"
	"time"

	"fjacquet/payledger/internal/currencyutils"
	"fjacquet/payledger/internal/dateutils"
	"fjacquet/payledger/internal/ledger"
	"fjacquet/payledger/internal/transport"

	"github.com/shopspring/decimal"
)

// Transaction kinds as listed in a payment's transaction summary.
const (
	kindAuthorize = "authorize"
	kindCharge    = "charge"
	kindReversal  = "cancel-authorize"
	kindRefund    = "cancel-charge"
	kindShipment  = "shipment"
	kindPayout    = "payout"
)

type typeRecord struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Fields map[string]string `json:"fields"`
}

func (t typeRecord) snapshot() transport.Snapshot {
	s := transport.Snapshot{"id": t.ID}
	for k, v := range t.Fields {
		s[k] = v
	}
	return s
}

type message struct {
	Code     string `json:"code"`
	Merchant string `json:"merchant"`
	Customer string `json:"customer"`
}

type instructions struct {
	Holder     string `json:"holder"`
	IBAN       string `json:"iban"`
	BIC        string `json:"bic"`
	Descriptor string `json:"descriptor"`
}

type txRecord struct {
	Kind             string          `json:"kind"`
	ID               string          `json:"id"`
	ParentID         string          `json:"parentId,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Date             time.Time       `json:"date"`
	OrderID          string          `json:"orderId,omitempty"`
	ReturnURL        string          `json:"returnUrl,omitempty"`
	RedirectURL      string          `json:"redirectUrl,omitempty"`
	InvoiceID        string          `json:"invoiceId,omitempty"`
	PaymentReference string          `json:"paymentReference,omitempty"`
	TypeID           string          `json:"typeId,omitempty"`
	CustomerID       string          `json:"customerId,omitempty"`
	UniqueID         string          `json:"uniqueId"`
	ShortID          string          `json:"shortId"`
	TraceID          string          `json:"traceId"`
	Status           string          `json:"status"`
	Message          message         `json:"message"`
	Instructions     *instructions   `json:"instructions,omitempty"`
}

func (t *txRecord) path(paymentID string) string {
	switch t.Kind {
	case kindAuthorize:
		return fmt.Sprintf("payments/%s/authorize/%s", paymentID, t.ID)
	case kindCharge:
		return fmt.Sprintf("payments/%s/charges/%s", paymentID, t.ID)
	case kindReversal:
		return fmt.Sprintf("payments/%s/authorize/%s/cancels/%s", paymentID, t.ParentID, t.ID)
	case kindRefund:
		return fmt.Sprintf("payments/%s/charges/%s/cancels/%s", paymentID, t.ParentID, t.ID)
	case kindShipment:
		return fmt.Sprintf("payments/%s/shipments/%s", paymentID, t.ID)
	default:
		return fmt.Sprintf("payments/%s/payouts/%s", paymentID, t.ID)
	}
}

func (t *txRecord) snapshot(paymentID string) transport.Snapshot {
	s := transport.Snapshot{
		"id":       t.ID,
		"amount":   currencyutils.WireAmount(t.Amount),
		"currency": t.Currency,
		"date":     dateutils.FormatWireDate(t.Date),
		"resources": transport.Snapshot{
			"paymentId":  paymentID,
			"typeId":     t.TypeID,
			"customerId": t.CustomerID,
		},
		"processing": transport.Snapshot{
			"uniqueId": t.UniqueID,
			"shortId":  t.ShortID,
			"traceId":  t.TraceID,
		},
		"message": transport.Snapshot{
			"code":     t.Message.Code,
			"merchant": t.Message.Merchant,
			"customer": t.Message.Customer,
		},
		"isSuccess": t.Status == statusSuccess,
		"isPending": t.Status == statusPending,
		"isError":   t.Status == statusError,
	}
	for key, value := range map[string]string{
		"orderId":          t.OrderID,
		"returnUrl":        t.ReturnURL,
		"redirectUrl":      t.RedirectURL,
		"invoiceId":        t.InvoiceID,
		"paymentReference": t.PaymentReference,
	} {
		if value != "" {
			s[key] = value
		}
	}
	if in := t.Instructions; in != nil {
		s["holder"] = in.Holder
		s["iban"] = in.IBAN
		s["bic"] = in.BIC
		s["descriptor"] = in.Descriptor
	}
	return s
}

const (
	statusSuccess = "success"
	statusPending = "pending"
	statusError   = "error"
)

type paymentRecord struct {
	ID           string         `json:"id"`
	Currency     string         `json:"currency"`
	OrderID      string         `json:"orderId,omitempty"`
	RedirectURL  string         `json:"redirectUrl,omitempty"`
	TypeID       string         `json:"typeId,omitempty"`
	CustomerID   string         `json:"customerId,omitempty"`
	Amounts      ledger.Amounts `json:"amounts"`
	Flag         ledger.Flag    `json:"flag"`
	Transactions []txRecord     `json:"transactions"`
}

func (p *paymentRecord) state() ledger.State {
	return ledger.Derive(p.Amounts, p.Flag)
}

func (p *paymentRecord) snapshot() transport.Snapshot {
	state := p.state()
	txs := make([]any, 0, len(p.Transactions))
	for i := range p.Transactions {
		t := &p.Transactions[i]
		txs = append(txs, transport.Snapshot{
			"type":   t.Kind,
			"url":    t.path(p.ID),
			"amount": currencyutils.WireAmount(t.Amount),
			"date":   dateutils.FormatWireDate(t.Date),
			"status": t.Status,
		})
	}
	s := transport.Snapshot{
		"id":       p.ID,
		"currency": p.Currency,
		"state":    transport.Snapshot{"id": int(state), "name": state.String()},
		"amount": transport.Snapshot{
			"total":     currencyutils.WireAmount(p.Amounts.Total),
			"charged":   currencyutils.WireAmount(p.Amounts.Charged),
			"canceled":  currencyutils.WireAmount(p.Amounts.Canceled),
			"remaining": currencyutils.WireAmount(p.Amounts.Remaining),
			"currency":  p.Currency,
		},
		"resources": transport.Snapshot{
			"paymentId":  p.ID,
			"typeId":     p.TypeID,
			"customerId": p.CustomerID,
		},
		"transactions": txs,
	}
	if p.OrderID != "" {
		s["orderId"] = p.OrderID
	}
	if p.RedirectURL != "" {
		s["redirectUrl"] = p.RedirectURL
	}
	return s
}

func (p *paymentRecord) find(kind, id string) *txRecord {
	for i := range p.Transactions {
		if t := &p.Transactions[i]; t.Kind == kind && t.ID == id {
			return t
		}
	}
	return nil
}

func (p *paymentRecord) findByPath(path string) *txRecord {
	for i := range p.Transactions {
		if t := &p.Transactions[i]; t.path(p.ID) == path {
			return t
		}
	}
	return nil
}

func (p *paymentRecord) authorization() *txRecord {
	for i := range p.Transactions {
		if p.Transactions[i].Kind == kindAuthorize {
			return &p.Transactions[i]
		}
	}
	return nil
}

// refundable is what is left of a charge after its refunds.
func (p *paymentRecord) refundable(charge *txRecord) decimal.Decimal {
	left := charge.Amount
	for _, t := range p.Transactions {
		if t.Kind == kindRefund && t.ParentID == charge.ID {
			left = left.Sub(t.Amount)
		}
	}
	return left
}

var txPrefix = map[string]string{
	kindAuthorize: "aut",
	kindCharge:    "chg",
	kindReversal:  "cnl",
	kindRefund:    "cnl",
	kindShipment:  "shp",
	kindPayout:    "out",
}

// nextID numbers transactions per payment. Reversals and refunds share one
// counter so cancellation ids are unique within the payment.
func (p *paymentRecord) nextID(kind string) string {
	prefix := txPrefix[kind]
	n := 1
	for _, t := range p.Transactions {
		if txPrefix[t.Kind] == prefix {
			n++
		}
	}
	return fmt.Sprintf("s-%s-%d", prefix, n)
}

type paypageRecord struct {
	ID          string             `json:"id"`
	Mode        string             `json:"mode"`
	PaymentID   string             `json:"paymentId"`
	RedirectURL string             `json:"redirectUrl"`
	Completed   bool               `json:"completed"`
	Request     transport.Snapshot `json:"request"`
}

func (pp *paypageRecord) snapshot() transport.Snapshot {
	s := pp.Request.Clone()
	if s == nil {
		s = transport.Snapshot{}
	}
	s["id"] = pp.ID
	s["redirectUrl"] = pp.RedirectURL
	res, _ := s.Object("resources")
	if res == nil {
		res = transport.Snapshot{}
	}
	res["paymentId"] = pp.PaymentID
	s["resources"] = res
	return s
}

func maskCardNumber(number string) string {
	if len(number) <= 10 {
		return number
	}
	return number[:6] + strings.Repeat("*", len(number)-10) + number[len(number)-4:]
}
