package payment

import (
	"fjacquet/payledger/internal/resource"
	"fjacquet/payledger/internal/transport"
)

// Payout sends money to the customer. It opens its own payment.
type Payout struct {
	TransactionBase
	invoiceID        resource.Field[string]
	paymentReference resource.Field[string]
}

func newPayout(s *Session, paymentID string) *Payout {
	return &Payout{TransactionBase: newBase(KindPayout, s, paymentID)}
}

func (po *Payout) Path() string {
	return resource.JoinPath("payments", po.paymentID, "payouts", po.ID())
}

func (po *Payout) InvoiceID() string        { return po.invoiceID.Or("") }
func (po *Payout) PaymentReference() string { return po.paymentReference.Or("") }

func (po *Payout) Serialize() transport.Snapshot {
	s := po.serializeBase()
	resource.Put(s, "invoiceId", po.invoiceID, nil)
	resource.Put(s, "paymentReference", po.paymentReference, nil)
	return s
}

func (po *Payout) Deserialize(snap transport.Snapshot) error {
	next, err := po.decodeBase(snap)
	if err != nil {
		return err
	}
	po.TransactionBase = next
	po.invoiceID = resource.Merge(po.invoiceID, resource.StringField(snap, "invoiceId"))
	po.paymentReference = resource.Merge(po.paymentReference, resource.StringField(snap, "paymentReference"))
	return nil
}
