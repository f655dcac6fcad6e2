package payment

import (
	"fjacquet/payledger/internal/resource"
	"fjacquet/payledger/internal/transport"
)

// Shipment tells the gateway that the goods of a completed payment left.
type Shipment struct {
	TransactionBase
	invoiceID resource.Field[string]
}

func newShipment(s *Session, paymentID string) *Shipment {
	return &Shipment{TransactionBase: newBase(KindShipment, s, paymentID)}
}

func (sh *Shipment) Path() string {
	return resource.JoinPath("payments", sh.paymentID, "shipments", sh.ID())
}

func (sh *Shipment) InvoiceID() string { return sh.invoiceID.Or("") }

func (sh *Shipment) Serialize() transport.Snapshot {
	s := sh.serializeBase()
	resource.Put(s, "invoiceId", sh.invoiceID, nil)
	return s
}

func (sh *Shipment) Deserialize(snap transport.Snapshot) error {
	next, err := sh.decodeBase(snap)
	if err != nil {
		return err
	}
	sh.TransactionBase = next
	sh.invoiceID = resource.Merge(sh.invoiceID, resource.StringField(snap, "invoiceId"))
	return nil
}
