package payment

import (
	"fjacquet/payledger/internal/ledger"
	"fjacquet/payledger/internal/resource"
	"fjacquet/payledger/internal/transport"
)

// Cancellation gives money back. It is attached to exactly one parent: a
// reversal to the authorization, a refund to a charge.
type Cancellation struct {
	TransactionBase
	parentKind       ledger.TargetKind
	parentID         string
	paymentReference resource.Field[string]
}

func newCancellation(s *Session, paymentID string, parent ledger.TargetKind, parentID string) *Cancellation {
	kind := KindReversal
	if parent == ledger.TargetCharge {
		kind = KindRefund
	}
	return &Cancellation{
		TransactionBase: newBase(kind, s, paymentID),
		parentKind:      parent,
		parentID:        parentID,
	}
}

func (c *Cancellation) Path() string {
	segment := "authorize"
	if c.parentKind == ledger.TargetCharge {
		segment = "charges"
	}
	return resource.JoinPath("payments", c.paymentID, segment, c.parentID, "cancels", c.ID())
}

// ParentKind tells whether this is a reversal or a refund.
func (c *Cancellation) ParentKind() ledger.TargetKind { return c.parentKind }

// ParentID is the id of the authorization or charge this cancellation belongs to.
func (c *Cancellation) ParentID() string { return c.parentID }

func (c *Cancellation) IsReversal() bool { return c.parentKind == ledger.TargetAuthorization }
func (c *Cancellation) IsRefund() bool   { return c.parentKind == ledger.TargetCharge }

func (c *Cancellation) PaymentReference() string { return c.paymentReference.Or("") }

func (c *Cancellation) Serialize() transport.Snapshot {
	s := c.serializeBase()
	resource.Put(s, "paymentReference", c.paymentReference, nil)
	return s
}

func (c *Cancellation) Deserialize(snap transport.Snapshot) error {
	next, err := c.decodeBase(snap)
	if err != nil {
		return err
	}
	c.TransactionBase = next
	c.paymentReference = resource.Merge(c.paymentReference, resource.StringField(snap, "paymentReference"))
	return nil
}
