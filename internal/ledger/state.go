package ledger

import "fmt"

// State is a payment's lifecycle status. The numeric values match the ids the
// gateway sends in state.id.
type State int

const (
	Pending State = iota
	Completed
	Canceled
	PartlyPaid
	PaymentReview
	Chargeback
)

var stateNames = map[State]string{
	Pending:       "pending",
	Completed:     "completed",
	Canceled:      "canceled",
	PartlyPaid:    "partly",
	PaymentReview: "payment review",
	Chargeback:    "chargeback",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// StateFromID maps a gateway state id.
func StateFromID(id int) (State, error) {
	s := State(id)
	if _, ok := stateNames[s]; !ok {
		return Pending, fmt.Errorf("unknown payment state id %d", id)
	}
	return s, nil
}

// IsTerminal reports whether no more money can move without a refund.
func (s State) IsTerminal() bool {
	return s == Completed || s == Canceled
}

// Flag is an external marker the gateway sets independently of the amounts.
type Flag int

const (
	FlagNone Flag = iota
	FlagReview
	FlagChargeback
)

// FlagOf extracts the external flag carried by a gateway state.
func FlagOf(s State) Flag {
	switch s {
	case PaymentReview:
		return FlagReview
	case Chargeback:
		return FlagChargeback
	default:
		return FlagNone
	}
}

// Derive computes the state from the ledger. A review or chargeback flag wins
// over the amounts; a payment with nothing established yet is pending.
func Derive(a Amounts, flag Flag) State {
	switch flag {
	case FlagReview:
		return PaymentReview
	case FlagChargeback:
		return Chargeback
	}
	switch {
	case a.Total.IsZero():
		return Pending
	case a.Remaining.IsZero() && a.Charged.IsZero():
		return Canceled
	case a.Remaining.IsZero():
		return Completed
	case a.Charged.IsPositive() && a.Charged.LessThan(a.Total):
		return PartlyPaid
	default:
		return Pending
	}
}
