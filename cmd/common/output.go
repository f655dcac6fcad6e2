// Package common contains shared functionality for command handlers
package common

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"fjacquet/payledger/internal/currencyutils"
	"fjacquet/payledger/internal/payment"
	"fjacquet/payledger/internal/paymenttype"
	"fjacquet/payledger/internal/transport"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Render writes v in the given format.
func Render(w io.Writer, format string, v any) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("error encoding YAML: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("error encoding JSON: %w", err)
		}
		return nil
	}
}

// Result is what mutating commands print: the transaction and the payment
// it belongs to after the refresh.
type Result struct {
	Transaction transport.Snapshot `json:"transaction" yaml:"transaction"`
	Payment     transport.Snapshot `json:"payment,omitempty" yaml:"payment,omitempty"`
	Warning     string             `json:"warning,omitempty" yaml:"warning,omitempty"`
}

// NewResult describes tx. A refresh failure is reported as a warning since
// the transaction itself went through.
func NewResult(s *payment.Session, tx payment.Transaction, err error) Result {
	r := Result{Transaction: tx.Serialize()}
	if p, ok := s.Lookup(tx.PaymentID()); ok {
		r.Payment = p.Serialize()
	}
	if err != nil {
		r.Warning = err.Error()
	}
	return r
}

// ParseAmount parses an optional amount flag; "" means no amount. Symbols and
// thousands separators are accepted, so "€1'000,50" is 1000.50.
func ParseAmount(value string) (*decimal.Decimal, error) {
	if value == "" {
		return nil, nil
	}
	d, err := currencyutils.ParseAmount(value)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return &d, nil
}

// RequireAmount parses a mandatory amount flag.
func RequireAmount(value string) (decimal.Decimal, error) {
	d, err := ParseAmount(value)
	if err != nil {
		return decimal.Zero, err
	}
	if d == nil {
		return decimal.Zero, fmt.Errorf("--amount is required")
	}
	return *d, nil
}

// LoadType fetches the payment type with the given id into s.
func LoadType(ctx context.Context, s *payment.Session, id string) (payment.PaymentType, error) {
	if id == "" {
		return nil, fmt.Errorf("--type-id is required")
	}
	pt, ok := paymenttype.FromID(id)
	if !ok {
		return nil, fmt.Errorf("unrecognised payment type id %q", id)
	}
	if err := s.FetchPaymentType(ctx, pt); err != nil {
		return nil, fmt.Errorf("error loading payment type %s: %w", id, err)
	}
	return pt, nil
}
