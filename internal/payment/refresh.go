package payment

import (
	"context"
	"time"

	"fjacquet/payledger/internal/logging"
	"fjacquet/payledger/internal/payerror"
	"fjacquet/payledger/internal/transport"
)

// Refresh refetches p and every one of its transactions and replaces the cached
// state with what the gateway reports. All requests complete before anything
// is applied, so a failure leaves p as it was.
func (s *Session) Refresh(ctx context.Context, p *Payment) error {
	if err := s.active(p.label()); err != nil {
		return err
	}
	if !p.IsPersisted() {
		return payerror.Invalid("refresh", payerror.ErrUnsavedResource, p.label())
	}
	start := time.Now()

	snap, err := s.transport.Send(ctx, transport.MethodGet, p.Path(), nil)
	if err != nil {
		return err
	}
	view, err := decodePayment(snap)
	if err != nil {
		return err
	}
	if view.id != "" && view.id != p.ID() {
		return payerror.Invalid("refresh", payerror.ErrForeignPayment, "gateway returned payment "+view.id+" for "+p.ID())
	}

	details := make([]transport.Snapshot, len(view.entries))
	for i, e := range view.entries {
		fetched := p.stub(e)
		detail, err := s.transport.Send(ctx, transport.MethodGet, fetched.Path(), nil)
		if err != nil {
			return err
		}
		if err := fetched.Deserialize(detail); err != nil {
			return err
		}
		details[i] = detail
		view.entries[i].fetched = fetched
	}

	if err := p.apply(view); err != nil {
		return err
	}
	// Objects the caller already holds are updated in place; new entries are
	// the fetched objects themselves.
	for i, tx := range p.history {
		if i >= len(view.entries) || tx == view.entries[i].fetched {
			continue
		}
		if err := tx.Deserialize(details[i]); err != nil {
			return err
		}
	}

	s.logger.Debug("Payment refreshed",
		logging.F(logging.FieldPaymentID, p.ID()),
		logging.F(logging.FieldState, p.state.String()),
		logging.F(logging.FieldCount, len(p.history)),
		logging.F(logging.FieldDuration, time.Since(start).Milliseconds()))
	return nil
}
