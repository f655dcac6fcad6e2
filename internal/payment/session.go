// Package payment models payments and their transactions and keeps them in
// sync with the gateway.
//
// Every mutation follows the same two steps. First the transaction is posted
// and, once the gateway accepts it, attached to its payment with the ledger
// delta applied to the cached amounts. Then the payment is refreshed from the
// gateway, which replaces the cached amounts and child collections. A failed
// refresh is reported as a *payerror.RefreshError next to the transaction that
// was created; the mutation itself is not rolled back.
package payment

import (
	"sync/atomic"

	"fjacquet/payledger/internal/logging"
	"fjacquet/payledger/internal/payerror"
	"fjacquet/payledger/internal/transport"

	"github.com/google/uuid"
)

// Session binds resources to a transport. Payments created or fetched through
// a session are registered in it so that transactions can find their payment
// by id.
type Session struct {
	id        string
	transport transport.Transport
	logger    logging.Logger
	registry  *Registry
	closed    atomic.Bool
}

// NewSession returns an open session sending through t.
func NewSession(t transport.Transport, logger logging.Logger) *Session {
	if logger == nil {
		logger = logging.NewLogrusAdapter("info", "text")
	}
	return &Session{
		id:        uuid.NewString(),
		transport: t,
		logger:    logger,
		registry:  NewRegistry(),
	}
}

func (s *Session) ID() string { return s.id }

// Close detaches every resource bound to the session. Verbs invoked on them
// afterwards fail with *payerror.DetachedResourceError.
func (s *Session) Close() {
	s.closed.Store(true)
}

func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Lookup returns the registered payment with the given id.
func (s *Session) Lookup(id string) (*Payment, bool) {
	if s == nil {
		return nil, false
	}
	return s.registry.Lookup(id)
}

func (s *Session) active(what string) error {
	switch {
	case s == nil:
		return &payerror.DetachedResourceError{Resource: what, Reason: "not bound to a session"}
	case s.closed.Load():
		return &payerror.DetachedResourceError{Resource: what, Reason: "session is closed"}
	}
	return nil
}
