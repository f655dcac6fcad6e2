// Package sandbox emulates the payment gateway. It keeps the ledger of record
// for payments created against it, enforces the same amount rules as the
// client, and replays responses for repeated idempotency keys. A Gateway can be
// used in process as a transport.Transport or served over HTTP with NewServer.
package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"fjacquet/payledger/internal/ledger"
	"fjacquet/payledger/internal/logging"
	"fjacquet/payledger/internal/payerror"
	"fjacquet/payledger/internal/transport"

	"github.com/go-playground/validator/v10"
)

// DefaultRedirectBase prefixes the redirect URLs the sandbox hands out.
const DefaultRedirectBase = "https://sandbox.payledger.local"

// Gateway is an in-memory or bolt-backed emulation of the payment gateway.
// Requests are serialised; it is safe for concurrent use.
type Gateway struct {
	mu           sync.Mutex
	store        Store
	logger       logging.Logger
	validate     *validator.Validate
	now          func() time.Time
	embedPayment bool
	redirectBase string
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithClock replaces time.Now for transaction dates.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// WithEmbeddedPayment makes every mutation response carry the updated payment
// under "payment", which lets clients skip the follow-up refresh.
func WithEmbeddedPayment() Option {
	return func(g *Gateway) {
		g.embedPayment = true
	}
}

// WithRedirectBase sets the base of generated redirect URLs.
func WithRedirectBase(base string) Option {
	return func(g *Gateway) {
		g.redirectBase = strings.TrimSuffix(base, "/")
	}
}

// New returns a gateway persisting to store.
func New(store Store, logger logging.Logger, opts ...Option) *Gateway {
	if logger == nil {
		logger = logging.NewLogrusAdapter("info", "text")
	}
	g := &Gateway{
		store:        store,
		logger:       logger,
		validate:     validator.New(),
		now:          time.Now,
		redirectBase: DefaultRedirectBase,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type idempotencyRecord struct {
	Method   string          `json:"method"`
	Path     string          `json:"path"`
	Response json.RawMessage `json:"response"`
}

// Send implements transport.Transport.
func (g *Gateway) Send(ctx context.Context, method transport.Method, path string, body transport.Snapshot) (transport.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, &payerror.TransportError{Method: string(method), Path: path, Err: err}
	}
	path = strings.Trim(path, "/")

	g.mu.Lock()
	defer g.mu.Unlock()

	key, keyed := transport.IdempotencyKey(ctx)
	keyed = keyed && method != transport.MethodGet
	if keyed {
		var rec idempotencyRecord
		err := g.store.Get(BucketIdempotency, key, &rec)
		switch {
		case err == nil && (rec.Method != string(method) || rec.Path != path):
			return nil, &payerror.APIError{
				StatusCode:      http.StatusConflict,
				Code:            CodeIdempotencyConflict,
				MerchantMessage: fmt.Sprintf("idempotency key %s was used for %s %s", key, rec.Method, rec.Path),
				ClientMessage:   "The request was already submitted.",
			}
		case err == nil:
			g.logger.Debug("Replaying idempotent response",
				logging.F(logging.FieldMethod, method),
				logging.F(logging.FieldPath, path))
			return transport.Decode(rec.Response)
		case !errors.Is(err, ErrNotFound):
			return nil, storageError(err)
		}
	}

	resp, err := g.route(method, path, body)
	if err != nil {
		g.logger.Debug("Sandbox rejected request",
			logging.F(logging.FieldMethod, method),
			logging.F(logging.FieldPath, path),
			logging.F(logging.FieldError, err.Error()))
		return nil, err
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, storageError(err)
	}
	if keyed {
		rec := idempotencyRecord{Method: string(method), Path: path, Response: raw}
		if err := g.store.Put(BucketIdempotency, key, rec); err != nil {
			return nil, storageError(err)
		}
	}
	g.logger.Debug("Sandbox handled request",
		logging.F(logging.FieldMethod, method),
		logging.F(logging.FieldPath, path))
	return transport.Decode(raw)
}

func (g *Gateway) route(method transport.Method, path string, body transport.Snapshot) (transport.Snapshot, error) {
	parts := strings.Split(path, "/")
	post := method == transport.MethodPost
	get := method == transport.MethodGet
	if !post && !get {
		return nil, &payerror.APIError{
			StatusCode:      http.StatusMethodNotAllowed,
			Code:            CodeMethodNotAllowed,
			MerchantMessage: string(method) + " is not supported on " + path,
		}
	}

	switch parts[0] {
	case "types":
		switch {
		case post && len(parts) == 2:
			return g.createType(parts[1], body)
		case get && len(parts) == 3:
			t, err := g.loadType(parts[2])
			if err != nil || t.Name != parts[1] {
				return nil, notFound(path)
			}
			return t.snapshot(), nil
		}
	case "paypage":
		switch {
		case post && len(parts) == 2:
			return g.initPaypage(parts[1], body)
		case get && len(parts) == 3:
			var pp paypageRecord
			if err := g.store.Get(BucketPaypages, parts[2], &pp); err != nil || pp.Mode != parts[1] {
				return nil, notFound(path)
			}
			return pp.snapshot(), nil
		}
	case "payments":
		if post {
			return g.routeMutation(path, parts[1:], body)
		}
		if len(parts) >= 2 {
			p, err := g.loadPayment(parts[1])
			if err != nil {
				return nil, notFound(path)
			}
			if len(parts) == 2 {
				return p.snapshot(), nil
			}
			if t := p.findByPath(path); t != nil {
				return t.snapshot(p.ID), nil
			}
		}
	}
	return nil, notFound(path)
}

func (g *Gateway) routeMutation(path string, rest []string, body transport.Snapshot) (transport.Snapshot, error) {
	if len(rest) == 0 {
		return nil, notFound(path)
	}
	req, err := g.parseTransaction(body)
	if err != nil {
		return nil, err
	}

	// New payments.
	if len(rest) == 1 {
		switch rest[0] {
		case "authorize":
			return g.authorize(nil, req)
		case "charges":
			return g.directCharge(nil, req)
		case "payouts":
			return g.payout(req)
		}
		return nil, notFound(path)
	}

	p, err := g.loadPayment(rest[0])
	if err != nil {
		return nil, notFound(path)
	}
	switch {
	case len(rest) == 2 && rest[1] == "authorize":
		return g.authorize(p, req)
	case len(rest) == 2 && rest[1] == "charges":
		return g.capture(p, req)
	case len(rest) == 2 && rest[1] == "shipments":
		return g.ship(p, req)
	case len(rest) == 4 && rest[1] == "authorize" && rest[3] == "cancels":
		return g.reverse(p, rest[2], req)
	case len(rest) == 4 && rest[1] == "charges" && rest[3] == "cancels":
		return g.refund(p, rest[2], req)
	}
	return nil, notFound(path)
}

func (g *Gateway) loadPayment(id string) (*paymentRecord, error) {
	var p paymentRecord
	if err := g.store.Get(BucketPayments, id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (g *Gateway) loadType(id string) (*typeRecord, error) {
	var t typeRecord
	if err := g.store.Get(BucketTypes, id, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Flag marks a payment for review or as charged back, or clears the mark. The
// flag overrides the state derived from the amounts.
func (g *Gateway) Flag(paymentID string, flag ledger.Flag) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, err := g.loadPayment(paymentID)
	if err != nil {
		return notFound("payments/" + paymentID)
	}
	p.Flag = flag
	if err := g.store.Put(BucketPayments, p.ID, p); err != nil {
		return storageError(err)
	}
	g.logger.Info("Payment flagged",
		logging.F(logging.FieldPaymentID, paymentID),
		logging.F(logging.FieldState, p.state().String()))
	return nil
}

// CompletePaypage plays the customer finishing a hosted payment page with the
// given payment type: the page's payment is authorized or charged for the page
// amount.
func (g *Gateway) CompletePaypage(paypageID, typeID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var pp paypageRecord
	if err := g.store.Get(BucketPaypages, paypageID, &pp); err != nil {
		return notFound("paypage/" + paypageID)
	}
	if pp.Completed {
		return reject(CodeInvalidState, "paypage "+paypageID+" is already completed", "The payment was already made.")
	}
	p, err := g.loadPayment(pp.PaymentID)
	if err != nil {
		return notFound("payments/" + pp.PaymentID)
	}
	req, err := g.parseTransaction(pp.Request)
	if err != nil {
		return err
	}
	req.TypeID = typeID

	if pp.Mode == "authorize" {
		_, err = g.authorize(p, req)
	} else {
		_, err = g.directCharge(p, req)
	}
	if err != nil {
		return err
	}
	pp.Completed = true
	if err := g.store.Put(BucketPaypages, pp.ID, pp); err != nil {
		return storageError(err)
	}
	return nil
}
