package payment_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"fjacquet/payledger/internal/ledger"
	"fjacquet/payledger/internal/logging"
	"fjacquet/payledger/internal/payerror"
	"fjacquet/payledger/internal/payment"
	"fjacquet/payledger/internal/paymenttype"
	"fjacquet/payledger/internal/resource"
	"fjacquet/payledger/internal/sandbox"
	"fjacquet/payledger/internal/transport"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingTransport logs every request and can be told to fail some of them.
type recordingTransport struct {
	next transport.Transport

	mu    sync.Mutex
	calls []string
	fail  func(method transport.Method, path string) bool
	// rewrite, when set, replaces the gateway's answer to a successful call.
	rewrite func(method transport.Method, path string, resp transport.Snapshot) transport.Snapshot
}

func (r *recordingTransport) Send(ctx context.Context, method transport.Method, path string, body transport.Snapshot) (transport.Snapshot, error) {
	r.mu.Lock()
	r.calls = append(r.calls, string(method)+" "+path)
	fail, rewrite := r.fail, r.rewrite
	r.mu.Unlock()

	if fail != nil && fail(method, path) {
		return nil, &payerror.TransportError{Method: string(method), Path: path, Err: errors.New("connection reset by peer")}
	}
	resp, err := r.next.Send(ctx, method, path, body)
	if err == nil && rewrite != nil {
		resp = rewrite(method, path, resp)
	}
	return resp, err
}

func (r *recordingTransport) rewriteWith(f func(method transport.Method, path string, resp transport.Snapshot) transport.Snapshot) {
	r.mu.Lock()
	r.rewrite = f
	r.mu.Unlock()
}

func (r *recordingTransport) failOn(f func(method transport.Method, path string) bool) {
	r.mu.Lock()
	r.fail = f
	r.mu.Unlock()
}

func (r *recordingTransport) reset() {
	r.mu.Lock()
	r.calls = nil
	r.fail = nil
	r.rewrite = nil
	r.mu.Unlock()
}

func (r *recordingTransport) count(method transport.Method) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if strings.HasPrefix(c, string(method)+" ") {
			n++
		}
	}
	return n
}

func (r *recordingTransport) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func failGets(method transport.Method, _ string) bool {
	return method == transport.MethodGet
}

type env struct {
	gateway   *sandbox.Gateway
	transport *recordingTransport
	session   *payment.Session
	card      *paymenttype.Card
	log       *logging.MockLogger
}

func newEnv(t *testing.T, opts ...sandbox.Option) *env {
	t.Helper()
	log := logging.NewMockLogger()
	gw := sandbox.New(sandbox.NewMemoryStore(), log, opts...)
	rt := &recordingTransport{next: gw}
	s := payment.NewSession(rt, log)
	t.Cleanup(s.Close)

	card := &paymenttype.Card{Number: "4711100000000000", ExpiryDate: "12/2030", CVC: "123"}
	require.NoError(t, s.CreatePaymentType(context.Background(), card))
	rt.reset()
	return &env{gateway: gw, transport: rt, session: s, card: card, log: log}
}

func (e *env) authorize(t *testing.T, amount string) (*payment.Authorization, *payment.Payment) {
	t.Helper()
	auth, err := e.card.Authorize(context.Background(), e.session, payment.AuthorizeRequest{
		Amount:   dec(amount),
		Currency: "EUR",
		OrderID:  "order-1",
	})
	require.NoError(t, err)
	p, err := auth.Payment()
	require.NoError(t, err)
	return auth, p
}

// paypagePayment opens a payment that has no transactions yet.
func (e *env) paypagePayment(t *testing.T, mode payment.PayMode) (*payment.Paypage, *payment.Payment) {
	t.Helper()
	page := &payment.Paypage{
		Amount:    dec("50"),
		Currency:  "EUR",
		ReturnURL: "https://shop.example/return",
		ShopName:  resource.Set("Payledger Shop"),
	}
	p, err := page.Pay(context.Background(), e.session, mode)
	require.NoError(t, err)
	return page, p
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func assertLedger(t *testing.T, p *payment.Payment, total, charged, canceled, remaining string) {
	t.Helper()
	want := ledger.Amounts{Total: dec(total), Charged: dec(charged), Canceled: dec(canceled), Remaining: dec(remaining)}
	assert.True(t, want.Equal(p.Amounts()), "want %s, got %s", want, p.Amounts())
}

func requireReason(t *testing.T, err error, reason error) *payerror.ValidationError {
	t.Helper()
	var ve *payerror.ValidationError
	require.ErrorAs(t, err, &ve)
	require.ErrorIs(t, err, reason)
	return ve
}
