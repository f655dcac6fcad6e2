package sandbox

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"fjacquet/payledger/internal/ledger"
	"fjacquet/payledger/internal/logging"
	"fjacquet/payledger/internal/payerror"
	"fjacquet/payledger/internal/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

func newTestGateway(opts ...Option) *Gateway {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(NewMemoryStore(), logging.NewMockLogger(), opts...)
}

func send(t *testing.T, g *Gateway, method transport.Method, path string, body transport.Snapshot) transport.Snapshot {
	t.Helper()
	resp, err := g.Send(context.Background(), method, path, body)
	require.NoError(t, err)
	return resp
}

func createType(t *testing.T, g *Gateway, name string, body transport.Snapshot) string {
	t.Helper()
	if body == nil {
		body = transport.Snapshot{}
	}
	return send(t, g, transport.MethodPost, "types/"+name, body).Str("id")
}

func createCard(t *testing.T, g *Gateway) string {
	return createType(t, g, "card", transport.Snapshot{"number": "4711100000000000", "expiryDate": "12/2030", "cvc": "123"})
}

func txBody(amount, typeID string) transport.Snapshot {
	return transport.Snapshot{
		"amount":    amount,
		"currency":  "EUR",
		"resources": transport.Snapshot{"typeId": typeID},
	}
}

func apiCode(t *testing.T, err error) string {
	t.Helper()
	var apiErr *payerror.APIError
	require.True(t, errors.As(err, &apiErr), "expected APIError, got %v", err)
	return apiErr.Code
}

func amountsOf(t *testing.T, g *Gateway, paymentID string) (total, charged, canceled, remaining string) {
	t.Helper()
	p := send(t, g, transport.MethodGet, "payments/"+paymentID, nil)
	a, ok := p.Object("amount")
	require.True(t, ok)
	return a.Str("total"), a.Str("charged"), a.Str("canceled"), a.Str("remaining")
}

func TestGateway_CreateAndFetchType(t *testing.T) {
	g := newTestGateway()

	card := send(t, g, transport.MethodPost, "types/card", transport.Snapshot{
		"number": "4711100000000000", "expiryDate": "12/2030", "cvc": "123", "cardHolder": "Max Mustermann",
	})
	assert.Equal(t, "s-crd-1", card.Str("id"))
	assert.Equal(t, "471110******0000", card.Str("number"))
	assert.False(t, card.Has("cvc"))

	fetched := send(t, g, transport.MethodGet, "types/card/s-crd-1", nil)
	assert.Equal(t, "Max Mustermann", fetched.Str("cardHolder"))

	_, err := g.Send(context.Background(), transport.MethodGet, "types/paypal/s-crd-1", nil)
	var nf *payerror.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestGateway_TypeValidation(t *testing.T) {
	g := newTestGateway()
	tests := []struct {
		name string
		path string
		body transport.Snapshot
		code string
	}{
		{"unknown type", "types/bitcoin", transport.Snapshot{}, CodeUnknownType},
		{"card number not numeric", "types/card", transport.Snapshot{"number": "4711-1000", "expiryDate": "12/2030"}, CodeInvalidRequest},
		{"card without expiry", "types/card", transport.Snapshot{"number": "4711100000000000"}, CodeInvalidRequest},
		{"short iban", "types/sepa-direct-debit", transport.Snapshot{"iban": "DE89"}, CodeInvalidRequest},
		{"bad paypal email", "types/paypal", transport.Snapshot{"email": "not-an-email"}, CodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Send(context.Background(), transport.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.code, apiCode(t, err))
		})
	}
}

func TestGateway_AuthorizeChargeCancel(t *testing.T) {
	g := newTestGateway()
	card := createCard(t, g)

	auth := send(t, g, transport.MethodPost, "payments/authorize", txBody("100", card))
	assert.Equal(t, "s-aut-1", auth.Str("id"))
	res, _ := auth.Object("resources")
	pid := res.Str("paymentId")
	assert.Equal(t, "s-pay-1", pid)
	assert.Equal(t, "2024-03-01 10:30:00", auth.Str("date"))
	assert.Equal(t, true, auth["isSuccess"])

	charge := send(t, g, transport.MethodPost, "payments/"+pid+"/charges", transport.Snapshot{"amount": "60"})
	assert.Equal(t, "s-chg-1", charge.Str("id"))

	_, err := g.Send(context.Background(), transport.MethodPost, "payments/"+pid+"/charges", transport.Snapshot{"amount": "50"})
	assert.Equal(t, CodeOvercharge, apiCode(t, err))

	reversal := send(t, g, transport.MethodPost, "payments/"+pid+"/authorize/s-aut-1/cancels", transport.Snapshot{"amount": "10"})
	assert.Equal(t, "s-cnl-1", reversal.Str("id"))
	refund := send(t, g, transport.MethodPost, "payments/"+pid+"/charges/s-chg-1/cancels", transport.Snapshot{"amount": "20"})
	assert.Equal(t, "s-cnl-2", refund.Str("id"))

	_, err = g.Send(context.Background(), transport.MethodPost, "payments/"+pid+"/charges/s-chg-1/cancels", transport.Snapshot{"amount": "41"})
	assert.Equal(t, CodeExceedsCancelable, apiCode(t, err))

	total, charged, canceled, remaining := amountsOf(t, g, pid)
	assert.Equal(t, []string{"100.0000", "40.0000", "30.0000", "30.0000"}, []string{total, charged, canceled, remaining})

	payment := send(t, g, transport.MethodGet, "payments/"+pid, nil)
	urls := []string{}
	for _, tx := range payment.List("transactions") {
		urls = append(urls, tx.Str("url"))
	}
	assert.Equal(t, []string{
		"payments/s-pay-1/authorize/s-aut-1",
		"payments/s-pay-1/charges/s-chg-1",
		"payments/s-pay-1/authorize/s-aut-1/cancels/s-cnl-1",
		"payments/s-pay-1/charges/s-chg-1/cancels/s-cnl-2",
	}, urls)

	detail := send(t, g, transport.MethodGet, "payments/s-pay-1/charges/s-chg-1/cancels/s-cnl-2", nil)
	assert.Equal(t, "20.0000", detail.Str("amount"))
}

func TestGateway_RejectsInvalidTransactions(t *testing.T) {
	g := newTestGateway()
	card := createCard(t, g)
	prepayment := createType(t, g, "prepayment", nil)
	auth := send(t, g, transport.MethodPost, "payments/authorize", txBody("50", card))
	res, _ := auth.Object("resources")
	pid := res.Str("paymentId")

	tests := []struct {
		name string
		path string
		body transport.Snapshot
		code string
	}{
		{"zero amount", "payments/authorize", txBody("0", card), CodeInvalidAmount},
		{"amount not a number", "payments/authorize", txBody("ten", card), CodeInvalidAmount},
		{"missing type", "payments/authorize", transport.Snapshot{"amount": "10", "currency": "EUR"}, CodeInvalidRequest},
		{"unknown type", "payments/authorize", txBody("10", "s-crd-99"), CodeUnknownType},
		{"prepayment cannot authorize", "payments/authorize", txBody("10", prepayment), CodeUnsupportedByType},
		{"lowercase currency", "payments/charges", transport.Snapshot{"amount": "10", "currency": "eur", "resources": transport.Snapshot{"typeId": card}}, CodeInvalidRequest},
		{"bad return url", "payments/charges", transport.Snapshot{"amount": "10", "currency": "EUR", "returnUrl": "nope", "resources": transport.Snapshot{"typeId": card}}, CodeInvalidRequest},
		{"second authorization", "payments/" + pid + "/authorize", txBody("10", card), CodeAlreadyAuthorized},
		{"currency mismatch", "payments/" + pid + "/charges", transport.Snapshot{"amount": "10", "currency": "USD"}, CodeCurrencyMismatch},
		{"ship before completion", "payments/" + pid + "/shipments", transport.Snapshot{}, CodeInvalidState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Send(context.Background(), transport.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.code, apiCode(t, err))
		})
	}

	total, _, _, remaining := amountsOf(t, g, pid)
	assert.Equal(t, "50.0000", total)
	assert.Equal(t, "50.0000", remaining)
}

func TestGateway_DefaultAmounts(t *testing.T) {
	g := newTestGateway()
	card := createCard(t, g)
	send(t, g, transport.MethodPost, "payments/authorize", txBody("80", card))

	charge := send(t, g, transport.MethodPost, "payments/s-pay-1/charges", transport.Snapshot{})
	assert.Equal(t, "80.0000", charge.Str("amount"))

	refund := send(t, g, transport.MethodPost, "payments/s-pay-1/charges/s-chg-1/cancels", transport.Snapshot{})
	assert.Equal(t, "80.0000", refund.Str("amount"))

	p := send(t, g, transport.MethodGet, "payments/s-pay-1", nil)
	state, _ := p.Object("state")
	assert.Equal(t, "canceled", state.Str("name"))
}

func TestGateway_PrepaymentInstructions(t *testing.T) {
	g := newTestGateway()
	prepayment := createType(t, g, "prepayment", nil)

	charge := send(t, g, transport.MethodPost, "payments/charges", txBody("25.50", prepayment))
	assert.Equal(t, true, charge["isPending"])
	assert.Equal(t, sandboxIBAN, charge.Str("iban"))
	assert.Equal(t, sandboxHolder, charge.Str("holder"))
	proc, _ := charge.Object("processing")
	assert.Equal(t, proc.Str("shortId"), charge.Str("descriptor"))
	assert.NotEmpty(t, proc.Str("uniqueId"))
}

func TestGateway_PaypalRedirect(t *testing.T) {
	g := newTestGateway(WithRedirectBase("https://pay.example/"))
	paypal := createType(t, g, "paypal", transport.Snapshot{"email": "buyer@example.com"})

	body := txBody("10", paypal)
	body["returnUrl"] = "https://shop.example/return"
	auth := send(t, g, transport.MethodPost, "payments/authorize", body)
	assert.Equal(t, "https://pay.example/paypal/s-pay-1/s-aut-1", auth.Str("redirectUrl"))
	assert.Equal(t, true, auth["isPending"])

	p := send(t, g, transport.MethodGet, "payments/s-pay-1", nil)
	assert.Equal(t, auth.Str("redirectUrl"), p.Str("redirectUrl"))
}

func TestGateway_Payout(t *testing.T) {
	g := newTestGateway()
	sepa := createType(t, g, "sepa-direct-debit", transport.Snapshot{"iban": "DE89370400440532013000"})

	body := txBody("30", sepa)
	body["invoiceId"] = "inv-1"
	payout := send(t, g, transport.MethodPost, "payments/payouts", body)
	assert.Equal(t, "s-out-1", payout.Str("id"))
	assert.Equal(t, "inv-1", payout.Str("invoiceId"))

	total, charged, _, _ := amountsOf(t, g, "s-pay-1")
	assert.Equal(t, "30.0000", total)
	assert.Equal(t, "30.0000", charged)
}

func TestGateway_Idempotency(t *testing.T) {
	g := newTestGateway()
	card := createCard(t, g)
	ctx := transport.WithIdempotencyKey(context.Background(), "key-1")

	first, err := g.Send(ctx, transport.MethodPost, "payments/authorize", txBody("10", card))
	require.NoError(t, err)
	second, err := g.Send(ctx, transport.MethodPost, "payments/authorize", txBody("10", card))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = g.Send(context.Background(), transport.MethodGet, "payments/s-pay-2", nil)
	var nf *payerror.NotFoundError
	assert.ErrorAs(t, err, &nf, "the replay must not open a second payment")

	_, err = g.Send(ctx, transport.MethodPost, "payments/charges", txBody("10", card))
	var apiErr *payerror.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, CodeIdempotencyConflict, apiErr.Code)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
}

func TestGateway_EmbeddedPayment(t *testing.T) {
	g := newTestGateway(WithEmbeddedPayment())
	card := createCard(t, g)

	auth := send(t, g, transport.MethodPost, "payments/authorize", txBody("10", card))
	p, ok := auth.Object("payment")
	require.True(t, ok)
	assert.Equal(t, "s-pay-1", p.Str("id"))
	assert.Len(t, p.List("transactions"), 1)
}

func TestGateway_Flag(t *testing.T) {
	g := newTestGateway()
	card := createCard(t, g)
	send(t, g, transport.MethodPost, "payments/charges", txBody("10", card))

	require.NoError(t, g.Flag("s-pay-1", ledger.FlagChargeback))
	p := send(t, g, transport.MethodGet, "payments/s-pay-1", nil)
	state, _ := p.Object("state")
	id, _ := state.Int("id")
	assert.Equal(t, int(ledger.Chargeback), id)

	require.NoError(t, g.Flag("s-pay-1", ledger.FlagNone))
	p = send(t, g, transport.MethodGet, "payments/s-pay-1", nil)
	state, _ = p.Object("state")
	assert.Equal(t, "completed", state.Str("name"))

	var nf *payerror.NotFoundError
	assert.ErrorAs(t, g.Flag("s-pay-9", ledger.FlagReview), &nf)
}

func TestGateway_Paypage(t *testing.T) {
	g := newTestGateway()
	card := createCard(t, g)

	page := send(t, g, transport.MethodPost, "paypage/authorize", transport.Snapshot{
		"amount": "42", "currency": "EUR", "returnUrl": "https://shop.example/return", "shopName": "Shop",
	})
	assert.Equal(t, "s-ppg-1", page.Str("id"))
	assert.Equal(t, DefaultRedirectBase+"/paypage/s-ppg-1", page.Str("redirectUrl"))
	res, _ := page.Object("resources")
	assert.Equal(t, "s-pay-1", res.Str("paymentId"))

	total, _, _, _ := amountsOf(t, g, "s-pay-1")
	assert.Equal(t, "0.0000", total)

	require.NoError(t, g.CompletePaypage("s-ppg-1", card))
	total, _, _, remaining := amountsOf(t, g, "s-pay-1")
	assert.Equal(t, "42.0000", total)
	assert.Equal(t, "42.0000", remaining)

	assert.Equal(t, CodeInvalidState, apiCode(t, g.CompletePaypage("s-ppg-1", card)))

	_, err := g.Send(context.Background(), transport.MethodPost, "paypage/authorize", transport.Snapshot{"amount": "1", "currency": "EUR"})
	assert.Equal(t, CodeInvalidRequest, apiCode(t, err))
}

func TestGateway_NotFoundAndMethods(t *testing.T) {
	g := newTestGateway()
	var nf *payerror.NotFoundError

	for _, path := range []string{"payments/s-pay-1", "payments/s-pay-1/charges/s-chg-1", "nothing/here"} {
		_, err := g.Send(context.Background(), transport.MethodGet, path, nil)
		assert.ErrorAs(t, err, &nf, path)
	}

	_, err := g.Send(context.Background(), transport.MethodDelete, "payments/s-pay-1", nil)
	var apiErr *payerror.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusMethodNotAllowed, apiErr.StatusCode)
}

func TestGateway_CanceledContext(t *testing.T) {
	g := newTestGateway()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Send(ctx, transport.MethodGet, "payments/s-pay-1", nil)
	var te *payerror.TransportError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, context.Canceled)
}
