package payment_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"fjacquet/payledger/internal/ledger"
	"fjacquet/payledger/internal/payerror"
	"fjacquet/payledger/internal/payment"
	"fjacquet/payledger/internal/paymenttype"
	"fjacquet/payledger/internal/sandbox"
	"fjacquet/payledger/internal/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutation_RefreshFailureKeepsTransaction(t *testing.T) {
	e := newEnv(t)
	_, p := e.authorize(t, "100")
	e.transport.failOn(failGets)

	ch, err := p.Charge(context.Background(), payment.Amount(dec("40")), "")
	require.NotNil(t, ch, "the charge exists on the gateway")
	var re *payerror.RefreshError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "charge", re.Op)
	assert.Equal(t, p.ID(), re.PaymentID)
	assert.Equal(t, ch.ID(), re.TransactionID)
	var te *payerror.TransportError
	assert.ErrorAs(t, err, &te)

	assertLedger(t, p, "100", "40", "0", "60")
	assert.Equal(t, ledger.PartlyPaid, p.State())
	assert.True(t, e.log.HasEntry("WARN", "Refresh after charge failed"))

	e.transport.reset()
	require.NoError(t, e.session.Refresh(context.Background(), p))
	assertLedger(t, p, "100", "40", "0", "60")
	require.Len(t, p.Charges(), 1)
	assert.Same(t, ch, p.Charges()[0])
}

func TestMutation_RefreshFailureOnNewPayment(t *testing.T) {
	e := newEnv(t)
	e.transport.failOn(failGets)

	auth, err := e.card.Authorize(context.Background(), e.session, payment.AuthorizeRequest{Amount: dec("10"), Currency: "EUR"})
	require.NotNil(t, auth)
	var re *payerror.RefreshError
	require.ErrorAs(t, err, &re)

	p, err := auth.Payment()
	require.NoError(t, err, "the payment is registered before the refresh")
	assertLedger(t, p, "10", "0", "0", "10")
}

func TestMutation_TransportFailureLeavesStateUnchanged(t *testing.T) {
	e := newEnv(t)
	_, p := e.authorize(t, "100")
	before := p.Serialize()
	e.transport.failOn(func(method transport.Method, _ string) bool { return method == transport.MethodPost })

	ch, err := p.Charge(context.Background(), payment.Amount(dec("40")), "")
	assert.Nil(t, ch)
	var te *payerror.TransportError
	require.ErrorAs(t, err, &te)
	assert.False(t, payerror.IsLocal(err))
	assert.Equal(t, before, p.Serialize())
}

func TestMutation_DeferredRefresh(t *testing.T) {
	e := newEnv(t)
	auth, p := e.authorize(t, "100")
	e.transport.reset()

	ch, err := auth.Charge(context.Background(), payment.Amount(dec("25")), payment.WithDeferredRefresh())
	require.NoError(t, err)
	assert.Zero(t, e.transport.count(transport.MethodGet))
	assert.Equal(t, 1, e.transport.count(transport.MethodPost))
	assertLedger(t, p, "100", "25", "0", "75")
	assert.Same(t, ch, p.Charges()[0])

	require.NoError(t, e.session.Refresh(context.Background(), p))
	assertLedger(t, p, "100", "25", "0", "75")
	assert.Equal(t, 3, e.transport.count(transport.MethodGet), "payment, authorization and charge")
}

func TestMutation_EmbeddedPaymentSkipsRefresh(t *testing.T) {
	e := newEnv(t, sandbox.WithEmbeddedPayment())
	auth, p := e.authorize(t, "100")
	e.transport.reset()

	_, err := auth.Cancel(context.Background(), payment.Amount(dec("30")))
	require.NoError(t, err)
	assert.Zero(t, e.transport.count(transport.MethodGet))
	assertLedger(t, p, "100", "0", "30", "70")
	assert.Len(t, p.Authorization().Cancellations(), 1)
}

func TestMutation_IdempotencyKeyReplays(t *testing.T) {
	e := newEnv(t)
	auth, p := e.authorize(t, "100")

	first, err := auth.Charge(context.Background(), payment.Amount(dec("10")), payment.WithIdempotencyKey("charge-1"))
	require.NoError(t, err)

	second, err := auth.Charge(context.Background(), payment.Amount(dec("10")), payment.WithIdempotencyKey("charge-1"))
	require.NoError(t, err)
	assert.Same(t, first, second)
	assertLedger(t, p, "100", "10", "0", "90")
	assert.Len(t, p.Charges(), 1)
	assert.True(t, e.log.HasEntry("INFO", "Gateway replayed charge"))
}

func TestMutation_ReplayIsBookedOnce(t *testing.T) {
	tests := []struct {
		name string
		run  func(t *testing.T, e *env, auth *payment.Authorization, p *payment.Payment)
	}{
		{
			name: "deferred refresh",
			run: func(t *testing.T, e *env, auth *payment.Authorization, p *payment.Payment) {
				ctx := context.Background()
				first, err := auth.Charge(ctx, payment.Amount(dec("10")), payment.WithIdempotencyKey("k"), payment.WithDeferredRefresh())
				require.NoError(t, err)
				second, err := auth.Charge(ctx, payment.Amount(dec("10")), payment.WithIdempotencyKey("k"), payment.WithDeferredRefresh())
				require.NoError(t, err)

				assert.Same(t, first, second)
				assertLedger(t, p, "100", "10", "0", "90")
				require.Len(t, p.Charges(), 1)
				assert.Len(t, p.Transactions(), 2)
			},
		},
		{
			name: "refresh fails after the replay",
			run: func(t *testing.T, e *env, auth *payment.Authorization, p *payment.Payment) {
				ctx := context.Background()
				first, err := auth.Cancel(ctx, payment.Amount(dec("30")), payment.WithIdempotencyKey("c"))
				require.NoError(t, err)

				e.transport.failOn(failGets)
				second, err := auth.Cancel(ctx, payment.Amount(dec("30")), payment.WithIdempotencyKey("c"))
				var re *payerror.RefreshError
				require.ErrorAs(t, err, &re)
				assert.Same(t, first, second)
				assert.Equal(t, first.ID(), re.TransactionID)

				assertLedger(t, p, "100", "0", "30", "70")
				assert.Len(t, p.Cancellations(), 1)
				assert.Len(t, auth.Cancellations(), 1)
			},
		},
		{
			name: "replayed authorization of a new payment",
			run: func(t *testing.T, e *env, _ *payment.Authorization, _ *payment.Payment) {
				ctx := context.Background()
				req := payment.AuthorizeRequest{Amount: dec("15"), Currency: "EUR"}
				first, err := e.card.Authorize(ctx, e.session, req, payment.WithIdempotencyKey("auth-2"))
				require.NoError(t, err)
				second, err := e.card.Authorize(ctx, e.session, req, payment.WithIdempotencyKey("auth-2"), payment.WithDeferredRefresh())
				require.NoError(t, err)

				assert.Same(t, first, second)
				p, err := second.Payment()
				require.NoError(t, err)
				assertLedger(t, p, "15", "0", "0", "15")
				assert.Len(t, p.Transactions(), 1)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			auth, p := e.authorize(t, "100")
			tt.run(t, e, auth, p)
		})
	}
}

func TestMutation_UnreadableResponseReportsAcceptance(t *testing.T) {
	tests := []struct {
		name    string
		rewrite func(resp transport.Snapshot) transport.Snapshot
	}{
		{
			name: "bad amount",
			rewrite: func(resp transport.Snapshot) transport.Snapshot {
				resp = resp.Clone()
				resp["amount"] = "ten"
				return resp
			},
		},
		{
			name: "no payment id",
			rewrite: func(resp transport.Snapshot) transport.Snapshot {
				resp = resp.Clone()
				delete(resp, "resources")
				return resp
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			e.transport.rewriteWith(func(method transport.Method, _ string, resp transport.Snapshot) transport.Snapshot {
				if method != transport.MethodPost {
					return resp
				}
				return tt.rewrite(resp)
			})

			auth, err := e.card.Authorize(context.Background(), e.session, payment.AuthorizeRequest{Amount: dec("10"), Currency: "EUR"})
			assert.Nil(t, auth)
			var re *payerror.ResponseError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, "authorize", re.Op)
			assert.False(t, payerror.IsLocal(err))
			assert.True(t, e.log.HasEntry("ERROR", "Gateway accepted authorize but the response is unreadable"))
		})
	}
}

func TestRefresh_AppliesNothingOnFailure(t *testing.T) {
	e := newEnv(t)
	auth, p := e.authorize(t, "100")
	_, err := auth.Charge(context.Background(), payment.Amount(dec("30")))
	require.NoError(t, err)

	// Move the gateway on behind the client's back, then fail one detail fetch.
	require.NoError(t, e.gateway.Flag(p.ID(), ledger.FlagReview))
	before := p.Serialize()
	e.transport.failOn(func(method transport.Method, path string) bool {
		return method == transport.MethodGet && strings.Contains(path, "/charges/")
	})

	err = e.session.Refresh(context.Background(), p)
	var te *payerror.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, before, p.Serialize())
	assert.Equal(t, ledger.PartlyPaid, p.State())

	e.transport.reset()
	require.NoError(t, e.session.Refresh(context.Background(), p))
	assert.Equal(t, ledger.PaymentReview, p.State(), "the review flag wins over the amounts")
}

func TestRefresh_KeepsFetchedDetails(t *testing.T) {
	e := newEnv(t)
	auth, p := e.authorize(t, "100")
	ch, err := auth.Charge(context.Background(), payment.Amount(dec("40")))
	require.NoError(t, err)
	require.NotEmpty(t, ch.ShortID())

	other := payment.NewSession(e.transport, e.log)
	t.Cleanup(other.Close)
	loaded, err := other.FetchPayment(context.Background(), p.ID())
	require.NoError(t, err)
	require.Len(t, loaded.Charges(), 1)
	fetched := loaded.Charges()[0]
	assert.Equal(t, ch.ShortID(), fetched.ShortID())
	assert.Equal(t, ch.UniqueID(), fetched.UniqueID())

	require.NoError(t, other.Refresh(context.Background(), loaded))
	assert.Same(t, fetched, loaded.Charges()[0])
	assert.Equal(t, ch.ShortID(), loaded.Charges()[0].ShortID())
}

func TestRefresh_RequiresPersistedPayment(t *testing.T) {
	e := newEnv(t)
	err := e.session.Refresh(context.Background(), payment.NewPayment())
	requireReason(t, err, payerror.ErrUnsavedResource)
}

func TestSnapshot_ApplyTwiceAndRoundTrip(t *testing.T) {
	e := newEnv(t)
	auth, p := e.authorize(t, "100")
	ch, err := auth.Charge(context.Background(), payment.Amount(dec("60")))
	require.NoError(t, err)
	_, err = ch.Cancel(context.Background(), payment.Amount(dec("15")))
	require.NoError(t, err)
	_, err = auth.Cancel(context.Background(), payment.Amount(dec("5")))
	require.NoError(t, err)

	snap, err := e.gateway.Send(context.Background(), transport.MethodGet, "payments/"+p.ID(), nil)
	require.NoError(t, err)

	q := payment.NewPayment()
	require.NoError(t, q.Deserialize(snap))
	once := q.Serialize()
	require.NoError(t, q.Deserialize(snap))
	assert.Equal(t, once, q.Serialize(), "applying a snapshot twice changes nothing")
	assert.True(t, p.Amounts().Equal(q.Amounts()))
	assert.Equal(t, p.State(), q.State())
	assert.Len(t, q.Transactions(), 4)

	r := payment.NewPayment()
	require.NoError(t, r.Deserialize(p.Serialize()))
	assert.Equal(t, p.Serialize(), r.Serialize())
	assert.Equal(t, p.ID(), r.ID())
	assert.Equal(t, p.OrderID(), r.OrderID())
	require.NotNil(t, r.Authorization())
	assert.Len(t, r.Authorization().Cancellations(), 1)
	require.Len(t, r.Charges(), 1)
	assert.Len(t, r.Charges()[0].Cancellations(), 1)
}

func TestSnapshot_RejectsInconsistentPayments(t *testing.T) {
	e := newEnv(t)
	_, p := e.authorize(t, "100")
	before := p.Serialize()

	bad := p.Serialize()
	bad["amount"] = transport.Snapshot{"total": "100", "charged": "80", "canceled": "30", "remaining": "0"}
	err := p.Deserialize(bad)
	requireReason(t, err, payerror.ErrInconsistentLedger)
	assert.Equal(t, before, p.Serialize())

	orphan := p.Serialize()
	orphan["transactions"] = []any{
		transport.Snapshot{"type": "cancel-charge", "url": "payments/" + p.ID() + "/charges/s-chg-9/cancels/s-cnl-1", "amount": "1"},
	}
	var de *payerror.DecodeError
	require.ErrorAs(t, p.Deserialize(orphan), &de)
	assert.Equal(t, before, p.Serialize())

	foreign := p.Serialize()
	foreign["id"] = "s-pay-other"
	requireReason(t, p.Deserialize(foreign), payerror.ErrAlreadyPersisted)
}

func TestDetachedResources(t *testing.T) {
	ctx := context.Background()

	t.Run("closed session", func(t *testing.T) {
		e := newEnv(t)
		auth, p := e.authorize(t, "100")
		e.session.Close()
		e.transport.reset()

		var de *payerror.DetachedResourceError
		_, err := p.Charge(ctx, nil, "")
		require.ErrorAs(t, err, &de)
		_, err = auth.Cancel(ctx, nil)
		require.ErrorAs(t, err, &de)
		_, err = e.card.Charge(ctx, e.session, payment.ChargeRequest{Amount: dec("1"), Currency: "EUR"})
		require.ErrorAs(t, err, &de)
		assert.True(t, payerror.IsLocal(err))
		assert.Zero(t, e.transport.total())
	})

	t.Run("payment without session", func(t *testing.T) {
		var de *payerror.DetachedResourceError
		_, err := payment.NewPayment().Cancel(ctx, nil)
		assert.ErrorAs(t, err, &de)
	})

	t.Run("type from another session", func(t *testing.T) {
		e := newEnv(t)
		other := payment.NewSession(e.transport, e.log)
		var de *payerror.DetachedResourceError
		_, err := e.card.Authorize(ctx, other, payment.AuthorizeRequest{Amount: dec("1"), Currency: "EUR"})
		require.ErrorAs(t, err, &de)
		assert.Contains(t, de.Reason, "another session")
	})

	t.Run("unsaved type", func(t *testing.T) {
		e := newEnv(t)
		card := &paymenttype.Card{Number: "4711100000000000", ExpiryDate: "12/2030"}
		var de *payerror.DetachedResourceError
		_, err := card.Charge(ctx, e.session, payment.ChargeRequest{Amount: dec("1"), Currency: "EUR"})
		require.ErrorAs(t, err, &de)
	})
}

func TestFetchers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	auth, p := e.authorize(t, "100")
	first, err := auth.Cancel(ctx, payment.Amount(dec("10")))
	require.NoError(t, err)
	_, err = auth.Cancel(ctx, payment.Amount(dec("20")))
	require.NoError(t, err)
	ch, err := auth.Charge(ctx, payment.Amount(dec("50")))
	require.NoError(t, err)
	refund, err := ch.Cancel(ctx, payment.Amount(dec("5")))
	require.NoError(t, err)

	// A second session knows nothing about the payment yet.
	fresh := payment.NewSession(e.transport, e.log)
	t.Cleanup(fresh.Close)

	byPayment, err := fresh.FetchReversal(ctx, p.ID(), first.ID())
	require.NoError(t, err)
	assert.True(t, dec("10").Equal(byPayment.Amount()))
	assert.Equal(t, first.UniqueID(), byPayment.UniqueID())

	fetchedAuth, err := fresh.FetchAuthorization(ctx, p.ID())
	require.NoError(t, err)
	byAuth, err := fresh.FetchReversalByAuthorization(ctx, fetchedAuth, first.ID())
	require.NoError(t, err)
	assert.Same(t, byPayment, byAuth)

	reversals := fetchedAuth.Cancellations()
	require.Len(t, reversals, 2)
	assert.True(t, dec("20").Equal(reversals[1].Amount()))

	gotCharge, err := fresh.FetchCharge(ctx, p.ID(), ch.ID())
	require.NoError(t, err)
	assert.True(t, dec("45").Equal(gotCharge.Cancelable()))

	gotRefund, err := fresh.FetchRefund(ctx, p.ID(), ch.ID(), refund.ID())
	require.NoError(t, err)
	assert.True(t, gotRefund.IsRefund())

	fetched, err := fresh.FetchPayment(ctx, p.ID())
	require.NoError(t, err)
	assert.True(t, p.Amounts().Equal(fetched.Amounts()))
	assert.NotSame(t, p, fetched)

	var nf *payerror.NotFoundError
	_, err = fresh.FetchCharge(ctx, p.ID(), "s-chg-9")
	assert.ErrorAs(t, err, &nf)
	_, err = fresh.FetchShipment(ctx, p.ID(), "s-shp-1")
	assert.ErrorAs(t, err, &nf)
	_, err = fresh.FetchPayout(ctx, p.ID())
	assert.ErrorAs(t, err, &nf)
	_, err = fresh.FetchPayment(ctx, "s-pay-404")
	assert.ErrorAs(t, err, &nf)
}

func TestConcurrentPayments(t *testing.T) {
	e := newEnv(t)
	const workers = 8

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			amount := dec(fmt.Sprintf("%d", 10+i))
			auth, err := e.card.Authorize(context.Background(), e.session, payment.AuthorizeRequest{Amount: amount, Currency: "EUR"})
			if err != nil {
				errs <- err
				return
			}
			if _, err := auth.Charge(context.Background(), nil); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	for i := 1; i <= workers; i++ {
		id := fmt.Sprintf("s-pay-%d", i)
		p, ok := e.session.Lookup(id)
		require.True(t, ok, id)
		assert.Equal(t, ledger.Completed, p.State())
	}
}

func TestPrepaymentInstructions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	prepayment := &paymenttype.Prepayment{}
	require.NoError(t, e.session.CreatePaymentType(ctx, prepayment))

	ch, err := prepayment.Charge(ctx, e.session, payment.ChargeRequest{
		Amount: dec("119.00"), Currency: "EUR", InvoiceID: "inv-7", PaymentReference: "ref-7",
	})
	require.NoError(t, err)

	in := ch.Instructions()
	assert.NotEmpty(t, in.IBAN)
	assert.NotEmpty(t, in.BIC)
	assert.NotEmpty(t, in.Holder)
	assert.Equal(t, ch.ShortID(), in.Descriptor)
	assert.Equal(t, payment.StatusPending, ch.Status())
	assert.Equal(t, "inv-7", ch.InvoiceID())
	assert.Equal(t, "ref-7", ch.PaymentReference())

	p, err := ch.Payment()
	require.NoError(t, err)
	assertLedger(t, p, "119", "119", "0", "0")
}

func TestPayout(t *testing.T) {
	e := newEnv(t)
	po, err := e.card.Payout(context.Background(), e.session, payment.PayoutRequest{
		Amount: dec("20"), Currency: "EUR", OrderID: "payout-1",
	})
	require.NoError(t, err)
	assert.Equal(t, payment.KindPayout, po.Kind())

	p, err := po.Payment()
	require.NoError(t, err)
	assert.Same(t, po, p.Payout())
	assertLedger(t, p, "20", "20", "0", "0")
	assert.Equal(t, "payout-1", p.OrderID())

	again, err := e.session.FetchPayout(context.Background(), p.ID())
	require.NoError(t, err)
	assert.Same(t, po, again)
}

func TestPaypage(t *testing.T) {
	e := newEnv(t)
	page, p := e.paypagePayment(t, payment.PayModeAuthorize)

	assert.NotEmpty(t, page.ID())
	assert.Equal(t, p.ID(), page.PaymentID())
	assert.Equal(t, page.RedirectURL(), p.RedirectURL())
	assert.Equal(t, ledger.Pending, p.State())
	assert.Nil(t, p.Authorization())

	require.NoError(t, e.gateway.CompletePaypage(page.ID(), e.card.ID()))
	require.NoError(t, e.session.Refresh(context.Background(), p))
	require.NotNil(t, p.Authorization())
	assertLedger(t, p, "50", "0", "0", "50")

	_, err := (&payment.Paypage{Amount: dec("1"), Currency: "EUR"}).Pay(context.Background(), e.session, payment.PayModeCharge)
	requireReason(t, err, payerror.ErrInvalidRequest)
	_, err = (&payment.Paypage{Amount: dec("1"), Currency: "EUR", ReturnURL: "https://x.example"}).Pay(context.Background(), e.session, "subscribe")
	requireReason(t, err, payerror.ErrInvalidRequest)
}
