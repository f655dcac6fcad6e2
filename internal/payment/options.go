package payment

// CallOption tunes a single mutation.
type CallOption func(*callOptions)

type callOptions struct {
	deferRefresh   bool
	idempotencyKey string
}

// WithDeferredRefresh skips the refresh after the mutation. The cached ledger
// then holds the locally applied delta until the caller runs Session.Refresh.
func WithDeferredRefresh() CallOption {
	return func(o *callOptions) {
		o.deferRefresh = true
	}
}

// WithIdempotencyKey lets the gateway replay the original response when the
// same mutation is sent again with key.
func WithIdempotencyKey(key string) CallOption {
	return func(o *callOptions) {
		o.idempotencyKey = key
	}
}

func collect(opts []CallOption) callOptions {
	var o callOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
