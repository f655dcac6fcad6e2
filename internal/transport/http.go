package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fjacquet/payledger/internal/logging"
	"fjacquet/payledger/internal/payerror"

	"golang.org/x/time/rate"
)

// IdempotencyHeader carries the key attached with WithIdempotencyKey.
const IdempotencyHeader = "Idempotency-Key"

// HTTPConfig configures an HTTPTransport.
type HTTPConfig struct {
	BaseURL           string
	PrivateKey        string
	Timeout           time.Duration
	RequestsPerMinute int
	UserAgent         string
}

// HTTPTransport talks to the gateway's REST API. The private key is sent as the
// basic-auth user name with an empty password.
type HTTPTransport struct {
	baseURL    *url.URL
	privateKey string
	userAgent  string
	client     *http.Client
	limiter    *rate.Limiter
	logger     logging.Logger
}

// HTTPOption customises an HTTPTransport.
type HTTPOption func(*HTTPTransport)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(t *HTTPTransport) {
		t.client = c
	}
}

// NewHTTPTransport builds an HTTPTransport from cfg.
func NewHTTPTransport(cfg HTTPConfig, logger logging.Logger, opts ...HTTPOption) (*HTTPTransport, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	if logger == nil {
		logger = logging.NewLogrusAdapter("info", "text")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	t := &HTTPTransport{
		baseURL:    base,
		privateKey: cfg.PrivateKey,
		userAgent:  cfg.UserAgent,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
	if cfg.RequestsPerMinute > 0 {
		t.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Send implements Transport.
func (t *HTTPTransport) Send(ctx context.Context, method Method, path string, body Snapshot) (Snapshot, error) {
	start := time.Now()
	path = strings.TrimPrefix(path, "/")
	transportErr := func(err error) error {
		return &payerror.TransportError{Method: string(method), Path: path, Err: err}
	}

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, transportErr(err)
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, transportErr(fmt.Errorf("encoding request: %w", err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, string(method), t.baseURL.ResolveReference(&url.URL{Path: path}).String(), reader)
	if err != nil {
		return nil, transportErr(err)
	}
	req.SetBasicAuth(t.privateKey, "")
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	if key, ok := IdempotencyKey(ctx); ok && method != MethodGet {
		req.Header.Set(IdempotencyHeader, key)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		t.logger.WithError(err).Debug("Request failed",
			logging.F(logging.FieldMethod, method),
			logging.F(logging.FieldPath, path))
		return nil, transportErr(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportErr(fmt.Errorf("reading response: %w", err))
	}

	t.logger.Debug("Gateway responded",
		logging.F(logging.FieldMethod, method),
		logging.F(logging.FieldPath, path),
		logging.F(logging.FieldStatus, resp.StatusCode),
		logging.F(logging.FieldDuration, time.Since(start).Milliseconds()))

	var snap Snapshot
	if len(bytes.TrimSpace(raw)) > 0 {
		snap, err = Decode(raw)
		if err != nil && resp.StatusCode < 400 {
			return nil, transportErr(fmt.Errorf("decoding response: %w", err))
		}
	}

	if resp.StatusCode >= 400 || len(snap.List("errors")) > 0 {
		return nil, errorFromResponse(resp.StatusCode, path, snap)
	}
	if snap == nil {
		snap = Snapshot{}
	}
	return snap, nil
}

// errorFromResponse maps a gateway error body to the payerror taxonomy.
func errorFromResponse(status int, path string, snap Snapshot) error {
	apiErr := &payerror.APIError{StatusCode: status, ErrorID: snap.Str("id")}
	if errs := snap.List("errors"); len(errs) > 0 {
		apiErr.Code = errs[0].Str("code")
		apiErr.MerchantMessage = errs[0].Str("merchantMessage")
		apiErr.ClientMessage = errs[0].Str("customerMessage")
	}
	if apiErr.MerchantMessage == "" {
		apiErr.MerchantMessage = http.StatusText(status)
	}
	if status == http.StatusNotFound {
		return &payerror.NotFoundError{Path: path, Code: apiErr.Code, MerchantMessage: apiErr.MerchantMessage}
	}
	return apiErr
}

// ErrorBody renders err in the gateway's error format. Servers use it to answer
// with the same shape errorFromResponse reads.
func ErrorBody(err error) (int, Snapshot) {
	var (
		apiErr   *payerror.APIError
		notFound *payerror.NotFoundError
	)
	entry := Snapshot{}
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &notFound):
		status = http.StatusNotFound
		entry["code"] = notFound.Code
		entry["merchantMessage"] = notFound.MerchantMessage
		entry["customerMessage"] = "The requested resource could not be found."
	case errors.As(err, &apiErr):
		status = apiErr.StatusCode
		if status == 0 {
			status = http.StatusBadRequest
		}
		entry["code"] = apiErr.Code
		entry["merchantMessage"] = apiErr.MerchantMessage
		entry["customerMessage"] = apiErr.ClientMessage
	default:
		entry["merchantMessage"] = err.Error()
		entry["customerMessage"] = "An unexpected error occurred."
	}
	return status, Snapshot{"isError": true, "errors": []any{entry}}
}

func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
