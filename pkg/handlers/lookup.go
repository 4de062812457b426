package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/openfroyo/vpclambda/pkg/engine"
	"github.com/openfroyo/vpclambda/pkg/telemetry"
)

// DefaultLookupEndpoint answers a GET with the caller's public address as
// plain text.
const DefaultLookupEndpoint = "https://checkip.amazonaws.com"

// DefaultLookupTimeout bounds a single lookup.
const DefaultLookupTimeout = 10 * time.Second

// maxLookupBody caps how much of the response body is read.
const maxLookupBody = 64 << 10

// AddressLookup fetches the raw response of the public address service.
type AddressLookup interface {
	Lookup(ctx context.Context) (string, error)
}

// HTTPLookup performs one GET against Endpoint. It never retries.
type HTTPLookup struct {
	Endpoint string
	Client   *http.Client
	Timeout  time.Duration
}

// NewHTTPLookup creates a lookup against endpoint. Empty values select the
// defaults.
func NewHTTPLookup(endpoint string, timeout time.Duration) *HTTPLookup {
	if endpoint == "" {
		endpoint = DefaultLookupEndpoint
	}
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &HTTPLookup{
		Endpoint: endpoint,
		Client:   &http.Client{},
		Timeout:  timeout,
	}
}

// Lookup returns the response body unmodified. A transport error, a timeout
// or a non-2xx status is a network error.
func (l *HTTPLookup) Lookup(ctx context.Context) (string, error) {
	op := telemetry.StartOperation(ctx, "lookup.get", telemetry.AttrLookupEndpoint.String(l.Endpoint))
	body, status, err := l.get(op.Ctx)
	if op.Span != nil && status != 0 {
		op.Span.SetAttributes(telemetry.AttrStatusCode.Int(status))
	}
	op.End(err)

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	telemetry.MetricsFromContext(ctx).RecordLookup(outcome, op.Timer.Duration())

	return body, err
}

func (l *HTTPLookup) get(ctx context.Context) (string, int, error) {
	timeout := l.Timeout
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.Endpoint, nil)
	if err != nil {
		return "", 0, engine.NewNetworkError("failed to build lookup request", err).
			WithDetail("endpoint", l.Endpoint)
	}

	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", 0, engine.NewNetworkError("address lookup failed", err).
			WithDetail("endpoint", l.Endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", resp.StatusCode, engine.NewNetworkError(
			fmt.Sprintf("address lookup returned status %d", resp.StatusCode), nil).
			WithCode(engine.ErrCodeLookupStatus).
			WithDetail("endpoint", l.Endpoint).
			WithDetail("status", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxLookupBody))
	if err != nil {
		return "", resp.StatusCode, engine.NewNetworkError("failed to read lookup response", err).
			WithDetail("endpoint", l.Endpoint)
	}

	return string(data), resp.StatusCode, nil
}
