// Package dispatch sends inference requests to backend model servers,
// bounds them with a hard deadline and classifies the result.
package dispatch

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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/project-seraphim/inference-gateway/pkg/domain"
)

// maxResponseBytes caps how much of a backend response is read into
// memory. Model servers return small JSON documents; anything larger is
// a misbehaving upstream.
const maxResponseBytes = 1 << 20

// pingTimeout bounds readiness probes independently of the inference
// timeout so a slow backend cannot stall /readyz.
const pingTimeout = 2 * time.Second

// Backend describes one backend model server target.
type Backend struct {
	URL          string
	ModelName    string
	ModelVersion string
}

// predictionURL builds the model-server inference endpoint, appending
// the model version segment only when one is configured.
func (b Backend) predictionURL() string {
	base := strings.TrimRight(b.URL, "/")
	if b.ModelVersion != "" {
		return fmt.Sprintf("%s/predictions/%s/%s", base, url.PathEscape(b.ModelName), url.PathEscape(b.ModelVersion))
	}
	return fmt.Sprintf("%s/predictions/%s", base, url.PathEscape(b.ModelName))
}

// Result captures one dispatch attempt for telemetry and response
// shaping. Latency is wall-clock time from call start to completion or
// cancellation; StatusCode is set whenever a response was received.
type Result struct {
	Outcome    domain.Outcome
	Prediction string
	StatusCode int
	Latency    time.Duration
}

// Dispatcher issues bounded HTTP calls to backend model servers. The
// underlying client reuses pooled connections; cancelled calls release
// their connection via body drain-and-close.
type Dispatcher struct {
	client            *http.Client
	timeout           time.Duration
	correlationHeader string
}

// NewDispatcher builds a dispatcher with the given per-call timeout.
// The transport is instrumented so outbound calls carry W3C trace
// context to the backends.
func NewDispatcher(timeout time.Duration, correlationHeader string) *Dispatcher {
	return &Dispatcher{
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		timeout:           timeout,
		correlationHeader: correlationHeader,
	}
}

// Timeout reports the configured per-call deadline.
func (d *Dispatcher) Timeout() time.Duration {
	return d.timeout
}

// Dispatch posts the payload to the backend for the given variant and
// classifies the result. The returned Result is always non-nil so the
// caller can record outcome and latency even on failure; err is a
// *domain.BackendError for every non-success outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, variant domain.Variant, backend Backend, payload []byte, correlationID string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, backend.predictionURL(), bytes.NewReader(payload))
	if err != nil {
		return &Result{Outcome: domain.OutcomeError}, &domain.BackendError{
			Err:     fmt.Errorf("%w: %v", domain.ErrBackendUnreachable, err),
			Variant: variant,
			Outcome: domain.OutcomeError,
		}
	}
	req.Header.Set("Content-Type", "application/json")
	if correlationID != "" {
		req.Header.Set(d.correlationHeader, correlationID)
	}

	start := time.Now()
	resp, err := d.client.Do(req)
	latency := time.Since(start)

	if err != nil {
		outcome := domain.OutcomeError
		wrapped := fmt.Errorf("%w: %v", domain.ErrBackendUnreachable, err)
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			outcome = domain.OutcomeTimeout
			wrapped = fmt.Errorf("%w after %s", domain.ErrBackendTimeout, d.timeout)
		}
		return &Result{Outcome: outcome, Latency: latency}, &domain.BackendError{
			Err:     wrapped,
			Variant: variant,
			Outcome: outcome,
		}
	}
	defer drainAndClose(resp.Body)

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Result{Outcome: domain.OutcomeHTTPError, StatusCode: resp.StatusCode, Latency: latency}, &domain.BackendError{
			Err:        domain.ErrBackendHTTP,
			Variant:    variant,
			Outcome:    domain.OutcomeHTTPError,
			StatusCode: resp.StatusCode,
		}
	}

	if readErr != nil {
		return &Result{Outcome: domain.OutcomeError, StatusCode: resp.StatusCode, Latency: latency}, &domain.BackendError{
			Err:     fmt.Errorf("%w: reading response: %v", domain.ErrBackendUnreachable, readErr),
			Variant: variant,
			Outcome: domain.OutcomeError,
		}
	}

	var parsed struct {
		Prediction string `json:"prediction"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return &Result{Outcome: domain.OutcomeError, StatusCode: resp.StatusCode, Latency: latency}, &domain.BackendError{
			Err:     fmt.Errorf("%w: malformed backend response: %v", domain.ErrBackendUnreachable, err),
			Variant: variant,
			Outcome: domain.OutcomeError,
		}
	}

	return &Result{
		Outcome:    domain.OutcomeSuccess,
		Prediction: parsed.Prediction,
		StatusCode: resp.StatusCode,
		Latency:    latency,
	}, nil
}

// Ping probes the backend health endpoint. A nil error means the
// backend answered 2xx within the probe timeout.
func (d *Dispatcher) Ping(ctx context.Context, backend Backend) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	pingURL := strings.TrimRight(backend.URL, "/") + "/ping"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pingURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBackendUnreachable, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBackendUnreachable, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &domain.BackendError{
			Err:        domain.ErrBackendHTTP,
			Outcome:    domain.OutcomeHTTPError,
			StatusCode: resp.StatusCode,
		}
	}
	return nil
}

// drainAndClose consumes the remaining body so the underlying
// connection can return to the pool instead of being torn down.
func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxResponseBytes))
	_ = body.Close()
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
