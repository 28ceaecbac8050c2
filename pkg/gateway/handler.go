package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/project-seraphim/inference-gateway/pkg/domain"
)

// maxRequestBytes bounds the inbound payload size.
const maxRequestBytes = 1 << 20

// handlePredict is the data path: validate, route, dispatch with single
// fallback, respond.
func (g *Gateway) handlePredict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := CorrelationIDFromContext(ctx)

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		g.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "request body unreadable or too large", correlationID)
		return
	}

	// Malformed payloads never reach a backend.
	var req domain.PredictRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		g.logger.Debug().
			Str("correlation_id", correlationID).
			Err(fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)).
			Msg("rejected request payload")
		g.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "body must be a JSON object with a \"text\" field", correlationID)
		return
	}

	decision := g.evaluator.Evaluate(r.Header)

	outcome := g.runDispatch(ctx, decision, payload, correlationID)
	if outcome.primary != nil {
		g.writeError(w, http.StatusServiceUnavailable, domain.ErrorCode(outcome.primary.Outcome), outcome.primary.Error(), correlationID)
		return
	}

	g.writeJSON(w, http.StatusOK, domain.PredictResponse{
		Prediction: outcome.result.Prediction,
		Version:    g.backends[outcome.variant].ModelVersion,
		Variant:    string(outcome.variant),
		LatencyMS:  float64(outcome.result.Latency) / float64(time.Millisecond),
	})
}

// handleHealthz reports liveness: 200 whenever the process is up.
func (g *Gateway) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	g.writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"version": Version,
	})
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		g.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (g *Gateway) writeError(w http.ResponseWriter, status int, code, message, correlationID string) {
	g.writeJSON(w, status, domain.ErrorResponse{
		Code:          code,
		Message:       message,
		CorrelationID: correlationID,
	})
}
