package domain

import "strings"

// Variant identifies one of the two backend model-server identities.
type Variant string

const (
	VariantBaseline  Variant = "baseline"
	VariantCandidate Variant = "candidate"
)

// Other returns the alternate variant. The fallback coordinator uses it
// to pick the target of the single retry dispatch.
func (v Variant) Other() Variant {
	if v == VariantBaseline {
		return VariantCandidate
	}
	return VariantBaseline
}

// ParseVariant normalizes a force-header value. Only the exact strings
// "candidate" and "baseline" (after trimming and lowercasing) are
// accepted; anything else reports false and falls through to the next
// routing rule.
func ParseVariant(s string) (Variant, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(VariantBaseline):
		return VariantBaseline, true
	case string(VariantCandidate):
		return VariantCandidate, true
	default:
		return "", false
	}
}

// Reason explains how a routing decision was reached.
type Reason string

const (
	ReasonForced Reason = "forced"
	ReasonSticky Reason = "sticky"
	ReasonRandom Reason = "random"
)

// Decision is the output of evaluating the routing policy for one
// request. It is ephemeral; nothing is kept across requests.
type Decision struct {
	Variant Variant
	Reason  Reason
}

// Outcome classifies the result of dispatching one request to a backend.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeHTTPError Outcome = "http_error"
	OutcomeError     Outcome = "error"
)

// PredictRequest is the inbound inference payload accepted by /predict.
type PredictRequest struct {
	Text string `json:"text"`
}

// PredictResponse is the payload returned to the client on success. The
// backend prediction is augmented with the serving variant, its model
// version and the observed backend latency.
type PredictResponse struct {
	Prediction string  `json:"prediction"`
	Version    string  `json:"version"`
	Variant    string  `json:"variant"`
	LatencyMS  float64 `json:"latency_ms"`
}
