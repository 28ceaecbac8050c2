package gateway

import (
	"context"
	"errors"

	"github.com/project-seraphim/inference-gateway/pkg/dispatch"
	"github.com/project-seraphim/inference-gateway/pkg/domain"
	"github.com/project-seraphim/inference-gateway/pkg/telemetry"
)

// dispatchState names the states of the per-request dispatch machine:
// ROUTE_SELECTED -> DISPATCH_PRIMARY -> {SUCCESS | DISPATCH_FALLBACK}
// -> {SUCCESS | FAILED}.
type dispatchState string

const (
	stateDispatchPrimary  dispatchState = "DISPATCH_PRIMARY"
	stateDispatchFallback dispatchState = "DISPATCH_FALLBACK"
	stateSuccess          dispatchState = "SUCCESS"
	stateFailed           dispatchState = "FAILED"
)

// dispatchOutcome is the terminal result of running the state machine.
type dispatchOutcome struct {
	// result and variant describe the attempt that produced the client
	// response: the successful one, or the primary attempt on total
	// failure.
	result  *dispatch.Result
	variant domain.Variant
	// primary records the first attempt's failure; the 503 returned to
	// the client carries this classification even when the fallback
	// failed differently.
	primary  *domain.BackendError
	fellBack bool
}

// runDispatch executes the two-step dispatch state machine: one call to
// the routed variant and, on failure, exactly one call to the alternate
// with a fresh, equal timeout budget. No backoff and no third attempt,
// keeping total latency under twice the configured timeout.
func (g *Gateway) runDispatch(ctx context.Context, decision domain.Decision, payload []byte, correlationID string) dispatchOutcome {
	primary := decision.Variant

	g.logger.Debug().
		Str("correlation_id", correlationID).
		Str("variant", string(primary)).
		Str("reason", string(decision.Reason)).
		Str("state", string(stateDispatchPrimary)).
		Msg("dispatching to routed variant")

	result, err := g.dispatchOnce(ctx, decision, primary, payload, correlationID, false)
	if err == nil {
		return dispatchOutcome{result: result, variant: primary}
	}

	g.logger.Warn().
		Str("correlation_id", correlationID).
		Str("variant", string(primary)).
		Str("outcome", string(result.Outcome)).
		Str("state", string(stateDispatchFallback)).
		Err(err).
		Msg("primary dispatch failed, attempting fallback")

	fallback := primary.Other()
	fbResult, fbErr := g.dispatchOnce(ctx, decision, fallback, payload, correlationID, true)
	if fbErr == nil {
		g.logger.Info().
			Str("correlation_id", correlationID).
			Str("variant", string(fallback)).
			Str("state", string(stateSuccess)).
			Msg("fallback dispatch served the request")
		return dispatchOutcome{result: fbResult, variant: fallback, fellBack: true}
	}

	g.logger.Error().
		Str("correlation_id", correlationID).
		Str("variant", string(fallback)).
		Str("outcome", string(fbResult.Outcome)).
		Str("state", string(stateFailed)).
		Err(fbErr).
		Msg("fallback dispatch failed")

	return dispatchOutcome{
		result:   result,
		variant:  primary,
		primary:  err,
		fellBack: true,
	}
}

// dispatchOnce performs one backend call and records its telemetry.
// Every attempt emits its own outcome label, so a failed primary plus a
// successful fallback shows up as two events.
func (g *Gateway) dispatchOnce(ctx context.Context, decision domain.Decision, variant domain.Variant, payload []byte, correlationID string, fallback bool) (*dispatch.Result, *domain.BackendError) {
	result, err := g.dispatcher.Dispatch(ctx, variant, g.backends[variant], payload, correlationID)

	g.metrics.RecordDispatch(variant, result.Outcome, result.Latency, fallback)
	telemetry.RecordDispatch(ctx, telemetry.DispatchMetrics{
		Variant:  variant,
		Reason:   decision.Reason,
		Outcome:  result.Outcome,
		Fallback: fallback,
		Duration: result.Latency,
	})

	if err == nil {
		return result, nil
	}

	var backendErr *domain.BackendError
	if !errors.As(err, &backendErr) {
		backendErr = &domain.BackendError{Err: err, Variant: variant, Outcome: result.Outcome}
	}
	return result, backendErr
}
