// Package routing implements the canary routing policy: deciding, per
// request, whether the baseline or the candidate backend serves it.
package routing

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"
	"net/http"

	"github.com/project-seraphim/inference-gateway/pkg/domain"
)

// Policy is the immutable routing configuration evaluated per request.
type Policy struct {
	// CanaryPercent is the share of traffic routed to the candidate,
	// an integer in [0,100]. Out-of-range values are clamped.
	CanaryPercent int
	// StickyHeader names the header whose value pins a caller to a
	// variant (e.g. a user identifier).
	StickyHeader string
	// ForceHeader names the header that overrides routing entirely.
	ForceHeader string
}

// Evaluator produces a routing decision from request headers and the
// configured policy. It holds no per-request state and is safe for
// concurrent use.
type Evaluator struct {
	policy Policy

	// randIntN is swappable in tests; defaults to math/rand/v2.
	randIntN func(int) int
}

// NewEvaluator clamps the policy percentage and returns an evaluator.
func NewEvaluator(policy Policy) *Evaluator {
	if policy.CanaryPercent < 0 {
		policy.CanaryPercent = 0
	}
	if policy.CanaryPercent > 100 {
		policy.CanaryPercent = 100
	}
	return &Evaluator{
		policy:   policy,
		randIntN: rand.IntN,
	}
}

// Evaluate applies the routing rules in strict priority order: force
// header, sticky header, then a uniform random draw.
func (e *Evaluator) Evaluate(headers http.Header) domain.Decision {
	if forced, ok := domain.ParseVariant(headers.Get(e.policy.ForceHeader)); ok {
		return domain.Decision{Variant: forced, Reason: domain.ReasonForced}
	}

	if key := headers.Get(e.policy.StickyHeader); key != "" {
		return domain.Decision{
			Variant: e.pick(StickyBucket(key)),
			Reason:  domain.ReasonSticky,
		}
	}

	return domain.Decision{
		Variant: e.pick(e.randIntN(100)),
		Reason:  domain.ReasonRandom,
	}
}

func (e *Evaluator) pick(bucket int) domain.Variant {
	if bucket < e.policy.CanaryPercent {
		return domain.VariantCandidate
	}
	return domain.VariantBaseline
}

// StickyBucket maps a sticky key to a bucket in [0,100). The digest is
// part of the routing contract and must stay stable across processes,
// platforms and reimplementations: SHA-256 of the key, first 8 bytes
// interpreted as a big-endian unsigned integer, reduced modulo 100.
func StickyBucket(key string) int {
	sum := sha256.Sum256([]byte(key))
	return int(binary.BigEndian.Uint64(sum[:8]) % 100)
}
