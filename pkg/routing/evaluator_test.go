package routing

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/project-seraphim/inference-gateway/pkg/domain"
)

func headersWith(pairs ...string) http.Header {
	h := http.Header{}
	for i := 0; i+1 < len(pairs); i += 2 {
		h.Set(pairs[i], pairs[i+1])
	}
	return h
}

func newTestEvaluator(percent int) *Evaluator {
	return NewEvaluator(Policy{
		CanaryPercent: percent,
		StickyHeader:  "X-User-Id",
		ForceHeader:   "X-Canary",
	})
}

func TestEvaluate_ForceHeader(t *testing.T) {
	e := newTestEvaluator(0)
	d := e.Evaluate(headersWith("X-Canary", "candidate"))
	assert.Equal(t, domain.VariantCandidate, d.Variant)
	assert.Equal(t, domain.ReasonForced, d.Reason)

	e = newTestEvaluator(100)
	d = e.Evaluate(headersWith("X-Canary", "baseline"))
	assert.Equal(t, domain.VariantBaseline, d.Variant)
	assert.Equal(t, domain.ReasonForced, d.Reason)
}

func TestEvaluate_ForceHeaderNormalization(t *testing.T) {
	e := newTestEvaluator(0)

	for _, value := range []string{"Candidate", "CANDIDATE", "  candidate  "} {
		d := e.Evaluate(headersWith("X-Canary", value))
		assert.Equal(t, domain.VariantCandidate, d.Variant, "value %q", value)
		assert.Equal(t, domain.ReasonForced, d.Reason)
	}
}

func TestEvaluate_ForceHeaderInvalidValueFallsThrough(t *testing.T) {
	e := newTestEvaluator(0)

	// Garbage force values fall through to random, which at 0% always
	// lands on baseline.
	for _, value := range []string{"canary", "yes", "1", "primary"} {
		d := e.Evaluate(headersWith("X-Canary", value))
		assert.Equal(t, domain.VariantBaseline, d.Variant, "value %q", value)
		assert.Equal(t, domain.ReasonRandom, d.Reason)
	}
}

func TestEvaluate_ForceBeatsSticky(t *testing.T) {
	e := newTestEvaluator(50)
	d := e.Evaluate(headersWith("X-Canary", "baseline", "X-User-Id", "user123"))
	assert.Equal(t, domain.VariantBaseline, d.Variant)
	assert.Equal(t, domain.ReasonForced, d.Reason)
}

func TestEvaluate_StickyDeterministic(t *testing.T) {
	e := newTestEvaluator(50)
	headers := headersWith("X-User-Id", "user123")

	first := e.Evaluate(headers)
	assert.Equal(t, domain.ReasonSticky, first.Reason)
	for range 20 {
		assert.Equal(t, first.Variant, e.Evaluate(headers).Variant)
	}
}

// Property: for any sticky key and percentage, repeated evaluations of
// the same key always agree, and two evaluators with the same policy
// agree with each other.
func TestEvaluate_StickyDeterminismProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		percent := rapid.IntRange(0, 100).Draw(t, "percent")
		key := rapid.StringN(1, 64, 64).Draw(t, "key")

		a := newTestEvaluator(percent)
		b := newTestEvaluator(percent)
		headers := headersWith("X-User-Id", key)

		first := a.Evaluate(headers)
		if first.Reason != domain.ReasonSticky {
			t.Fatalf("expected sticky reason, got %s", first.Reason)
		}
		for range 5 {
			if got := a.Evaluate(headers).Variant; got != first.Variant {
				t.Fatalf("same evaluator disagreed: %s vs %s", got, first.Variant)
			}
			if got := b.Evaluate(headers).Variant; got != first.Variant {
				t.Fatalf("fresh evaluator disagreed: %s vs %s", got, first.Variant)
			}
		}
	})
}

func TestEvaluate_StickyDistribution(t *testing.T) {
	const keys = 20000
	e := newTestEvaluator(10)

	candidates := 0
	for i := range keys {
		d := e.Evaluate(headersWith("X-User-Id", fmt.Sprintf("user-%d", i)))
		if d.Variant == domain.VariantCandidate {
			candidates++
		}
	}

	// With 10% canary over 20k distinct keys the candidate share should
	// sit close to 10%. The digest is deterministic, so the observed
	// fraction is fixed for this key set; the delta just keeps the
	// assertion readable.
	fraction := float64(candidates) / float64(keys)
	assert.InDelta(t, 0.10, fraction, 0.02, "candidate fraction %f", fraction)
}

func TestEvaluate_RandomExtremes(t *testing.T) {
	e := newTestEvaluator(0)
	for range 50 {
		d := e.Evaluate(http.Header{})
		assert.Equal(t, domain.VariantBaseline, d.Variant)
		assert.Equal(t, domain.ReasonRandom, d.Reason)
	}

	e = newTestEvaluator(100)
	for range 50 {
		d := e.Evaluate(http.Header{})
		assert.Equal(t, domain.VariantCandidate, d.Variant)
		assert.Equal(t, domain.ReasonRandom, d.Reason)
	}
}

func TestEvaluate_RandomUsesDraw(t *testing.T) {
	e := newTestEvaluator(30)

	e.randIntN = func(int) int { return 29 }
	assert.Equal(t, domain.VariantCandidate, e.Evaluate(http.Header{}).Variant)

	e.randIntN = func(int) int { return 30 }
	assert.Equal(t, domain.VariantBaseline, e.Evaluate(http.Header{}).Variant)
}

func TestNewEvaluator_ClampsPercent(t *testing.T) {
	e := NewEvaluator(Policy{CanaryPercent: -5, StickyHeader: "X-User-Id", ForceHeader: "X-Canary"})
	assert.Equal(t, 0, e.policy.CanaryPercent)

	e = NewEvaluator(Policy{CanaryPercent: 150, StickyHeader: "X-User-Id", ForceHeader: "X-Canary"})
	assert.Equal(t, 100, e.policy.CanaryPercent)
}

func TestStickyBucket_Range(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		key := rapid.String().Draw(t, "key")
		bucket := StickyBucket(key)
		if bucket < 0 || bucket >= 100 {
			t.Fatalf("bucket %d out of [0,100)", bucket)
		}
		if bucket != StickyBucket(key) {
			t.Fatalf("bucket not stable for %q", key)
		}
	})
}

// The digest is a cross-platform contract: pin a few known values so a
// reimplementation cannot silently change the mapping.
func TestStickyBucket_PinnedValues(t *testing.T) {
	for key, want := range map[string]int{
		"":        52,
		"user123": 38,
		"alice":   7,
		"bob":     50,
	} {
		assert.Equal(t, want, StickyBucket(key), "key %q", key)
	}
}
