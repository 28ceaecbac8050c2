// Package canary implements the promotion gate for candidate rollouts:
// comparing aggregate baseline and candidate metrics and deciding
// whether the candidate may take more traffic.
package canary

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Report holds the aggregate metrics observed for one variant over an
// evaluation window.
type Report struct {
	P95LatencyMS float64 `yaml:"p95_latency_ms" json:"p95_latency_ms"`
	ErrorRate    float64 `yaml:"error_rate" json:"error_rate"`
	// Score is an optional accuracy proxy; nil when not measured.
	Score *float64 `yaml:"score,omitempty" json:"score,omitempty"`
}

// Thresholds bounds the regression the candidate is allowed before the
// gate fails.
type Thresholds struct {
	MaxLatencyRegressMS float64
	MaxErrorRegress     float64
	// MinScoreDelta, when set, requires the candidate score to beat the
	// baseline by at least this much.
	MinScoreDelta *float64
}

// DefaultThresholds returns the stock gate: at most 25ms of p95 latency
// regression and 0.5% of error-rate regression, no score requirement.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxLatencyRegressMS: 25,
		MaxErrorRegress:     0.005,
	}
}

// Verdict is the gate decision with the reasons for a failure.
type Verdict struct {
	Pass       bool
	Violations []string
}

// Evaluate compares candidate against baseline under the given
// thresholds. Every violated criterion is reported, not just the first.
func Evaluate(baseline, candidate Report, t Thresholds) Verdict {
	var violations []string

	if candidate.P95LatencyMS > baseline.P95LatencyMS+t.MaxLatencyRegressMS {
		violations = append(violations, fmt.Sprintf(
			"p95 latency regressed %.1fms (baseline %.1fms, candidate %.1fms, allowed +%.1fms)",
			candidate.P95LatencyMS-baseline.P95LatencyMS, baseline.P95LatencyMS, candidate.P95LatencyMS, t.MaxLatencyRegressMS))
	}

	if candidate.ErrorRate > baseline.ErrorRate+t.MaxErrorRegress {
		violations = append(violations, fmt.Sprintf(
			"error rate regressed %.4f (baseline %.4f, candidate %.4f, allowed +%.4f)",
			candidate.ErrorRate-baseline.ErrorRate, baseline.ErrorRate, candidate.ErrorRate, t.MaxErrorRegress))
	}

	if t.MinScoreDelta != nil {
		if scoreOrZero(candidate.Score) < scoreOrZero(baseline.Score)+*t.MinScoreDelta {
			violations = append(violations, fmt.Sprintf(
				"score delta %.4f below required %.4f (baseline %.4f, candidate %.4f)",
				scoreOrZero(candidate.Score)-scoreOrZero(baseline.Score), *t.MinScoreDelta,
				scoreOrZero(baseline.Score), scoreOrZero(candidate.Score)))
		}
	}

	return Verdict{Pass: len(violations) == 0, Violations: violations}
}

// LoadReport reads a variant report from a YAML file.
func LoadReport(path string) (Report, error) {
	var report Report

	//nolint:gosec // Report path is provided by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return report, fmt.Errorf("failed to read report %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &report); err != nil {
		return report, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	return report, nil
}

func scoreOrZero(s *float64) float64 {
	if s == nil {
		return 0
	}
	return *s
}
