package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-seraphim/inference-gateway/pkg/domain"
)

func setBaseline(t *testing.T) {
	t.Helper()
	t.Setenv("TS_URL", "http://torchserve:8080")
}

func TestLoad_Defaults(t *testing.T) {
	setBaseline(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultListenAddress, cfg.Server.Address)
	assert.Equal(t, DefaultCanaryPercent, cfg.Routing.CanaryPercent)
	assert.Equal(t, DefaultStickyHeader, cfg.Routing.StickyHeader)
	assert.Equal(t, DefaultForceHeader, cfg.Routing.ForceHeader)
	assert.Equal(t, DefaultCorrelationHeader, cfg.Routing.CorrelationHeader)
	assert.Equal(t, DefaultTimeoutMS, cfg.Routing.TimeoutMS)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_CandidateURLDefaultsToBaseline(t *testing.T) {
	setBaseline(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://torchserve:8080", cfg.Backends.Candidate.URL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	setBaseline(t)
	t.Setenv("TS_URL_CANDIDATE", "http://torchserve-canary:8080")
	t.Setenv("MODEL_NAME_BASELINE", "sentiment")
	t.Setenv("MODEL_VERSION_BASELINE", "1.0")
	t.Setenv("MODEL_NAME_CANDIDATE", "sentiment")
	t.Setenv("MODEL_VERSION_CANDIDATE", "2.0")
	t.Setenv("CANARY_PERCENT", "25")
	t.Setenv("CANARY_STICKY_HEADER", "X-Session-Id")
	t.Setenv("TS_TIMEOUT_MS", "1500")
	t.Setenv("GATEWAY_LISTEN_ADDR", ":9999")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://torchserve-canary:8080", cfg.Backends.Candidate.URL)
	assert.Equal(t, "sentiment", cfg.Backends.Baseline.ModelName)
	assert.Equal(t, "1.0", cfg.Backends.Baseline.ModelVersion)
	assert.Equal(t, "2.0", cfg.Backends.Candidate.ModelVersion)
	assert.Equal(t, 25, cfg.Routing.CanaryPercent)
	assert.Equal(t, "X-Session-Id", cfg.Routing.StickyHeader)
	assert.Equal(t, 1500, cfg.Routing.TimeoutMS)
	assert.Equal(t, ":9999", cfg.Server.Address)
}

func TestLoad_PercentClamping(t *testing.T) {
	setBaseline(t)

	t.Setenv("CANARY_PERCENT", "150")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Routing.CanaryPercent)

	t.Setenv("CANARY_PERCENT", "-3")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Routing.CanaryPercent)
}

func TestLoad_InvalidPercentIsFatal(t *testing.T) {
	setBaseline(t)
	t.Setenv("CANARY_PERCENT", "lots")

	_, err := Load("")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfigInvalid)
}

func TestLoad_InvalidTimeoutIsFatal(t *testing.T) {
	setBaseline(t)

	t.Setenv("TS_TIMEOUT_MS", "soon")
	_, err := Load("")
	assert.ErrorIs(t, err, domain.ErrConfigInvalid)

	t.Setenv("TS_TIMEOUT_MS", "0")
	_, err = Load("")
	assert.ErrorIs(t, err, domain.ErrConfigInvalid)
}

func TestLoad_MissingBaselineURLIsFatal(t *testing.T) {
	t.Setenv("TS_URL", "")

	_, err := Load("")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfigInvalid)
}

func TestLoad_MalformedURLIsFatal(t *testing.T) {
	for _, raw := range []string{"torchserve:8080", "ftp://torchserve", "http://"} {
		t.Setenv("TS_URL", raw)
		_, err := Load("")
		assert.ErrorIs(t, err, domain.ErrConfigInvalid, "url %q", raw)
	}
}

func TestLoad_InvalidLogLevelIsFatal(t *testing.T) {
	setBaseline(t)
	t.Setenv("GATEWAY_LOG_LEVEL", "loud")

	_, err := Load("")
	assert.ErrorIs(t, err, domain.ErrConfigInvalid)
}

func TestLoad_YAMLFileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	data := []byte(`
server:
  address: ":8081"
routing:
  canary_percent: 30
  timeout_ms: 2000
backends:
  baseline:
    url: http://file-baseline:8080
    model_name: sentiment
    model_version: "1.0"
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	// Environment beats the file.
	t.Setenv("TS_URL", "")
	t.Setenv("CANARY_PERCENT", "5")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.Server.Address)
	assert.Equal(t, 5, cfg.Routing.CanaryPercent)
	assert.Equal(t, 2000, cfg.Routing.TimeoutMS)
	assert.Equal(t, "http://file-baseline:8080", cfg.Backends.Baseline.URL)
	assert.Equal(t, "http://file-baseline:8080", cfg.Backends.Candidate.URL)
}

func TestLoad_MissingFile(t *testing.T) {
	setBaseline(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
