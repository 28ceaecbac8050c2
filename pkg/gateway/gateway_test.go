package gateway

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/project-seraphim/inference-gateway/pkg/config"
)

// testBackend is a scripted model server used across gateway tests.
type testBackend struct {
	server *httptest.Server
	hits   atomic.Int64
}

// newTestBackend serves the given status and body for every prediction
// call, counting hits. A negative status means: block until the client
// gives up (timeout simulation).
func newTestBackend(status int, body string) *testBackend {
	b := &testBackend{}
	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.hits.Add(1)
		if status < 0 {
			// Drain the body so the server starts its background
			// connection read; otherwise a client disconnect is never
			// observed and r.Context() is never cancelled, deadlocking
			// server.Close.
			_, _ = io.Copy(io.Discard, r.Body)
			<-r.Context().Done()
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	return b
}

func (b *testBackend) Close()      { b.server.Close() }
func (b *testBackend) URL() string { return b.server.URL }

func testConfig(baselineURL, candidateURL string, percent, timeoutMS int) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Address: ":0"},
		Routing: config.RoutingConfig{
			CanaryPercent:     percent,
			StickyHeader:      config.DefaultStickyHeader,
			ForceHeader:       config.DefaultForceHeader,
			CorrelationHeader: config.DefaultCorrelationHeader,
			TimeoutMS:         timeoutMS,
		},
		Backends: config.BackendsConfig{
			Baseline:  config.BackendConfig{URL: baselineURL, ModelName: "sentiment", ModelVersion: "1.0"},
			Candidate: config.BackendConfig{URL: candidateURL, ModelName: "sentiment", ModelVersion: "2.0"},
		},
		Logging: config.LoggingConfig{Level: "info"},
	}
}

func newTestGateway(baselineURL, candidateURL string, percent, timeoutMS int) *Gateway {
	return New(testConfig(baselineURL, candidateURL, percent, timeoutMS), zerolog.Nop())
}

// deadBackendURL returns a URL with nothing listening on it.
func deadBackendURL() string {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()
	return server.URL
}

const testTimeoutMS = int(2 * time.Second / time.Millisecond)
