// Package gateway wires the HTTP surface of the inference routing
// gateway: the /predict data path with canary routing and single
// fallback, liveness and readiness probes, and the Prometheus metrics
// endpoint.
package gateway

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/project-seraphim/inference-gateway/pkg/config"
	"github.com/project-seraphim/inference-gateway/pkg/dispatch"
	"github.com/project-seraphim/inference-gateway/pkg/domain"
	"github.com/project-seraphim/inference-gateway/pkg/routing"
)

// Version is reported by /healthz.
const Version = "0.1.0"

const (
	readTimeout  = 30 * time.Second
	writeTimeout = 30 * time.Second
	idleTimeout  = 120 * time.Second
)

// Gateway routes inference traffic between the baseline and candidate
// backends. All fields are set at construction and read-only afterwards;
// concurrent requests share no mutable state.
type Gateway struct {
	cfg        *config.Config
	evaluator  *routing.Evaluator
	dispatcher *dispatch.Dispatcher
	backends   map[domain.Variant]dispatch.Backend
	metrics    *Metrics
	logger     zerolog.Logger

	server *http.Server
}

// New constructs a gateway from validated configuration.
func New(cfg *config.Config, logger zerolog.Logger) *Gateway {
	evaluator := routing.NewEvaluator(routing.Policy{
		CanaryPercent: cfg.Routing.CanaryPercent,
		StickyHeader:  cfg.Routing.StickyHeader,
		ForceHeader:   cfg.Routing.ForceHeader,
	})

	dispatcher := dispatch.NewDispatcher(
		time.Duration(cfg.Routing.TimeoutMS)*time.Millisecond,
		cfg.Routing.CorrelationHeader,
	)

	return &Gateway{
		cfg:        cfg,
		evaluator:  evaluator,
		dispatcher: dispatcher,
		backends: map[domain.Variant]dispatch.Backend{
			domain.VariantBaseline: {
				URL:          cfg.Backends.Baseline.URL,
				ModelName:    cfg.Backends.Baseline.ModelName,
				ModelVersion: cfg.Backends.Baseline.ModelVersion,
			},
			domain.VariantCandidate: {
				URL:          cfg.Backends.Candidate.URL,
				ModelName:    cfg.Backends.Candidate.ModelName,
				ModelVersion: cfg.Backends.Candidate.ModelVersion,
			},
		},
		metrics: NewMetrics(),
		logger:  logger,
	}
}

// Metrics exposes the gateway collectors, mainly for tests.
func (g *Gateway) Metrics() *Metrics {
	return g.metrics
}

// Handler assembles the full middleware chain and routes.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /predict", g.handlePredict)
	mux.HandleFunc("GET /healthz", g.handleHealthz)
	mux.HandleFunc("GET /readyz", g.handleReadyz)
	mux.Handle("GET /metrics", g.metrics.Handler())

	var handler http.Handler = mux
	handler = g.metrics.Middleware(handler)
	handler = RequestLogMiddleware(g.logger)(handler)
	handler = CorrelationMiddleware(g.cfg.Routing.CorrelationHeader)(handler)
	return otelhttp.NewHandler(handler, "gateway.http")
}

// Start begins serving on the configured address. It returns once the
// listener is bound; Serve runs in the background until Stop.
func (g *Gateway) Start() error {
	ln, err := net.Listen("tcp", g.cfg.Server.Address)
	if err != nil {
		return err
	}

	g.server = &http.Server{
		Addr:         g.cfg.Server.Address,
		Handler:      g.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	g.logger.Info().
		Str("address", ln.Addr().String()).
		Int("canary_percent", g.cfg.Routing.CanaryPercent).
		Int("timeout_ms", g.cfg.Routing.TimeoutMS).
		Msg("gateway listening")

	go func() {
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error().Err(err).Msg("gateway server error")
		}
	}()

	return nil
}

// Stop gracefully shuts down the server.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	return g.server.Shutdown(ctx)
}
