// Package main is the entry point for the inference-gateway binary. The
// root command runs the routing gateway; the canary-eval subcommand
// gates candidate promotion from aggregate variant reports.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/project-seraphim/inference-gateway/pkg/canary"
	"github.com/project-seraphim/inference-gateway/pkg/config"
	"github.com/project-seraphim/inference-gateway/pkg/gateway"
	"github.com/project-seraphim/inference-gateway/pkg/logging"
	"github.com/project-seraphim/inference-gateway/pkg/telemetry"
)

const (
	serviceName              = "inference-gateway"
	telemetryShutdownTimeout = 5 * time.Second
	gracefulShutdownTimeout  = 10 * time.Second
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root command for the gateway.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gateway",
		Short: "Canary routing gateway for inference traffic",
		Long: `A request-routing gateway that splits inference traffic between a
baseline and a candidate model server according to a canary policy,
with a single bounded fallback to the alternate variant on failure.

Configuration comes from an optional YAML file plus environment
variables (TS_URL, TS_URL_CANDIDATE, CANARY_PERCENT, TS_TIMEOUT_MS, ...).`,
		RunE:          runServe,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.Flags().StringP("config", "c", "", "Path to configuration file (YAML)")
	rootCmd.Flags().String("listen", "", "HTTP listen address (overrides config)")
	rootCmd.Flags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.Flags().String("otel-endpoint", "", "OTLP trace endpoint (overrides config)")

	rootCmd.AddCommand(newCanaryEvalCmd())

	return rootCmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	// Load .env file if present
	_ = godotenv.Load()

	configPath, _ := cmd.Flags().GetString("config")
	listenAddr, _ := cmd.Flags().GetString("listen")
	logLevel, _ := cmd.Flags().GetString("log-level")
	otelEndpoint, _ := cmd.Flags().GetString("otel-endpoint")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("configuration load failed: %w", err)
	}

	// Flag overrides
	if listenAddr != "" {
		cfg.Server.Address = listenAddr
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if otelEndpoint != "" {
		cfg.Telemetry.OTLPEndpoint = otelEndpoint
	}

	logger := logging.Setup(logging.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.SetupProvider(ctx, telemetry.Config{
		ServiceName: serviceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Environment: os.Getenv("GATEWAY_ENVIRONMENT"),
	})
	if err != nil {
		return fmt.Errorf("telemetry initialization failed: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer shutdownCancel()
		if err := telemetryShutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("telemetry shutdown error")
		}
	}()

	gw := gateway.New(cfg, logger)
	if err := gw.Start(); err != nil {
		return fmt.Errorf("gateway failed to start: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("received signal, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer shutdownCancel()
	if err := gw.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("gateway shutdown error: %w", err)
	}

	logger.Info().Msg("shutdown complete")
	return nil
}

// newCanaryEvalCmd creates the promotion-gate subcommand.
func newCanaryEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "canary-eval",
		Short: "Evaluate candidate metrics against the baseline promotion gate",
		Long: `Compares aggregate variant reports (p95 latency, error rate, optional
accuracy score) and exits non-zero when the candidate fails the gate.

Example:
  gateway canary-eval --baseline baseline.yaml --candidate candidate.yaml`,
		RunE: runCanaryEval,
	}

	cmd.Flags().String("baseline", "", "Path to the baseline report (YAML)")
	cmd.Flags().String("candidate", "", "Path to the candidate report (YAML)")
	cmd.Flags().Float64("max-latency-regress-ms", 25, "Allowed p95 latency regression in milliseconds")
	cmd.Flags().Float64("max-error-regress", 0.005, "Allowed error-rate regression")
	cmd.Flags().Float64("min-score-delta", 0, "Required score improvement (only enforced when set)")
	_ = cmd.MarkFlagRequired("baseline")
	_ = cmd.MarkFlagRequired("candidate")

	return cmd
}

func runCanaryEval(cmd *cobra.Command, _ []string) error {
	baselinePath, _ := cmd.Flags().GetString("baseline")
	candidatePath, _ := cmd.Flags().GetString("candidate")

	baseline, err := canary.LoadReport(baselinePath)
	if err != nil {
		return err
	}
	candidate, err := canary.LoadReport(candidatePath)
	if err != nil {
		return err
	}

	thresholds := canary.DefaultThresholds()
	if v, err := cmd.Flags().GetFloat64("max-latency-regress-ms"); err == nil {
		thresholds.MaxLatencyRegressMS = v
	}
	if v, err := cmd.Flags().GetFloat64("max-error-regress"); err == nil {
		thresholds.MaxErrorRegress = v
	}
	if cmd.Flags().Changed("min-score-delta") {
		v, _ := cmd.Flags().GetFloat64("min-score-delta")
		thresholds.MinScoreDelta = &v
	}

	verdict := canary.Evaluate(baseline, candidate, thresholds)
	if verdict.Pass {
		cmd.Println("canary gate: PASS")
		return nil
	}

	cmd.Println("canary gate: FAIL")
	for _, violation := range verdict.Violations {
		cmd.Printf("  - %s\n", violation)
	}
	return fmt.Errorf("candidate failed the promotion gate (%d violation(s))", len(verdict.Violations))
}
