// Package telemetry bootstraps OpenTelemetry tracing for the gateway
// and records dispatch metrics through the global meter provider.
package telemetry
