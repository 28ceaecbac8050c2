// Package domain contains the shared value types of the routing gateway:
// backend variants, routing decisions, dispatch outcomes and the error
// taxonomy. It has no dependency on transport or telemetry packages so
// every layer speaks the same vocabulary.
package domain
