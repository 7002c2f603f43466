// Package timeouts defines shared timeout constants used across binaries.
// Centralizing these values prevents drift between transports and makes the
// durations discoverable.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// TelemetryShutdown caps how long span flushing may delay process exit.
const TelemetryShutdown = 5 * time.Second

// ClientCall caps a single request/response exchange made by the client
// harness.
const ClientCall = 10 * time.Second

// TerminateGrace is how long the client harness waits after asking a server
// process to terminate before killing it.
const TerminateGrace = 5 * time.Second
