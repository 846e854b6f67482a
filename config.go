package mcpconn

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
)

const (
	defaultRequestTimeout  = 30 * time.Second
	defaultEndpointTimeout = 10 * time.Second
	defaultRetryMinDelay   = 500 * time.Millisecond
	defaultRetryMaxDelay   = 30 * time.Second
	defaultRetryMultiplier = 2.0
	defaultClientName      = "mcpconn"
	defaultClientVersion   = "1.0.0"
	protocolVersion        = "2024-11-05"
)

// ConnectionConfig holds configuration for a single server connection.
// Zero values get sensible defaults in NewConnection.
type ConnectionConfig struct {
	// ServerID is an opaque identifier for the remote server, echoed in
	// statuses and logs.
	ServerID string

	// URL is the base endpoint the transport negotiation starts from.
	URL string

	// AuthToken is the bearer credential attached to every HTTP request.
	// The connection never refreshes it; on a NeedsAuth status the caller
	// must supply a fresh token and reconnect.
	AuthToken string

	ClientName    string
	ClientVersion string

	// RequestTimeout bounds how long a single request waits for its reply.
	RequestTimeout time.Duration

	// EndpointTimeout bounds how long the legacy transport waits for the
	// inline endpoint event before failing the connection.
	EndpointTimeout time.Duration

	// Reconnect backoff tuning: delay is
	// min(RetryMaxDelay, RetryMinDelay * RetryMultiplier^attempt).
	RetryMinDelay   time.Duration
	RetryMaxDelay   time.Duration
	RetryMultiplier float64

	// RequestsPerSecond throttles outbound requests when > 0.
	RequestsPerSecond float64

	// HTTPClient lets callers inject a custom client. The default has no
	// global timeout since the legacy GET stream stays open indefinitely.
	HTTPClient *http.Client

	Logger Logger
	Tracer trace.Tracer

	// OnStatusChange is invoked with a fresh status projection on every
	// state transition.
	OnStatusChange func(ServerStatus)

	// OnMessage observes every parsed inbound protocol message, including
	// server notifications and responses with no pending entry.
	OnMessage func(*Message)
}

func (c ConnectionConfig) withDefaults() ConnectionConfig {
	if c.ClientName == "" {
		c.ClientName = defaultClientName
	}
	if c.ClientVersion == "" {
		c.ClientVersion = defaultClientVersion
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.EndpointTimeout == 0 {
		c.EndpointTimeout = defaultEndpointTimeout
	}
	if c.RetryMinDelay == 0 {
		c.RetryMinDelay = defaultRetryMinDelay
	}
	if c.RetryMaxDelay == 0 {
		c.RetryMaxDelay = defaultRetryMaxDelay
	}
	if c.RetryMultiplier == 0 {
		c.RetryMultiplier = defaultRetryMultiplier
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	if c.Logger == nil {
		c.Logger = NewNullLogger()
	}
	return c
}
