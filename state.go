package mcpconn

// ConnectionState is the lifecycle state of a Connection.
type ConnectionState int

const (
	// Disconnected is the initial state and the only state reachable by an
	// explicit Disconnect call.
	Disconnected ConnectionState = iota
	// Connecting covers transport negotiation and the initialize handshake.
	Connecting
	// Connected means the stream is established and the handshake completed.
	Connected
	// ConnectionError is a retryable transport failure; a reconnect attempt
	// is scheduled with backoff.
	ConnectionError
	// NeedsAuth means the server rejected the credential as expired or
	// revoked. Not retried until the caller supplies a fresh token and calls
	// Connect again.
	NeedsAuth
	// InvalidToken means the server rejected the credential as malformed.
	// Retrying with the same credential is pointless.
	InvalidToken
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case ConnectionError:
		return "error"
	case NeedsAuth:
		return "needs-auth"
	case InvalidToken:
		return "invalid-token"
	default:
		return "unknown"
	}
}
