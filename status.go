package mcpconn

import "time"

// ServerStatus is a read-only projection of a connection's state, pushed to
// the OnStatusChange callback on every transition.
type ServerStatus struct {
	ServerID        string
	State           ConnectionState
	Transport       string
	LastError       string
	LastConnectedAt time.Time

	// Tools lists the callable operations the server advertised, populated
	// after the post-handshake discovery call.
	Tools []Tool
}
