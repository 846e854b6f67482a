package mcpconn

import (
	"fmt"
	"net/url"
	"strings"
)

// transportKind tags which wire flavor the server speaks. It stays
// transportUnknown until negotiation settles it.
type transportKind int

const (
	transportUnknown transportKind = iota
	// transportStreamable: each POST is answered on the same HTTP exchange,
	// optionally as a one-shot event stream. Session id travels in the
	// Mcp-Session-Id header.
	transportStreamable
	// transportLegacySSE: a long-lived GET stream carries inbound traffic;
	// outbound messages are POSTed to an endpoint announced inline on the
	// stream.
	transportLegacySSE
)

func (k transportKind) String() string {
	switch k {
	case transportStreamable:
		return "streamable"
	case transportLegacySSE:
		return "legacy-sse"
	default:
		return "unknown"
	}
}

const sessionIDHeader = "Mcp-Session-Id"

// transportState carries everything transport-specific a connection owns:
// the negotiated kind, the server-assigned session id, and for the legacy
// transport the discovered message endpoint.
type transportState struct {
	kind      transportKind
	sessionID string
	endpoint  string
}

// postTarget returns the URL outbound messages must be POSTed to.
func (t transportState) postTarget(baseURL string) (string, error) {
	switch t.kind {
	case transportStreamable:
		return baseURL, nil
	case transportLegacySSE:
		if t.endpoint == "" {
			return "", fmt.Errorf("no message endpoint discovered yet")
		}
		return t.endpoint, nil
	default:
		return "", fmt.Errorf("transport not negotiated")
	}
}

// reconnectsOnStreamClose reports whether an unexpected stream closure is
// fatal for this transport. Streamable streams close after every response;
// only the legacy transport's long-lived stream warrants a reconnect.
func (t transportState) reconnectsOnStreamClose() bool {
	return t.kind == transportLegacySSE
}

// resolveEndpoint turns the endpoint event payload, which may be relative,
// into an absolute URL against the connection's base URL, and pulls out the
// sessionId query parameter when the server supplies one.
func resolveEndpoint(baseURL, raw string) (endpoint, sessionID string, err error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("invalid endpoint %q: %w", raw, err)
	}
	resolved := base.ResolveReference(ref)
	return resolved.String(), resolved.Query().Get("sessionId"), nil
}
