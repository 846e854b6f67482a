package mcpconn

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotConnected is returned when a request is attempted on a
	// connection that is not in the Connected state.
	ErrNotConnected = errors.New("client is not connected")

	// ErrConnectionClosed rejects pending requests when the connection is
	// torn down.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrRequestTimeout rejects a request whose reply did not arrive within
	// the configured per-request timeout.
	ErrRequestTimeout = errors.New("request timed out")

	// ErrEndpointTimeout is returned when the legacy transport's endpoint
	// event does not arrive within the endpoint discovery timeout.
	ErrEndpointTimeout = errors.New("timed out waiting for endpoint event")
)

// AuthFailureKind distinguishes the two 401 subclasses, which have
// different recovery policies.
type AuthFailureKind int

const (
	// AuthFailureExpired means the token was well-formed but rejected; the
	// caller should refresh the credential and reconnect.
	AuthFailureExpired AuthFailureKind = iota
	// AuthFailureMalformed means the token itself is invalid; refreshing
	// with the same credential source will not help.
	AuthFailureMalformed
)

// AuthError is returned when the server answers 401 during negotiation or a
// request.
type AuthError struct {
	Kind        AuthFailureKind
	Description string
}

func (e *AuthError) Error() string {
	if e.Kind == AuthFailureMalformed {
		return fmt.Sprintf("authentication failed, malformed token: %s", e.Description)
	}
	return fmt.Sprintf("authentication failed, token rejected: %s", e.Description)
}

// oauthErrorBody is the structured error document servers attach to 401
// responses, per RFC 6750.
type oauthErrorBody struct {
	Err         string `json:"error"`
	Description string `json:"error_description"`
}

// classifyAuthError maps a 401 response body onto an AuthError. A
// description mentioning an invalid or malformed token format marks the
// credential itself as unusable; anything else (expired, revoked, missing
// detail) is treated as refreshable.
func classifyAuthError(body []byte) *AuthError {
	var oe oauthErrorBody
	if err := json.Unmarshal(body, &oe); err != nil {
		return &AuthError{Kind: AuthFailureExpired, Description: strings.TrimSpace(string(body))}
	}

	desc := strings.ToLower(oe.Description)
	if strings.Contains(desc, "format") || strings.Contains(desc, "malformed") {
		return &AuthError{Kind: AuthFailureMalformed, Description: oe.Description}
	}
	return &AuthError{Kind: AuthFailureExpired, Description: oe.Description}
}
