// Package mcpconn implements a client for remote MCP (Model Context
// Protocol) servers reachable over HTTP.
//
// A Connection negotiates, per server, between the Streamable HTTP transport
// (each request is POSTed and answered on the same exchange, optionally as a
// one-shot event stream) and the legacy HTTP+SSE transport (a single
// long-lived GET stream carries all inbound traffic and a server-supplied
// endpoint receives all outbound POSTs). Callers get a synchronous
// request/response API on top of either transport, plus automatic
// reconnection with bounded exponential backoff for the legacy transport.
//
// Each Connection is fully self-contained; use a Manager to coordinate
// several servers at once.
package mcpconn
