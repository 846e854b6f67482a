package mcpconn

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const acceptBoth = "application/json, text/event-stream"

// Connection manages the lifecycle of a single remote MCP server: transport
// negotiation, the initialize handshake, request/response correlation, and
// reconnection. One instance per server; instances share nothing.
type Connection struct {
	config ConnectionConfig
	id     string
	logger Logger

	pending *pendingRequests
	backoff *reconnectBackoff
	limiter *rate.Limiter

	mu              sync.RWMutex
	state           ConnectionState
	transport       transportState
	lastError       string
	lastConnectedAt time.Time
	tools           []Tool
	closed          bool
	endpointSet     bool

	stopChan       chan struct{}
	endpointReady  chan struct{}
	streamCancel   context.CancelFunc
	reconnectTimer *time.Timer

	// generation counts negotiation attempts; streams tag themselves with it
	// so a previous generation's closure cannot disturb the current one.
	generation uint64
}

// NewConnection creates a connection for the given server. It does not
// perform any network I/O; call Connect to start negotiation.
func NewConnection(config ConnectionConfig) (*Connection, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("connection URL is required")
	}
	config = config.withDefaults()

	c := &Connection{
		config:  config,
		id:      uuid.New().String(),
		pending: newPendingRequests(),
		backoff: newReconnectBackoff(config.RetryMinDelay, config.RetryMaxDelay, config.RetryMultiplier),
		state:   Disconnected,
	}
	c.logger = config.Logger.WithFields(map[string]interface{}{
		"server_id":     config.ServerID,
		"connection_id": c.id,
	})
	if config.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}
	return c, nil
}

// Connect negotiates the transport, performs the initialize handshake, and
// runs tool discovery. It returns once the handshake settles; stream
// processing continues in the background. A failed attempt other than an
// authentication failure schedules a retry with backoff.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == Connecting || c.state == Connected {
		c.mu.Unlock()
		return fmt.Errorf("client is already connected or connecting")
	}
	// A retry scheduled by an earlier failure must not outlive this explicit
	// attempt, and neither must its stream.
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	cancel := c.streamCancel
	c.streamCancel = nil
	c.generation++
	c.closed = false
	c.endpointSet = false
	c.stopChan = make(chan struct{})
	c.endpointReady = make(chan struct{})
	c.transport = transportState{}
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	c.setState(Connecting, "")
	c.logger.WithFields(map[string]interface{}{"url": c.config.URL}).Info("starting connection")

	if err := c.establish(ctx); err != nil {
		c.failConnection(err)
		return err
	}
	return nil
}

// failConnection classifies a connection-scoped failure into a state
// transition and, for retryable failures, schedules reconnection.
func (c *Connection) failConnection(err error) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		if authErr.Kind == AuthFailureMalformed {
			c.setState(InvalidToken, err.Error())
		} else {
			c.setState(NeedsAuth, err.Error())
		}
		return
	}
	c.setState(ConnectionError, err.Error())
	c.scheduleReconnect()
}

// establish runs transport negotiation: POST the handshake to the base
// endpoint advertising both response formats; 2xx means Streamable, 405 means
// fall back to the legacy GET stream.
func (c *Connection) establish(ctx context.Context) error {
	id, replyCh := c.pending.register()
	defer c.pending.remove(id)

	initPayload, err := c.buildRequest(id, "initialize", InitializeParams{
		ProtocolVersion: protocolVersion,
		Capabilities: map[string]any{
			"tools": map[string]bool{"listChanged": true},
		},
		ClientInfo: ClientInfo{Name: c.config.ClientName, Version: c.config.ClientVersion},
	})
	if err != nil {
		return err
	}

	resp, err := c.post(ctx, c.config.URL, initPayload)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", c.config.URL, err)
	}

	switch {
	case resp.StatusCode == http.StatusMethodNotAllowed:
		resp.Body.Close()
		c.logger.Debug("POST rejected with 405, falling back to legacy SSE transport")
		if err := c.establishLegacy(ctx, initPayload); err != nil {
			return err
		}

	case resp.StatusCode == http.StatusUnauthorized:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return classifyAuthError(body)

	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))

	default:
		c.mu.Lock()
		c.transport = transportState{
			kind:      transportStreamable,
			sessionID: resp.Header.Get(sessionIDHeader),
		}
		c.mu.Unlock()
		c.logger.WithFields(map[string]interface{}{
			"session_id": resp.Header.Get(sessionIDHeader),
		}).Debug("negotiated streamable transport")
		c.setState(Connected, "")
		c.consumeResponse(resp)
	}

	var initResp *Response
	select {
	case initResp = <-replyCh:
	case <-time.After(c.config.RequestTimeout):
		return fmt.Errorf("initialize: %w", ErrRequestTimeout)
	case <-ctx.Done():
		return ctx.Err()
	case <-c.currentStop():
		return ErrConnectionClosed
	}

	if initResp.Error != nil {
		return fmt.Errorf("initialize rejected: %w", initResp.Error)
	}
	var result InitializeResult
	if err := json.Unmarshal(initResp.Result, &result); err != nil {
		return fmt.Errorf("failed to parse initialize result: %w", err)
	}
	c.logger.WithFields(map[string]interface{}{
		"server_name":      result.ServerInfo.Name,
		"server_version":   result.ServerInfo.Version,
		"protocol_version": result.ProtocolVersion,
	}).Info("handshake complete")

	c.mu.Lock()
	c.lastConnectedAt = time.Now()
	c.mu.Unlock()
	c.backoff.Reset()

	if err := c.SendNotification(ctx, "notifications/initialized", nil); err != nil {
		c.logger.WithErr(err).Warn("failed to send initialized notification")
	}

	if err := c.discoverTools(ctx); err != nil {
		c.logger.WithErr(err).Warn("tool discovery failed")
	}
	return nil
}

// establishLegacy opens the long-lived GET stream, waits for the inline
// endpoint event, and re-sends the queued handshake to the discovered
// endpoint.
func (c *Connection) establishLegacy(ctx context.Context, initPayload []byte) error {
	streamCtx, cancel := context.WithCancel(context.Background())

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, c.config.URL, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	c.setAuthHeader(req)

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to open event stream: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		cancel()
		return classifyAuthError(body)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("event stream returned status %d", resp.StatusCode)
	}

	c.mu.Lock()
	c.streamCancel = cancel
	c.generation++
	gen := c.generation
	c.transport = transportState{kind: transportLegacySSE}
	endpointReady := c.endpointReady
	c.mu.Unlock()

	go c.consumeStream(resp.Body, true, gen)

	select {
	case <-endpointReady:
	case <-time.After(c.config.EndpointTimeout):
		cancel()
		return ErrEndpointTimeout
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	case <-c.currentStop():
		return ErrConnectionClosed
	}

	c.setState(Connected, "")

	target, err := c.currentTransport().postTarget(c.config.URL)
	if err != nil {
		cancel()
		return err
	}
	ack, err := c.post(ctx, target, initPayload)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to send initialize request: %w", err)
	}
	defer ack.Body.Close()
	if ack.StatusCode == http.StatusUnauthorized {
		body, _ := io.ReadAll(io.LimitReader(ack.Body, 4096))
		cancel()
		return classifyAuthError(body)
	}
	if ack.StatusCode < 200 || ack.StatusCode >= 300 {
		cancel()
		return fmt.Errorf("initialize POST returned status %d", ack.StatusCode)
	}
	io.Copy(io.Discard, ack.Body)
	return nil
}

// consumeResponse routes a POST response body by its declared content type:
// an inline one-shot event stream is drained in the background, a JSON
// document is dispatched directly.
func (c *Connection) consumeResponse(resp *http.Response) {
	contentType := resp.Header.Get("Content-Type")
	switch {
	case strings.Contains(contentType, "text/event-stream"):
		go c.consumeStream(resp.Body, false, 0)
	case strings.Contains(contentType, "application/json"):
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			c.logger.WithErr(err).Warn("failed to read response body")
			return
		}
		if len(bytes.TrimSpace(body)) > 0 {
			c.handleRawMessage(body)
		}
	default:
		// Plain ack with no payload.
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}

// consumeStream reads an event stream to exhaustion, feeding the frame
// parser and dispatching decoded events. For the legacy transport an
// unexpected closure triggers reconnection; streamable per-response streams
// closing is normal.
func (c *Connection) consumeStream(body io.ReadCloser, legacy bool, gen uint64) {
	defer body.Close()

	parser := newStreamParser()
	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			for _, ev := range parser.Feed(buf[:n]) {
				c.dispatchEvent(ev)
			}
		}
		if err != nil {
			// The server may close the stream right after an unterminated
			// final frame.
			for _, ev := range parser.Flush() {
				c.dispatchEvent(ev)
			}
			if err != io.EOF && !errors.Is(err, context.Canceled) {
				c.logger.WithErr(err).Debug("event stream read error")
			}
			break
		}
	}

	if legacy {
		c.handleStreamClosed(gen)
	}
}

func (c *Connection) dispatchEvent(ev streamEvent) {
	if ev.Type == eventTypeEndpoint {
		c.handleEndpointEvent(ev.Data)
		return
	}
	c.handleRawMessage([]byte(ev.Data))
}

func (c *Connection) handleEndpointEvent(raw string) {
	endpoint, sessionID, err := resolveEndpoint(c.config.URL, raw)
	if err != nil {
		c.logger.WithErr(err).Warn("ignoring malformed endpoint event")
		return
	}

	c.mu.Lock()
	c.transport.endpoint = endpoint
	c.transport.sessionID = sessionID
	ready := c.endpointReady
	alreadySet := c.endpointSet
	c.endpointSet = true
	c.mu.Unlock()

	c.logger.WithFields(map[string]interface{}{
		"endpoint":   endpoint,
		"session_id": sessionID,
	}).Debug("discovered message endpoint")

	if !alreadySet {
		close(ready)
	}
}

// handleRawMessage decodes one frame and routes it: responses settle their
// pending request, everything else goes to the message observer. Frames
// that are not protocol-shaped are logged and skipped, never fatal.
func (c *Connection) handleRawMessage(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil || msg.JSONRPC == "" {
		c.logger.WithFields(map[string]interface{}{"frame": string(data)}).Debug("skipping non-protocol frame")
		return
	}

	if c.config.OnMessage != nil {
		c.config.OnMessage(&msg)
	}

	if !msg.IsResponse() {
		return
	}

	var id int64
	if err := json.Unmarshal(*msg.ID, &id); err != nil {
		c.logger.WithFields(map[string]interface{}{"id": string(*msg.ID)}).Debug("response carries a non-numeric id, dropping")
		return
	}
	resp := &Response{JSONRPC: msg.JSONRPC, ID: msg.ID, Result: msg.Result, Error: msg.Error}
	if !c.pending.resolve(id, resp) {
		c.logger.WithFields(map[string]interface{}{"id": id}).Debug("dropping response with no pending request")
	}
}

// handleStreamClosed reacts to the legacy stream ending. Only relevant while
// connected; negotiation failures are handled on the Connect path. A stream
// from a superseded generation closing says nothing about the current one.
func (c *Connection) handleStreamClosed(gen uint64) {
	c.mu.RLock()
	stale := gen != c.generation
	closed := c.closed
	state := c.state
	reconnect := c.transport.reconnectsOnStreamClose()
	c.mu.RUnlock()

	if stale || closed || !reconnect || state != Connected {
		return
	}
	c.logger.Warn("event stream closed unexpectedly")
	c.setState(ConnectionError, "event stream closed unexpectedly")
	c.scheduleReconnect()
}

func (c *Connection) scheduleReconnect() {
	c.mu.Lock()
	if c.closed || c.reconnectTimer != nil {
		c.mu.Unlock()
		return
	}
	delay := c.backoff.Next()
	stop := c.stopChan
	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		c.reconnectTimer = nil
		c.mu.Unlock()
		select {
		case <-stop:
			return
		default:
		}
		c.reconnect()
	})
	c.mu.Unlock()

	c.logger.WithFields(map[string]interface{}{
		"delay":   delay.String(),
		"attempt": c.backoff.attempts(),
	}).Info("reconnection scheduled")
}

// reconnect re-runs negotiation from scratch. Session and endpoint state are
// discarded; the request id sequence is not.
func (c *Connection) reconnect() {
	c.mu.Lock()
	if c.closed || c.state == Connected || c.state == Connecting {
		c.mu.Unlock()
		return
	}
	// The failed generation's stream may still be open, e.g. when the
	// handshake timed out after the stream came up. Tear it down before
	// renegotiating or it would leak with no owner.
	cancel := c.streamCancel
	c.streamCancel = nil
	c.endpointSet = false
	c.endpointReady = make(chan struct{})
	c.transport = transportState{}
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	c.setState(Connecting, "")
	c.logger.Info("attempting reconnection")

	if err := c.establish(context.Background()); err != nil {
		c.logger.WithErr(err).Warn("reconnection attempt failed")
		c.failConnection(err)
	}
}

// Disconnect tears the connection down: it cancels timers, closes the
// active stream, rejects all pending requests, and clears session state so
// a later Connect starts negotiation from scratch. Safe to call at any
// time; repeated calls are no-ops.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	if c.closed || c.stopChan == nil {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.stopChan)
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	cancel := c.streamCancel
	c.streamCancel = nil
	transport := c.transport
	c.transport = transportState{}
	c.tools = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.terminateSession(transport)
	c.setState(Disconnected, "")
	c.logger.Info("disconnected")
	return nil
}

// terminateSession tells a streamable server, best effort, that the session
// is over.
func (c *Connection) terminateSession(t transportState) {
	if t.kind != transportStreamable || t.sessionID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.config.URL, nil)
	if err != nil {
		return
	}
	req.Header.Set(sessionIDHeader, t.sessionID)
	c.setAuthHeader(req)
	if resp, err := c.config.HTTPClient.Do(req); err == nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}

// SendRequest sends a request and blocks until its reply arrives, the
// per-request timeout elapses, or the connection is torn down. Concurrent
// calls are safe; replies are matched by id regardless of arrival order.
func (c *Connection) SendRequest(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.mu.RLock()
	if c.state != Connected {
		c.mu.RUnlock()
		return nil, ErrNotConnected
	}
	transport := c.transport
	stop := c.stopChan
	c.mu.RUnlock()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	ctx, span := c.startSpan(ctx, "Connection.SendRequest", method)
	defer span.End()

	id, replyCh := c.pending.register()

	payload, err := c.buildRequest(id, method, params)
	if err != nil {
		c.pending.remove(id)
		return nil, err
	}
	target, err := transport.postTarget(c.config.URL)
	if err != nil {
		c.pending.remove(id)
		return nil, err
	}

	// One deadline spans both the POST and the wait for the reply.
	reqCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	resp, err := c.post(reqCtx, target, payload)
	if err != nil {
		c.pending.remove(id)
		return nil, recordSpanErr(span, fmt.Errorf("failed to send request: %w", err))
	}
	if resp.StatusCode == http.StatusUnauthorized {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		c.pending.remove(id)
		authErr := classifyAuthError(body)
		c.failConnection(authErr)
		return nil, recordSpanErr(span, authErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		c.pending.remove(id)
		return nil, recordSpanErr(span, fmt.Errorf("server returned status %d", resp.StatusCode))
	}

	// A single POST may answer inline (document or one-shot stream) or be a
	// bare ack with the reply arriving on the long-lived stream.
	c.consumeResponse(resp)

	select {
	case reply := <-replyCh:
		if reply.Error != nil {
			return nil, recordSpanErr(span, fmt.Errorf("server error: %w", reply.Error))
		}
		return reply.Result, nil
	case <-reqCtx.Done():
		c.pending.remove(id)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, recordSpanErr(span, fmt.Errorf("%s: %w", method, ErrRequestTimeout))
	case <-stop:
		c.pending.remove(id)
		return nil, ErrConnectionClosed
	}
}

// SendNotification sends a fire-and-forget message. Only transport-level
// failure is reported; there is never an application-level reply.
func (c *Connection) SendNotification(ctx context.Context, method string, params any) error {
	c.mu.RLock()
	if c.state != Connected {
		c.mu.RUnlock()
		return ErrNotConnected
	}
	transport := c.transport
	c.mu.RUnlock()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	payload, err := c.buildNotification(method, params)
	if err != nil {
		return err
	}
	target, err := transport.postTarget(c.config.URL)
	if err != nil {
		return err
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	resp, err := c.post(reqCtx, target, payload)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// GetStatus returns a snapshot of the connection's state.
func (c *Connection) GetStatus() ServerStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.statusLocked()
}

func (c *Connection) statusLocked() ServerStatus {
	tools := make([]Tool, len(c.tools))
	copy(tools, c.tools)
	return ServerStatus{
		ServerID:        c.config.ServerID,
		State:           c.state,
		Transport:       c.transport.kind.String(),
		LastError:       c.lastError,
		LastConnectedAt: c.lastConnectedAt,
		Tools:           tools,
	}
}

func (c *Connection) setState(state ConnectionState, errText string) {
	c.mu.Lock()
	changed := c.state != state
	c.state = state
	if errText != "" {
		c.lastError = errText
	}
	status := c.statusLocked()
	c.mu.Unlock()

	if !changed {
		return
	}
	c.logger.WithFields(map[string]interface{}{"state": state.String()}).Debug("state transition")
	if c.config.OnStatusChange != nil {
		c.config.OnStatusChange(status)
	}
}

// publishStatus pushes a fresh projection without a state transition, e.g.
// after tool discovery updates the advertised tool list.
func (c *Connection) publishStatus() {
	if c.config.OnStatusChange == nil {
		return
	}
	c.mu.RLock()
	status := c.statusLocked()
	c.mu.RUnlock()
	c.config.OnStatusChange(status)
}

func (c *Connection) currentTransport() transportState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.transport
}

func (c *Connection) currentStop() chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stopChan
}

func (c *Connection) buildRequest(id int64, method string, params any) ([]byte, error) {
	rawID := json.RawMessage(strconv.FormatInt(id, 10))
	req := Request{JSONRPC: jsonRPCVersion, ID: &rawID, Method: method}
	if params != nil {
		paramsJSON, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		req.Params = paramsJSON
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return payload, nil
}

func (c *Connection) buildNotification(method string, params any) ([]byte, error) {
	req := Request{JSONRPC: jsonRPCVersion, Method: method}
	if params != nil {
		paramsJSON, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		req.Params = paramsJSON
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification: %w", err)
	}
	return payload, nil
}

func (c *Connection) post(ctx context.Context, target string, payload []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", acceptBoth)
	c.setAuthHeader(req)

	c.mu.RLock()
	if c.transport.kind == transportStreamable && c.transport.sessionID != "" {
		req.Header.Set(sessionIDHeader, c.transport.sessionID)
	}
	c.mu.RUnlock()

	return c.config.HTTPClient.Do(req)
}

func (c *Connection) setAuthHeader(req *http.Request) {
	if c.config.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.AuthToken)
	}
}
