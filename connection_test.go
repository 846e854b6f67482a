package mcpconn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToolSchema = `{"type":"object","properties":{"input":{"type":"string"}},"required":["input"]}`

func mockRespond(req Request) Response {
	resp := Response{JSONRPC: jsonRPCVersion, ID: req.ID}
	switch req.Method {
	case "initialize":
		result, _ := json.Marshal(InitializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities:    map[string]any{"tools": map[string]any{"listChanged": true}},
			ServerInfo:      ServerInfo{Name: "test-server", Version: "1.0.0"},
		})
		resp.Result = result
	case "tools/list":
		result, _ := json.Marshal(ListToolsResult{Tools: []Tool{{
			Name:        "test-tool",
			Description: "A test tool",
			InputSchema: json.RawMessage(testToolSchema),
		}}})
		resp.Result = result
	case "ping":
		resp.Result = json.RawMessage(`{}`)
	case "tools/call":
		result, _ := json.Marshal(CallToolResult{Content: []ContentItem{{Type: "text", Text: "called"}}})
		resp.Result = result
	case "double":
		var params struct {
			Value int64 `json:"value"`
		}
		_ = json.Unmarshal(req.Params, &params)
		resp.Result = json.RawMessage(fmt.Sprintf(`{"value":%d}`, params.Value*2))
	default:
		resp.Error = &Error{Code: ErrorCodeMethodNotFound, Message: "method not found"}
	}
	return resp
}

// streamableMock serves the Streamable transport: every POST is answered on
// the same exchange, either as a JSON document or a one-shot event stream.
type streamableMock struct {
	server       *httptest.Server
	sessionID    string
	sseReplies   bool
	respondFn    func(Request) Response
	getCalls     int32
	deleteCalls  int32
	failRequests int32
	silent       map[string]bool
	delayFor     map[string]time.Duration

	mu           sync.Mutex
	seenSessions []string
}

func newStreamableMock() *streamableMock {
	m := &streamableMock{
		sessionID: "xyz",
		respondFn: mockRespond,
		silent:    make(map[string]bool),
		delayFor:  make(map[string]time.Duration),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// setFailing toggles whether every request is answered with a 500.
func (m *streamableMock) setFailing(failing bool) {
	var v int32
	if failing {
		v = 1
	}
	atomic.StoreInt32(&m.failRequests, v)
}

func (m *streamableMock) close() { m.server.Close() }

func (m *streamableMock) handle(w http.ResponseWriter, r *http.Request) {
	if atomic.LoadInt32(&m.failRequests) == 1 {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}
	switch r.Method {
	case http.MethodGet:
		atomic.AddInt32(&m.getCalls, 1)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	case http.MethodDelete:
		atomic.AddInt32(&m.deleteCalls, 1)
		w.WriteHeader(http.StatusNoContent)
	case http.MethodPost:
		if sid := r.Header.Get(sessionIDHeader); sid != "" {
			m.mu.Lock()
			m.seenSessions = append(m.seenSessions, sid)
			m.mu.Unlock()
		}
		body, _ := io.ReadAll(r.Body)
		var req Request
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if d := m.delayFor[req.Method]; d > 0 {
			time.Sleep(d)
		}
		if req.ID == nil || m.silent[req.Method] {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		payload, _ := json.Marshal(m.respondFn(req))
		w.Header().Set(sessionIDHeader, m.sessionID)
		if m.sseReplies {
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", payload)
		} else {
			w.Header().Set("Content-Type", "application/json")
			w.Write(payload)
		}
	}
}

// legacyMock serves the legacy transport: a long-lived GET stream announces
// the message endpoint inline, and POSTed requests are answered over that
// stream.
type legacyMock struct {
	server        *httptest.Server
	mu            sync.Mutex
	streams       map[string]chan string
	kill          chan struct{}
	msgPosts      int32
	activeStreams int32
	silentInit    int32
}

func newLegacyMock() *legacyMock {
	m := &legacyMock{
		streams: make(map[string]chan string),
		kill:    make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/sse", m.handleSSE)
	mux.HandleFunc("/msg", m.handleMessage)
	m.server = httptest.NewServer(mux)
	return m
}

func (m *legacyMock) close() { m.server.Close() }

// dropStreams terminates every open stream, simulating an unexpected
// server-side closure.
func (m *legacyMock) dropStreams() {
	m.mu.Lock()
	close(m.kill)
	m.kill = make(chan struct{})
	m.mu.Unlock()
}

// setSilentInit toggles whether initialize requests are acked but never
// answered.
func (m *legacyMock) setSilentInit(silent bool) {
	var v int32
	if silent {
		v = 1
	}
	atomic.StoreInt32(&m.silentInit, v)
}

// push injects a raw frame into the active stream.
func (m *legacyMock) push(sessionID, payload string) {
	m.mu.Lock()
	ch := m.streams[sessionID]
	m.mu.Unlock()
	if ch != nil {
		ch <- payload
	}
}

func (m *legacyMock) handleSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	atomic.AddInt32(&m.activeStreams, 1)
	defer atomic.AddInt32(&m.activeStreams, -1)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	sessionID := "abc123"
	ch := make(chan string, 16)
	m.mu.Lock()
	m.streams[sessionID] = ch
	kill := m.kill
	m.mu.Unlock()

	fmt.Fprintf(w, "event: endpoint\ndata: /msg?sessionId=%s\n\n", sessionID)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-kill:
			return
		case msg := <-ch:
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (m *legacyMock) handleMessage(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&m.msgPosts, 1)
	sessionID := r.URL.Query().Get("sessionId")

	body, _ := io.ReadAll(r.Body)
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.ID == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	if req.Method == "initialize" && atomic.LoadInt32(&m.silentInit) == 1 {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	payload, _ := json.Marshal(mockRespond(req))
	go m.push(sessionID, string(payload))
	w.WriteHeader(http.StatusAccepted)
}

func testConfig(url string) ConnectionConfig {
	return ConnectionConfig{
		ServerID:        "test-server",
		URL:             url,
		AuthToken:       "test-token",
		RequestTimeout:  2 * time.Second,
		EndpointTimeout: time.Second,
		RetryMinDelay:   10 * time.Second, // keep retries from firing mid-test
	}
}

func TestConnectStreamable(t *testing.T) {
	mock := newStreamableMock()
	defer mock.close()

	conn, err := NewConnection(testConfig(mock.server.URL))
	require.NoError(t, err)
	require.NoError(t, conn.Connect(context.Background()))
	defer conn.Disconnect()

	status := conn.GetStatus()
	assert.Equal(t, Connected, status.State)
	assert.Equal(t, "streamable", status.Transport)
	require.Len(t, status.Tools, 1)
	assert.Equal(t, "test-tool", status.Tools[0].Name)
	assert.False(t, status.LastConnectedAt.IsZero())

	// Session id from the handshake response header is echoed on follow-ups.
	assert.Equal(t, "xyz", conn.currentTransport().sessionID)
	mock.mu.Lock()
	seen := len(mock.seenSessions)
	mock.mu.Unlock()
	assert.Greater(t, seen, 0)

	// No GET stream is ever opened for the streamable transport.
	assert.Equal(t, int32(0), atomic.LoadInt32(&mock.getCalls))

	require.NoError(t, conn.Disconnect())
	assert.Equal(t, int32(1), atomic.LoadInt32(&mock.deleteCalls))
}

func TestConnectStreamableWithStreamReplies(t *testing.T) {
	mock := newStreamableMock()
	mock.sseReplies = true
	defer mock.close()

	conn, err := NewConnection(testConfig(mock.server.URL))
	require.NoError(t, err)
	require.NoError(t, conn.Connect(context.Background()))
	defer conn.Disconnect()

	result, err := conn.SendRequest(context.Background(), "ping", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(result))

	// One-shot response streams closing is normal; no reconnect gets
	// scheduled.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, Connected, conn.GetStatus().State)
	conn.mu.RLock()
	assert.Nil(t, conn.reconnectTimer)
	conn.mu.RUnlock()
}

func TestConnectLegacy(t *testing.T) {
	mock := newLegacyMock()
	defer mock.close()

	conn, err := NewConnection(testConfig(mock.server.URL + "/sse"))
	require.NoError(t, err)
	require.NoError(t, conn.Connect(context.Background()))
	defer conn.Disconnect()

	status := conn.GetStatus()
	assert.Equal(t, Connected, status.State)
	assert.Equal(t, "legacy-sse", status.Transport)
	require.Len(t, status.Tools, 1)

	transport := conn.currentTransport()
	assert.Equal(t, "abc123", transport.sessionID)
	assert.Equal(t, mock.server.URL+"/msg?sessionId=abc123", transport.endpoint)

	result, err := conn.SendRequest(context.Background(), "ping", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(result))
}

func TestConnectAuthFailures(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantKind  AuthFailureKind
		wantState ConnectionState
	}{
		{
			name:      "malformed token",
			body:      `{"error":"invalid_token","error_description":"Invalid token format"}`,
			wantKind:  AuthFailureMalformed,
			wantState: InvalidToken,
		},
		{
			name:      "expired token",
			body:      `{"error":"invalid_token","error_description":"expired"}`,
			wantKind:  AuthFailureExpired,
			wantState: NeedsAuth,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			conn, err := NewConnection(testConfig(server.URL))
			require.NoError(t, err)

			err = conn.Connect(context.Background())
			require.Error(t, err)
			var authErr *AuthError
			require.ErrorAs(t, err, &authErr)
			assert.Equal(t, tt.wantKind, authErr.Kind)
			assert.Equal(t, tt.wantState, conn.GetStatus().State)

			// Auth failures are terminal until the caller acts: no retry.
			conn.mu.RLock()
			assert.Nil(t, conn.reconnectTimer)
			conn.mu.RUnlock()
		})
	}
}

func TestConnectServerErrorSchedulesRetry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	conn, err := NewConnection(testConfig(server.URL))
	require.NoError(t, err)

	require.Error(t, conn.Connect(context.Background()))
	assert.Equal(t, ConnectionError, conn.GetStatus().State)
	assert.NotEmpty(t, conn.GetStatus().LastError)

	conn.mu.RLock()
	assert.NotNil(t, conn.reconnectTimer)
	conn.mu.RUnlock()
	assert.Equal(t, 1, conn.backoff.attempts())

	require.NoError(t, conn.Disconnect())
}

func TestRequestTimeoutRejectsExactlyOnce(t *testing.T) {
	mock := newStreamableMock()
	mock.silent["slow"] = true
	defer mock.close()

	cfg := testConfig(mock.server.URL)
	cfg.RequestTimeout = 150 * time.Millisecond
	conn, err := NewConnection(cfg)
	require.NoError(t, err)
	require.NoError(t, conn.Connect(context.Background()))
	defer conn.Disconnect()

	_, err = conn.SendRequest(context.Background(), "slow", nil)
	require.ErrorIs(t, err, ErrRequestTimeout)
	assert.Equal(t, 0, conn.pending.outstanding())

	// A late reply for the timed-out id is dropped, not resurrected.
	conn.pending.mu.Lock()
	lateID := conn.pending.nextID
	conn.pending.mu.Unlock()
	conn.handleRawMessage([]byte(fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":{}}`, lateID)))
	assert.Equal(t, int64(1), conn.pending.droppedCount())
	assert.Equal(t, 0, conn.pending.outstanding())
}

func TestDisconnectIsIdempotent(t *testing.T) {
	mock := newStreamableMock()
	mock.silent["slow"] = true
	defer mock.close()

	conn, err := NewConnection(testConfig(mock.server.URL))
	require.NoError(t, err)
	require.NoError(t, conn.Connect(context.Background()))

	errCh := make(chan error, 1)
	go func() {
		_, err := conn.SendRequest(context.Background(), "slow", nil)
		errCh <- err
	}()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, conn.Disconnect())
	require.ErrorIs(t, <-errCh, ErrConnectionClosed)
	assert.Equal(t, 0, conn.pending.outstanding())

	// Repeated disconnects are no-ops.
	require.NoError(t, conn.Disconnect())
	require.NoError(t, conn.Disconnect())

	status := conn.GetStatus()
	assert.Equal(t, Disconnected, status.State)
	assert.Equal(t, "unknown", status.Transport)
	assert.Empty(t, status.Tools)
}

func TestDisconnectBeforeConnectIsNoOp(t *testing.T) {
	conn, err := NewConnection(testConfig("http://localhost:0"))
	require.NoError(t, err)
	require.NoError(t, conn.Disconnect())
	assert.Equal(t, Disconnected, conn.GetStatus().State)
}

func TestLegacyStreamClosureSchedulesReconnect(t *testing.T) {
	mock := newLegacyMock()
	defer mock.close()

	conn, err := NewConnection(testConfig(mock.server.URL + "/sse"))
	require.NoError(t, err)
	require.NoError(t, conn.Connect(context.Background()))
	defer conn.Disconnect()

	mock.dropStreams()

	require.Eventually(t, func() bool {
		return conn.GetStatus().State == ConnectionError
	}, 2*time.Second, 10*time.Millisecond)

	conn.mu.RLock()
	timerSet := conn.reconnectTimer != nil
	conn.mu.RUnlock()
	assert.True(t, timerSet)
	assert.Equal(t, 1, conn.backoff.attempts())
}

func TestLegacyReconnectRestoresConnection(t *testing.T) {
	mock := newLegacyMock()
	defer mock.close()

	cfg := testConfig(mock.server.URL + "/sse")
	cfg.RetryMinDelay = 20 * time.Millisecond
	conn, err := NewConnection(cfg)
	require.NoError(t, err)
	require.NoError(t, conn.Connect(context.Background()))
	defer conn.Disconnect()

	mock.dropStreams()

	require.Eventually(t, func() bool {
		return conn.GetStatus().State == Connected && conn.backoff.attempts() == 0
	}, 5*time.Second, 20*time.Millisecond)

	result, err := conn.SendRequest(context.Background(), "ping", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(result))
}

func TestConcurrentRequestsCorrelateByID(t *testing.T) {
	mock := newStreamableMock()
	defer mock.close()

	conn, err := NewConnection(testConfig(mock.server.URL))
	require.NoError(t, err)
	require.NoError(t, conn.Connect(context.Background()))
	defer conn.Disconnect()

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(v int64) {
			defer wg.Done()
			result, err := conn.SendRequest(context.Background(), "double", map[string]int64{"value": v})
			require.NoError(t, err)

			var got struct {
				Value int64 `json:"value"`
			}
			require.NoError(t, json.Unmarshal(result, &got))
			assert.Equal(t, 2*v, got.Value)
		}(int64(i))
	}
	wg.Wait()

	assert.Equal(t, 0, conn.pending.outstanding())
	assert.Equal(t, int64(0), conn.pending.droppedCount())
}

func TestStatusCallbackSequence(t *testing.T) {
	mock := newStreamableMock()
	defer mock.close()

	var mu sync.Mutex
	var states []ConnectionState
	cfg := testConfig(mock.server.URL)
	cfg.OnStatusChange = func(s ServerStatus) {
		mu.Lock()
		states = append(states, s.State)
		mu.Unlock()
	}

	conn, err := NewConnection(cfg)
	require.NoError(t, err)
	require.NoError(t, conn.Connect(context.Background()))
	require.NoError(t, conn.Disconnect())

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, states)
	assert.Equal(t, Connecting, states[0])
	assert.Contains(t, states, Connected)
	assert.Equal(t, Disconnected, states[len(states)-1])
}

func TestOnMessageObservesServerTraffic(t *testing.T) {
	mock := newLegacyMock()
	defer mock.close()

	var mu sync.Mutex
	var methods []string
	var unknownResponses int
	cfg := testConfig(mock.server.URL + "/sse")
	cfg.OnMessage = func(msg *Message) {
		mu.Lock()
		defer mu.Unlock()
		if msg.IsNotification() {
			methods = append(methods, msg.Method)
		}
		if msg.IsResponse() {
			var id int64
			if json.Unmarshal(*msg.ID, &id) == nil && id == 999 {
				unknownResponses++
			}
		}
	}

	conn, err := NewConnection(cfg)
	require.NoError(t, err)
	require.NoError(t, conn.Connect(context.Background()))
	defer conn.Disconnect()

	mock.push("abc123", `{"jsonrpc":"2.0","method":"notifications/tools/list_changed"}`)
	mock.push("abc123", `{"jsonrpc":"2.0","id":999,"result":{}}`)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(methods) > 0 && unknownResponses > 0
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Contains(t, methods, "notifications/tools/list_changed")
	mu.Unlock()

	// The unmatched response was forwarded to the observer, then dropped.
	assert.GreaterOrEqual(t, conn.pending.droppedCount(), int64(1))
}

func TestExplicitConnectCancelsScheduledRetry(t *testing.T) {
	mock := newStreamableMock()
	mock.setFailing(true)
	defer mock.close()

	var mu sync.Mutex
	var states []ConnectionState
	cfg := testConfig(mock.server.URL)
	cfg.RetryMinDelay = 200 * time.Millisecond
	cfg.OnStatusChange = func(s ServerStatus) {
		mu.Lock()
		states = append(states, s.State)
		mu.Unlock()
	}

	conn, err := NewConnection(cfg)
	require.NoError(t, err)

	// First attempt fails and schedules a retry.
	require.Error(t, conn.Connect(context.Background()))
	conn.mu.RLock()
	require.NotNil(t, conn.reconnectTimer)
	conn.mu.RUnlock()

	// An explicit reconnect before the retry fires must supersede it.
	mock.setFailing(false)
	require.NoError(t, conn.Connect(context.Background()))
	defer conn.Disconnect()

	// Well past the stale retry delay the connection must stay settled: no
	// further connecting transition and no extra handshake.
	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, Connected, conn.GetStatus().State)

	mu.Lock()
	defer mu.Unlock()
	connecting := 0
	for _, s := range states {
		if s == Connecting {
			connecting++
		}
	}
	assert.Equal(t, 2, connecting)
}

func TestRetryAfterHandshakeTimeoutReplacesStaleStream(t *testing.T) {
	mock := newLegacyMock()
	mock.setSilentInit(true)
	defer mock.close()

	cfg := testConfig(mock.server.URL + "/sse")
	cfg.RequestTimeout = 150 * time.Millisecond
	cfg.RetryMinDelay = 100 * time.Millisecond
	conn, err := NewConnection(cfg)
	require.NoError(t, err)

	// The stream comes up but the initialize reply never arrives.
	require.ErrorIs(t, conn.Connect(context.Background()), ErrRequestTimeout)
	defer conn.Disconnect()

	mock.setSilentInit(false)
	require.Eventually(t, func() bool {
		return conn.GetStatus().State == Connected
	}, 5*time.Second, 20*time.Millisecond)

	// The failed generation's stream is torn down, not left dangling.
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&mock.activeStreams) == 1
	}, 2*time.Second, 20*time.Millisecond)

	// And its closure must not unsettle the healthy connection.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, Connected, conn.GetStatus().State)
	conn.mu.RLock()
	assert.Nil(t, conn.reconnectTimer)
	conn.mu.RUnlock()
}

func TestRequestDeadlineSpansPostAndReply(t *testing.T) {
	mock := newStreamableMock()
	mock.silent["slow"] = true
	mock.delayFor["slow"] = 100 * time.Millisecond
	defer mock.close()

	cfg := testConfig(mock.server.URL)
	cfg.RequestTimeout = 150 * time.Millisecond
	conn, err := NewConnection(cfg)
	require.NoError(t, err)
	require.NoError(t, conn.Connect(context.Background()))
	defer conn.Disconnect()

	// The slow POST eats into the same budget the reply wait uses; total
	// latency stays bounded by one RequestTimeout, not two.
	start := time.Now()
	_, err = conn.SendRequest(context.Background(), "slow", nil)
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrRequestTimeout)
	assert.Less(t, elapsed, 240*time.Millisecond)
}

func TestNotificationsHonorRateLimit(t *testing.T) {
	mock := newStreamableMock()
	defer mock.close()

	cfg := testConfig(mock.server.URL)
	cfg.RequestsPerSecond = 50
	conn, err := NewConnection(cfg)
	require.NoError(t, err)
	require.NoError(t, conn.Connect(context.Background()))
	defer conn.Disconnect()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, conn.SendNotification(context.Background(), "notifications/progress", nil))
	}
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestConnectWhileConnectedFails(t *testing.T) {
	mock := newStreamableMock()
	defer mock.close()

	conn, err := NewConnection(testConfig(mock.server.URL))
	require.NoError(t, err)
	require.NoError(t, conn.Connect(context.Background()))
	defer conn.Disconnect()

	assert.Error(t, conn.Connect(context.Background()))
}

func TestSendRequestWhenDisconnected(t *testing.T) {
	conn, err := NewConnection(testConfig("http://localhost:0"))
	require.NoError(t, err)

	_, err = conn.SendRequest(context.Background(), "ping", nil)
	assert.ErrorIs(t, err, ErrNotConnected)

	err = conn.SendNotification(context.Background(), "notifications/test", nil)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestNewConnectionRequiresURL(t *testing.T) {
	_, err := NewConnection(ConnectionConfig{})
	assert.Error(t, err)
}
