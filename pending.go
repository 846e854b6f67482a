package mcpconn

import "sync"

// pendingRequests correlates outgoing request ids with the channel their
// reply must be delivered on. Ids are monotonically increasing for the
// lifetime of the connection and are never reused, including across
// reconnects, so a late reply can never settle a newer request.
type pendingRequests struct {
	mu       sync.Mutex
	nextID   int64
	handlers map[int64]chan *Response
	dropped  int64
}

func newPendingRequests() *pendingRequests {
	return &pendingRequests{handlers: make(map[int64]chan *Response)}
}

// register allocates the next request id and installs a one-shot reply
// channel for it.
func (p *pendingRequests) register() (int64, chan *Response) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	ch := make(chan *Response, 1)
	p.handlers[p.nextID] = ch
	return p.nextID, ch
}

// resolve delivers a response to the waiter registered for its id. It
// reports false when no entry exists (duplicate delivery, or a reply to a
// request that already timed out); such responses are dropped, never
// resurrected.
func (p *pendingRequests) resolve(id int64, resp *Response) bool {
	p.mu.Lock()
	ch, ok := p.handlers[id]
	if ok {
		delete(p.handlers, id)
	} else {
		p.dropped++
	}
	p.mu.Unlock()

	if !ok {
		return false
	}
	ch <- resp
	return true
}

// remove discards the entry for id without settling it. Called by the
// waiter itself on timeout, cancellation, or teardown.
func (p *pendingRequests) remove(id int64) {
	p.mu.Lock()
	delete(p.handlers, id)
	p.mu.Unlock()
}

// outstanding returns the number of requests still awaiting a reply.
func (p *pendingRequests) outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handlers)
}

// droppedCount returns how many responses arrived with no matching pending
// entry.
func (p *pendingRequests) droppedCount() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}
