package mcpconn

import (
	"bytes"
	"strings"
)

const (
	eventTypeMessage  = "message"
	eventTypeEndpoint = "endpoint"
)

// streamEvent is one decoded frame from the event stream: an optional event
// type and a single data payload line.
type streamEvent struct {
	Type string
	Data string
}

// streamParser incrementally decodes a text/event-stream byte flow into
// discrete events. Chunk boundaries from the transport bear no relationship
// to line boundaries, so the parser keeps a single growing buffer and only
// processes complete lines; the trailing partial line (which may end in the
// middle of a multi-byte sequence) stays buffered until the next chunk.
type streamParser struct {
	buf       []byte
	eventType string
}

func newStreamParser() *streamParser {
	return &streamParser{}
}

// Feed appends a chunk and returns the events completed by it.
func (p *streamParser) Feed(chunk []byte) []streamEvent {
	p.buf = append(p.buf, chunk...)

	var events []streamEvent
	for {
		idx := bytes.IndexByte(p.buf, '\n')
		if idx < 0 {
			break
		}
		line := string(p.buf[:idx])
		p.buf = p.buf[idx+1:]
		if ev, ok := p.processLine(line); ok {
			events = append(events, ev)
		}
	}
	return events
}

// Flush processes whatever is left in the buffer as a final line. Streamable
// servers close the per-response stream right after the last frame, which
// can leave an unterminated data line behind.
func (p *streamParser) Flush() []streamEvent {
	if len(p.buf) == 0 {
		return nil
	}
	line := string(p.buf)
	p.buf = nil

	if ev, ok := p.processLine(line); ok {
		return []streamEvent{ev}
	}
	return nil
}

func (p *streamParser) processLine(line string) (streamEvent, bool) {
	line = strings.TrimSuffix(line, "\r")

	switch {
	case line == "":
		// Blank line terminates the current event.
		p.eventType = ""
		return streamEvent{}, false
	case strings.HasPrefix(line, ":"):
		// Comment / keepalive line.
		return streamEvent{}, false
	case strings.HasPrefix(line, "event:"):
		p.eventType = strings.TrimSpace(line[len("event:"):])
		return streamEvent{}, false
	case strings.HasPrefix(line, "data:"):
		data := strings.TrimSpace(line[len("data:"):])
		eventType := p.eventType
		if eventType == "" {
			eventType = eventTypeMessage
		}
		p.eventType = ""
		return streamEvent{Type: eventType, Data: data}, true
	default:
		// Field we don't understand (id:, retry:, ...). Skipped, never fatal.
		return streamEvent{}, false
	}
}
