package streaming

import (
	"bytes"
	"strings"

	"github.com/Laisky/zap"

	"github.com/llmgateway/llmgateway/common/config"
	"github.com/llmgateway/llmgateway/common/logger"
)

// DoneData is the terminal sentinel payload used by OpenAI-style streams.
const DoneData = "[DONE]"

var (
	dataMarker     = []byte("data: ")
	dataContinuedM = []byte("\ndata:")
	eventMarker    = []byte("event:")
)

// Event is one reassembled SSE event.
type Event struct {
	// Name is the value of the event: field preceding the data line, when the
	// upstream grammar uses named events (Anthropic, OpenAI Responses).
	Name string
	Data string
}

// Parser extracts SSE events from an upstream octet stream regardless of how
// the transport chunks it. JSON payloads may split anywhere, and Anthropic and
// OpenAI Responses interleave event:/data: field pairs, so extraction is
// event-oriented rather than line-oriented:
//
//  1. Find the next "data: " marker (buffer start or after a newline).
//  2. The payload tentatively runs to the next "\ndata:" marker. Refine by
//     checking whether the substring up to the first newline is complete JSON;
//     if so the event ends there, correctly excluding subsequent event:/id:/
//     retry: fields. Otherwise extend to the next "\ndata:" or wait for more
//     bytes.
//  3. Completeness is decided by a single-pass brace/bracket balance scan, not
//     by repeated unmarshal attempts.
//
// The buffer is capped; on overflow it is dropped and the stream continues
// with whatever arrives next.
type Parser struct {
	buf []byte
}

func NewParser() *Parser { return &Parser{} }

// Feed appends a transport chunk and returns every event now complete.
func (p *Parser) Feed(chunk []byte) []Event {
	p.buf = append(p.buf, chunk...)
	if len(p.buf) > config.StreamBufferLimit {
		logger.Logger.Warn("stream buffer overflow, dropping buffered data",
			zap.Int("size", len(p.buf)))
		p.buf = p.buf[:0]
		return nil
	}
	var events []Event
	for {
		ev, ok := p.next()
		if !ok {
			return events
		}
		events = append(events, ev)
	}
}

// Reset discards any partial state, for reuse across upstream attempts.
func (p *Parser) Reset() { p.buf = p.buf[:0] }

// Buffered returns the unconsumed tail, used in streaming error events.
func (p *Parser) Buffered() []byte { return p.buf }

func (p *Parser) next() (Event, bool) {
	m := indexDataMarker(p.buf)
	if m < 0 {
		return Event{}, false
	}
	name := lastEventName(p.buf[:m])
	dataStart := m + len(dataMarker)

	nl := bytes.IndexByte(p.buf[dataStart:], '\n')
	if nl < 0 {
		// No newline yet; keep only this event's bytes while waiting.
		p.compact(m)
		return Event{}, false
	}

	candidate := trimPayload(p.buf[dataStart : dataStart+nl])
	if jsonComplete(candidate) {
		p.buf = p.buf[dataStart+nl+1:]
		return Event{Name: name, Data: candidate}, true
	}

	// Payload continues past the newline. It ends at the next data marker.
	rest := p.buf[dataStart:]
	j := bytes.Index(rest, dataContinuedM)
	if j < 0 {
		p.compact(m)
		return Event{}, false
	}
	payload := trimPayload(rest[:j])
	p.buf = p.buf[dataStart+j+1:]
	return Event{Name: name, Data: payload}, true
}

// compact drops consumed bytes preceding the current event so an incomplete
// payload does not pin the whole stream history in memory.
func (p *Parser) compact(markerIdx int) {
	start := markerIdx
	if e := bytes.LastIndex(p.buf[:markerIdx], eventMarker); e >= 0 && (e == 0 || p.buf[e-1] == '\n') {
		start = e
	}
	if start > 0 {
		p.buf = append(p.buf[:0], p.buf[start:]...)
	}
}

// indexDataMarker finds "data: " at buffer start or right after a newline.
func indexDataMarker(buf []byte) int {
	off := 0
	for {
		i := bytes.Index(buf[off:], dataMarker)
		if i < 0 {
			return -1
		}
		i += off
		if i == 0 || buf[i-1] == '\n' {
			return i
		}
		off = i + 1
	}
}

// lastEventName pulls the event: field nearest before the data marker.
func lastEventName(region []byte) string {
	for {
		i := bytes.LastIndex(region, eventMarker)
		if i < 0 {
			return ""
		}
		if i == 0 || region[i-1] == '\n' {
			line := region[i+len(eventMarker):]
			if nl := bytes.IndexByte(line, '\n'); nl >= 0 {
				line = line[:nl]
			}
			return strings.TrimSpace(string(line))
		}
		region = region[:i]
	}
}

func trimPayload(b []byte) string {
	return strings.TrimRight(strings.TrimSuffix(string(b), "\r"), "\n\r ")
}

// jsonComplete reports whether s is a structurally balanced JSON value, via a
// single forward scan tracking string state and brace/bracket depth.
func jsonComplete(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if s == DoneData {
		return true
	}
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0 && !inString
}
