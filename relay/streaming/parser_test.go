package streaming

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmgateway/llmgateway/common/config"
)

func TestParserSingleEvent(t *testing.T) {
	p := NewParser()
	events := p.Feed([]byte("data: {\"a\":1}\n\n"))
	require.Len(t, events, 1)
	assert.Equal(t, `{"a":1}`, events[0].Data)
	assert.Empty(t, events[0].Name)
}

func TestParserMultipleEventsOneChunk(t *testing.T) {
	p := NewParser()
	events := p.Feed([]byte("data: {\"a\":1}\n\ndata: {\"b\":2}\n\ndata: [DONE]\n\n"))
	require.Len(t, events, 3)
	assert.Equal(t, `{"a":1}`, events[0].Data)
	assert.Equal(t, `{"b":2}`, events[1].Data)
	assert.Equal(t, DoneData, events[2].Data)
}

func TestParserJSONSplitAcrossChunks(t *testing.T) {
	p := NewParser()
	full := `{"choices":[{"delta":{"content":"hello world"}}]}`

	for cut := 1; cut < len(full); cut++ {
		p.Reset()
		events := p.Feed([]byte("data: " + full[:cut]))
		assert.Empty(t, events)
		events = p.Feed([]byte(full[cut:] + "\n\n"))
		require.Len(t, events, 1, "cut at %d", cut)
		assert.Equal(t, full, events[0].Data)
	}
}

func TestParserNamedEvents(t *testing.T) {
	p := NewParser()
	frame := "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"text\":\"hi\"}}\n\n" +
		"event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n"
	events := p.Feed([]byte(frame))
	require.Len(t, events, 2)
	assert.Equal(t, "content_block_delta", events[0].Name)
	assert.Equal(t, "message_stop", events[1].Name)
	assert.Contains(t, events[0].Data, "content_block_delta")
}

func TestParserNamedEventSplitBeforeData(t *testing.T) {
	p := NewParser()
	events := p.Feed([]byte("event: message_delta\nda"))
	assert.Empty(t, events)
	events = p.Feed([]byte("ta: {\"type\":\"message_delta\"}\n\n"))
	require.Len(t, events, 1)
	assert.Equal(t, "message_delta", events[0].Name)
}

func TestParserExcludesTrailingFields(t *testing.T) {
	p := NewParser()
	events := p.Feed([]byte("data: {\"a\":1}\nevent: ping\nid: 7\n\ndata: {\"b\":2}\n\n"))
	require.Len(t, events, 2)
	assert.Equal(t, `{"a":1}`, events[0].Data)
	assert.Equal(t, `{"b":2}`, events[1].Data)
}

func TestParserPayloadWithEmbeddedNewline(t *testing.T) {
	p := NewParser()
	// The payload's quoted string is broken by a raw newline, so the first
	// newline does not terminate a balanced JSON value. The event extends to
	// the next data marker.
	events := p.Feed([]byte("data: {\"content\":\"line1\nline2\"}\ndata: {\"b\":2}\n\n"))
	require.Len(t, events, 2)
	assert.Equal(t, "{\"content\":\"line1\nline2\"}", events[0].Data)
	assert.Equal(t, `{"b":2}`, events[1].Data)
}

func TestParserCRLF(t *testing.T) {
	p := NewParser()
	events := p.Feed([]byte("data: {\"a\":1}\r\n\r\ndata: [DONE]\r\n\r\n"))
	require.Len(t, events, 2)
	assert.Equal(t, `{"a":1}`, events[0].Data)
	assert.Equal(t, DoneData, events[1].Data)
}

func TestParserOverflowResets(t *testing.T) {
	p := NewParser()
	huge := "data: {\"a\":\"" + strings.Repeat("x", config.StreamBufferLimit)
	events := p.Feed([]byte(huge))
	assert.Empty(t, events)
	assert.Empty(t, p.Buffered())

	events = p.Feed([]byte("data: {\"b\":2}\n\n"))
	require.Len(t, events, 1)
	assert.Equal(t, `{"b":2}`, events[0].Data)
}

func TestJSONComplete(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{`{}`, true},
		{`{"a":1}`, true},
		{`{"a":"}"}`, true},
		{`{"a":"\""}`, true},
		{`{"a":[1,2,{"b":3}]}`, true},
		{`[DONE]`, true},
		{`{"a":1`, false},
		{`{"a":"unterminated`, false},
		{`{"a":1}}`, false},
		{``, false},
		{`   `, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, jsonComplete(tc.in), "input %q", tc.in)
	}
}
