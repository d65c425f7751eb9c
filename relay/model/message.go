package model

import "encoding/json"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

const (
	ContentTypeText     = "text"
	ContentTypeImageURL = "image_url"
)

// Message is one canonical chat turn. Content is either a plain string or an
// array of content blocks (text / image_url).
type Message struct {
	Role       string `json:"role"`
	Content    any    `json:"content"`
	Name       string `json:"name,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolCalls  []Tool `json:"tool_calls,omitempty"`
}

// ImageURL carries an image reference inside a multi-modal content block.
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// MessageContent is one block of a multi-modal content array.
type MessageContent struct {
	Type     string    `json:"type"`
	Text     *string   `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// StringContent flattens the message content to plain text. Multi-modal
// arrays are concatenated text blocks; non-text blocks are skipped.
func (m Message) StringContent() string {
	if content, ok := m.Content.(string); ok {
		return content
	}
	var sb []byte
	for _, block := range m.ParseContent() {
		if block.Type == ContentTypeText && block.Text != nil {
			sb = append(sb, *block.Text...)
		}
	}
	return string(sb)
}

// ParseContent normalises the content field into a slice of blocks. A plain
// string becomes a single text block.
func (m Message) ParseContent() []MessageContent {
	switch content := m.Content.(type) {
	case string:
		return []MessageContent{{Type: ContentTypeText, Text: &content}}
	case []any:
		var blocks []MessageContent
		for _, item := range content {
			raw, err := json.Marshal(item)
			if err != nil {
				continue
			}
			var block MessageContent
			if err := json.Unmarshal(raw, &block); err != nil {
				continue
			}
			blocks = append(blocks, block)
		}
		return blocks
	case []MessageContent:
		return content
	}
	return nil
}

// HasNonTextContent reports whether any content block is not plain text.
// Providers that only accept flat strings get flattened content when false.
func (m Message) HasNonTextContent() bool {
	if _, ok := m.Content.(string); ok {
		return false
	}
	for _, block := range m.ParseContent() {
		if block.Type != ContentTypeText {
			return true
		}
	}
	return false
}
