package types

import (
	"encoding/json"
	"strings"
)

// Message represents a single message in a conversation thread.
type Message struct {
	Role    string         `json:"role"` // "user" or "assistant"
	Content []ContentBlock `json:"content"`
}

// UnmarshalJSON dispatches content blocks to their concrete types.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.Role = raw.Role

	// Accept plain-string content for convenience.
	var str string
	if err := json.Unmarshal(raw.Content, &str); err == nil {
		m.Content = []ContentBlock{TextBlock{Type: "text", Text: str}}
		return nil
	}

	blocks, err := UnmarshalContentBlocks(raw.Content)
	if err != nil {
		return err
	}
	m.Content = blocks
	return nil
}

// UserText builds a user message from plain text.
func UserText(text string) Message {
	return Message{Role: "user", Content: []ContentBlock{TextBlock{Type: "text", Text: text}}}
}

// TextContent concatenates all text blocks in the message.
func (m *Message) TextContent() string {
	var sb strings.Builder
	for _, block := range m.Content {
		if tb, ok := block.(TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	return sb.String()
}

// ToolUses returns the tool_use blocks in the message, in order.
func (m *Message) ToolUses() []ToolUseBlock {
	var uses []ToolUseBlock
	for _, block := range m.Content {
		if tu, ok := block.(ToolUseBlock); ok {
			uses = append(uses, tu)
		}
	}
	return uses
}
