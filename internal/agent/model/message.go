package model

import (
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
)

// MessageIDKey is the schema.Message Extra key holding a message's stable id.
const MessageIDKey = "message_id"

// MessageID returns m's stable id, or "" when it has none.
func MessageID(m *schema.Message) string {
	if m == nil || m.Extra == nil {
		return ""
	}
	id, _ := m.Extra[MessageIDKey].(string)
	return id
}

// EnsureMessageID assigns a fresh id to m when it has none and returns the id.
func EnsureMessageID(m *schema.Message) string {
	if m == nil {
		return ""
	}
	if id := MessageID(m); id != "" {
		return id
	}
	if m.Extra == nil {
		m.Extra = map[string]any{}
	}
	id := uuid.NewString()
	m.Extra[MessageIDKey] = id
	return id
}

// NewHumanMessage builds a user-role message with an id already assigned.
func NewHumanMessage(content string) *schema.Message {
	m := schema.UserMessage(content)
	EnsureMessageID(m)
	return m
}

// NewAIMessage builds an assistant message with an id already assigned.
func NewAIMessage(content string) *schema.Message {
	m := schema.AssistantMessage(content, nil)
	EnsureMessageID(m)
	return m
}

// NewToolMessage builds a tool result answering toolCallID.
func NewToolMessage(toolCallID, name, content string) *schema.Message {
	m := schema.ToolMessage(content, toolCallID)
	m.ToolName = name
	EnsureMessageID(m)
	return m
}
