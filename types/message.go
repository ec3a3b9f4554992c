// Package types provides core types used across the batchflow module.
// This package has ZERO dependencies on other batchflow packages to avoid circular imports.
package types

import (
	"encoding/json"
	"fmt"
)

// Role represents the role of a message participant.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the supported conversation roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message represents a conversation message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewMessage creates a new message with the given role and content.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return NewMessage(RoleSystem, content)
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) Message {
	return NewMessage(RoleAssistant, content)
}

// UnmarshalJSON rejects turns that are not {role, content} objects.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("message must be an object with role and content: %w", err)
	}
	roleRaw, ok := raw["role"]
	if !ok {
		return fmt.Errorf("message missing role")
	}
	contentRaw, ok := raw["content"]
	if !ok {
		return fmt.Errorf("message missing content")
	}
	var role string
	if err := json.Unmarshal(roleRaw, &role); err != nil {
		return fmt.Errorf("message role must be a string: %w", err)
	}
	var content string
	if err := json.Unmarshal(contentRaw, &content); err != nil {
		return fmt.Errorf("message content must be a string: %w", err)
	}
	m.Role = Role(role)
	m.Content = content
	return nil
}

// HasRole reports whether any message in msgs has role r.
func HasRole(msgs []Message, r Role) bool {
	for _, m := range msgs {
		if m.Role == r {
			return true
		}
	}
	return false
}
