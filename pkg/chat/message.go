package chat

import (
	"fmt"
	"strings"
)

// Role is the role for a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole validates a role string.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleSystem:
		return RoleSystem, nil
	case RoleUser:
		return RoleUser, nil
	case RoleAssistant:
		return RoleAssistant, nil
	default:
		return "", fmt.Errorf("invalid message role: %q", s)
	}
}

// Message is the provider-agnostic chat message value.
type Message struct {
	Role    Role   `mapstructure:"role" yaml:"role" json:"role"`
	Content string `mapstructure:"content" yaml:"content" json:"content"`
}

// UserMessage builds a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// CloneMessages returns a copy that shares no backing array with messages.
// A nil input yields an empty, non-nil slice.
func CloneMessages(messages []Message) []Message {
	out := make([]Message, len(messages))
	copy(out, messages)
	return out
}

// Overrides carries per-request model parameters. Nil fields are unset.
type Overrides struct {
	Model       *string
	Temperature *float64
	TopP        *float64
}
