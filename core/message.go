package core

// Role names the author of a Message.
type Role string

const (
	// RoleSystem carries the agent's role prompt.
	RoleSystem Role = "system"
	// RoleUser carries run input and retrieved context.
	RoleUser Role = "user"
	// RoleAssistant carries model output.
	RoleAssistant Role = "assistant"
)

// Message is a single role-tagged text segment exchanged with a model backend.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// UserMessage is shorthand for a user-authored Message.
func UserMessage(text string) Message { return Message{Role: RoleUser, Text: text} }

// AssistantMessage is shorthand for an assistant-authored Message.
func AssistantMessage(text string) Message { return Message{Role: RoleAssistant, Text: text} }
