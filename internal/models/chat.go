package models

// Role is the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one turn of a conversation sent to the model.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
