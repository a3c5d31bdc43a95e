package summarize

import (
	"github.com/google/uuid"

	"github.com/vrsandeep/pagesum-go/internal/models"
)

// Session is the conversation owned by one controller. It is not safe for
// concurrent use; the controller serializes access.
type Session struct {
	ID      string
	history []models.ChatMessage
}

func NewSession() *Session {
	return &Session{ID: uuid.NewString()}
}

// History returns a copy of the conversation.
func (s *Session) History() []models.ChatMessage {
	return append([]models.ChatMessage(nil), s.history...)
}

func (s *Session) Len() int { return len(s.history) }

// Reset clears the conversation and starts a new session id.
func (s *Session) Reset() {
	s.history = s.history[:0]
	s.ID = uuid.NewString()
}

func (s *Session) push(role models.Role, content string) {
	s.history = append(s.history, models.ChatMessage{Role: role, Content: content})
}

// popUser removes the last message if it is a user turn.
func (s *Session) popUser() bool {
	n := len(s.history)
	if n == 0 || s.history[n-1].Role != models.RoleUser {
		return false
	}
	s.history = s.history[:n-1]
	return true
}

// keepLast drops everything but the last n messages.
func (s *Session) keepLast(n int) {
	if len(s.history) <= n {
		return
	}
	s.history = append(s.history[:0], s.history[len(s.history)-n:]...)
}
