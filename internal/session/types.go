package session

import (
	"time"

	"github.com/sfbridge-dev/sfbridge/internal/models"
)

// Session holds one conversation's state. Messages are append-only and
// insertion order is conversation order.
type Session struct {
	ID             string                `json:"id"`
	Messages       []models.Message      `json:"messages"`
	CreatedAt      time.Time             `json:"created_at"`
	LastActivityAt time.Time             `json:"last_activity_at"`
	Auth           *models.AuthContext   `json:"-"`
	Record         *models.RecordContext `json:"record_context,omitempty"`
}

// clone returns a copy safe to hand to callers. The message slice header is
// copied so appends by the caller never alias the stored session.
func (s *Session) clone() *Session {
	out := *s
	out.Messages = make([]models.Message, len(s.Messages))
	copy(out.Messages, s.Messages)
	return &out
}
