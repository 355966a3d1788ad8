package model

import "time"

// Identity is the authenticated end user as reported by the identity provider.
type Identity struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

// Handoff is the record passed to human support when a session escalates.
type Handoff struct {
	SessionID   string    `json:"session_id"`
	UserID      string    `json:"user_id,omitempty"`
	Subject     string    `json:"subject"`
	Description string    `json:"description"`
	Attempts    int       `json:"attempts"`
	Reason      string    `json:"reason"`
	Transcript  []Message `json:"transcript"`
	EscalatedAt time.Time `json:"escalated_at"`
}

func NewHandoff(s ConversationSession, reason string, at time.Time) *Handoff {
	return &Handoff{
		SessionID:   s.ID,
		UserID:      s.UserID,
		Subject:     s.Subject,
		Description: s.Description,
		Attempts:    s.AttemptCount,
		Reason:      reason,
		Transcript:  s.Messages.All(),
		EscalatedAt: at,
	}
}
