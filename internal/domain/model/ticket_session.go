// File: internal/domain/model/ticket_session.go
package model

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"support-ticket-client/internal/domain"
)

// MaxAttempts bounds the automated round trips of one session.
const MaxAttempts = 3

type ConversationPhase string

const (
	PhaseCollectingTicket ConversationPhase = "collecting_ticket"
	PhaseActiveChat       ConversationPhase = "active_chat"
	PhaseEscalated        ConversationPhase = "escalated"
)

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
	SenderSystem    Sender = "system"
)

// Message is one exchanged utterance. It is never modified after being appended.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationSession is the aggregate for one ticket's automated conversation.
type ConversationSession struct {
	ID           string            `json:"id"`
	UserID       string            `json:"user_id,omitempty"`
	Phase        ConversationPhase `json:"phase"`
	Subject      string            `json:"subject,omitempty"`
	Description  string            `json:"description,omitempty"`
	Messages     MessageLog        `json:"messages"`
	AttemptCount int               `json:"attempt_count"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func NewConversationSession(id, userID string, now time.Time) *ConversationSession {
	return &ConversationSession{
		ID:        id,
		UserID:    userID,
		Phase:     PhaseCollectingTicket,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ValidateTicket rejects a subject or description that is blank after trimming.
func ValidateTicket(subject, description string) error {
	if strings.TrimSpace(subject) == "" {
		return fmt.Errorf("%w: subject is required", domain.ErrValidation)
	}
	if strings.TrimSpace(description) == "" {
		return fmt.Errorf("%w: description is required", domain.ErrValidation)
	}
	return nil
}

// OpenTicket records the ticket fields and moves the session into active chat.
// It is only legal while collecting the ticket.
func (s *ConversationSession) OpenTicket(subject, description string) error {
	if s.Phase != PhaseCollectingTicket {
		return fmt.Errorf("%w: ticket already opened", domain.ErrInvalidArgument)
	}
	s.Subject = subject
	s.Description = description
	s.Phase = PhaseActiveChat
	return nil
}

// CanChat reports whether another automated round trip is allowed.
func (s *ConversationSession) CanChat() bool {
	return s.Phase == PhaseActiveChat && s.AttemptCount < MaxAttempts
}

// ConsumeAttempt counts one round trip and reports whether the budget is now exhausted.
func (s *ConversationSession) ConsumeAttempt() bool {
	if s.AttemptCount < MaxAttempts {
		s.AttemptCount++
	}
	return s.AttemptCount >= MaxAttempts
}

func (s *ConversationSession) Escalate() {
	s.Phase = PhaseEscalated
}

// AddMessage appends a message stamped with at, clamped so timestamps never go backwards.
func (s *ConversationSession) AddMessage(sender Sender, text string, at time.Time) Message {
	if last, ok := s.Messages.Last(); ok && at.Before(last.Timestamp) {
		at = last.Timestamp
	}
	m := Message{
		ID:        newMessageID(at),
		SessionID: s.ID,
		Sender:    sender,
		Text:      text,
		Timestamp: at,
	}
	s.Messages.Append(m)
	s.UpdatedAt = at
	return m
}

// Clone returns a deep copy safe to hand to readers.
func (s *ConversationSession) Clone() ConversationSession {
	cp := *s
	cp.Messages = MessageLog{msgs: s.Messages.All()}
	return cp
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

func newMessageID(at time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), entropy).String()
}
