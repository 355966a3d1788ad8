package adapter

import "context"

// TicketReply is the automated responder's answer to one submission.
// Text is empty when the backend returned no response text.
type TicketReply struct {
	Text         string `json:"response,omitempty"`
	Status       string `json:"status,omitempty"`
	AttemptsUsed int    `json:"attempts_used,omitempty"`
}

// TicketBackend is the port for the Ticket Backend Service.
// Submit performs exactly one request; it never retries or caches.
// Failures are returned wrapped in domain.ErrBackend.
type TicketBackend interface {
	Submit(ctx context.Context, subject, text string) (TicketReply, error)
}

// CredentialSource yields the bearer credential to attach to outbound calls.
type CredentialSource interface {
	CurrentCredential() (string, bool)
}
