package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"support-ticket-client/internal/domain"
	"support-ticket-client/internal/domain/ports/adapter"
	"support-ticket-client/internal/infra/logging"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.TicketBackend = (*HTTPTicketBackend)(nil)

const processTicketPath = "/process-ticket"

// HTTPTicketBackend submits ticket text to the support agent service.
// POST {base}/process-ticket {"subject","description"} -> {"response","status","attempts_used"}
type HTTPTicketBackend struct {
	base   string
	client *http.Client
	creds  adapter.CredentialSource
}

type Option func(*HTTPTicketBackend)

// WithCredentials attaches "Authorization: Bearer <token>" whenever src has a credential.
func WithCredentials(src adapter.CredentialSource) Option {
	return func(b *HTTPTicketBackend) { b.creds = src }
}

func WithHTTPClient(c *http.Client) Option {
	return func(b *HTTPTicketBackend) { b.client = c }
}

func NewHTTPTicketBackend(base string, timeout time.Duration, opts ...Option) (*HTTPTicketBackend, error) {
	if strings.TrimSpace(base) == "" {
		return nil, errors.New("backend base url empty")
	}
	b := &HTTPTicketBackend{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: timeout},
	}
	for _, o := range opts {
		o(b)
	}
	return b, nil
}

type processTicketRequest struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
}

func (b *HTTPTicketBackend) Submit(ctx context.Context, subject, text string) (adapter.TicketReply, error) {
	body, err := json.Marshal(processTicketRequest{Subject: subject, Description: text})
	if err != nil {
		return adapter.TicketReply{}, fmt.Errorf("%w: encode request: %v", domain.ErrBackend, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.base+processTicketPath, bytes.NewReader(body))
	if err != nil {
		return adapter.TicketReply{}, fmt.Errorf("%w: build request: %v", domain.ErrBackend, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if tid := logging.TraceID(ctx); tid != "" {
		req.Header.Set("X-Request-ID", tid)
	}
	if b.creds != nil {
		if tok, ok := b.creds.CurrentCredential(); ok {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return adapter.TicketReply{}, fmt.Errorf("%w: %v", domain.ErrBackend, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return adapter.TicketReply{}, fmt.Errorf("%w: http %d", domain.ErrBackend, resp.StatusCode)
	}

	var reply adapter.TicketReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil && !errors.Is(err, io.EOF) {
		return adapter.TicketReply{}, fmt.Errorf("%w: decode response: %v", domain.ErrBackend, err)
	}
	return reply, nil
}
