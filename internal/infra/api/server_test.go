//go:build !integration

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"support-ticket-client/internal/domain"
	"support-ticket-client/internal/domain/ports/adapter"
	"support-ticket-client/internal/infra/api"
	"support-ticket-client/internal/infra/logging"
	"support-ticket-client/internal/usecase"
)

// scriptedBackend answers with reply, or fails when fail is set.
type scriptedBackend struct {
	reply string
	fail  bool
}

func (b *scriptedBackend) Submit(ctx context.Context, subject, text string) (adapter.TicketReply, error) {
	if b.fail {
		return adapter.TicketReply{}, domain.ErrBackend
	}
	return adapter.TicketReply{Text: b.reply}, nil
}

type sessionBody struct {
	ID                string `json:"id"`
	Phase             string `json:"phase"`
	AttemptCount      int    `json:"attempt_count"`
	RemainingAttempts int    `json:"remaining_attempts"`
	CanSend           bool   `json:"can_send"`
	Messages          []struct {
		Sender string `json:"sender"`
		Text   string `json:"text"`
	} `json:"messages"`
}

func newTestRouter(b adapter.TicketBackend) http.Handler {
	factory := usecase.NewControllerFactory(b, logging.Nop(), usecase.WithEscalationDelay(0))
	sessions := usecase.NewSessionManager(factory, nil, logging.Nop())
	return api.NewServer(sessions, logging.Nop(), false).Routes()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) sessionBody {
	t.Helper()
	var s sessionBody
	if err := json.NewDecoder(rec.Body).Decode(&s); err != nil {
		t.Fatalf("decode session: %v (%s)", err, rec.Body.String())
	}
	return s
}

type operationBody struct {
	Accepted bool        `json:"accepted"`
	Session  sessionBody `json:"session"`
}

func decodeOperation(t *testing.T, rec *httptest.ResponseRecorder) operationBody {
	t.Helper()
	var op operationBody
	if err := json.NewDecoder(rec.Body).Decode(&op); err != nil {
		t.Fatalf("decode operation: %v (%s)", err, rec.Body.String())
	}
	return op
}

func TestHealth(t *testing.T) {
	h := newTestRouter(&scriptedBackend{reply: "ok"})
	rec := do(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("unexpected health response: %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a request id header")
	}
}

func TestTicketFlow(t *testing.T) {
	h := newTestRouter(&scriptedBackend{reply: "Have you checked the power cable?"})

	s := decodeSession(t, do(t, h, http.MethodGet, "/api/v1/session", ""))
	if s.Phase != "collecting_ticket" || len(s.Messages) != 0 || s.CanSend {
		t.Fatalf("unexpected initial session: %+v", s)
	}

	rec := do(t, h, http.MethodPost, "/api/v1/ticket", `{"subject":"Printer down","description":"My printer won't turn on"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	ticket := decodeOperation(t, rec)
	if !ticket.Accepted {
		t.Fatal("ticket should be accepted")
	}
	s = ticket.Session
	if s.Phase != "active_chat" || s.AttemptCount != 1 || s.RemainingAttempts != 2 || !s.CanSend {
		t.Fatalf("unexpected session after ticket: %+v", s)
	}

	rec = do(t, h, http.MethodPost, "/api/v1/ticket", `{"subject":"Other","description":"Other"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("ticket on an open session should be 200, got %d", rec.Code)
	}
	if again := decodeOperation(t, rec); again.Accepted || again.Session.AttemptCount != 1 {
		t.Fatalf("second ticket must not be accepted: %+v", again)
	}

	for i := 0; i < 2; i++ {
		rec = do(t, h, http.MethodPost, "/api/v1/messages", `{"text":"still broken"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("send %d: %d", i, rec.Code)
		}
	}
	resp := decodeOperation(t, do(t, h, http.MethodPost, "/api/v1/messages", `{"text":"hello?"}`))
	if resp.Accepted {
		t.Fatal("send past the cap should not be accepted")
	}
	if resp.Session.Phase != "escalated" || resp.Session.RemainingAttempts != 0 {
		t.Fatalf("expected escalated session, got %+v", resp.Session)
	}
	last := resp.Session.Messages[len(resp.Session.Messages)-1]
	if last.Sender != "system" || last.Text != usecase.EscalationNotice {
		t.Fatalf("expected escalation notice last, got %+v", last)
	}

	rec = do(t, h, http.MethodPost, "/api/v1/session/reset", "")
	s = decodeSession(t, rec)
	if s.Phase != "collecting_ticket" || s.AttemptCount != 0 || len(s.Messages) != 0 {
		t.Fatalf("reset did not start a fresh session: %+v", s)
	}
}

func TestCreateTicket_ErrorMapping(t *testing.T) {
	cases := []struct {
		name    string
		backend *scriptedBackend
		body    string
		want    int
	}{
		{"bad json", &scriptedBackend{}, `{`, http.StatusBadRequest},
		{"validation", &scriptedBackend{}, `{"subject":" ","description":"x"}`, http.StatusBadRequest},
		{"backend down", &scriptedBackend{fail: true}, `{"subject":"a","description":"b"}`, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, newTestRouter(tc.backend), http.MethodPost, "/api/v1/ticket", tc.body)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), `"error"`) {
				t.Fatalf("expected error body, got %s", rec.Body.String())
			}
		})
	}
}
