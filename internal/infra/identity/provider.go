package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"support-ticket-client/internal/domain"
	"support-ticket-client/internal/domain/model"
	"support-ticket-client/internal/domain/ports/adapter"
)

var _ adapter.IdentityProvider = (*Provider)(nil)

// credentialClaims are read without verification: the signing secret lives
// on the backend, the client only needs the subject and expiry.
type credentialClaims struct {
	UserID any    `json:"user_id,omitempty"`
	Name   string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Provider holds the bearer credential and the user it belongs to.
// Credentials are opaque; when one parses as a JWT its subject and expiry are used.
type Provider struct {
	base   string
	client *http.Client
	log    *zerolog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	token     string
	user      *model.Identity
	expiresAt time.Time
	subs      []func()
}

func NewProvider(base string, timeout time.Duration, logger *zerolog.Logger) *Provider {
	l := logger.With().Str("component", "IdentityProvider").Logger()
	return &Provider{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: timeout},
		log:    &l,
		now:    time.Now,
	}
}

func (p *Provider) CurrentCredential() (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token, p.token != ""
}

func (p *Provider) CurrentUser() (*model.Identity, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.user == nil {
		return nil, false
	}
	cp := *p.user
	return &cp, true
}

// OnUnauthenticated registers fn to run every time the user is logged out.
func (p *Provider) OnUnauthenticated(fn func()) {
	if fn == nil {
		return
	}
	p.mu.Lock()
	p.subs = append(p.subs, fn)
	p.mu.Unlock()
}

// SetCredential installs token. A JWT's subject becomes the provisional
// identity; an expired JWT is rejected. When verify is set the identity is
// confirmed against GET /user and a failure logs the user out.
func (p *Provider) SetCredential(ctx context.Context, token string, verify bool) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: empty credential", domain.ErrUnauthenticated)
	}
	var (
		provisional *model.Identity
		exp         time.Time
	)
	claims := &credentialClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		if claims.ExpiresAt != nil {
			exp = claims.ExpiresAt.Time
			if !exp.After(p.now()) {
				return fmt.Errorf("%w: credential expired", domain.ErrUnauthenticated)
			}
		}
		if claims.Subject != "" {
			provisional = &model.Identity{ID: claimUserID(claims), Name: claims.Name, Email: claims.Subject}
		}
	}

	p.mu.Lock()
	p.token = token
	p.user = provisional
	p.expiresAt = exp
	p.mu.Unlock()

	if !verify {
		return nil
	}
	if err := p.Refresh(ctx); err != nil {
		p.Logout()
		return err
	}
	return nil
}

func claimUserID(c *credentialClaims) string {
	switch v := c.UserID.(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return c.Subject
}

// Refresh fetches the current user for the installed credential.
func (p *Provider) Refresh(ctx context.Context) error {
	tok, ok := p.CurrentCredential()
	if !ok {
		return domain.ErrUnauthenticated
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.base+"/user", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: fetch user: %v", domain.ErrBackend, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: http %d", domain.ErrUnauthenticated, resp.StatusCode)
	case resp.StatusCode >= 300:
		return fmt.Errorf("%w: fetch user: http %d", domain.ErrBackend, resp.StatusCode)
	}

	var raw struct {
		ID             json.Number `json:"id"`
		Name           string      `json:"name"`
		Email          string      `json:"email"`
		ProfilePicture string      `json:"profilePicture"`
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("%w: decode user: %v", domain.ErrBackend, err)
	}
	u := &model.Identity{ID: raw.ID.String(), Name: raw.Name, Email: raw.Email, ProfilePicture: raw.ProfilePicture}

	p.mu.Lock()
	if p.token == tok {
		p.user = u
	}
	p.mu.Unlock()
	p.log.Debug().Str("user_id", u.ID).Msg("identity refreshed")
	return nil
}

// Logout clears the credential and notifies subscribers.
func (p *Provider) Logout() {
	p.mu.Lock()
	p.token = ""
	p.user = nil
	p.expiresAt = time.Time{}
	subs := append([]func(){}, p.subs...)
	p.mu.Unlock()

	p.log.Info().Msg("user unauthenticated")
	for _, fn := range subs {
		fn()
	}
}

// ExpireIfStale logs the user out when the credential's expiry has passed.
// It reports whether a logout happened.
func (p *Provider) ExpireIfStale() bool {
	p.mu.RLock()
	stale := p.token != "" && !p.expiresAt.IsZero() && !p.expiresAt.After(p.now())
	p.mu.RUnlock()
	if !stale {
		return false
	}
	p.Logout()
	return true
}
