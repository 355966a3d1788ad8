package adapter

import "support-ticket-client/internal/domain/model"

// IdentityProvider supplies the current credential and user, and tells
// subscribers when the user is no longer authenticated.
type IdentityProvider interface {
	CredentialSource
	CurrentUser() (*model.Identity, bool)
	OnUnauthenticated(fn func())
}
