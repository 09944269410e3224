// Package client provides the client side of novaauth: a credential
// store abstraction, an API client for the auth endpoints, and a
// session bridge that mirrors the server's notion of who is signed in.
package client

import (
	"time"

	na "github.com/novaterm/novaauth"
)

// Credential is the persisted session: the bearer token plus the
// account snapshot it was issued for. The two always travel together;
// a credential missing either half is treated as absent.
type Credential struct {
	Token   string            `json:"token"`
	Account na.AccountSummary `json:"account"`
	SavedAt time.Time         `json:"saved_at"`
}

// Complete reports whether both halves of the credential are present.
func (c *Credential) Complete() bool {
	return c != nil && c.Token != "" && c.Account.ID != ""
}

// CredentialStore defines the interface for persisting the session
// credential across restarts.
type CredentialStore interface {
	// GetCredential retrieves the stored credential.
	// Returns nil, nil if none exists.
	GetCredential() (*Credential, error)

	// SetCredential stores the credential.
	SetCredential(cred *Credential) error

	// RemoveCredential removes the stored credential.
	RemoveCredential() error

	// Save persists any pending changes (for stores that batch writes)
	Save() error
}
