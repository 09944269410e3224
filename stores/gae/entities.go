//go:build !wasm
// +build !wasm

package gae

import (
	"time"

	"cloud.google.com/go/datastore"

	na "github.com/novaterm/novaauth"
)

// Kind constants for Datastore entities
const (
	KindAccount = "Account"
	KindEmail   = "AccountEmail"
)

// AccountEntity is the Datastore shape of an account, keyed by id.
type AccountEntity struct {
	Key          *datastore.Key `datastore:"__key__"`
	Name         string         `datastore:"name,noindex"`
	Email        string         `datastore:"email"`
	PasswordHash string         `datastore:"password_hash,noindex"`
	FederatedID  string         `datastore:"federated_id"`
	IsVerified   bool           `datastore:"is_verified"`
	OTPCode      string         `datastore:"otp_code,noindex"`
	OTPExpiresAt time.Time      `datastore:"otp_expires_at,noindex"`
	CreatedAt    time.Time      `datastore:"created_at"`
	UpdatedAt    time.Time      `datastore:"updated_at"`
}

func (e *AccountEntity) ToAccount() *na.Account {
	return &na.Account{
		ID:           e.Key.Name,
		Name:         e.Name,
		Email:        e.Email,
		PasswordHash: e.PasswordHash,
		FederatedID:  e.FederatedID,
		IsVerified:   e.IsVerified,
		OTPCode:      e.OTPCode,
		OTPExpiresAt: e.OTPExpiresAt,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

func (e *AccountEntity) fromAccount(acct *na.Account) {
	e.Name = acct.Name
	e.Email = acct.Email
	e.PasswordHash = acct.PasswordHash
	e.FederatedID = acct.FederatedID
	e.IsVerified = acct.IsVerified
	e.OTPCode = acct.OTPCode
	e.OTPExpiresAt = acct.OTPExpiresAt
	e.CreatedAt = acct.CreatedAt
	e.UpdatedAt = acct.UpdatedAt
}

// EmailEntity reserves a normalized email, keyed by the address itself.
// Its existence is what makes account creation race-safe.
type EmailEntity struct {
	Key       *datastore.Key `datastore:"__key__"`
	AccountID string         `datastore:"account_id,noindex"`
	CreatedAt time.Time      `datastore:"created_at,noindex"`
}
