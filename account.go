package novaauth

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store sentinel errors. Implementations must return these (possibly
// wrapped) so flows can tell business failures from infrastructure ones.
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrChallengeMismatch = errors.New("challenge code mismatch or expired")
)

// Account is the single persisted entity: a user account identified by
// email, optionally carrying a password hash (local credential), a
// federated provider id (OAuth credential), and an outstanding OTP
// challenge while email verification is pending.
type Account struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash,omitempty"`
	FederatedID  string    `json:"federated_id,omitempty"`
	IsVerified   bool      `json:"is_verified"`
	OTPCode      string    `json:"otp_code,omitempty"`
	OTPExpiresAt time.Time `json:"otp_expires_at,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasPassword reports whether the account carries a local credential.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != ""
}

// ChallengePending reports whether an unexpired OTP challenge is
// outstanding at the given instant.
func (a *Account) ChallengePending(now time.Time) bool {
	return a.OTPCode != "" && now.Before(a.OTPExpiresAt)
}

// Summary is the only account shape ever serialized to clients. The
// password hash and challenge fields stay server-side.
func (a *Account) Summary() AccountSummary {
	return AccountSummary{ID: a.ID, Name: a.Name, Email: a.Email}
}

// AccountSummary is the {id, name, email} triple exposed to callers.
type AccountSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AccountStore is the persistence contract for accounts.
//
// Uniqueness of email is the store's job: Create must fail with
// ErrDuplicateEmail atomically rather than relying on a prior existence
// check. ConsumeChallenge must be a conditional update so that two racing
// verifications of the same challenge cannot both win.
type AccountStore interface {
	// GetByID retrieves an account by its id.
	GetByID(id string) (*Account, error)

	// GetByEmail retrieves an account by normalized email.
	GetByEmail(email string) (*Account, error)

	// GetByFederatedID retrieves an account by its external provider id.
	GetByFederatedID(providerID string) (*Account, error)

	// Create persists a new account. Returns ErrDuplicateEmail if an
	// account with the same email already exists.
	Create(acct *Account) error

	// Save updates an existing account.
	Save(acct *Account) error

	// SetChallenge overwrites the OTP challenge pair on the account with
	// the given email. Any prior challenge is discarded.
	SetChallenge(email, code string, expiresAt time.Time) error

	// ConsumeChallenge atomically clears the challenge pair and marks the
	// account verified, but only if the stored code equals the submitted
	// code and now is strictly before the stored expiry. Returns the
	// updated account, ErrChallengeMismatch when the condition fails, or
	// ErrAccountNotFound.
	ConsumeChallenge(email, code string, now time.Time) (*Account, error)

	// LinkFederatedID sets the federated provider id on an existing
	// account, leaving all other fields untouched.
	LinkFederatedID(accountID, providerID string) error
}

// NormalizeEmail lowercases and trims an email so uniqueness is
// case-insensitive everywhere.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewAccountID generates a new unique account id.
func NewAccountID() string {
	return uuid.NewString()
}
