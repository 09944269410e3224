package novaauth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// OTPLength is the number of digits in a challenge code.
const OTPLength = 6

// ChallengeTTL is how long an issued challenge remains valid.
const ChallengeTTL = 15 * time.Minute

var otpMax = big.NewInt(1000000)

// GenerateOTP returns a uniformly random zero-padded 6-digit code.
// Leading zeros are valid: the range is "000000" through "999999".
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpMax)
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", OTPLength, n), nil
}

// ChallengeEngine issues and validates the per-account OTP challenge.
// A challenge moves NoChallenge -> Pending -> Consumed; an expired
// pending challenge simply fails validation until a resend overwrites it.
type ChallengeEngine struct {
	Accounts AccountStore

	// TTL defaults to ChallengeTTL.
	TTL time.Duration

	// Now defaults to time.Now. Overridable for tests.
	Now func() time.Time
}

func (e *ChallengeEngine) ttl() time.Duration {
	if e.TTL > 0 {
		return e.TTL
	}
	return ChallengeTTL
}

func (e *ChallengeEngine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// NewChallenge generates a fresh code and its expiry without touching the
// store. Used at signup, where the challenge is persisted as part of the
// account create.
func (e *ChallengeEngine) NewChallenge() (code string, expiresAt time.Time, err error) {
	code, err = GenerateOTP()
	if err != nil {
		return "", time.Time{}, err
	}
	return code, e.now().Add(e.ttl()), nil
}

// Reissue overwrites the challenge on an existing unverified account and
// returns the new code. Already-verified accounts are rejected; the
// account itself is never recreated or otherwise modified.
func (e *ChallengeEngine) Reissue(email string) (string, error) {
	email = NormalizeEmail(email)
	acct, err := e.Accounts.GetByEmail(email)
	if err != nil {
		return "", err
	}
	if acct.IsVerified {
		return "", NewAuthError(ErrCodeConflict, "User already verified", "email")
	}

	code, expiresAt, err := e.NewChallenge()
	if err != nil {
		return "", err
	}
	if err := e.Accounts.SetChallenge(email, code, expiresAt); err != nil {
		return "", err
	}
	return code, nil
}

// Validate consumes the challenge for the given email iff the submitted
// code matches exactly (string equality) and the current time is strictly
// before expiry. Success clears the challenge pair and marks the account
// verified; any failure leaves the account untouched.
func (e *ChallengeEngine) Validate(email, code string) (*Account, error) {
	email = NormalizeEmail(email)
	return e.Accounts.ConsumeChallenge(email, code, e.now())
}
