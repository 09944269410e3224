package novaauth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenValidity is the fixed lifetime of issued bearer tokens. There is
// no revocation list; expiry is the only invalidation mechanism.
const TokenValidity = 30 * 24 * time.Hour

// TokenIssuer mints and verifies the stateless HS256 bearer tokens that
// carry the account id as their sole claim.
type TokenIssuer struct {
	secretKey []byte
	issuer    string
	validity  time.Duration

	// now is overridable for tests.
	now func() time.Time
}

// NewTokenIssuer creates an issuer. A missing secret key is a
// configuration fault: the constructor errors so the process fails at
// startup instead of ever emitting an unsigned or null token.
func NewTokenIssuer(secretKey, issuer string) (*TokenIssuer, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("signing key is missing")
	}
	return &TokenIssuer{
		secretKey: []byte(secretKey),
		issuer:    issuer,
		validity:  TokenValidity,
		now:       time.Now,
	}, nil
}

// Issue mints a signed token for the account id, valid for 30 days.
func (t *TokenIssuer) Issue(accountID string) (string, error) {
	if accountID == "" {
		return "", fmt.Errorf("account id is required")
	}
	now := t.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": accountID,
		"iss": t.issuer,
		"iat": now.Unix(),
		"exp": now.Add(t.validity).Unix(),
	})
	signed, err := token.SignedString(t.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses the token, checks its signature and expiry, and returns
// the account id it was bound to.
func (t *TokenIssuer) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secretKey, nil
	}, jwt.WithTimeFunc(func() time.Time { return t.now() }))
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims == nil {
		return "", fmt.Errorf("claims is not a map")
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return "", err
	}
	if sub == "" {
		return "", fmt.Errorf("subject not found")
	}
	return sub, nil
}

// VerifyFunc adapts the issuer to the callback shape the middleware and
// gRPC interceptors take.
func (t *TokenIssuer) VerifyFunc() func(tokenString string) (string, error) {
	return t.Verify
}
