package novaauth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

type accountIDKey struct{}

// Middleware guards protected routes with the bearer token. The token is
// read from the Authorization header (with or without the Bearer prefix)
// or, as a fallback, from a named cookie for non-API navigation.
type Middleware struct {
	// VerifyToken validates a token string and returns the account id it
	// is bound to. Usually TokenIssuer.Verify.
	VerifyToken func(tokenString string) (accountID string, err error)

	// AuthTokenHeaderName defaults to "Authorization".
	AuthTokenHeaderName string

	// AuthTokenCookieName is optional.
	AuthTokenCookieName string
}

func (m *Middleware) headerName() string {
	if m.AuthTokenHeaderName != "" {
		return m.AuthTokenHeaderName
	}
	return "Authorization"
}

// AuthenticatedAccountID returns the account id loaded into the request
// context by ExtractAccount/EnsureAccount, or "" when unauthenticated.
func AuthenticatedAccountID(ctx context.Context) string {
	if v, ok := ctx.Value(accountIDKey{}).(string); ok {
		return v
	}
	return ""
}

// ExtractAccount resolves the bearer token, if any, and makes the account
// id available downstream. It never rejects requests; use EnsureAccount
// to enforce authentication.
func (m *Middleware) ExtractAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, m.withAccountID(r))
	})
}

// EnsureAccount rejects requests that do not carry a valid token.
func (m *Middleware) EnsureAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = m.withAccountID(r)
		if AuthenticatedAccountID(r.Context()) == "" {
			WriteAuthError(w, NewAuthError(ErrCodeAuthentication, "Not authenticated", ""))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) withAccountID(r *http.Request) *http.Request {
	accountID := m.resolveAccountID(r)
	if accountID == "" {
		return r
	}
	return r.WithContext(context.WithValue(r.Context(), accountIDKey{}, accountID))
}

func (m *Middleware) resolveAccountID(r *http.Request) string {
	if m.VerifyToken == nil {
		slog.Warn("no token verifier configured on auth middleware")
		return ""
	}

	tokens := r.Header.Values(m.headerName())
	if m.AuthTokenCookieName != "" {
		for _, cookie := range r.CookiesNamed(m.AuthTokenCookieName) {
			if cookie.Value != "" {
				tokens = append(tokens, cookie.Value)
			}
		}
	}

	for _, token := range tokens {
		token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
		if token == "" {
			continue
		}
		accountID, err := m.VerifyToken(token)
		if err == nil && accountID != "" {
			return accountID
		}
		if err != nil {
			slog.Warn("error verifying token", "error", err)
		}
	}
	return ""
}
