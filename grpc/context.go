// Package grpc lets gRPC services sitting behind the auth service
// accept the same bearer tokens the HTTP surface issues: interceptors
// verify the token from request metadata and put the account id on the
// context.
package grpc

import (
	"context"
	"strings"

	"google.golang.org/grpc/metadata"
)

// Default metadata keys for authentication context.
const (
	// DefaultMetadataKeyToken is the default gRPC metadata key the
	// bearer token is read from.
	DefaultMetadataKeyToken = "authorization"

	// DefaultMetadataKeyAccountID is the metadata key a trusted
	// frontend can use to forward an already-verified account id.
	DefaultMetadataKeyAccountID = "x-account-id"
)

// VerifyTokenFunc validates a bearer token and returns the account id
// it was issued for.
type VerifyTokenFunc func(token string) (accountID string, err error)

// Config holds the verification and metadata key configuration.
type Config struct {
	// VerifyToken validates bearer tokens. Required for the
	// interceptors to authenticate anything.
	VerifyToken VerifyTokenFunc

	// MetadataKeyToken is the metadata key the bearer token is read
	// from. Defaults to "authorization".
	MetadataKeyToken string

	// MetadataKeyAccountID is the metadata key for a pre-verified
	// account id forwarded by a trusted frontend. Only honored when
	// TrustForwardedAccountID is set.
	MetadataKeyAccountID string

	// TrustForwardedAccountID when true accepts the account id header
	// without a token. Only enable behind a frontend that has already
	// verified the caller.
	TrustForwardedAccountID bool
}

// EnsureDefaults fills in default values for any unset fields.
func (c *Config) EnsureDefaults() {
	if c.MetadataKeyToken == "" {
		c.MetadataKeyToken = DefaultMetadataKeyToken
	}
	if c.MetadataKeyAccountID == "" {
		c.MetadataKeyAccountID = DefaultMetadataKeyAccountID
	}
}

type accountIDKey struct{}

// AccountIDFromContext returns the account id the interceptor resolved
// for this request, or empty when the caller is anonymous.
func AccountIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(accountIDKey{}).(string)
	return id
}

// IsAuthenticated reports whether the context carries a resolved
// account id.
func IsAuthenticated(ctx context.Context) bool {
	return AccountIDFromContext(ctx) != ""
}

// TokenToOutgoingContext attaches a bearer token to an outgoing gRPC
// context so a downstream interceptor can verify it.
func TokenToOutgoingContext(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, DefaultMetadataKeyToken, "Bearer "+token)
}

// resolveAccountID authenticates the incoming metadata against the
// config, returning empty when no valid credential is present.
func resolveAccountID(ctx context.Context, config *Config) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}

	if values := md.Get(config.MetadataKeyToken); len(values) > 0 && config.VerifyToken != nil {
		token := strings.TrimPrefix(values[0], "Bearer ")
		if accountID, err := config.VerifyToken(token); err == nil {
			return accountID
		}
	}

	if config.TrustForwardedAccountID {
		if values := md.Get(config.MetadataKeyAccountID); len(values) > 0 {
			return values[0]
		}
	}

	return ""
}
