package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// InterceptorConfig configures the auth interceptor behavior.
type InterceptorConfig struct {
	// Config holds the verification and metadata key configuration.
	*Config

	// RequireAuth when true rejects unauthenticated requests.
	// When false, requests proceed but AccountIDFromContext returns empty.
	RequireAuth bool

	// PublicMethods is a set of method names that don't require auth.
	// Only used when RequireAuth is true.
	// Keys should be full method names like "/package.Service/Method".
	PublicMethods map[string]bool
}

// NewInterceptorConfig returns a config that verifies tokens with the
// given func and requires auth for all methods except the listed ones.
func NewInterceptorConfig(verify VerifyTokenFunc, publicMethods ...string) *InterceptorConfig {
	config := &InterceptorConfig{
		Config:        &Config{VerifyToken: verify},
		RequireAuth:   true,
		PublicMethods: make(map[string]bool),
	}
	for _, method := range publicMethods {
		config.PublicMethods[method] = true
	}
	return config
}

// OptionalAuthConfig returns a config that allows unauthenticated
// requests through while still resolving the account id when a valid
// token is present.
func OptionalAuthConfig(verify VerifyTokenFunc) *InterceptorConfig {
	return &InterceptorConfig{
		Config:        &Config{VerifyToken: verify},
		RequireAuth:   false,
		PublicMethods: make(map[string]bool),
	}
}

// UnaryAuthInterceptor returns a gRPC unary interceptor that verifies
// the bearer token from metadata and stashes the account id on the
// context.
func UnaryAuthInterceptor(config *InterceptorConfig) grpc.UnaryServerInterceptor {
	config = normalized(config)

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		accountID := resolveAccountID(ctx, config.Config)

		if config.RequireAuth && !config.PublicMethods[info.FullMethod] {
			if accountID == "" {
				return nil, status.Error(codes.Unauthenticated, "authentication required")
			}
		}

		if accountID != "" {
			ctx = context.WithValue(ctx, accountIDKey{}, accountID)
		}
		return handler(ctx, req)
	}
}

// StreamAuthInterceptor returns the stream-side counterpart of
// UnaryAuthInterceptor.
func StreamAuthInterceptor(config *InterceptorConfig) grpc.StreamServerInterceptor {
	config = normalized(config)

	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := ss.Context()
		accountID := resolveAccountID(ctx, config.Config)

		if config.RequireAuth && !config.PublicMethods[info.FullMethod] {
			if accountID == "" {
				return status.Error(codes.Unauthenticated, "authentication required")
			}
		}

		if accountID != "" {
			ss = &wrappedStream{ServerStream: ss, ctx: context.WithValue(ctx, accountIDKey{}, accountID)}
		}
		return handler(srv, ss)
	}
}

func normalized(config *InterceptorConfig) *InterceptorConfig {
	if config == nil {
		config = &InterceptorConfig{RequireAuth: true}
	}
	if config.Config == nil {
		config.Config = &Config{}
	}
	if config.PublicMethods == nil {
		config.PublicMethods = make(map[string]bool)
	}
	config.Config.EnsureDefaults()
	return config
}

// wrappedStream overrides the stream context so handlers see the
// resolved account id.
type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedStream) Context() context.Context {
	return w.ctx
}
