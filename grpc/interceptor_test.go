package grpc

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func testVerify(token string) (string, error) {
	if token == "valid-token" {
		return "account-42", nil
	}
	return "", errors.New("bad token")
}

func callUnary(t *testing.T, interceptor grpc.UnaryServerInterceptor, ctx context.Context, method string) (string, error) {
	t.Helper()
	var seenID string
	_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: method},
		func(ctx context.Context, req interface{}) (interface{}, error) {
			seenID = AccountIDFromContext(ctx)
			return nil, nil
		})
	return seenID, err
}

func ctxWithToken(token string) context.Context {
	md := metadata.Pairs(DefaultMetadataKeyToken, "Bearer "+token)
	return metadata.NewIncomingContext(context.Background(), md)
}

func TestUnaryAuthInterceptor(t *testing.T) {
	interceptor := UnaryAuthInterceptor(NewInterceptorConfig(testVerify, "/svc.Auth/Login"))

	t.Run("valid token", func(t *testing.T) {
		id, err := callUnary(t, interceptor, ctxWithToken("valid-token"), "/svc.Api/Get")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id != "account-42" {
			t.Errorf("account id = %q", id)
		}
	})

	t.Run("missing token rejected", func(t *testing.T) {
		_, err := callUnary(t, interceptor, context.Background(), "/svc.Api/Get")
		if status.Code(err) != codes.Unauthenticated {
			t.Errorf("expected Unauthenticated, got %v", err)
		}
	})

	t.Run("invalid token rejected", func(t *testing.T) {
		_, err := callUnary(t, interceptor, ctxWithToken("garbage"), "/svc.Api/Get")
		if status.Code(err) != codes.Unauthenticated {
			t.Errorf("expected Unauthenticated, got %v", err)
		}
	})

	t.Run("public method passes without token", func(t *testing.T) {
		_, err := callUnary(t, interceptor, context.Background(), "/svc.Auth/Login")
		if err != nil {
			t.Errorf("public method rejected: %v", err)
		}
	})
}

func TestOptionalAuth(t *testing.T) {
	interceptor := UnaryAuthInterceptor(OptionalAuthConfig(testVerify))

	id, err := callUnary(t, interceptor, context.Background(), "/svc.Api/Get")
	if err != nil {
		t.Fatalf("anonymous request rejected: %v", err)
	}
	if id != "" {
		t.Errorf("expected empty account id, got %q", id)
	}

	id, err = callUnary(t, interceptor, ctxWithToken("valid-token"), "/svc.Api/Get")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "account-42" {
		t.Errorf("account id = %q", id)
	}
}

func TestStreamAuthInterceptor(t *testing.T) {
	interceptor := StreamAuthInterceptor(NewInterceptorConfig(testVerify))

	t.Run("valid token reaches handler with account id", func(t *testing.T) {
		ss := &fakeStream{ctx: ctxWithToken("valid-token")}
		var seenID string
		err := interceptor(nil, ss, &grpc.StreamServerInfo{FullMethod: "/svc.Api/Watch"},
			func(srv interface{}, stream grpc.ServerStream) error {
				seenID = AccountIDFromContext(stream.Context())
				return nil
			})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seenID != "account-42" {
			t.Errorf("account id = %q", seenID)
		}
	})

	t.Run("missing token rejected", func(t *testing.T) {
		ss := &fakeStream{ctx: context.Background()}
		err := interceptor(nil, ss, &grpc.StreamServerInfo{FullMethod: "/svc.Api/Watch"},
			func(srv interface{}, stream grpc.ServerStream) error { return nil })
		if status.Code(err) != codes.Unauthenticated {
			t.Errorf("expected Unauthenticated, got %v", err)
		}
	})
}

type fakeStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (f *fakeStream) Context() context.Context { return f.ctx }
