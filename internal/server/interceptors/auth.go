package interceptors

import (
	"context"
	"net/http"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"authcore/internal/autherr"
	"authcore/internal/identity/domain"
)

// Authenticator turns an Authorization header value into a verified Principal.
type Authenticator interface {
	Authenticate(ctx context.Context, header string) (*domain.Principal, error)
}

// AuthUnary returns a unary server interceptor that authenticates the Bearer access token
// from gRPC metadata and stores the Principal in context for protected RPCs.
// publicMethods is the set of full method names that do not require a token
// (e.g. the gRPC health check). A valid token on a public method still populates the context.
func AuthUnary(auth Authenticator, publicMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		p, err := auth.Authenticate(ctx, authorizationHeader(ctx))
		if err != nil {
			if publicMethods[info.FullMethod] {
				return handler(ctx, req)
			}
			return nil, GRPCError(err)
		}
		return handler(WithPrincipal(ctx, p), req)
	}
}

// GRPCError converts an auth error into a gRPC status carrying only the public message.
func GRPCError(err error) error {
	if err == nil {
		return nil
	}
	kind := autherr.KindOf(err)
	var code codes.Code
	switch autherr.HTTPStatus(kind) {
	case http.StatusUnauthorized:
		code = codes.Unauthenticated
	case http.StatusForbidden:
		code = codes.PermissionDenied
	case http.StatusBadRequest:
		code = codes.InvalidArgument
	case http.StatusNotFound:
		code = codes.NotFound
	case http.StatusConflict:
		code = codes.AlreadyExists
	case http.StatusServiceUnavailable:
		code = codes.Unavailable
	default:
		code = codes.Internal
	}
	return status.Error(code, autherr.PublicMessage(err))
}

func authorizationHeader(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	return firstValue(md.Get("authorization"))
}
