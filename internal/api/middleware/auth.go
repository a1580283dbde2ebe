package middleware

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/globoclima/backend/internal/api/response"
	"github.com/globoclima/backend/internal/common/utils"
	"github.com/globoclima/backend/internal/domain/errors"
	"github.com/globoclima/backend/internal/platform/cognito"
)

// UserContextKey is the key for the caller in the request context
type UserContextKey string

// UserContextKeyValue is the context key for the caller
const UserContextKeyValue UserContextKey = "user"

// authFailureKey holds the error from a bearer token that could not be resolved
const authFailureKey UserContextKey = "authFailure"

// Where the caller identity came from
const (
	SourceAuthorizerClaims  = "authorizer_claims"
	SourceAuthorizerContext = "authorizer_context"
	SourceAccessToken       = "access_token"
)

// Caller is the authenticated user behind a request
type Caller struct {
	UserID string
	Email  string
	Source string
}

// IdentityResolver resolves a bearer access token to a user pool identity
type IdentityResolver interface {
	Resolve(ctx context.Context, accessToken string) (cognito.Identity, error)
}

// AuthMiddleware is a middleware that identifies the caller
type AuthMiddleware struct {
	resolver IdentityResolver
	log      *zap.Logger
}

// NewAuthMiddleware creates a new auth middleware. resolver may be nil, in
// which case only identities supplied by an API Gateway authorizer are used.
func NewAuthMiddleware(resolver IdentityResolver, log *zap.Logger) AuthMiddleware {
	return AuthMiddleware{
		resolver: resolver,
		log:      log,
	}
}

// Handle attaches the caller to the context when one can be identified. It
// never rejects a request; Require does that for protected routes. A token
// that cannot be resolved leaves the request anonymous and the failure is
// kept for Require.
func (m AuthMiddleware) Handle(next APIGatewayHandler) APIGatewayHandler {
	return func(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		if request.HTTPMethod == http.MethodOptions {
			return next(ctx, logger, request)
		}

		caller, ok := callerFromAuthorizer(request.RequestContext.Authorizer)
		if !ok && m.resolver != nil {
			if authHeader := Header(request, "Authorization"); authHeader != "" {
				identity, err := m.resolve(ctx, authHeader)
				if err != nil {
					m.log.Warn("Token validation failed", zap.Error(err), zap.String("requestId", request.RequestContext.RequestID))
					ctx = context.WithValue(ctx, authFailureKey, err)
				} else {
					caller = Caller{UserID: identity.UserID, Email: identity.Email, Source: SourceAccessToken}
					ok = true
				}
			}
		}

		if ok {
			m.log.Debug("caller identified", zap.String("userId", caller.UserID), zap.String("source", caller.Source))
			ctx = context.WithValue(ctx, UserContextKeyValue, caller)
		}

		return next(ctx, logger, request)
	}
}

func (m AuthMiddleware) resolve(ctx context.Context, authHeader string) (cognito.Identity, error) {
	token, err := utils.ExtractBearerToken(authHeader)
	if err != nil {
		return cognito.Identity{}, errors.NewAuthenticationError(err.Error())
	}
	return m.resolver.Resolve(ctx, token)
}

// Require rejects requests without an identified caller. A rejected token
// answers 401 with its reason; a resolver outage is returned as an error.
func (m AuthMiddleware) Require(next APIGatewayHandler) APIGatewayHandler {
	return func(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		if GetUserID(ctx) == "" {
			if failure, ok := ctx.Value(authFailureKey).(error); ok {
				var appErr errors.AppError
				if !stderrors.As(failure, &appErr) || appErr.Code != errors.CodeAuthentication {
					return events.APIGatewayProxyResponse{}, failure
				}
				return response.AuthenticationError(appErr.Message, request.RequestContext.RequestID), nil
			}
			m.log.Info("unauthenticated request rejected",
				zap.String("method", request.HTTPMethod),
				zap.String("path", request.Path),
				zap.String("requestId", request.RequestContext.RequestID),
			)
			return response.AuthenticationError("authentication required", request.RequestContext.RequestID), nil
		}
		return next(ctx, logger, request)
	}
}

// callerFromAuthorizer reads the identity set by an API Gateway authorizer.
// Cognito user pool authorizers nest the token claims under "claims"; the
// Lambda authorizer puts its context values at the top level. The user id is
// "sub", falling back to "email".
func callerFromAuthorizer(authorizer map[string]interface{}) (Caller, bool) {
	if authorizer == nil {
		return Caller{}, false
	}

	if claims, ok := authorizer["claims"].(map[string]interface{}); ok {
		if caller, ok := callerFromValues(claims, SourceAuthorizerClaims); ok {
			return caller, true
		}
	}

	return callerFromValues(authorizer, SourceAuthorizerContext)
}

func callerFromValues(values map[string]interface{}, source string) (Caller, bool) {
	sub, _ := values["sub"].(string)
	email, _ := values["email"].(string)

	switch {
	case sub != "":
		return Caller{UserID: sub, Email: email, Source: source}, true
	case email != "":
		return Caller{UserID: email, Email: email, Source: source}, true
	default:
		return Caller{}, false
	}
}

// GetCaller gets the caller from the request context
func GetCaller(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(UserContextKeyValue).(Caller)
	return caller, ok
}

// GetUserID gets the user ID from the request context
func GetUserID(ctx context.Context) string {
	caller, ok := GetCaller(ctx)
	if !ok {
		return ""
	}
	return caller.UserID
}
