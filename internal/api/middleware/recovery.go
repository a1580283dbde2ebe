package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/aws/aws-lambda-go/events"

	"github.com/globoclima/backend/internal/api/response"
	"github.com/globoclima/backend/internal/domain/errors"
)

// RecoveryMiddleware is a middleware for recovering from panics
type RecoveryMiddleware struct{}

// NewRecoveryMiddleware creates a new recovery middleware
func NewRecoveryMiddleware() RecoveryMiddleware {
	return RecoveryMiddleware{}
}

// Handle turns panics and returned errors into JSON error responses
func (m RecoveryMiddleware) Handle(next APIGatewayHandler) APIGatewayHandler {
	return func(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (resp events.APIGatewayProxyResponse, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("PANIC",
					"panic", fmt.Sprint(r),
					"stack", string(debug.Stack()),
				)
				resp = response.InternalError("An unexpected error occurred", request.RequestContext.RequestID)
				err = nil
			}
		}()

		resp, err = next(ctx, logger, request)
		if err != nil {
			appErr := errors.As(err)
			if appErr.StatusCode >= 500 {
				logger.Error("request failed", "code", appErr.Code, "error", err)
			} else {
				logger.Info("request rejected", "code", appErr.Code, "error", err)
			}

			return response.FromError(appErr, request.RequestContext.RequestID), nil
		}

		return resp, nil
	}
}
