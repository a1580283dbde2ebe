package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/globoclima/backend/internal/platform/metrics"
)

// LoggingMiddleware is a middleware for logging requests and responses
type LoggingMiddleware struct{}

// NewLoggingMiddleware creates a new logging middleware
func NewLoggingMiddleware() LoggingMiddleware {
	return LoggingMiddleware{}
}

// Handle logs the request and response and records the request duration
func (m LoggingMiddleware) Handle(next APIGatewayHandler) APIGatewayHandler {
	return func(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		startTime := time.Now()

		logger = logger.With("requestId", request.RequestContext.RequestID)
		logRequest(ctx, request, logger)

		response, err := next(ctx, logger, request)

		duration := time.Since(startTime)
		logResponse(ctx, response, err, duration, logger)
		metrics.ObserveRequest(request.HTTPMethod, routeLabel(request), strconv.Itoa(response.StatusCode), duration.Seconds())

		return response, err
	}
}

// routeLabel prefers the resource template so path parameters do not explode label cardinality
func routeLabel(request events.APIGatewayProxyRequest) string {
	if request.Resource != "" {
		return request.Resource
	}
	return request.Path
}

// logRequest logs the request
func logRequest(ctx context.Context, request events.APIGatewayProxyRequest, logger *slog.Logger) {
	maskedHeaders := maskSensitiveHeaders(request.Headers)

	logger.Info("REQUEST",
		"method", request.HTTPMethod,
		"path", request.Path,
		"queryParameters", request.QueryStringParameters,
		"headers", maskedHeaders)

	if request.Body != "" && logger.Enabled(ctx, slog.LevelDebug) {
		logger.Debug("REQUEST", "Body", compactBody(request.Body))
	}
}

// logResponse logs the response
func logResponse(ctx context.Context, response events.APIGatewayProxyResponse, err error, duration time.Duration, logger *slog.Logger) {
	if err != nil {
		logger.Info("ERROR", "error", err)
	}

	logger.Info("RESPONSE",
		"status", response.StatusCode,
		"duration", duration,
	)

	if response.Body != "" && logger.Enabled(ctx, slog.LevelDebug) {
		logger.Debug("RESPONSE", "Body", compactBody(response.Body))
	}
}

// compactBody re-encodes JSON bodies on one line, leaving other bodies untouched
func compactBody(body string) string {
	var parsed interface{}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return body
	}
	compacted, err := json.Marshal(parsed)
	if err != nil {
		return body
	}
	return string(compacted)
}

// maskSensitiveHeaders masks sensitive headers
func maskSensitiveHeaders(headers map[string]string) map[string]string {
	sensitiveHeaders := []string{
		"authorization",
		"x-api-key",
		"cookie",
	}

	maskedHeaders := make(map[string]string, len(headers))
	for k, v := range headers {
		maskedHeaders[k] = v
		for _, header := range sensitiveHeaders {
			if strings.EqualFold(k, header) {
				maskedHeaders[k] = "***"
				break
			}
		}
	}

	return maskedHeaders
}
