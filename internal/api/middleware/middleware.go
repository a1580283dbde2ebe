package middleware

import (
	"context"
	"log/slog"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// APIGatewayHandler is a function that handles API Gateway requests
type APIGatewayHandler func(context.Context, *slog.Logger, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// Middleware wraps an APIGatewayHandler
type Middleware func(APIGatewayHandler) APIGatewayHandler

// Chain wraps h with the middlewares, the first one outermost
func Chain(h APIGatewayHandler, middlewares ...Middleware) APIGatewayHandler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// Header returns a request header, tolerating the lower-cased names HTTP APIs send
func Header(request events.APIGatewayProxyRequest, name string) string {
	if v, ok := request.Headers[name]; ok {
		return v
	}
	for k, v := range request.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
