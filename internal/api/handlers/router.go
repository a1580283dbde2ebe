package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/globoclima/backend/internal/api/middleware"
	"github.com/globoclima/backend/internal/api/response"
	"github.com/globoclima/backend/internal/domain/errors"
)

// BasePath is the mount point of the favorites API
const BasePath = "/api/favoritecities"

// Router dispatches API Gateway requests to the favorites handler
type Router struct {
	favorites *FavoritesHandler
	auth      middleware.AuthMiddleware
}

// NewRouter creates a new router
func NewRouter(favorites *FavoritesHandler, auth middleware.AuthMiddleware) *Router {
	return &Router{
		favorites: favorites,
		auth:      auth,
	}
}

// Handler returns the router wrapped in the standard middleware chain
func (r *Router) Handler() middleware.APIGatewayHandler {
	return middleware.Chain(r.Route,
		middleware.NewLoggingMiddleware().Handle,
		middleware.NewRecoveryMiddleware().Handle,
		r.auth.Handle,
	)
}

// Route resolves the path and method. Path parameters are written into
// request.PathParameters so handlers work the same behind a proxy resource.
func (r *Router) Route(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	requestID := request.RequestContext.RequestID

	if request.HTTPMethod == http.MethodOptions {
		return response.Preflight(), nil
	}

	segments, ok := splitPath(request.Path)
	if !ok {
		return response.NotFound("Endpoint not found", requestID), nil
	}

	if request.PathParameters == nil {
		request.PathParameters = map[string]string{}
	}

	switch {
	case len(segments) == 0:
		switch request.HTTPMethod {
		case http.MethodGet:
			return r.auth.Require(r.favorites.List)(ctx, logger, request)
		case http.MethodPost:
			return r.auth.Require(r.favorites.Create)(ctx, logger, request)
		}
		return methodNotAllowed(requestID, http.MethodGet, http.MethodPost), nil

	case len(segments) == 2 && segments[0] == "check":
		if request.HTTPMethod != http.MethodGet {
			return methodNotAllowed(requestID, http.MethodGet), nil
		}
		request.PathParameters[ParamLocationID] = segments[1]
		return r.auth.Require(r.favorites.Check)(ctx, logger, request)

	case len(segments) == 2 && segments[0] == "country":
		if request.HTTPMethod != http.MethodGet {
			return methodNotAllowed(requestID, http.MethodGet), nil
		}
		request.PathParameters[ParamCountryCode] = segments[1]
		return r.favorites.ListByCountry(ctx, logger, request)

	case len(segments) == 1:
		if request.HTTPMethod != http.MethodDelete {
			return methodNotAllowed(requestID, http.MethodDelete), nil
		}
		request.PathParameters[ParamLocationID] = segments[0]
		return r.auth.Require(r.favorites.Remove)(ctx, logger, request)
	}

	return response.NotFound("Endpoint not found", requestID), nil
}

// splitPath returns the unescaped segments below BasePath
func splitPath(path string) ([]string, bool) {
	rest, found := strings.CutPrefix(path, BasePath)
	if !found || (rest != "" && !strings.HasPrefix(rest, "/")) {
		return nil, false
	}

	rest = strings.Trim(rest, "/")
	if rest == "" {
		return []string{}, true
	}

	segments := strings.Split(rest, "/")
	for i, segment := range segments {
		if segment == "" {
			return nil, false
		}
		if unescaped, err := url.PathUnescape(segment); err == nil {
			segments[i] = unescaped
		}
	}
	return segments, true
}

func methodNotAllowed(requestID string, allowed ...string) events.APIGatewayProxyResponse {
	resp := response.Error(errors.AppError{
		Code:       "METHOD_NOT_ALLOWED",
		Message:    "Method Not Allowed",
		StatusCode: http.StatusMethodNotAllowed,
	}, requestID)
	resp.Headers["Allow"] = strings.Join(allowed, ", ")
	return resp
}
