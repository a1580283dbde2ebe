package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/globoclima/backend/internal/api/middleware"
	"github.com/globoclima/backend/internal/api/response"
	"github.com/globoclima/backend/internal/domain/errors"
	"github.com/globoclima/backend/internal/domain/favorite"
	"github.com/globoclima/backend/internal/platform/metrics"
	"github.com/globoclima/backend/pkg/validator"
)

// Path parameter names filled by API Gateway or by the Router
const (
	ParamLocationID  = "locationId"
	ParamCountryCode = "countryCode"
)

// Operation names used in logs and metrics
const (
	OpAddFavorite    = "add_favorite"
	OpListFavorites  = "list_favorites"
	OpRemoveFavorite = "remove_favorite"
	OpCheckFavorite  = "check_favorite"
	OpListByCountry  = "list_favorites_by_country"
)

// FavoritesHandler handles the favorite city endpoints
type FavoritesHandler struct {
	service   *favorite.Service
	validator validator.Validator
}

// NewFavoritesHandler creates a new favorites handler
func NewFavoritesHandler(service *favorite.Service, validator validator.Validator) *FavoritesHandler {
	return &FavoritesHandler{
		service:   service,
		validator: validator,
	}
}

// Create handles POST /api/favoritecities
func (h *FavoritesHandler) Create(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	requestID := request.RequestContext.RequestID

	var req favorite.CreateFavoriteCityRequest
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		metrics.RecordOperation(OpAddFavorite, metrics.OutcomeRejected)
		return response.ValidationError("Invalid request body", requestID), nil
	}

	if err := h.validator.Validate(req); err != nil {
		return h.fail(logger, OpAddFavorite, err, requestID), nil
	}

	result, err := h.service.AddFavorite(ctx, middleware.GetUserID(ctx), req)
	if err != nil {
		return h.fail(logger, OpAddFavorite, err, requestID), nil
	}

	logger.Info("favorite added", "locationId", result.LocationID)
	metrics.RecordOperation(OpAddFavorite, metrics.OutcomeSuccess)
	return response.RawCreated(result, requestID), nil
}

// List handles GET /api/favoritecities
func (h *FavoritesHandler) List(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	requestID := request.RequestContext.RequestID

	results, err := h.service.ListUserFavorites(ctx, middleware.GetUserID(ctx))
	if err != nil {
		return h.fail(logger, OpListFavorites, err, requestID), nil
	}

	metrics.RecordOperation(OpListFavorites, metrics.OutcomeSuccess)
	return response.RawOK(results, requestID), nil
}

// Remove handles DELETE /api/favoritecities/{locationId}
func (h *FavoritesHandler) Remove(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	requestID := request.RequestContext.RequestID
	locationID := request.PathParameters[ParamLocationID]

	removed, err := h.service.RemoveFavorite(ctx, middleware.GetUserID(ctx), locationID)
	if err != nil {
		return h.fail(logger, OpRemoveFavorite, err, requestID), nil
	}
	if !removed {
		metrics.RecordOperation(OpRemoveFavorite, metrics.OutcomeRejected)
		return response.NotFound("Favorite city not found", requestID), nil
	}

	logger.Info("favorite removed", "locationId", locationID)
	metrics.RecordOperation(OpRemoveFavorite, metrics.OutcomeSuccess)
	return response.NoContent(), nil
}

// Check handles GET /api/favoritecities/check/{locationId}. The body is a bare JSON boolean.
func (h *FavoritesHandler) Check(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	requestID := request.RequestContext.RequestID

	isFavorite, err := h.service.IsFavorite(ctx, middleware.GetUserID(ctx), request.PathParameters[ParamLocationID])
	if err != nil {
		return h.fail(logger, OpCheckFavorite, err, requestID), nil
	}

	metrics.RecordOperation(OpCheckFavorite, metrics.OutcomeSuccess)
	return response.RawOK(isFavorite, requestID), nil
}

// ListByCountry handles GET /api/favoritecities/country/{countryCode}. It is
// anonymous and serves an empty list when the country index is unavailable.
func (h *FavoritesHandler) ListByCountry(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	requestID := request.RequestContext.RequestID

	results, err := h.service.ListByCountry(ctx, request.PathParameters[ParamCountryCode])
	if err != nil {
		return h.fail(logger, OpListByCountry, err, requestID), nil
	}

	metrics.RecordOperation(OpListByCountry, metrics.OutcomeSuccess)
	return response.RawOK(results, requestID), nil
}

// fail converts a service error into an error response
func (h *FavoritesHandler) fail(logger *slog.Logger, operation string, err error, requestID string) events.APIGatewayProxyResponse {
	appErr := errors.As(err)
	if appErr.StatusCode >= http.StatusInternalServerError || appErr.StatusCode == 0 {
		logger.Error("favorite operation failed", "operation", operation, "error", err)
		metrics.RecordOperation(operation, metrics.OutcomeError)
	} else {
		logger.Info("favorite operation rejected", "operation", operation, "code", appErr.Code, "message", appErr.Message)
		metrics.RecordOperation(operation, metrics.OutcomeRejected)
	}

	return response.FromError(appErr, requestID)
}
