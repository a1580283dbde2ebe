package response

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/globoclima/backend/internal/domain/errors"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Success          bool             `json:"success"`
	Error            string           `json:"error"`
	ErrorDescription ErrorDescription `json:"error_description"`
	Metadata         ResponseMetadata `json:"metadata"`
}

// ErrorDescription represents the error details
type ErrorDescription struct {
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error creates an error response
func Error(appErr errors.AppError, requestID string) events.APIGatewayProxyResponse {
	response := ErrorResponse{
		Success: false,
		Error:   appErr.Code,
		ErrorDescription: ErrorDescription{
			Message: appErr.Message,
			Details: appErr.Details,
		},
		Metadata: ResponseMetadata{
			Version:   "1.0",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			RequestID: requestID,
		},
	}

	body, err := json.Marshal(response)
	if err != nil {
		// Fallback for JSON marshaling errors
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusInternalServerError,
			Body:       `{"success":false,"error":"INTERNAL_ERROR","error_description":{"message":"Failed to marshal error response"}}`,
			Headers:    DefaultHeaders(),
		}
	}

	statusCode := appErr.StatusCode
	if statusCode == 0 {
		statusCode = http.StatusInternalServerError
	}

	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Body:       string(body),
		Headers:    DefaultHeaders(),
	}
}

// FromError creates an error response for any error. Errors that are not
// AppErrors become a generic internal error so no detail leaks to the client.
func FromError(err error, requestID string) events.APIGatewayProxyResponse {
	var appErr errors.AppError
	if stderrors.As(err, &appErr) {
		// The wrapped cause is for logs only
		appErr.Err = nil
		return Error(appErr, requestID)
	}
	return Error(errors.NewInternalError("An unexpected error occurred", nil), requestID)
}

// ValidationError creates a validation error response
func ValidationError(message string, requestID string) events.APIGatewayProxyResponse {
	return Error(errors.NewValidationError(message), requestID)
}

// NotFound creates a not found error response
func NotFound(message string, requestID string) events.APIGatewayProxyResponse {
	return Error(errors.NewNotFoundError(message), requestID)
}

// AuthenticationError creates a 401 response carrying a Bearer challenge
func AuthenticationError(message string, requestID string) events.APIGatewayProxyResponse {
	resp := Error(errors.NewAuthenticationError(message), requestID)
	resp.Headers["WWW-Authenticate"] = `Bearer realm="globoclima"`
	return resp
}

// InternalError creates an internal error response
func InternalError(message string, requestID string) events.APIGatewayProxyResponse {
	return Error(errors.NewInternalError(message, nil), requestID)
}
