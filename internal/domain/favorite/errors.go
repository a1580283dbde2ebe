package favorite

import (
	commonErrors "github.com/globoclima/backend/internal/domain/errors"
)

// Sentinels for errors.Is. AppError values match on their code, so any
// validation, conflict or storage error raised by this package or its stores
// satisfies the corresponding sentinel.
var (
	ErrInvalidArgument    = commonErrors.AppError{Code: commonErrors.CodeValidation}
	ErrAlreadyExists      = commonErrors.AppError{Code: commonErrors.CodeConflict}
	ErrStorageUnavailable = commonErrors.AppError{Code: commonErrors.CodeStorageUnavailable}
)

// AlreadyExistsError reports a duplicate favorite for the same user and location.
func AlreadyExistsError(locationID string) error {
	return commonErrors.NewConflictError("City is already in favorites").
		WithDetail("locationId", locationID)
}
