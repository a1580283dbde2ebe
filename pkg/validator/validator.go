package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	playground "github.com/go-playground/validator/v10"

	commonErrors "github.com/globoclima/backend/internal/domain/errors"
)

// Validator provides validation functions for request data
type Validator interface {
	// Validate validates a struct or field based on validation tags
	Validate(i interface{}) error
}

// New creates a new validator. Field names in errors follow the json tags of
// the validated struct.
func New() Validator {
	validate := playground.New(playground.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return &tagValidator{validate: validate}
}

type tagValidator struct {
	validate *playground.Validate
}

// Validate returns a validation AppError carrying one detail per failing field
func (v *tagValidator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var fieldErrors playground.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return commonErrors.NewValidationError("invalid request")
	}

	messages := make([]string, 0, len(fieldErrors))
	appErr := commonErrors.NewValidationError("")
	for _, fieldErr := range fieldErrors {
		message := fieldMessage(fieldErr)
		messages = append(messages, message)
		appErr = appErr.WithDetail(fieldErr.Field(), message)
	}
	appErr.Message = strings.Join(messages, "; ")
	return appErr
}

func fieldMessage(err playground.FieldError) string {
	field := err.Field()
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", field, err.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", field, err.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters long", field, err.Param())
	case "alpha":
		return fmt.Sprintf("%s must contain only alphabetic characters", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
