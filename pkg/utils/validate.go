package utils

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a struct against its validate tags
func Validate[T any](value T) (T, error) {
	if err := validate.Struct(value); err != nil {
		return value, ValidationErrorToString(value, err)
	}

	return value, nil
}

// ValidateValue checks a single value against a validation tag
func ValidateValue(value any, tag string) error {
	err := validate.Var(value, tag)
	if err != nil {
		return ValidationErrorToString(value, err)
	}
	return nil
}

// BindRequest binds the request body into T and validates it. Failures are
// returned as 400s with the offending fields in the message.
func BindRequest[T any](c echo.Context) (T, error) {
	var result T

	if err := c.Bind(&result); err != nil {
		return result, httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(result); err != nil {
		return result, httperror.NewHTTPError(http.StatusBadRequest, ValidationErrorToString(result, err).Error())
	}

	return result, nil
}

func ValidationErrorToString(input any, err error) error {
	// Check if the error is a ValidationErrors type
	if verrs, ok := err.(validator.ValidationErrors); ok {
		// Build a custom error message for each field error.
		msg := ""
		for _, fe := range verrs {
			// fe.Tag() contains the validation tag that failed (e.g., "min").
			// fe.Param() contains the parameter for that tag (e.g., "10").
			// fe.Value() contains the actual value provided.
			// fe.StructField() gives the field name.
			msg += fmt.Sprintf("\n • Failed %T validation for field '%s': rule '%s' expected '%s', got '%v'.", input, fe.StructField(), fe.Tag(), fe.Param(), fe.Value())
		}
		return errors.New(msg)
	}

	return err
}
