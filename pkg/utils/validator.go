package utils

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/turtacn/pushgate/pkg/constants"
	"github.com/turtacn/pushgate/pkg/errors"
)

// Validator holds the singleton instance of the validator.
var defaultValidator *validator.Validate

func init() {
	defaultValidator = validator.New()
	defaultValidator.RegisterTagNameFunc(jsonFieldName)
	// Register custom validation functions
	_ = defaultValidator.RegisterValidation("identity", validateIdentity)
	_ = defaultValidator.RegisterValidation("recipient", validateRecipient)
}

// ValidateStruct validates a struct using the default validator.
// It returns ErrInvalidArgument carrying one metadata entry per failed field.
func ValidateStruct(s interface{}) error {
	err := defaultValidator.Struct(s)
	if err == nil {
		return nil
	}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Wrap(errors.ErrInvalidArgument, err, "")
	}
	appErr := errors.ErrInvalidArgument.WithMessage("validation failed")
	for _, fe := range validationErrors {
		appErr = appErr.WithMetadata(fe.Field(), formatValidationError(fe))
	}
	return appErr
}

// validateIdentity accepts a registry identity key: non-empty, no whitespace,
// and short enough to fit an IPv4 address string.
func validateIdentity(fl validator.FieldLevel) bool {
	field := fl.Field().String()
	if field == "" {
		return true // leave emptiness to "required"
	}
	return len(field) <= constants.MaxIdentityKeyLen && !strings.ContainsAny(field, " \t\r\n")
}

// recipientReserved are the characters that would change the meaning of the
// /3/device/<recipient> request path.
const recipientReserved = "/?#%"

// validateRecipient accepts a recipient token that can be placed verbatim in
// the request path: no URL delimiters, whitespace or control characters.
func validateRecipient(fl validator.FieldLevel) bool {
	field := fl.Field().String()
	if strings.ContainsAny(field, recipientReserved) {
		return false
	}
	for _, r := range field {
		if r <= ' ' || r == 0x7f {
			return false
		}
	}
	return true
}

// formatValidationError creates a user-friendly error message for a validation error.
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "identity":
		return fmt.Sprintf("must be a key of at most %d characters without whitespace", constants.MaxIdentityKeyLen)
	case "recipient":
		return "must not contain whitespace, control characters or any of " + recipientReserved
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed on the '%s' tag", fe.Tag())
	}
}

// jsonFieldName reports fields by their JSON name so error metadata matches the request body.
func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}
