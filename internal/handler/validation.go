package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/baechuer/cityevents/services/crop-service/internal/cropping"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	validate.RegisterValidation("crop_segment", validateCropSegment)
	validate.RegisterValidation("no_separator", validateNoSeparator)
}

// validateNoSeparator accepts any size identifier a crop id can carry.
func validateNoSeparator(fl validator.FieldLevel) bool {
	return !strings.Contains(fl.Field().String(), cropping.Separator)
}

// validateCropSegment rejects values that cannot be part of a crop variant id.
func validateCropSegment(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return s != "" && !strings.Contains(s, cropping.Separator) && !strings.ContainsAny(s, "/ ")
}

// validateRequest validates a request DTO and returns a user facing message.
func validateRequest(req interface{}) error {
	if err := validate.Struct(req); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		messages = append(messages, formatFieldError(fe))
	}
	return errors.New(strings.Join(messages, "; "))
}

func formatFieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "no_separator":
		return fmt.Sprintf("%s must not contain %q", field, cropping.Separator)
	case "crop_segment":
		return fmt.Sprintf("%s must not contain %q, \"/\" or spaces", field, cropping.Separator)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
