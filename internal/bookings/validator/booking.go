package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"medbook/pkg/logger"
	"medbook/pkg/model"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	// printable reference without whitespace, e.g. PAC001 or doc:42
	opaqueRefRegex = regexp.MustCompile(`^[\p{L}\p{N}._:@#/-]+$`)
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)

	if err := v.RegisterValidation("opaque_ref", validateOpaqueRef); err != nil {
		log.Fatal("Failed to register 'opaque_ref' validator", "error", err)
	}
	if err := v.RegisterValidation("iso_datetime", validateISODatetime); err != nil {
		log.Fatal("Failed to register 'iso_datetime' validator", "error", err)
	}

	log.Debug("Booking validator initialized successfully")

	return &BookingValidator{
		validate: v,
		logger:   log,
	}
}

func jsonFieldName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

func validateOpaqueRef(fl validator.FieldLevel) bool {
	return opaqueRefRegex.MatchString(fl.Field().String())
}

func validateISODatetime(fl validator.FieldLevel) bool {
	_, err := model.ParseRequestedTime(fl.Field().String())
	return err == nil
}

func (v *BookingValidator) ValidateRequest(req *model.BookingRequest) error {
	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

// ValidateID checks that id looks like an id issued at intake.
func (v *BookingValidator) ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ValidationErrors{
			ValidationError{
				Field:   "id",
				Message: "id must be a valid UUID",
			},
		}
	}
	return nil
}

func (v *BookingValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param())
		case "opaque_ref":
			message = fmt.Sprintf("%s must not contain whitespace or control characters", err.Field())
		case "iso_datetime":
			message = fmt.Sprintf("%s must be an ISO-8601 datetime (e.g., 2025-06-01T10:00:00)", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
