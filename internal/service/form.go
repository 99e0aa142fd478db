package service

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/makerlink/sourcing-bfa-go/internal/domain"

	"github.com/go-playground/validator/v10"
)

// stepFields maps each wizard step to the FormState fields it owns.
// Keys are Go struct field names (validator.StructPartial addresses
// fields, not json tags). Guest-only rules (password, terms) live on the
// account step, which only the guest variant contains, so they can never
// fire for authenticated sessions.
var stepFields = map[domain.StepID][]string{
	domain.StepCompany:      {"CompanyName", "CompanyWebsite", "Country", "Industry", "CompanyDescription"},
	domain.StepAccount:      {"FirstName", "LastName", "WorkEmail", "Phone", "Password", "AcceptTerms"},
	domain.StepProduct:      {"ProductName", "ProductDescription"},
	domain.StepRequirements: {"Requirements"},
	domain.StepVolumes:      {"EstimatedVolume", "VolumeUnit", "GuidancePrice", "Timeline", "DestinationMarkets"},
	domain.StepReview:       {"RFIConfirmed"},
}

// FormValidator runs field-subset validation over the shared form schema.
type FormValidator struct {
	validate *validator.Validate
}

// NewFormValidator creates the validator with json-tag field names so
// error payloads match what the client sent.
func NewFormValidator() *FormValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &FormValidator{validate: v}
}

// ValidateStep checks only the fields belonging to step. Returns
// ErrInvalidForm listing every failing field, or nil.
func (fv *FormValidator) ValidateStep(form *domain.FormState, step domain.StepID) error {
	fields, ok := stepFields[step]
	if !ok {
		return nil // success pseudo-step has no fields
	}

	err := fv.validate.StructPartial(form, fields...)
	return fv.toFormError(step, err)
}

// ValidateAll checks the union of all step fields for the given variant.
// Both submission paths run this as the final gate regardless of how the
// client navigated.
func (fv *FormValidator) ValidateAll(form *domain.FormState, variant domain.WizardVariant) error {
	var fields []string
	for _, step := range domain.StepsFor(variant) {
		fields = append(fields, stepFields[step]...)
	}

	err := fv.validate.StructPartial(form, fields...)
	return fv.toFormError(domain.StepReview, err)
}

func (fv *FormValidator) toFormError(step domain.StepID, err error) error {
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	fieldErrs := make([]domain.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fieldErrs = append(fieldErrs, domain.FieldError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
		})
	}
	return &domain.ErrInvalidForm{Step: step, Fields: fieldErrs}
}

// fieldMessage renders a human-readable message per validation tag.
func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Enter a valid email address"
	case "url":
		return "Enter a valid URL including http:// or https://"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("Select at least %s", fe.Param())
		}
		return fmt.Sprintf("Must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s characters", fe.Param())
	case "eq":
		if fe.Field() == "acceptTerms" {
			return "You must accept the terms to continue"
		}
		return "Please confirm before submitting"
	default:
		return "Invalid value"
	}
}
