package validator

import (
	"reflect"
	"strings"
	"time"

	apperrors "github.com/ngbao12/GoPass-sub000/internal/errors"
	"github.com/ngbao12/GoPass-sub000/internal/models"
	"github.com/go-playground/validator/v10"
)

// Validator wraps the struct-tag validator with the domain's custom rules.
type Validator struct {
	structValidator *validator.Validate
}

// New creates a validator instance with all custom rules registered.
func New() *Validator {
	structValidator := validator.New()
	registerCustomValidators(structValidator)

	return &Validator{
		structValidator: structValidator,
	}
}

// Validate checks struct tags and returns field-level errors suitable for an
// API response.
func (v *Validator) Validate(s interface{}) error {
	if err := v.structValidator.Struct(s); err != nil {
		if fieldErrors := apperrors.ToValidationErrors(err); len(fieldErrors) > 0 {
			return fieldErrors
		}
		return err
	}
	return nil
}

// ValidateVar validates a single value against a tag expression.
func (v *Validator) ValidateVar(value interface{}, tag string) error {
	return v.structValidator.Var(value, tag)
}

func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("question_type", validateQuestionType)
	validate.RegisterValidation("submission_status", validateSubmissionStatus)
	validate.RegisterValidation("max_attempts", validateMaxAttempts)
	validate.RegisterValidation("future_date", validateFutureDate)

	// Report JSON field names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateQuestionType(fl validator.FieldLevel) bool {
	validTypes := []models.QuestionType{
		models.MultipleChoice,
		models.TrueFalse,
		models.ShortAnswer,
		models.Essay,
	}

	value := fl.Field().String()
	for _, validType := range validTypes {
		if string(validType) == value {
			return true
		}
	}
	return false
}

func validateSubmissionStatus(fl validator.FieldLevel) bool {
	validStatuses := []models.SubmissionStatus{
		models.SubmissionInProgress,
		models.SubmissionSubmitted,
		models.SubmissionGraded,
		models.SubmissionLate,
	}

	value := fl.Field().String()
	for _, validStatus := range validStatuses {
		if string(validStatus) == value {
			return true
		}
	}
	return false
}

func validateMaxAttempts(fl validator.FieldLevel) bool {
	value := fl.Field().Int()
	return value >= 1 && value <= 10
}

func validateFutureDate(fl validator.FieldLevel) bool {
	value, ok := fl.Field().Interface().(time.Time)
	if !ok {
		return false
	}
	return value.After(time.Now())
}
