package signup

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/baechuer/meeting-machine/internal/domain"
)

// Input is the signup payload after JSON decoding.
type Input struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=8,bcryptmax"`
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
}

const maxPasswordBytes = 72

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// bcrypt only reads the first 72 bytes, so longer input is refused
	// rather than silently truncated
	_ = v.RegisterValidation("bcryptmax", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= maxPasswordBytes
	})
	// report JSON names so clients can map errors onto form fields
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Normalize trims surrounding whitespace from email and names. Email case is
// kept as submitted; the password is never altered.
func (in Input) Normalize() Input {
	in.Email = strings.TrimSpace(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	return in
}

// Validate checks a normalized Input and returns a validation_failed error
// whose meta maps each offending field to a reason.
func Validate(in Input) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return domain.ErrValidation(map[string]string{"_": err.Error()})
	}

	details := make(map[string]string, len(ves))
	for _, fe := range ves {
		if _, seen := details[fe.Field()]; seen {
			continue
		}
		details[fe.Field()] = reason(fe)
	}
	return domain.ErrValidation(details)
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "bcryptmax":
		return fmt.Sprintf("must be at most %d bytes", maxPasswordBytes)
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return "is invalid"
	}
}
