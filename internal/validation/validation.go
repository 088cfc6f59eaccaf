// Package validation wraps go-playground/validator with the rules the API
// needs and turns failures into field-level VALIDATION_ERROR responses.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/cafe-backend/internal/apperror"
)

// Message returned for every validation failure; per-field detail goes in
// Details.
const Message = "Invalid input data"

const passwordSymbols = "@$!%*?&"

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ()\-.]{6,19}$`)

// Messages lets a validated type choose the message for a field and tag,
// keyed "field.tag" using the JSON field name.
type Messages interface {
	ValidationMessages() map[string]string
}

// Validator implements echo.Validator.
type Validator struct {
	v *validator.Validate
}

// New registers the custom rules and reports field names by their JSON tag.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return StrongPassword(fl.Field().String())
	})
	_ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(fl.Param())
		return err == nil && len(fl.Field().String()) <= n
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return &Validator{v: v}
}

// Validate checks i and returns an *apperror.Error of kind Validation with
// one FieldError per failing field.
func (v *Validator) Validate(i interface{}) error {
	err := v.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.Validation(Message)
	}
	var custom map[string]string
	if m, ok := i.(Messages); ok {
		custom = m.ValidationMessages()
	}
	details := make([]apperror.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		msg, ok := custom[field+"."+fe.Tag()]
		if !ok {
			msg = defaultMessage(fe)
		}
		details = append(details, apperror.FieldError{Field: field, Message: msg})
	}
	return apperror.Validation(Message, details...)
}

// StrongPassword requires 8 to MaxPasswordBytes bytes with a lower-case
// letter, an upper-case letter, a digit and one of @$!%*?&.
func StrongPassword(s string) bool {
	if len(s) < 8 || len(s) > MaxPasswordBytes {
		return false
	}
	var lower, upper, digit, symbol bool
	for _, r := range s {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSymbols, r):
			symbol = true
		}
	}
	return lower && upper && digit && symbol
}

func defaultMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return "Please provide a valid email address"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	case "min", "gte":
		return fe.Field() + " must be at least " + fe.Param()
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	case "maxbytes":
		return fe.Field() + " must be at most " + fe.Param() + " bytes"
	case "phone":
		return "Please provide a valid phone number"
	case "password":
		return "Password must contain at least one uppercase letter, one lowercase letter, one number, and one special character"
	default:
		return fe.Field() + " is invalid"
	}
}
