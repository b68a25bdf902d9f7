package shared

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// MinPhoneDigits is the shortest accepted phone number (DDD plus number).
const MinPhoneDigits = 10

// PhoneDigits counts the decimal digits of a phone string.
func PhoneDigits(phone string) int {
	n := 0
	for _, r := range phone {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

// NewValidator returns a validator with the CRM rules registered:
// phonedigits accepts strings carrying at least MinPhoneDigits digits.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("phonedigits", func(fl validator.FieldLevel) bool {
		return PhoneDigits(fl.Field().String()) >= MinPhoneDigits
	})
	return v
}

// ValidationMessage turns validator errors into one readable sentence.
func ValidationMessage(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Invalid("%v", err)
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, describe(fe))
	}
	return Invalid("%s", strings.Join(parts, "; "))
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "phonedigits":
		return fmt.Sprintf("%s must have at least %d digits", field, MinPhoneDigits)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
