package onboarding

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// CodeLength is the number of digits in a one-time code.
const CodeLength = 6

func validateCode(code string) error {
	err := validation.Validate(code,
		validation.Required,
		validation.Length(CodeLength, CodeLength),
		is.Digit,
	)
	if err != nil {
		return &ValidationError{Field: "code", Message: "Please enter the 6-digit code"}
	}
	return nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if err := validation.Validate(name, validation.Required, validation.RuneLength(1, 100)); err != nil {
		return "", &ValidationError{Field: "name", Message: "Please enter your name"}
	}
	return name, nil
}
