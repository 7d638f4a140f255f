package memoauth

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func normalizeSignup(req SignupRequest) SignupRequest {
	req.Email = strings.TrimSpace(req.Email)
	req.Nickname = strings.TrimSpace(req.Nickname)
	return req
}

// validateSignup maps the first failing field to its sentinel.
func validateSignup(req SignupRequest) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return ErrIllegalArgument
	}

	fe := fieldErrs[0]
	switch fe.StructField() {
	case "Email":
		if fe.Tag() == "email" {
			return ErrInvalidEmail
		}
		return ErrMissingEmail
	case "Password":
		return ErrMissingPassword
	case "Nickname":
		return ErrMissingNickname
	case "BirthDate":
		return ErrMissingBirthDate
	default:
		return ErrIllegalArgument
	}
}
