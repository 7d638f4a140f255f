package memoauth

import (
	"errors"
	"net/http"
)

// Kind groups errors by how a caller should react to them.
type Kind uint8

const (
	// KindInternal is an unexpected failure. Details are logged, never shown.
	KindInternal Kind = iota
	// KindValidation is malformed input.
	KindValidation
	// KindConflict is a uniqueness violation.
	KindConflict
	// KindAuthentication covers credential and token rejections.
	KindAuthentication
	// KindTransient is a store timeout or outage. Retrying may succeed.
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuthentication:
		return "authentication"
	case KindTransient:
		return "transient"
	default:
		return "internal"
	}
}

// Error is a classified failure whose Message is safe to show to clients.
// Sentinels are compared by identity, so wrap them with %w to add context.
type Error struct {
	Kind    Kind
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, status int, code, message string) *Error {
	return &Error{Kind: kind, Status: status, Code: code, Message: message}
}

var (
	ErrInvalidEmail            = newError(KindValidation, http.StatusBadRequest, "INVALID_EMAIL", "email format is invalid")
	ErrMissingEmail            = newError(KindValidation, http.StatusBadRequest, "MISSING_EMAIL", "email is required")
	ErrMissingPassword         = newError(KindValidation, http.StatusBadRequest, "MISSING_PASSWORD", "password is required")
	ErrMissingNickname         = newError(KindValidation, http.StatusBadRequest, "MISSING_NICKNAME", "nickname is required")
	ErrMissingBirthDate        = newError(KindValidation, http.StatusBadRequest, "MISSING_BIRTH_DATE", "birth date is required")
	ErrMissingRefreshToken     = newError(KindValidation, http.StatusBadRequest, "MISSING_REFRESH_TOKEN", "refresh token is required")
	ErrPasswordConfirmMismatch = newError(KindValidation, http.StatusBadRequest, "PASSWORD_CONFIRM_MISMATCH", "password and confirmation do not match")
	ErrIllegalArgument         = newError(KindValidation, http.StatusBadRequest, "ILLEGAL_ARGUMENT", "invalid request")

	ErrEmailAlreadyExists = newError(KindConflict, http.StatusConflict, "EMAIL_ALREADY_EXISTS", "email already exists")

	ErrEmailNotFound        = newError(KindAuthentication, http.StatusBadRequest, "EMAIL_NOT_FOUND", "email not found")
	ErrPasswordMismatch     = newError(KindAuthentication, http.StatusBadRequest, "PASSWORD_MISMATCH", "password does not match")
	ErrInvalidCredentials   = newError(KindAuthentication, http.StatusBadRequest, "INVALID_CREDENTIALS", "invalid email or password")
	ErrRefreshTokenNotFound = newError(KindAuthentication, http.StatusUnauthorized, "REFRESH_TOKEN_NOT_FOUND", "refresh token not found")
	ErrRefreshTokenMismatch = newError(KindAuthentication, http.StatusUnauthorized, "REFRESH_TOKEN_MISMATCH", "refresh token does not match")
	ErrInvalidRefreshToken  = newError(KindAuthentication, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "refresh token is invalid")
	ErrTokenBlacklisted     = newError(KindAuthentication, http.StatusUnauthorized, "TOKEN_BLACKLISTED", "token has been revoked")
	ErrInvalidToken         = newError(KindAuthentication, http.StatusUnauthorized, "INVALID_TOKEN", "token is invalid")
	ErrUnauthenticated      = newError(KindAuthentication, http.StatusUnauthorized, "UNAUTHENTICATED", "authentication required")

	ErrStoreUnavailable = newError(KindTransient, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "service temporarily unavailable")

	ErrInternal = newError(KindInternal, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "internal server error")
)

// Classify returns the *Error at the head of err's chain, or ErrInternal
// when err carries no classification.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal
}

// ErrorKind reports the Kind of err.
func ErrorKind(err error) Kind {
	if e := Classify(err); e != nil {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps err to a response status. nil maps to 200.
func HTTPStatus(err error) int {
	if e := Classify(err); e != nil {
		return e.Status
	}
	return http.StatusOK
}
