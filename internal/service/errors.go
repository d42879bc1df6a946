package service

import (
	"bitwise74/identity-api/internal/identity"
	"bitwise74/identity-api/internal/store"
	"bitwise74/identity-api/pkg/security"
	"errors"
)

var (
	ErrValidation            = errors.New("validation failed")
	ErrAlreadyExists         = store.ErrAlreadyExists
	ErrInvalidCredentials    = errors.New("invalid email or password")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired verification token")
	ErrInvalidOrExpiredOTP   = errors.New("invalid or expired OTP")
	ErrEmailNotVerified      = errors.New("email not verified")
	ErrNotFound              = errors.New("user not found")
	ErrUnauthorized          = security.ErrUnauthorized
	ErrInvalidToken          = identity.ErrInvalidToken
	ErrProviderUnavailable   = identity.ErrProviderUnavailable
	ErrMissingEmail          = identity.ErrMissingEmail
	ErrTokenExchange         = identity.ErrTokenExchange
	ErrProviderNotConfigured = identity.ErrNotConfigured
	ErrMailDisabled          = errors.New("mail delivery is not configured")
)

// ValidationError names the offending field. It matches ErrValidation with
// errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}
