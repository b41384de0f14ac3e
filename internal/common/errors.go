// Package common defines sentinel errors and small helpers shared by the
// server layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Validation errors.
	ErrorInvalidInput     = errors.New("invalid input")
	ErrorMalformedMessage = errors.New("malformed message")

	// Auth errors.
	ErrorUnauthorized  = errors.New("unauthorized")
	ErrorAlreadyExists = errors.New("user already exists")
	ErrorInvalidToken  = errors.New("invalid token")
	ErrorTokenExpired  = errors.New("token expired")

	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorIO       = errors.New("io failure")

	// Service-level errors.
	ErrorInternal = errors.New("internal error")
)
