package services

import "errors"

// Workflow errors surfaced to callers. Everything except ErrInternal is
// recoverable by correcting the input; ErrInternal is an opaque stand-in
// for collaborator faults whose detail is only logged.
var (
	ErrDuplicateEmail         = errors.New("email already registered")
	ErrNotFound               = errors.New("account not found")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrInvalidOldPassword     = errors.New("current password is incorrect")
	ErrInvalidOrExpiredCode   = errors.New("invalid or expired verification code")
	ErrAlreadyVerified        = errors.New("phone already verified")
	ErrNoEnrollmentInProgress = errors.New("no two-factor enrollment in progress")
	ErrInvalidToken           = errors.New("invalid two-factor token")
	ErrNotEnabled             = errors.New("two-factor authentication is not enabled")
	ErrPhoneMismatch          = errors.New("phone number does not match")
	ErrInternal               = errors.New("internal error")
)
