package service

import (
	"errors"
	"fmt"
)

var (
	ErrProviderNotFound  = errors.New("provider not found")
	ErrDuplicateProvider = errors.New("provider already registered")
	ErrInvalidPlan       = errors.New("invalid plan")
	ErrUnknownAction     = errors.New("unknown admin action")
	ErrValidation        = errors.New("validation failed")
	ErrBillingDisabled   = errors.New("billing is not configured")
	ErrStorageDisabled   = errors.New("logo storage is not configured")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

var ErrDomainTaken = errors.New("custom domain already in use")
