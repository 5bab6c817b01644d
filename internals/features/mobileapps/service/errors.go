package service

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("invalid input")
	ErrProviderInUse    = errors.New("notification provider is used by mobile apps")
	ErrProviderNotFound = errors.New("notification provider not found")
)
