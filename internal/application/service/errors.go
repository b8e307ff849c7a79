package service

import "errors"

var (
	// ErrNotFound is returned when a requested definition, instance, or user
	// does not exist within the caller's tenant
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when the caller's expected version no longer
	// matches the stored instance. The caller must reload and decide again;
	// the engine never retries on its behalf.
	ErrConflict = errors.New("version conflict")

	// ErrDefinitionNotPublished is returned when starting an instance against
	// a draft or archived definition
	ErrDefinitionNotPublished = errors.New("definition is not published")

	// ErrInvalidInput is returned when a request value fails validation
	// before reaching the domain
	ErrInvalidInput = errors.New("invalid input")
)
