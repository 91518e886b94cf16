package repository

import (
	"errors"

	"loanguard/internal/domain"
)

// ErrNotFound indicates that the requested record does not exist
var ErrNotFound = domain.WithKind(domain.ErrorKindNotFound, errors.New("resource not found"))

// ErrAlreadyExists indicates a create collided with an existing key
var ErrAlreadyExists = errors.New("resource already exists")

// ErrOptimisticLockFailed indicates that an optimistic lock check failed during update
// This happens when the record was modified by another process after it was read
var ErrOptimisticLockFailed = errors.New("optimistic lock failed: record was modified by another process")

// IsNotFoundError checks if an error indicates a resource was not found
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExistsError checks if an error indicates a duplicate create
func IsAlreadyExistsError(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsOptimisticLockError checks if an error is an optimistic lock failure
func IsOptimisticLockError(err error) bool {
	return errors.Is(err, ErrOptimisticLockFailed)
}
