// Package common defines the sentinel errors shared by the storage, service
// and transport layers of GophDrive. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound          = errors.New("not found")
	ErrConstraintViolation = errors.New("constraint violation")

	// Hierarchy errors.
	ErrParentNotFound      = errors.New("parent folder not found")
	ErrDestinationNotFound = errors.New("destination folder not found")
	ErrNameConflict        = errors.New("an item with this name already exists")
	ErrSelfMove            = errors.New("folder cannot be moved into itself")
	ErrCyclicMove          = errors.New("folder cannot be moved into its own descendant")
	ErrInvalidName         = errors.New("invalid name")
	ErrInvalidItemType     = errors.New("invalid item type")

	// Trash lifecycle errors.
	ErrNotInTrash      = errors.New("item is not in trash")
	ErrParentGone      = errors.New("original parent folder is no longer available")
	ErrRestoreConflict = errors.New("an item with this name already exists at the original location")

	// User and favorite errors.
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Service-level errors.
	ErrInvalidArgument = errors.New("invalid argument")
	ErrorInternal      = errors.New("internal error")
	ErrorUnauthorized  = errors.New("unauthorized")
	ErrInvalidToken    = errors.New("invalid token")
	ErrTokenExpired    = errors.New("token expired")
)

var validationErrors = []error{
	ErrorNotFound,
	ErrConstraintViolation,
	ErrParentNotFound,
	ErrDestinationNotFound,
	ErrNameConflict,
	ErrSelfMove,
	ErrCyclicMove,
	ErrInvalidName,
	ErrInvalidItemType,
	ErrNotInTrash,
	ErrParentGone,
	ErrRestoreConflict,
	ErrAlreadyExists,
	ErrInvalidCredentials,
	ErrInvalidArgument,
	ErrorUnauthorized,
	ErrInvalidToken,
	ErrTokenExpired,
}

// IsValidation reports whether err is a typed validation result that callers
// are expected to handle, as opposed to an unexpected internal failure.
func IsValidation(err error) bool {
	if err == nil {
		return false
	}
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}
