package directory

import "errors"

var (
	// ErrInvalidArgument is returned for out-of-range extension attribute
	// indices, unknown Invoke methods and empty names.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrClosed is returned by blocking operations on a closed entry.
	ErrClosed = errors.New("entry is closed")

	// ErrNotFound is returned when opening a DN that does not exist. It is
	// joined with the underlying LDAP error.
	ErrNotFound = errors.New("entry not found")
)
