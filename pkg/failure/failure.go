// Package failure defines the error categories shared by the object store,
// the reference state machine and the sync protocol.
//
// Errors are raised with go-errcat so every error carries exactly one
// category. Callers may wrap them with fmt.Errorf("...: %w", err); CategoryOf
// still finds the category through the wrap chain.
package failure

import (
	"errors"

	"github.com/warpfork/go-errcat"
)

// Category groups errors by how a caller should react to them.
type Category string

const (
	// Validation marks malformed input: a bad hash, an illegal path, an
	// author containing a newline.
	Validation Category = "validation"
	// NotFound marks a lookup of an unknown branch, commit, object or remote.
	NotFound Category = "not-found"
	// Conflict marks a state conflict: duplicate branch or remote, deleting
	// the attached branch, committing an unchanged snapshot.
	Conflict Category = "conflict"
	// Transport marks a network failure or a non-success response from a
	// remote. These are the only errors worth retrying.
	Transport Category = "transport"
	// Corrupt marks received data whose recomputed hash does not match the
	// hash it was sent under.
	Corrupt Category = "corrupt"
	// Unknown is reported for errors raised outside this package.
	Unknown Category = "unknown"
)

// Exit codes used by the command line for each category.
const (
	ExitUnknown    = 1
	ExitValidation = 2
	ExitNotFound   = 3
	ExitConflict   = 4
	ExitTransport  = 5
	ExitCorrupt    = 6
)

// Errorf creates an error in category c.
func Errorf(c Category, format string, args ...interface{}) error {
	return errcat.Errorf(c, format, args...)
}

// Detailed creates an error in category c carrying structured details,
// typically the entity that caused it.
func Detailed(c Category, msg string, details map[string]string) error {
	return errcat.ErrorDetailed(c, msg, details)
}

// CategoryOf returns the category of the first categorized error in err's
// chain, or Unknown.
func CategoryOf(err error) Category {
	if err == nil {
		return ""
	}
	var ce errcat.Error
	if !errors.As(err, &ce) {
		return Unknown
	}
	if c, ok := ce.Category().(Category); ok {
		return c
	}
	return Unknown
}

// DetailsOf returns the details of the first categorized error in err's
// chain, or nil.
func DetailsOf(err error) map[string]string {
	var ce errcat.Error
	if !errors.As(err, &ce) {
		return nil
	}
	return ce.Details()
}

// Is reports whether err belongs to category c.
func Is(err error, c Category) bool {
	return err != nil && CategoryOf(err) == c
}

// ExitCode maps err to a process exit code. A nil error maps to 0.
func ExitCode(err error) int {
	switch CategoryOf(err) {
	case "":
		return 0
	case Validation:
		return ExitValidation
	case NotFound:
		return ExitNotFound
	case Conflict:
		return ExitConflict
	case Transport:
		return ExitTransport
	case Corrupt:
		return ExitCorrupt
	default:
		return ExitUnknown
	}
}
