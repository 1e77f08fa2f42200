// Package fault defines the error kinds shared by the session core and the
// actions built on top of it. Packages wrap these sentinels with %w so callers
// can branch on the kind without knowing the concrete error.
package fault

import (
	"errors"
)

// Kind classifies an error.
type Kind int

// Error kinds.
const (
	Unexpected Kind = iota
	Timeout
	NotFound
	Forbidden
	Validation
	Upstream
)

var (
	// ErrTimeout is matched by every error produced by a call that ran past its deadline.
	ErrTimeout = errors.New("timeout")

	// ErrNotFound is returned when an account record is absent.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when an account exists but may not be used (pending or inactive).
	ErrForbidden = errors.New("forbidden")

	// ErrValidation is returned for rejected input.
	ErrValidation = errors.New("validation error")

	// ErrUpstream is returned when the identity provider or the data store reported a failure.
	ErrUpstream = errors.New("upstream error")

	// ErrUnexpected marks failures outside the taxonomy, such as a recovered panic.
	ErrUnexpected = errors.New("unexpected error")
)

var kinds = []struct { //nolint:gochecknoglobals
	err  error
	kind Kind
}{
	{ErrUnexpected, Unexpected},
	{ErrTimeout, Timeout},
	{ErrNotFound, NotFound},
	{ErrForbidden, Forbidden},
	{ErrValidation, Validation},
	{ErrUpstream, Upstream},
}

// KindOf returns the kind of err. Errors outside the taxonomy are Unexpected.
// A nil error has no kind and reports Unexpected too, callers check nil first.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}

	return Unexpected
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case Timeout:
		return "timeout"
	case NotFound:
		return "not-found"
	case Forbidden:
		return "forbidden"
	case Validation:
		return "validation"
	case Upstream:
		return "upstream"
	default:
		return "unexpected"
	}
}
