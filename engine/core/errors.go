package core

import (
	"github.com/cockroachdb/errors"
)

// Error kinds surfaced by the renderer. Callers match them with errors.Is;
// wrapped errors keep the kind while adding the failing operation.
var (
	// The swap chain no longer matches the surface. Recoverable by recreation.
	ErrSwapchainOutOfDate = errors.New("swapchain out of date")

	ErrPoolExhausted = errors.New("descriptor pool exhausted")
	ErrOutOfMemory   = errors.New("out of memory")

	ErrDeviceLost        = errors.New("device lost")
	ErrTimeout           = errors.New("gpu wait timed out")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrInitialization    = errors.New("initialization failed")

	// A descriptor writer was built without covering every binding of its layout.
	ErrUnwrittenBinding = errors.New("descriptor binding not written")
)

// kindError attaches an error kind to cause without changing its message.
type kindError struct {
	cause error
	kind  error
}

func (e *kindError) Error() string { return e.cause.Error() }
func (e *kindError) Unwrap() error { return e.cause }
func (e *kindError) Is(target error) bool {
	return target == e.kind
}

// WithKind tags err with one of the kinds above. Both the standard library
// errors.Is and the cockroachdb one match the result against kind, and the
// original cause stays reachable.
func WithKind(err, kind error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(&kindError{cause: err, kind: kind}, kind)
}

// IsRecoverable reports whether the frame loop may retry after err.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrSwapchainOutOfDate)
}

// IsResourceExhausted reports pool or memory exhaustion.
func IsResourceExhausted(err error) bool {
	return errors.Is(err, ErrPoolExhausted) || errors.Is(err, ErrOutOfMemory)
}

// IsPreconditionViolation reports a programming error, such as a frame
// operation called in the wrong state. These are never retried.
func IsPreconditionViolation(err error) bool {
	return errors.IsAssertionFailure(err) || errors.Is(err, ErrUnwrittenBinding)
}
