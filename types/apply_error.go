package types

import "fmt"

// ApplyErrorKind classifies a failure of the storage collaborator.
type ApplyErrorKind int

const (
	// ApplyRetryable failures leave storage untouched; the same verified
	// chunk may be applied again.
	ApplyRetryable ApplyErrorKind = iota
	// ApplyFatal failures mean local state can no longer be trusted.
	ApplyFatal
)

func (k ApplyErrorKind) String() string {
	switch k {
	case ApplyRetryable:
		return "retryable"
	case ApplyFatal:
		return "fatal"
	default:
		return fmt.Sprintf("ApplyErrorKind(%d)", int(k))
	}
}

// ApplyError is returned by storage when executing or persisting a chunk
// fails.
type ApplyError struct {
	Kind ApplyErrorKind
	Err  error
}

// NewRetryableApplyError wraps err as a retryable apply failure.
func NewRetryableApplyError(err error) *ApplyError {
	return &ApplyError{Kind: ApplyRetryable, Err: err}
}

// NewFatalApplyError wraps err as a fatal apply failure.
func NewFatalApplyError(err error) *ApplyError {
	return &ApplyError{Kind: ApplyFatal, Err: err}
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("%s apply error: %v", e.Kind, e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether e is fatal.
func (e *ApplyError) IsFatal() bool {
	return e.Kind == ApplyFatal
}
