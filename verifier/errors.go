package verifier

import (
	"errors"
	"fmt"
)

// Kinds of ProofVerificationError. Match them with errors.Is.
var (
	ErrBadSignatures           = errors.New("bad signatures")
	ErrNonContiguousEpochChain = errors.New("non-contiguous epoch chain")
	ErrRootMismatch            = errors.New("accumulator root mismatch")
	ErrMalformed               = errors.New("malformed proof")
)

// ProofVerificationError is returned whenever data received from a peer
// cannot be proven against trusted state. The peer that sent it should be
// penalized and the data discarded.
type ProofVerificationError struct {
	Kind   error
	Reason error
}

func (e ProofVerificationError) Error() string {
	return fmt.Sprintf("%v: %v", e.Kind, e.Reason)
}

// Unwrap returns underlying reason.
func (e ProofVerificationError) Unwrap() error {
	return e.Reason
}

// Is matches the error kind.
func (e ProofVerificationError) Is(target error) bool {
	return target == e.Kind
}

func badSignatures(format string, args ...interface{}) error {
	return ProofVerificationError{Kind: ErrBadSignatures, Reason: fmt.Errorf(format, args...)}
}

func nonContiguous(format string, args ...interface{}) error {
	return ProofVerificationError{Kind: ErrNonContiguousEpochChain, Reason: fmt.Errorf(format, args...)}
}

func rootMismatch(format string, args ...interface{}) error {
	return ProofVerificationError{Kind: ErrRootMismatch, Reason: fmt.Errorf(format, args...)}
}

func malformed(format string, args ...interface{}) error {
	return ProofVerificationError{Kind: ErrMalformed, Reason: fmt.Errorf(format, args...)}
}
