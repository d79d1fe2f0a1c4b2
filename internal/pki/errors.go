// Package pki defines the error model shared by all twoca components.
package pki

import (
	"errors"
	"fmt"
)

// Sentinel errors for common CA operations.
var (
	// Request errors
	ErrUnknownProfile   = errors.New("unknown certificate profile")
	ErrUnsupportedField = errors.New("unsupported field")
	ErrEmptyCommonName  = errors.New("common name is required")
	ErrECNotAllowed     = errors.New("EC keys are only supported for client certificates")

	// Conflict errors
	ErrIdentityExists = errors.New("identity already exists")
	ErrAlreadyRevoked = errors.New("certificate already revoked")

	// Store errors
	ErrCertNotFound = errors.New("certificate not found")
	ErrKeyNotFound  = errors.New("private key not found")
	ErrCRLNotFound  = errors.New("CRL not found")

	// Trust errors
	ErrKeyMismatch = errors.New("certificate and private key do not match")

	// Crypto errors
	ErrUnknownCurve = errors.New("unknown elliptic curve")
)

// Kind categorizes errors so callers can branch on the failure class
// instead of parsing message text.
type Kind int

const (
	KindUnknown Kind = iota

	// KindRequest covers malformed or unsupported request fields:
	// unknown profile, EC key outside the client profile, empty CN.
	KindRequest

	// KindConflict means the target artifact already exists and the
	// operation aborted before any cryptographic work.
	KindConflict

	// KindStore covers missing or unwritable artifacts.
	KindStore

	// KindTrust means a loaded private key does not correspond to the
	// loaded certificate's public key.
	KindTrust

	// KindCrypto covers key-generation and signing failures, including
	// unsupported curve names.
	KindCrypto
)

// String returns a short name for the kind, used in diagnostics.
func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindConflict:
		return "conflict"
	case KindStore:
		return "store"
	case KindTrust:
		return "trust"
	case KindCrypto:
		return "crypto"
	default:
		return "unknown"
	}
}

// Error wraps a failure with the operation that produced it and its kind.
type Error struct {
	Op   string // operation that failed, e.g. "issue", "revoke"
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E creates a new Error.
func E(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf returns the kind of err, or KindUnknown when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsRequest reports whether err is a request-validation failure.
func IsRequest(err error) bool { return KindOf(err) == KindRequest }

// IsConflict reports whether err means the target already exists.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// IsStore reports whether err is a missing or unwritable artifact.
func IsStore(err error) bool { return KindOf(err) == KindStore }

// IsTrust reports whether err is a key/certificate mismatch.
func IsTrust(err error) bool { return KindOf(err) == KindTrust }

// IsCrypto reports whether err is a key-generation or signing failure.
func IsCrypto(err error) bool { return KindOf(err) == KindCrypto }
