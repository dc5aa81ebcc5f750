package tenf

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
	"github.com/minio/minio-go/v7"
)

var (
	// ErrNotFound matches any NotFoundError.
	ErrNotFound = errors.New("record not found")

	// ErrDeserialization matches any DeserializationError.
	ErrDeserialization = errors.New("record is not valid JSON")

	// ErrBackend matches any BackendError.
	ErrBackend = errors.New("storage backend failure")

	// ErrInvalidKey matches any InvalidKeyError.
	ErrInvalidKey = errors.New("invalid key")
)

// NotFoundError is returned when no record exists under Key.
//
// The backend's own error (if any) can be accessed via errors.Unwrap.
type NotFoundError struct {
	Op  string
	Key string
	Err error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, ErrNotFound)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// DeserializationError is returned when stored content cannot be decoded as
// JSON, or when a value passed to Write cannot be encoded.
type DeserializationError struct {
	Op  string
	Key string
	Err error
}

func (e *DeserializationError) Error() string {
	if e.Op == opWrite {
		return fmt.Sprintf("%s %s: value cannot be encoded as JSON: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Key, ErrDeserialization, e.Err)
}

func (e *DeserializationError) Unwrap() error { return e.Err }

func (e *DeserializationError) Is(target error) bool { return target == ErrDeserialization }

// BackendError wraps an I/O, network or permission failure reported by the
// storage backend.
type BackendError struct {
	Op      string
	Key     string
	Backend string
	Err     error
}

func (e *BackendError) Error() string {
	if e.Backend != "" {
		return fmt.Sprintf("%s %s (%s): %v", e.Op, e.Key, e.Backend, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

func (e *BackendError) Is(target error) bool { return target == ErrBackend }

// Code returns the service error code (e.g. "AccessDenied", "SlowDown") when
// the backend reported one, or "".
func (e *BackendError) Code() string {
	var apiErr smithy.APIError
	if errors.As(e.Err, &apiErr) {
		return apiErr.ErrorCode()
	}
	var minioErr minio.ErrorResponse
	if errors.As(e.Err, &minioErr) {
		return minioErr.Code
	}
	return ""
}

// InvalidKeyError is returned before any backend call when a key or prefix
// is malformed.
type InvalidKeyError struct {
	Key    string
	Reason string
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("%v %q: %s", ErrInvalidKey, e.Key, e.Reason)
}

func (e *InvalidKeyError) Is(target error) bool { return target == ErrInvalidKey }

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsDeserialization reports whether err is (or wraps) a DeserializationError.
func IsDeserialization(err error) bool { return errors.Is(err, ErrDeserialization) }

// IsBackend reports whether err is (or wraps) a BackendError.
func IsBackend(err error) bool { return errors.Is(err, ErrBackend) }

// IsInvalidKey reports whether err is (or wraps) an InvalidKeyError.
func IsInvalidKey(err error) bool { return errors.Is(err, ErrInvalidKey) }
