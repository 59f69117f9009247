package domain

import (
	"errors"
	"fmt"
)

// ErrAlreadyInitialized is returned when the registry handle is initialized twice.
var ErrAlreadyInitialized = errors.New("registry already initialized")

// ErrInvalidName is returned when a record name is empty.
var ErrInvalidName = errors.New("api name must not be empty")

// AlreadyExistsError is returned when a record is created under an occupied name.
type AlreadyExistsError struct {
	Name string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("api with name %s already exists", e.Name)
}

// DecodeError is returned when stored bytes do not match the record layout.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode api: %s: %v", e.Reason, e.Err)
	}
	return "decode api: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError is returned when a record cannot be represented in the binary layout.
type EncodeError struct {
	Reason string
}

func (e *EncodeError) Error() string {
	return "encode api: " + e.Reason
}

// StorageError wraps a fault raised by the durable store.
type StorageError struct {
	Op  string // open, get, insert, flush, list, close
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsAlreadyExists reports whether err is an AlreadyExistsError.
func IsAlreadyExists(err error) bool {
	var target *AlreadyExistsError
	return errors.As(err, &target)
}

// IsDecodeError reports whether err is a DecodeError.
func IsDecodeError(err error) bool {
	var target *DecodeError
	return errors.As(err, &target)
}

// IsStorageError reports whether err is a StorageError.
func IsStorageError(err error) bool {
	var target *StorageError
	return errors.As(err, &target)
}
