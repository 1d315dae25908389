package domain

import (
	"errors"
	"fmt"
)

// Failure classes of a pipeline run.
var (
	ErrSource     = errors.New("source failure")
	ErrValidation = errors.New("validation failure")
	ErrGeneration = errors.New("generation failure")
	ErrParse      = errors.New("parse failure")
	ErrStorage    = errors.New("storage failure")
)

// StorageError reports a failed durable-store or similarity-index operation.
type StorageError struct {
	Op  string
	Err error
}

// NewStorageError wraps err; nil stays nil.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrStorage) match any StorageError.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}
