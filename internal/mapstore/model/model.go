// Package model holds the persisted mapping entry and the error types
// shared by all mapping store backends.
package model

import (
	"errors"
	"fmt"
)

// Mapping is one row of the conference table: a room code, the
// conference identifier it was allocated for, and the insertion time.
// Code and Conference are each unique across live rows; CreatedAt is
// set once at insertion and never updated.
type Mapping struct {
	Code       int64  `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	Conference string `gorm:"column:jid;uniqueIndex" json:"conference"`
	CreatedAt  int64  `gorm:"column:created_time;autoCreateTime:false" json:"created_time"`
}

// TableName keeps the table name of the original daemon's schema.
func (Mapping) TableName() string {
	return "conferences"
}

// ErrNotFound reports that a room code has no live mapping. It is
// distinct from storage failures so the HTTP layer can answer 404
// instead of 500.
var ErrNotFound = errors.New("room code not found")

// StorageError wraps a failure of the durable store itself, carrying
// the operation that failed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err as a StorageError for the named operation.
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

// IsStorageError reports whether err is (or wraps) a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
