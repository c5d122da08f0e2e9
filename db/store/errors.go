package store

import (
	"errors"

	"github.com/lib/pq"
)

const (
	DuplicateEntry       pq.ErrorCode = "23505"
	SerializationFailure pq.ErrorCode = "40001"
	DeadlockDetected     pq.ErrorCode = "40P01"
)

// isRetryable reports whether a Postgres error only means another writer won.
func isRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case DuplicateEntry, SerializationFailure, DeadlockDetected:
		return true
	}
	return false
}
