package memory

import (
	"errors"
	"fmt"
)

// StorageError signals a persistence-layer fault during Add or Query.
// Callers use it to distinguish "no memories" (empty result, nil error)
// from "store unavailable". The orchestrator treats it as "skip
// persistence this turn" or "treat retrieval as empty" rather than
// aborting the session.
type StorageError struct {
	Op  string // "embed", "insert", "search"
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("memory: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError reports whether err is (or wraps) a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
