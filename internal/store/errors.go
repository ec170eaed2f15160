package store

import "fmt"

// PersistenceError wraps a store-level failure with the operation and
// key it happened on. Callers decide whether to retry or drop.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
