// errors.go declares the error values surfaced by Table.
//
// © 2025 chtable authors. MIT License.
package chtable

import (
	"errors"
	"fmt"
)

// ErrAllocationFailure wraps an error returned by a GroupAllocator during
// bucket array growth, chain node allocation, or rehash. Table invariants
// are preserved: the operation that triggered the allocation leaves size
// and the existing bucket array untouched.
type ErrAllocationFailure struct {
	Err error
}

func (e *ErrAllocationFailure) Error() string {
	return fmt.Sprintf("chtable: allocation failure: %v", e.Err)
}

func (e *ErrAllocationFailure) Unwrap() error { return e.Err }

func wrapAllocErr(err error) error {
	if err == nil {
		return nil
	}
	return &ErrAllocationFailure{Err: err}
}

// ErrKeyNotFound is a sentinel for "key not found". It is not part of the
// canonical operation set, and no Table method returns it: lookups report
// absence through their bool or int results.
var ErrKeyNotFound = errors.New("chtable: key not found")
