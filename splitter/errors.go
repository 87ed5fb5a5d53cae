package splitter

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrTableNotFound is returned by Document.Table when no table has the requested name.
var ErrTableNotFound = errors.New("table not found")

// SchemaMismatchError means the input document is not the kind of catalog the splitter
// expects: a required table is missing or the target coinc definition cannot be resolved.
type SchemaMismatchError struct {
	Reason string
	Err    error
}

func (e *SchemaMismatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("schema mismatch: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("schema mismatch: %s", e.Reason)
}

func (e *SchemaMismatchError) Unwrap() error { return e.Err }

// DanglingReferenceError is a coinc event whose mapping rows point at rows that do not
// exist in the document.
type DanglingReferenceError struct {
	CoincEventID string
	Table        string
	ID           string
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("coinc event %q: no %s row with id %q", e.CoincEventID, e.Table, e.ID)
}

// DuplicateKeyError is returned while indexing when an identifier that must be unique
// occurs twice and the duplicate policy is DuplicatesError.
type DuplicateKeyError struct {
	Index string
	ID    string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate %s id %q", e.Index, e.ID)
}
