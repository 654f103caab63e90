package documents

import "errors"

var (
	// ErrNotFound means the document does not exist or is not owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput reports a validation failure.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidTransition reports an illegal status change.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotEditable means the document is in a state where fields are locked.
	ErrNotEditable = errors.New("document is not editable")
)
