package dataset

import (
	"fmt"
	"strings"
)

// EmptyInputError reports an operation that needs at least one element.
type EmptyInputError struct {
	What string
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("empty input: %s", e.What)
}

// InvalidGraphError reports a routable graph that cannot be routed over.
type InvalidGraphError struct {
	Reason string
	Err    error
}

func (e *InvalidGraphError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid graph: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid graph: %s", e.Reason)
}

func (e *InvalidGraphError) Unwrap() error {
	return e.Err
}

// MissingColumnError reports a required column absent from a dataset.
type MissingColumnError struct {
	Column    string
	Available []string
}

func (e *MissingColumnError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("missing column %q", e.Column)
	}
	return fmt.Sprintf("missing column %q (available: %s)", e.Column, strings.Join(e.Available, ", "))
}

// NotFoundError reports a lookup of a named dataset that was never loaded.
type NotFoundError struct {
	Kind      string
	Key       string
	Available []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found (available: [%s]); was it loaded?",
		e.Kind, e.Key, strings.Join(e.Available, ", "))
}

// FrameMismatchError reports two datasets in different coordinate frames.
type FrameMismatchError struct {
	Left  Frame
	Right Frame
}

func (e *FrameMismatchError) Error() string {
	return fmt.Sprintf("coordinate frames differ: %s vs %s", e.Left, e.Right)
}

// UnitMismatchError reports a threshold that cannot be compared with a column.
type UnitMismatchError struct {
	Have Unit
	Want Unit
}

func (e *UnitMismatchError) Error() string {
	return fmt.Sprintf("cannot compare %s with %s", e.Have, e.Want)
}
