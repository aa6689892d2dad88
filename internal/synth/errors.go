package synth

import (
	"fmt"

	"github.com/mmrzaf/tablefill/internal/domain"
)

// UnsupportedTypeError means no producer exists for a column's type. It is
// fatal for the whole plan.
type UnsupportedTypeError struct {
	Column string
	Type   domain.SQLType
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("column %s: no producer for type %q", e.Column, e.Type)
}

// UniqueExhaustedError means every attempt at a fresh value for a key column
// collided with a value already issued by the same plan.
type UniqueExhaustedError struct {
	Column   string
	Attempts int
	Issued   int
}

func (e *UniqueExhaustedError) Error() string {
	return fmt.Sprintf("column %s: no distinct value after %d attempts (%d values issued)", e.Column, e.Attempts, e.Issued)
}

// RowError ties a column failure to the row being generated. No part of a
// failed row is emitted.
type RowError struct {
	Row    int64
	Column string
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d, column %s: %v", e.Row, e.Column, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}
