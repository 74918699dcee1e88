package review

import "fmt"

// UnrecoverableSchemaError means an answer was still rejected after the one
// repair call. First and Last are the two rejections.
type UnrecoverableSchemaError struct {
	Stage string
	First error
	Last  error
}

func (e *UnrecoverableSchemaError) Error() string {
	return fmt.Sprintf("%s: model answer rejected after repair: %v (first answer: %v)", e.Stage, e.Last, e.First)
}

func (e *UnrecoverableSchemaError) Unwrap() error { return e.Last }
