package domain

import (
	"fmt"

	"stratengine/internal/lang"
)

// EvaluationError is any failure raised while walking the AST: unknown
// operator, wrong arity, type mismatch, missing indicator data, or an
// exhausted visit budget. Pos points at the offending node.
type EvaluationError struct {
	Pos     lang.Pos
	Message string
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluation error at %s: %s", e.Pos, e.Message)
}

func NewEvaluationError(pos lang.Pos, format string, args ...interface{}) *EvaluationError {
	return &EvaluationError{Pos: pos, Message: fmt.Sprintf(format, args...)}
}

// InvalidAllocation is raised by the allocation converter: negative
// weight, zero total, or a result shape that cannot allocate.
type InvalidAllocation struct {
	Message string
}

func (e *InvalidAllocation) Error() string {
	return fmt.Sprintf("invalid allocation: %s", e.Message)
}

func NewInvalidAllocation(format string, args ...interface{}) *InvalidAllocation {
	return &InvalidAllocation{Message: fmt.Sprintf(format, args...)}
}
