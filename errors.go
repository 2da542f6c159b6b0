package agentmem

import (
	"errors"
	"fmt"

	"github.com/lattice-mind/agentmem/store"
)

// Sentinel errors recognized by the engine. Use errors.Is against these,
// never string matching. ErrDimensionMismatch and ErrLineageMismatch are
// defined in the store package (the validation path that actually raises
// them) and re-exported here.
var (
	ErrDimensionMismatch = store.ErrDimensionMismatch
	ErrLineageMismatch   = store.ErrLineageMismatch
	ErrEmptyQuery        = errors.New("empty query")
	ErrLimitOutOfRange   = errors.New("limit out of range")
	ErrUnknownScope      = errors.New("unknown scope")
	ErrUnknownProvider   = errors.New("unknown provider")
	ErrStoreClosed       = errors.New("store closed")
)

// EngineError wraps a sentinel with operation context so logs and
// errors.Is/As both work without parsing a message string.
type EngineError struct {
	Op  string
	Err error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// wrapErr builds an *EngineError, leaving nil errors as nil.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &EngineError{Op: op, Err: err}
}
