package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline fault. Kinds are errors so callers can match
// them with errors.Is.
type Kind string

func (k Kind) Error() string { return string(k) }

const (
	KindIntakeInvalid        Kind = "IntakeInvalid"
	KindStructuringFailed    Kind = "StructuringFailed"
	KindRetrievalFailed      Kind = "RetrievalFailed"
	KindUnsafeContentBlocked Kind = "UnsafeContentBlocked"
	KindOutputSchemaInvalid  Kind = "OutputSchemaInvalid"
	KindOutputFailed         Kind = "OutputFailed"
	KindPersistenceFailed    Kind = "PersistenceFailed"
)

// Stage names used in trace errors.
const (
	StageIntake      = "intake"
	StageStructuring = "structuring"
	StageRetrieval   = "retrieval"
	StageOutput      = "output"
	StagePersistence = "persistence"
)

// Error is a fatal pipeline fault. Trace holds everything recorded before the
// fault, including the fault itself.
type Error struct {
	Kind  Kind
	Stage string
	Err   error
	Trace *Trace
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s stage: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the fault kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && e.Kind == k
}

// IsClientError reports whether err was caused by the caller's input.
func IsClientError(err error) bool {
	return errors.Is(err, KindIntakeInvalid)
}
