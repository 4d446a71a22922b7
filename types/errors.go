package types

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every failure in the pipeline wraps exactly one of these, callers
// match with errors.Is.
var (
	ErrAllocation      = errors.New("allocation error")
	ErrDomain          = errors.New("domain error")
	ErrDatabaseLookup  = errors.New("database lookup error")
	ErrTypeConflict    = errors.New("type conflict")
	ErrSequence        = errors.New("sequence error")
	ErrOrdering        = errors.New("ordering error")
	ErrRuntimeNotReady = errors.New("numerics runtime not ready")
	ErrConflict        = errors.New("boundary condition conflict")
	ErrOutput          = errors.New("output error")
)

// PipelineError carries the context needed to diagnose a failed operation.
// Step is negative when the failure is not tied to an output step.
type PipelineError struct {
	Kind    error
	Field   string
	Domain  string
	Step    int
	Time    float64
	HasTime bool
	Msg     string
	Err     error // underlying cause, if any
}

func NewError(kind error, format string, args ...any) *PipelineError {
	return &PipelineError{Kind: kind, Step: -1, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind and context to an underlying error. If err already is a
// PipelineError its kind is preserved and only missing context is filled in.
func Wrap(kind error, err error, format string, args ...any) *PipelineError {
	var pe *PipelineError
	if errors.As(err, &pe) {
		out := *pe
		if len(format) != 0 {
			out.Msg = fmt.Sprintf(format, args...) + ": " + pe.Msg
		}
		return &out
	}
	return &PipelineError{Kind: kind, Step: -1, Msg: fmt.Sprintf(format, args...), Err: err}
}

func (e *PipelineError) WithField(name string) *PipelineError {
	if len(e.Field) == 0 {
		e.Field = name
	}
	return e
}

func (e *PipelineError) WithDomain(label string) *PipelineError {
	if len(e.Domain) == 0 {
		e.Domain = label
	}
	return e
}

func (e *PipelineError) WithStep(step int, t float64) *PipelineError {
	if e.Step < 0 {
		e.Step = step
	}
	return e.WithTime(t)
}

func (e *PipelineError) WithTime(t float64) *PipelineError {
	if !e.HasTime {
		e.Time, e.HasTime = t, true
	}
	return e
}

func (e *PipelineError) Error() string {
	if e == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(e.Kind.Error())
	if len(e.Field) != 0 {
		fmt.Fprintf(&sb, " [field %s]", e.Field)
	}
	if len(e.Domain) != 0 {
		fmt.Fprintf(&sb, " [domain %s]", e.Domain)
	}
	if e.Step >= 0 {
		fmt.Fprintf(&sb, " [step %d]", e.Step)
	}
	if e.HasTime {
		fmt.Fprintf(&sb, " [t=%g]", e.Time)
	}
	if len(e.Msg) != 0 {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *PipelineError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}
