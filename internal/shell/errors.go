package shell

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidName    = errors.New("not a valid identifier")
	ErrNoInput        = errors.New("input not available in background job")
	ErrScriptInput    = errors.New("input not available while running a script")
	ErrScriptTooDeep  = errors.New("maximum script recursion depth exceeded")
	ErrBaseScope      = errors.New("cannot pop the base scope")
	ErrShellClosed    = errors.New("shell is closed")
	ErrNothingPending = errors.New("no command is waiting for input")
)

// PipelineError wraps the failure of the first failing segment of a pipeline.
type PipelineError struct {
	Command string
	Err     error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error for '%s': %v", e.Command, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// AliasLoopError is returned when alias expansion does not settle within the
// configured number of rewrites.
type AliasLoopError struct {
	Name  string
	Depth int
}

func (e *AliasLoopError) Error() string {
	return fmt.Sprintf("alias loop detected for '%s' after %d expansions", e.Name, e.Depth)
}

// JobError reports an operation on a job id that is not active.
type JobError struct {
	ID int
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %d not found", e.ID)
}
