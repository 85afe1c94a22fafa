package braid

import "fmt"

// ErrUnknownFunction reports a scheduled FunctionCall whose name has no
// registry entry. Unlike a tool failure this is fatal to the enclosing
// flow: the flow was assembled against the wrong registry.
type ErrUnknownFunction struct {
	Name string
}

func (e *ErrUnknownFunction) Error() string {
	return fmt.Sprintf("unknown function %q", e.Name)
}

// ErrTokenBudget reports input whose token count exceeds the budget under
// the reject strategy.
type ErrTokenBudget struct {
	Tokens int
	Budget int
}

func (e *ErrTokenBudget) Error() string {
	return fmt.Sprintf("input of %d tokens exceeds the %d-token budget", e.Tokens, e.Budget)
}

// ErrExecutorTimeout reports an executor that did not answer in time. The
// engine surfaces it to the caller and never retries on its own.
type ErrExecutorTimeout struct {
	Executor string
}

func (e *ErrExecutorTimeout) Error() string {
	return fmt.Sprintf("%s: executor timed out", e.Executor)
}
