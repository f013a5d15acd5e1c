package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// sagaStep is one write of a multi-item operation and the write that undoes it.
type sagaStep struct {
	name string
	do   func(ctx context.Context) error
	undo func(ctx context.Context) error
}

// SagaError reports which step failed, which steps had completed and whether
// rolling them back worked.
type SagaError struct {
	Failed    string
	Completed []string
	Cause     error
	Rollback  error
}

func (e *SagaError) Error() string {
	msg := fmt.Sprintf("%s failed after [%s]: %v", e.Failed, strings.Join(e.Completed, ", "), e.Cause)
	if e.Rollback != nil {
		msg += fmt.Sprintf("; rollback failed, partial state left behind: %v", e.Rollback)
	}
	return msg
}

func (e *SagaError) Unwrap() error { return e.Cause }

// runSaga executes steps in order. When one fails, the completed steps are
// undone in reverse order with a context that outlives the caller's
// cancellation.
func runSaga(ctx context.Context, steps ...sagaStep) error {
	var done []sagaStep
	for _, step := range steps {
		if err := step.do(ctx); err != nil {
			serr := &SagaError{Failed: step.name, Cause: err}
			var rollbackErrs []error
			undoCtx := context.WithoutCancel(ctx)
			for i := len(done) - 1; i >= 0; i-- {
				serr.Completed = append([]string{done[i].name}, serr.Completed...)
				if done[i].undo == nil {
					continue
				}
				if uerr := done[i].undo(undoCtx); uerr != nil {
					rollbackErrs = append(rollbackErrs, fmt.Errorf("undo %s: %w", done[i].name, uerr))
				}
			}
			serr.Rollback = errors.Join(rollbackErrs...)
			return serr
		}
		done = append(done, step)
	}
	return nil
}
