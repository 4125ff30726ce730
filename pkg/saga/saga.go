// Package saga runs a sequence of steps whose side effects live outside the
// database transaction, undoing the completed ones when a later step fails.
package saga

import (
	"context"
	"errors"
	"fmt"
)

// Step is one action and the action that undoes it. Compensate may be nil
// for steps that a transaction rollback already undoes.
type Step struct {
	Name       string
	Execute    func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// StepError reports the failed step. It unwraps to the step's error, so
// sentinel errors stay matchable through a saga.
type StepError struct {
	Saga            string
	Step            string
	Err             error
	CompensationErr error
}

func (e *StepError) Error() string {
	if e.CompensationErr != nil {
		return fmt.Sprintf("saga %s: step %q failed (%v), compensation also failed: %v", e.Saga, e.Step, e.Err, e.CompensationErr)
	}
	return fmt.Sprintf("saga %s: step %q failed: %v", e.Saga, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

type Saga struct {
	name  string
	steps []Step
}

func New(name string, steps ...Step) *Saga {
	return &Saga{name: name, steps: steps}
}

func (s *Saga) AddStep(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Run executes the steps in order. When one fails, the completed steps are
// compensated in reverse order. Compensation does not inherit ctx's
// cancellation: a caller that gives up still leaves nothing behind.
func (s *Saga) Run(ctx context.Context) error {
	for i, step := range s.steps {
		if err := step.Execute(ctx); err != nil {
			return &StepError{
				Saga:            s.name,
				Step:            step.Name,
				Err:             err,
				CompensationErr: s.compensate(context.WithoutCancel(ctx), s.steps[:i]),
			}
		}
	}
	return nil
}

func (s *Saga) compensate(ctx context.Context, completed []Step) error {
	var errs []error
	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("compensate step %q: %w", step.Name, err))
		}
	}
	return errors.Join(errs...)
}
