package saga_test

import (
	"context"
	"errors"
	"testing"

	"github.com/cassiomorais/edi-gateway/pkg/saga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaga_AllStepsSucceed(t *testing.T) {
	var executed []string

	s := saga.New("test-saga",
		saga.Step{
			Name:    "store",
			Execute: func(ctx context.Context) error { executed = append(executed, "store"); return nil },
		},
		saga.Step{
			Name:    "freeze",
			Execute: func(ctx context.Context) error { executed = append(executed, "freeze"); return nil },
		},
	).AddStep(saga.Step{
		Name:    "record",
		Execute: func(ctx context.Context) error { executed = append(executed, "record"); return nil },
	})

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, []string{"store", "freeze", "record"}, executed)
}

func TestSaga_FailureCompensatesCompletedStepsInReverse(t *testing.T) {
	var executed []string
	errFreeze := errors.New("freeze failed")

	s := saga.New("materialize",
		saga.Step{
			Name:       "store",
			Execute:    func(ctx context.Context) error { executed = append(executed, "store"); return nil },
			Compensate: func(ctx context.Context) error { executed = append(executed, "unstore"); return nil },
		},
		saga.Step{
			Name:       "mark",
			Execute:    func(ctx context.Context) error { executed = append(executed, "mark"); return nil },
			Compensate: func(ctx context.Context) error { executed = append(executed, "unmark"); return nil },
		},
		saga.Step{
			Name:       "freeze",
			Execute:    func(ctx context.Context) error { return errFreeze },
			Compensate: func(ctx context.Context) error { executed = append(executed, "unfreeze"); return nil },
		},
		saga.Step{
			Name:    "record",
			Execute: func(ctx context.Context) error { executed = append(executed, "record"); return nil },
		},
	)

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errFreeze)
	assert.Equal(t, []string{"store", "mark", "unmark", "unstore"}, executed)

	var stepErr *saga.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "materialize", stepErr.Saga)
	assert.Equal(t, "freeze", stepErr.Step)
	assert.NoError(t, stepErr.CompensationErr)
}

func TestSaga_NoSteps(t *testing.T) {
	assert.NoError(t, saga.New("empty").Run(context.Background()))
}

func TestSaga_CompensationErrorsAreCollected(t *testing.T) {
	s := saga.New("test-saga",
		saga.Step{
			Name:       "step1",
			Execute:    func(ctx context.Context) error { return nil },
			Compensate: func(ctx context.Context) error { return errors.New("comp1 failed") },
		},
		saga.Step{
			Name:       "step2",
			Execute:    func(ctx context.Context) error { return nil },
			Compensate: func(ctx context.Context) error { return errors.New("comp2 failed") },
		},
		saga.Step{
			Name:    "step3",
			Execute: func(ctx context.Context) error { return errors.New("step3 failed") },
		},
	)

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step3 failed")
	assert.Contains(t, err.Error(), "comp1 failed")
	assert.Contains(t, err.Error(), "comp2 failed")

	var stepErr *saga.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Error(t, stepErr.CompensationErr)
}

func TestSaga_NilCompensateIsSkipped(t *testing.T) {
	s := saga.New("test-saga",
		saga.Step{
			Name:    "step1",
			Execute: func(ctx context.Context) error { return nil },
		},
		saga.Step{
			Name:    "step2",
			Execute: func(ctx context.Context) error { return errors.New("fail") },
		},
	)

	err := s.Run(context.Background())
	assert.EqualError(t, err, `saga test-saga: step "step2" failed: fail`)
}

func TestSaga_CompensationIgnoresCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var compensateCtxErr error

	s := saga.New("test-saga",
		saga.Step{
			Name:       "store",
			Execute:    func(ctx context.Context) error { return nil },
			Compensate: func(ctx context.Context) error { compensateCtxErr = ctx.Err(); return nil },
		},
		saga.Step{
			Name: "cancelled",
			Execute: func(ctx context.Context) error {
				cancel()
				return ctx.Err()
			},
		},
	)

	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, compensateCtxErr)
}
