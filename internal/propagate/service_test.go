package propagate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/templatesync/templatesync/internal/forge"
	"github.com/templatesync/templatesync/internal/propagate"
	"github.com/templatesync/templatesync/internal/registry"
)

const (
	testForkIdentifierConstant = "acme/dataset-x"
	testSourceCommitConstant   = "0123456789abcdef0123456789abcdef01234567"
	testPreviousCommitConstant = "89abcdef0123456789abcdef0123456789abcdef"
)

type branchCall struct {
	operation string
	branch    string
	commit    string
}

type stubBranchWriter struct {
	headCommit    string
	headFailures  []error
	createFailure error
	updateFailure error
	calls         []branchCall
}

func (writer *stubBranchWriter) ResolveBranchHead(_ context.Context, _ string, branch string) (string, error) {
	writer.calls = append(writer.calls, branchCall{operation: "resolve", branch: branch})
	if len(writer.headFailures) > 0 {
		nextFailure := writer.headFailures[0]
		writer.headFailures = writer.headFailures[1:]
		if nextFailure != nil {
			return "", nextFailure
		}
	}
	return writer.headCommit, nil
}

func (writer *stubBranchWriter) CreateBranchReference(_ context.Context, _ string, branch string, commit string) error {
	writer.calls = append(writer.calls, branchCall{operation: "create", branch: branch, commit: commit})
	return writer.createFailure
}

func (writer *stubBranchWriter) UpdateBranchReference(_ context.Context, _ string, branch string, commit string) error {
	writer.calls = append(writer.calls, branchCall{operation: "update", branch: branch, commit: commit})
	return writer.updateFailure
}

func testFork() registry.Fork {
	return registry.Fork{Identifier: testForkIdentifierConstant}.Normalized()
}

func fastRetryPolicy() forge.RetryPolicy {
	return forge.RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
}

func newTestPropagator(testInstance *testing.T, writer *stubBranchWriter) *propagate.Propagator {
	propagator, creationError := propagate.NewPropagator(propagate.Dependencies{
		Logger:      zap.NewNop(),
		Forge:       writer,
		RetryPolicy: fastRetryPolicy(),
	})
	require.NoError(testInstance, creationError)
	return propagator
}

func TestNewPropagatorValidation(testInstance *testing.T) {
	testCases := []struct {
		name          string
		dependencies  propagate.Dependencies
		expectedError error
	}{
		{
			name:          "missing_logger",
			dependencies:  propagate.Dependencies{Forge: &stubBranchWriter{}},
			expectedError: propagate.ErrLoggerNotConfigured,
		},
		{
			name:          "missing_forge",
			dependencies:  propagate.Dependencies{Logger: zap.NewNop()},
			expectedError: propagate.ErrForgeNotConfigured,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			propagator, creationError := propagate.NewPropagator(testCase.dependencies)
			require.ErrorIs(testInstance, creationError, testCase.expectedError)
			require.Nil(testInstance, propagator)
		})
	}
}

func TestEnsure(testInstance *testing.T) {
	testInstance.Run("missing_branch_created", func(testInstance *testing.T) {
		writer := &stubBranchWriter{
			headFailures: []error{forge.ClassifiedError{Kind: forge.FailureKindNotFound, Operation: "ResolveBranchHead", Cause: errors.New("branch missing")}},
		}
		propagator := newTestPropagator(testInstance, writer)

		result, ensureError := propagator.Ensure(context.Background(), testFork(), testSourceCommitConstant)
		require.NoError(testInstance, ensureError)
		require.Equal(testInstance, propagate.OutcomeCreated, result.Outcome)
		require.Equal(testInstance, branchCall{operation: "create", branch: registry.DefaultTrackingBranchName, commit: testSourceCommitConstant}, writer.calls[len(writer.calls)-1])
	})

	testInstance.Run("matching_head_is_noop", func(testInstance *testing.T) {
		writer := &stubBranchWriter{headCommit: testSourceCommitConstant}
		propagator := newTestPropagator(testInstance, writer)

		result, ensureError := propagator.Ensure(context.Background(), testFork(), testSourceCommitConstant)
		require.NoError(testInstance, ensureError)
		require.Equal(testInstance, propagate.OutcomeAlreadyCurrent, result.Outcome)
		for _, recordedCall := range writer.calls {
			require.Equal(testInstance, "resolve", recordedCall.operation)
		}
	})

	testInstance.Run("stale_head_fast_forwarded", func(testInstance *testing.T) {
		writer := &stubBranchWriter{headCommit: testPreviousCommitConstant}
		propagator := newTestPropagator(testInstance, writer)

		result, ensureError := propagator.Ensure(context.Background(), testFork(), testSourceCommitConstant)
		require.NoError(testInstance, ensureError)
		require.Equal(testInstance, propagate.OutcomeFastForwarded, result.Outcome)
		require.Equal(testInstance, branchCall{operation: "update", branch: registry.DefaultTrackingBranchName, commit: testSourceCommitConstant}, writer.calls[len(writer.calls)-1])
	})

	testInstance.Run("diverged_branch_surfaces_conflict", func(testInstance *testing.T) {
		writer := &stubBranchWriter{
			headCommit:    testPreviousCommitConstant,
			updateFailure: forge.ClassifiedError{Kind: forge.FailureKindConflict, Operation: "UpdateBranchReference", Cause: errors.New("not a fast forward")},
		}
		propagator := newTestPropagator(testInstance, writer)

		_, ensureError := propagator.Ensure(context.Background(), testFork(), testSourceCommitConstant)
		require.Error(testInstance, ensureError)
		require.Equal(testInstance, forge.FailureKindConflict, forge.KindOf(ensureError))

		updateAttempts := 0
		for _, recordedCall := range writer.calls {
			if recordedCall.operation == "update" {
				updateAttempts++
			}
		}
		require.Equal(testInstance, 1, updateAttempts)
	})

	testInstance.Run("transient_resolution_retried", func(testInstance *testing.T) {
		transientFailure := forge.ClassifiedError{Kind: forge.FailureKindTransient, Operation: "ResolveBranchHead", Cause: errors.New("HTTP 503")}
		writer := &stubBranchWriter{
			headCommit:   testSourceCommitConstant,
			headFailures: []error{transientFailure, nil},
		}
		propagator := newTestPropagator(testInstance, writer)

		result, ensureError := propagator.Ensure(context.Background(), testFork(), testSourceCommitConstant)
		require.NoError(testInstance, ensureError)
		require.Equal(testInstance, propagate.OutcomeAlreadyCurrent, result.Outcome)
		require.Len(testInstance, writer.calls, 2)
	})

	testInstance.Run("creation_race_converges", func(testInstance *testing.T) {
		writer := &stubBranchWriter{
			headCommit: testSourceCommitConstant,
			headFailures: []error{
				forge.ClassifiedError{Kind: forge.FailureKindNotFound, Operation: "ResolveBranchHead", Cause: errors.New("branch missing")},
			},
			createFailure: forge.ClassifiedError{Kind: forge.FailureKindAlreadyExists, Operation: "CreateBranchReference", Cause: errors.New("reference already exists")},
		}
		propagator := newTestPropagator(testInstance, writer)

		result, ensureError := propagator.Ensure(context.Background(), testFork(), testSourceCommitConstant)
		require.NoError(testInstance, ensureError)
		require.Equal(testInstance, propagate.OutcomeAlreadyCurrent, result.Outcome)
	})

	testInstance.Run("missing_commit_rejected", func(testInstance *testing.T) {
		propagator := newTestPropagator(testInstance, &stubBranchWriter{})

		_, ensureError := propagator.Ensure(context.Background(), testFork(), "")
		require.ErrorIs(testInstance, ensureError, propagate.ErrCommitRequired)
	})
}
