package proposal_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/templatesync/templatesync/internal/forge"
	"github.com/templatesync/templatesync/internal/proposal"
)

type stubMergeStateReader struct {
	mergeStates  []forge.ProposalMergeState
	stateFailure error
	mergeFailure error
	stateCalls   int
	mergeCalls   int
}

func (reader *stubMergeStateReader) ResolveProposalMergeState(context.Context, string, int) (forge.ProposalMergeState, error) {
	reader.stateCalls++
	if reader.stateFailure != nil {
		return forge.ProposalMergeState{}, reader.stateFailure
	}
	stateIndex := reader.stateCalls - 1
	if stateIndex >= len(reader.mergeStates) {
		stateIndex = len(reader.mergeStates) - 1
	}
	return reader.mergeStates[stateIndex], nil
}

func (reader *stubMergeStateReader) MergeProposal(context.Context, string, int) error {
	reader.mergeCalls++
	return reader.mergeFailure
}

func newTestEvaluator(testInstance *testing.T, reader *stubMergeStateReader) *proposal.Evaluator {
	evaluator, creationError := proposal.NewEvaluator(proposal.EvaluatorDependencies{
		Logger:       zap.NewNop(),
		Forge:        reader,
		RetryPolicy:  fastRetryPolicy(),
		PollAttempts: 3,
		PollDelay:    time.Millisecond,
	})
	require.NoError(testInstance, creationError)
	return evaluator
}

func TestNewEvaluatorValidation(testInstance *testing.T) {
	testInstance.Run("missing_logger", func(testInstance *testing.T) {
		evaluator, creationError := proposal.NewEvaluator(proposal.EvaluatorDependencies{Forge: &stubMergeStateReader{}})
		require.ErrorIs(testInstance, creationError, proposal.ErrLoggerNotConfigured)
		require.Nil(testInstance, evaluator)
	})

	testInstance.Run("missing_forge", func(testInstance *testing.T) {
		evaluator, creationError := proposal.NewEvaluator(proposal.EvaluatorDependencies{Logger: zap.NewNop()})
		require.ErrorIs(testInstance, creationError, proposal.ErrForgeNotConfigured)
		require.Nil(testInstance, evaluator)
	})
}

func TestEvaluate(testInstance *testing.T) {
	testInstance.Run("clean_proposal_merged", func(testInstance *testing.T) {
		reader := &stubMergeStateReader{
			mergeStates: []forge.ProposalMergeState{{Mergeable: forge.MergeableStateClean, State: "OPEN"}},
		}
		evaluator := newTestEvaluator(testInstance, reader)

		verdict, evaluationError := evaluator.Evaluate(context.Background(), testFork(), 7)
		require.NoError(testInstance, evaluationError)
		require.Equal(testInstance, proposal.VerdictMerged, verdict)
		require.Equal(testInstance, 1, reader.mergeCalls)
	})

	testInstance.Run("conflicted_proposal_left_open", func(testInstance *testing.T) {
		reader := &stubMergeStateReader{
			mergeStates: []forge.ProposalMergeState{{Mergeable: forge.MergeableStateConflicting, State: "OPEN"}},
		}
		evaluator := newTestEvaluator(testInstance, reader)

		verdict, evaluationError := evaluator.Evaluate(context.Background(), testFork(), 7)
		require.NoError(testInstance, evaluationError)
		require.Equal(testInstance, proposal.VerdictConflictPending, verdict)
		require.Zero(testInstance, reader.mergeCalls)
	})

	testInstance.Run("already_merged_proposal_is_noop", func(testInstance *testing.T) {
		reader := &stubMergeStateReader{
			mergeStates: []forge.ProposalMergeState{{Mergeable: forge.MergeableStateUnknown, State: "MERGED"}},
		}
		evaluator := newTestEvaluator(testInstance, reader)

		verdict, evaluationError := evaluator.Evaluate(context.Background(), testFork(), 7)
		require.NoError(testInstance, evaluationError)
		require.Equal(testInstance, proposal.VerdictMerged, verdict)
		require.Zero(testInstance, reader.mergeCalls)
	})

	testInstance.Run("undecided_state_repolled", func(testInstance *testing.T) {
		reader := &stubMergeStateReader{
			mergeStates: []forge.ProposalMergeState{
				{Mergeable: forge.MergeableStateUnknown, State: "OPEN"},
				{Mergeable: forge.MergeableStateUnknown, State: "OPEN"},
				{Mergeable: forge.MergeableStateClean, State: "OPEN"},
			},
		}
		evaluator := newTestEvaluator(testInstance, reader)

		verdict, evaluationError := evaluator.Evaluate(context.Background(), testFork(), 7)
		require.NoError(testInstance, evaluationError)
		require.Equal(testInstance, proposal.VerdictMerged, verdict)
		require.Equal(testInstance, 3, reader.stateCalls)
	})

	testInstance.Run("undecided_state_exhausts_as_transient", func(testInstance *testing.T) {
		reader := &stubMergeStateReader{
			mergeStates: []forge.ProposalMergeState{{Mergeable: forge.MergeableStateUnknown, State: "OPEN"}},
		}
		evaluator := newTestEvaluator(testInstance, reader)

		verdict, evaluationError := evaluator.Evaluate(context.Background(), testFork(), 7)
		require.Error(testInstance, evaluationError)
		require.Empty(testInstance, verdict)
		require.Equal(testInstance, forge.FailureKindTransient, forge.KindOf(evaluationError))
		require.Equal(testInstance, 3, reader.stateCalls)
	})

	testInstance.Run("merge_failure_propagates", func(testInstance *testing.T) {
		reader := &stubMergeStateReader{
			mergeStates:  []forge.ProposalMergeState{{Mergeable: forge.MergeableStateClean, State: "OPEN"}},
			mergeFailure: forge.ClassifiedError{Kind: forge.FailureKindUnauthorized, Operation: "MergeProposal", Cause: errors.New("HTTP 403")},
		}
		evaluator := newTestEvaluator(testInstance, reader)

		_, evaluationError := evaluator.Evaluate(context.Background(), testFork(), 7)
		require.Error(testInstance, evaluationError)
		require.Equal(testInstance, forge.FailureKindUnauthorized, forge.KindOf(evaluationError))
	})
}
