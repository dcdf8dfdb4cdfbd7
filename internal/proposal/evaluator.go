package proposal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/templatesync/templatesync/internal/forge"
	"github.com/templatesync/templatesync/internal/registry"
)

const (
	defaultMergeStatePollAttemptsConstant = 5
	defaultMergeStatePollDelayConstant    = 2 * time.Second

	mergeStateUndecidedMessageConstant = "forge did not decide proposal mergeability"
	mergeStateErrorTemplateConstant    = "resolving proposal merge state: %w"
	mergeErrorTemplateConstant         = "merging proposal: %w"
	proposalMergedMessageConstant      = "merge proposal merged"
	proposalConflictedMessageConstant  = "merge proposal conflicted, left open for manual resolution"
	mergedProposalStateConstant        = "MERGED"
	resolveMergeStateOperationConstant = "ResolveProposalMergeState"
)

// MergeStateReader is the forge surface needed to evaluate and merge proposals.
type MergeStateReader interface {
	ResolveProposalMergeState(executionContext context.Context, repository string, proposalNumber int) (forge.ProposalMergeState, error)
	MergeProposal(executionContext context.Context, repository string, proposalNumber int) error
}

// Verdict describes the terminal result of evaluating one proposal.
type Verdict string

// Evaluation verdicts.
const (
	VerdictMerged          Verdict = "merged"
	VerdictConflictPending Verdict = "conflict_pending"
)

// EvaluatorDependencies lists the collaborators required by the evaluator.
type EvaluatorDependencies struct {
	Logger       *zap.Logger
	Forge        MergeStateReader
	RetryPolicy  forge.RetryPolicy
	PollAttempts int
	PollDelay    time.Duration
}

// Evaluator decides whether an open automation proposal merges or waits.
type Evaluator struct {
	logger       *zap.Logger
	forgeClient  MergeStateReader
	retryPolicy  forge.RetryPolicy
	pollAttempts int
	pollDelay    time.Duration
}

// NewEvaluator validates the dependencies and constructs an Evaluator.
func NewEvaluator(dependencies EvaluatorDependencies) (*Evaluator, error) {
	if dependencies.Logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if dependencies.Forge == nil {
		return nil, ErrForgeNotConfigured
	}

	pollAttempts := dependencies.PollAttempts
	if pollAttempts <= 0 {
		pollAttempts = defaultMergeStatePollAttemptsConstant
	}
	pollDelay := dependencies.PollDelay
	if pollDelay <= 0 {
		pollDelay = defaultMergeStatePollDelayConstant
	}

	return &Evaluator{
		logger:       dependencies.Logger,
		forgeClient:  dependencies.Forge,
		retryPolicy:  dependencies.RetryPolicy,
		pollAttempts: pollAttempts,
		pollDelay:    pollDelay,
	}, nil
}

// Evaluate merges the proposal when the forge reports it clean and leaves it
// open when conflicted. An undecided merge state is re-polled a bounded number
// of times before the evaluation fails as transient.
func (evaluator *Evaluator) Evaluate(executionContext context.Context, targetFork registry.Fork, proposalNumber int) (Verdict, error) {
	mergeState, stateError := evaluator.awaitDecidedMergeState(executionContext, targetFork, proposalNumber)
	if stateError != nil {
		return "", stateError
	}

	if mergeState.State == mergedProposalStateConstant {
		return VerdictMerged, nil
	}

	if mergeState.Mergeable == forge.MergeableStateConflicting {
		evaluator.logger.Warn(
			proposalConflictedMessageConstant,
			zap.String(logFieldForkConstant, targetFork.Identifier),
			zap.Int(logFieldProposalNumberConstant, proposalNumber),
		)
		return VerdictConflictPending, nil
	}

	mergeError := forge.Retry(executionContext, evaluator.retryPolicy, func() error {
		return evaluator.forgeClient.MergeProposal(executionContext, targetFork.Identifier, proposalNumber)
	})
	if mergeError != nil {
		return "", fmt.Errorf(mergeErrorTemplateConstant, mergeError)
	}

	evaluator.logger.Info(
		proposalMergedMessageConstant,
		zap.String(logFieldForkConstant, targetFork.Identifier),
		zap.Int(logFieldProposalNumberConstant, proposalNumber),
	)

	return VerdictMerged, nil
}

func (evaluator *Evaluator) awaitDecidedMergeState(executionContext context.Context, targetFork registry.Fork, proposalNumber int) (forge.ProposalMergeState, error) {
	for pollAttempt := 0; pollAttempt < evaluator.pollAttempts; pollAttempt++ {
		if pollAttempt > 0 {
			if sleepError := sleepWithContext(executionContext, evaluator.pollDelay); sleepError != nil {
				return forge.ProposalMergeState{}, sleepError
			}
		}

		var mergeState forge.ProposalMergeState
		stateError := forge.Retry(executionContext, evaluator.retryPolicy, func() error {
			var resolutionError error
			mergeState, resolutionError = evaluator.forgeClient.ResolveProposalMergeState(executionContext, targetFork.Identifier, proposalNumber)
			return resolutionError
		})
		if stateError != nil {
			return forge.ProposalMergeState{}, fmt.Errorf(mergeStateErrorTemplateConstant, stateError)
		}

		if mergeState.Mergeable != forge.MergeableStateUnknown || mergeState.State == mergedProposalStateConstant {
			return mergeState, nil
		}
	}

	return forge.ProposalMergeState{}, forge.ClassifiedError{
		Kind:      forge.FailureKindTransient,
		Operation: resolveMergeStateOperationConstant,
		Cause:     errors.New(mergeStateUndecidedMessageConstant),
	}
}

func sleepWithContext(executionContext context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-executionContext.Done():
		return executionContext.Err()
	case <-timer.C:
		return nil
	}
}
