package propagate

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/templatesync/templatesync/internal/forge"
	"github.com/templatesync/templatesync/internal/registry"
)

const (
	loggerMissingMessageConstant   = "logger not configured"
	forgeMissingMessageConstant    = "forge client not configured"
	commitMissingMessageConstant   = "source commit required"
	headResolutionErrorTemplate    = "resolving tracking branch head: %w"
	branchCreationErrorTemplate    = "creating tracking branch: %w"
	branchUpdateErrorTemplate      = "fast-forwarding tracking branch: %w"
	trackingBranchCreatedMessage   = "tracking branch created"
	trackingBranchForwardedMessage = "tracking branch fast-forwarded"
	trackingBranchCurrentMessage   = "tracking branch already current"
	logFieldForkConstant           = "fork"
	logFieldTrackingBranchConstant = "tracking_branch"
	logFieldSourceCommitConstant   = "source_commit"
	logFieldPreviousCommitConstant = "previous_commit"
)

// Sentinel errors for propagator construction and input validation.
var (
	ErrLoggerNotConfigured = errors.New(loggerMissingMessageConstant)
	ErrForgeNotConfigured  = errors.New(forgeMissingMessageConstant)
	ErrCommitRequired      = errors.New(commitMissingMessageConstant)
)

// Outcome describes how the tracking branch reached the source commit.
type Outcome string

// Propagation outcomes.
const (
	OutcomeCreated        Outcome = "created"
	OutcomeFastForwarded  Outcome = "fast_forwarded"
	OutcomeAlreadyCurrent Outcome = "already_current"
)

// Result reports a completed propagation for one fork.
type Result struct {
	Fork    registry.Fork
	Outcome Outcome
}

// BranchWriter is the forge surface needed to manage tracking branches.
type BranchWriter interface {
	ResolveBranchHead(executionContext context.Context, repository string, branch string) (string, error)
	CreateBranchReference(executionContext context.Context, repository string, branch string, commit string) error
	UpdateBranchReference(executionContext context.Context, repository string, branch string, commit string) error
}

// Dependencies lists the collaborators required by the propagator.
type Dependencies struct {
	Logger      *zap.Logger
	Forge       BranchWriter
	RetryPolicy forge.RetryPolicy
}

// Propagator ensures fork tracking branches point at the template head.
type Propagator struct {
	logger      *zap.Logger
	forgeClient BranchWriter
	retryPolicy forge.RetryPolicy
}

// NewPropagator validates the dependencies and constructs a Propagator.
func NewPropagator(dependencies Dependencies) (*Propagator, error) {
	if dependencies.Logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if dependencies.Forge == nil {
		return nil, ErrForgeNotConfigured
	}

	return &Propagator{
		logger:      dependencies.Logger,
		forgeClient: dependencies.Forge,
		retryPolicy: dependencies.RetryPolicy,
	}, nil
}

// Ensure makes the fork's tracking branch point at the source commit.
// Re-running with the same commit is a no-op, so interrupted runs can resume.
func (propagator *Propagator) Ensure(executionContext context.Context, targetFork registry.Fork, sourceCommit string) (Result, error) {
	if len(sourceCommit) == 0 {
		return Result{}, ErrCommitRequired
	}

	var trackingHead string
	resolutionError := forge.Retry(executionContext, propagator.retryPolicy, func() error {
		var headError error
		trackingHead, headError = propagator.forgeClient.ResolveBranchHead(executionContext, targetFork.Identifier, targetFork.TrackingBranch)
		return headError
	})

	switch {
	case resolutionError == nil:
	case forge.KindOf(resolutionError) == forge.FailureKindNotFound:
		return propagator.createTrackingBranch(executionContext, targetFork, sourceCommit)
	default:
		return Result{}, fmt.Errorf(headResolutionErrorTemplate, resolutionError)
	}

	if trackingHead == sourceCommit {
		propagator.logger.Debug(
			trackingBranchCurrentMessage,
			zap.String(logFieldForkConstant, targetFork.Identifier),
			zap.String(logFieldTrackingBranchConstant, targetFork.TrackingBranch),
			zap.String(logFieldSourceCommitConstant, sourceCommit),
		)
		return Result{Fork: targetFork, Outcome: OutcomeAlreadyCurrent}, nil
	}

	updateError := forge.Retry(executionContext, propagator.retryPolicy, func() error {
		return propagator.forgeClient.UpdateBranchReference(executionContext, targetFork.Identifier, targetFork.TrackingBranch, sourceCommit)
	})
	if updateError != nil {
		return Result{}, fmt.Errorf(branchUpdateErrorTemplate, updateError)
	}

	propagator.logger.Info(
		trackingBranchForwardedMessage,
		zap.String(logFieldForkConstant, targetFork.Identifier),
		zap.String(logFieldTrackingBranchConstant, targetFork.TrackingBranch),
		zap.String(logFieldSourceCommitConstant, sourceCommit),
		zap.String(logFieldPreviousCommitConstant, trackingHead),
	)

	return Result{Fork: targetFork, Outcome: OutcomeFastForwarded}, nil
}

func (propagator *Propagator) createTrackingBranch(executionContext context.Context, targetFork registry.Fork, sourceCommit string) (Result, error) {
	creationError := forge.Retry(executionContext, propagator.retryPolicy, func() error {
		return propagator.forgeClient.CreateBranchReference(executionContext, targetFork.Identifier, targetFork.TrackingBranch, sourceCommit)
	})

	switch {
	case creationError == nil:
	case forge.KindOf(creationError) == forge.FailureKindAlreadyExists:
		// Lost a race with a concurrent run; the branch exists now, so converge on it.
		return propagator.Ensure(executionContext, targetFork, sourceCommit)
	default:
		return Result{}, fmt.Errorf(branchCreationErrorTemplate, creationError)
	}

	propagator.logger.Info(
		trackingBranchCreatedMessage,
		zap.String(logFieldForkConstant, targetFork.Identifier),
		zap.String(logFieldTrackingBranchConstant, targetFork.TrackingBranch),
		zap.String(logFieldSourceCommitConstant, sourceCommit),
	)

	return Result{Fork: targetFork, Outcome: OutcomeCreated}, nil
}
