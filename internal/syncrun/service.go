package syncrun

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/templatesync/templatesync/internal/detect"
	"github.com/templatesync/templatesync/internal/forge"
	"github.com/templatesync/templatesync/internal/propagate"
	"github.com/templatesync/templatesync/internal/proposal"
	"github.com/templatesync/templatesync/internal/registry"
)

const (
	loggerMissingMessageConstant       = "logger not configured"
	detectorMissingMessageConstant     = "change detector not configured"
	propagatorMissingMessageConstant   = "propagator not configured"
	proposerMissingMessageConstant     = "proposer not configured"
	evaluatorMissingMessageConstant    = "evaluator not configured"
	registryMissingMessageConstant     = "fork registry not configured"
	runAbortedDetailConstant           = "run aborted before this fork was processed"
	runStartedMessageConstant          = "sync run started"
	runFinishedMessageConstant         = "sync run finished"
	runUnchangedMessageConstant        = "template unchanged, nothing to propagate"
	invalidDeclarationsMessageConstant = "invalid fork declarations excluded from the run"
	markerAdvancedMessageConstant      = "sync marker advanced"
	markerHeldMessageConstant          = "sync marker held back until every fork succeeds"
	logFieldTemplateConstant           = "template"
	logFieldCommitConstant             = "commit"
	logFieldForkCountConstant          = "fork_count"
	logFieldConcurrencyConstant        = "concurrency"
	logFieldInvalidCountConstant       = "invalid_count"
)

// Sentinel errors for service construction.
var (
	ErrLoggerNotConfigured     = errors.New(loggerMissingMessageConstant)
	ErrDetectorNotConfigured   = errors.New(detectorMissingMessageConstant)
	ErrPropagatorNotConfigured = errors.New(propagatorMissingMessageConstant)
	ErrProposerNotConfigured   = errors.New(proposerMissingMessageConstant)
	ErrEvaluatorNotConfigured  = errors.New(evaluatorMissingMessageConstant)
	ErrRegistryNotConfigured   = errors.New(registryMissingMessageConstant)
)

// Status describes the terminal outcome for one fork in a run.
type Status string

// Fork outcome statuses.
const (
	StatusUpToDate        Status = "up-to-date"
	StatusMerged          Status = "merged"
	StatusConflictPending Status = "conflict-pending"
	StatusError           Status = "error"
	StatusPlanned         Status = "planned"
)

// ForkOutcome reports what happened to one fork during a run.
type ForkOutcome struct {
	Fork           registry.Fork
	Status         Status
	ProposalNumber int
	FailureKind    forge.FailureKind
	Detail         string
}

// Report summarizes a completed sync run.
type Report struct {
	TemplateRepository string
	TemplateBranch     string
	TemplateCommit     string
	Unchanged          bool
	Outcomes           []ForkOutcome
}

// HasFailures reports whether any fork ended in an error outcome.
func (runReport Report) HasFailures() bool {
	for _, forkOutcome := range runReport.Outcomes {
		if forkOutcome.Status == StatusError {
			return true
		}
	}
	return false
}

// ChangeDetector observes the template and records completed syncs.
type ChangeDetector interface {
	Detect(executionContext context.Context, repository string, branch string) (*detect.ChangeEvent, error)
	RecordSynced(sourceCommit string) error
}

// TrackingPropagator moves the template commit onto fork tracking branches.
type TrackingPropagator interface {
	Ensure(executionContext context.Context, targetFork registry.Fork, sourceCommit string) (propagate.Result, error)
}

// MergeProposer maintains the labeled proposal for each fork.
type MergeProposer interface {
	EnsureProposal(executionContext context.Context, targetFork registry.Fork, sourceCommit string) (forge.Proposal, error)
}

// MergeEvaluator merges clean proposals and reports conflicted ones.
type MergeEvaluator interface {
	Evaluate(executionContext context.Context, targetFork registry.Fork, proposalNumber int) (proposal.Verdict, error)
}

// Dependencies lists the collaborators required by the sync service.
type Dependencies struct {
	Logger     *zap.Logger
	Detector   ChangeDetector
	Propagator TrackingPropagator
	Proposer   MergeProposer
	Evaluator  MergeEvaluator
	Registry   *registry.Registry
}

// RunOptions tunes a single sync run.
type RunOptions struct {
	TemplateRepository string
	TemplateBranch     string
	Concurrency        int
	DryRun             bool
}

// Service executes sync runs across the registered forks.
type Service struct {
	logger     *zap.Logger
	detector   ChangeDetector
	propagator TrackingPropagator
	proposer   MergeProposer
	evaluator  MergeEvaluator
	registry   *registry.Registry
}

// NewService validates the dependencies and constructs a Service.
func NewService(dependencies Dependencies) (*Service, error) {
	if dependencies.Logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if dependencies.Detector == nil {
		return nil, ErrDetectorNotConfigured
	}
	if dependencies.Propagator == nil {
		return nil, ErrPropagatorNotConfigured
	}
	if dependencies.Proposer == nil {
		return nil, ErrProposerNotConfigured
	}
	if dependencies.Evaluator == nil {
		return nil, ErrEvaluatorNotConfigured
	}
	if dependencies.Registry == nil {
		return nil, ErrRegistryNotConfigured
	}

	return &Service{
		logger:     dependencies.Logger,
		detector:   dependencies.Detector,
		propagator: dependencies.Propagator,
		proposer:   dependencies.Proposer,
		evaluator:  dependencies.Evaluator,
		registry:   dependencies.Registry,
	}, nil
}

// Run performs one complete detection and propagation pass. Credential
// failures cancel the remaining forks; every other failure is isolated to the
// fork that raised it.
func (service *Service) Run(executionContext context.Context, options RunOptions) (Report, error) {
	changeEvent, detectionError := service.detector.Detect(executionContext, options.TemplateRepository, options.TemplateBranch)
	if detectionError != nil {
		return Report{}, detectionError
	}

	runReport := Report{
		TemplateRepository: options.TemplateRepository,
		TemplateBranch:     options.TemplateBranch,
	}

	invalidOutcomes := service.invalidDeclarationOutcomes()
	if len(invalidOutcomes) > 0 {
		service.logger.Warn(invalidDeclarationsMessageConstant, zap.Int(logFieldInvalidCountConstant, len(invalidOutcomes)))
	}

	if changeEvent == nil {
		service.logger.Info(runUnchangedMessageConstant, zap.String(logFieldTemplateConstant, options.TemplateRepository))
		runReport.Unchanged = true
		for _, registeredFork := range service.registry.Forks() {
			runReport.Outcomes = append(runReport.Outcomes, ForkOutcome{Fork: registeredFork, Status: StatusUpToDate})
		}
		runReport.Outcomes = append(runReport.Outcomes, invalidOutcomes...)
		return runReport, nil
	}

	runReport.TemplateCommit = changeEvent.SourceCommit

	registeredForks := service.registry.Forks()
	concurrencyLimit := options.Concurrency
	if concurrencyLimit <= 0 {
		concurrencyLimit = DefaultConcurrency
	}

	service.logger.Info(
		runStartedMessageConstant,
		zap.String(logFieldTemplateConstant, options.TemplateRepository),
		zap.String(logFieldCommitConstant, changeEvent.SourceCommit),
		zap.Int(logFieldForkCountConstant, len(registeredForks)),
		zap.Int(logFieldConcurrencyConstant, concurrencyLimit),
	)

	if options.DryRun {
		for _, registeredFork := range registeredForks {
			runReport.Outcomes = append(runReport.Outcomes, ForkOutcome{Fork: registeredFork, Status: StatusPlanned})
		}
		runReport.Outcomes = append(runReport.Outcomes, invalidOutcomes...)
		return runReport, nil
	}

	forkOutcomes := make([]ForkOutcome, len(registeredForks))
	workerGroup, groupContext := errgroup.WithContext(executionContext)
	workerGroup.SetLimit(concurrencyLimit)

	for forkIndex, registeredFork := range registeredForks {
		forkIndex, registeredFork := forkIndex, registeredFork
		workerGroup.Go(func() error {
			forkOutcomes[forkIndex] = service.processFork(groupContext, registeredFork, changeEvent.SourceCommit)
			if forkOutcomes[forkIndex].FailureKind == forge.FailureKindUnauthorized {
				return forge.ClassifiedError{
					Kind:      forge.FailureKindUnauthorized,
					Operation: "Run",
					Cause:     errors.New(forkOutcomes[forkIndex].Detail),
				}
			}
			return nil
		})
	}

	runError := workerGroup.Wait()

	for outcomeIndex := range forkOutcomes {
		if len(forkOutcomes[outcomeIndex].Status) == 0 {
			forkOutcomes[outcomeIndex] = ForkOutcome{
				Fork:        registeredForks[outcomeIndex],
				Status:      StatusError,
				FailureKind: forge.FailureKindUnauthorized,
				Detail:      runAbortedDetailConstant,
			}
		}
	}
	runReport.Outcomes = append(forkOutcomes, invalidOutcomes...)

	service.logger.Info(
		runFinishedMessageConstant,
		zap.String(logFieldTemplateConstant, options.TemplateRepository),
		zap.String(logFieldCommitConstant, changeEvent.SourceCommit),
	)

	if runError == nil && !runReport.HasFailures() {
		if markerError := service.detector.RecordSynced(changeEvent.SourceCommit); markerError != nil {
			return runReport, markerError
		}
		service.logger.Info(markerAdvancedMessageConstant, zap.String(logFieldCommitConstant, changeEvent.SourceCommit))
	} else {
		service.logger.Warn(markerHeldMessageConstant, zap.String(logFieldCommitConstant, changeEvent.SourceCommit))
	}

	return runReport, runError
}

func (service *Service) processFork(executionContext context.Context, targetFork registry.Fork, sourceCommit string) ForkOutcome {
	if _, propagationError := service.propagator.Ensure(executionContext, targetFork, sourceCommit); propagationError != nil {
		return failureOutcome(targetFork, propagationError)
	}

	ensuredProposal, proposalError := service.proposer.EnsureProposal(executionContext, targetFork, sourceCommit)
	if errors.Is(proposalError, proposal.ErrNothingToPropose) {
		return ForkOutcome{Fork: targetFork, Status: StatusUpToDate}
	}
	if proposalError != nil {
		return failureOutcome(targetFork, proposalError)
	}

	verdict, evaluationError := service.evaluator.Evaluate(executionContext, targetFork, ensuredProposal.Number)
	if evaluationError != nil {
		forkOutcome := failureOutcome(targetFork, evaluationError)
		forkOutcome.ProposalNumber = ensuredProposal.Number
		return forkOutcome
	}

	forkOutcome := ForkOutcome{Fork: targetFork, ProposalNumber: ensuredProposal.Number}
	switch verdict {
	case proposal.VerdictConflictPending:
		forkOutcome.Status = StatusConflictPending
	default:
		forkOutcome.Status = StatusMerged
	}
	return forkOutcome
}

func (service *Service) invalidDeclarationOutcomes() []ForkOutcome {
	invalidDeclarations := service.registry.InvalidDeclarations()
	if len(invalidDeclarations) == 0 {
		return nil
	}

	outcomes := make([]ForkOutcome, 0, len(invalidDeclarations))
	for _, invalidDeclaration := range invalidDeclarations {
		outcomes = append(outcomes, ForkOutcome{
			Fork:        registry.Fork{Identifier: invalidDeclaration.ForkIdentifier},
			Status:      StatusError,
			FailureKind: forge.FailureKindConfiguration,
			Detail:      invalidDeclaration.Error(),
		})
	}
	return outcomes
}

func failureOutcome(targetFork registry.Fork, failure error) ForkOutcome {
	return ForkOutcome{
		Fork:        targetFork,
		Status:      StatusError,
		FailureKind: forge.KindOf(failure),
		Detail:      failure.Error(),
	}
}
