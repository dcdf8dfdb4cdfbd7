package proposal

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/templatesync/templatesync/internal/forge"
	"github.com/templatesync/templatesync/internal/registry"
)

const (
	// DefaultProposalLabel marks automation proposals so manual pull requests are never touched.
	DefaultProposalLabel = "template-sync"

	loggerMissingMessageConstant     = "logger not configured"
	forgeMissingMessageConstant      = "forge client not configured"
	commitMissingMessageConstant     = "source commit required"
	nothingToProposeMessageConstant  = "tracking branch holds no commits beyond the main branch"
	proposalTitleTemplateConstant    = "Sync template changes (%s)"
	proposalBodyTemplateConstant     = "Automated propagation of template commit %s into %s."
	proposalListErrorTemplate        = "listing open proposals: %w"
	proposalCreateErrorTemplate      = "opening proposal: %w"
	proposalUpdateErrorTemplate      = "refreshing proposal: %w"
	proposalOpenedMessageConstant    = "merge proposal opened"
	proposalRefreshedMessageConstant = "merge proposal refreshed"
	shortCommitLengthConstant        = 12
	logFieldForkConstant             = "fork"
	logFieldProposalNumberConstant   = "proposal_number"
	logFieldSourceCommitConstant     = "source_commit"
)

// Sentinel errors for proposer construction and input validation.
var (
	ErrLoggerNotConfigured = errors.New(loggerMissingMessageConstant)
	ErrForgeNotConfigured  = errors.New(forgeMissingMessageConstant)
	ErrCommitRequired      = errors.New(commitMissingMessageConstant)

	// ErrNothingToPropose signals the fork's main branch already contains the
	// tracking branch, so no proposal is needed.
	ErrNothingToPropose = errors.New(nothingToProposeMessageConstant)
)

// ProposalManager is the forge surface needed to maintain merge proposals.
type ProposalManager interface {
	ListOpenProposals(executionContext context.Context, repository string, baseBranch string, label string) ([]forge.Proposal, error)
	CreateProposal(executionContext context.Context, repository string, specification forge.ProposalSpecification) (forge.Proposal, error)
	UpdateProposal(executionContext context.Context, repository string, proposalNumber int, title string, body string) error
}

// Dependencies lists the collaborators required by the proposer.
type Dependencies struct {
	Logger      *zap.Logger
	Forge       ProposalManager
	Label       string
	RetryPolicy forge.RetryPolicy
}

// Proposer ensures each fork carries exactly one open automation proposal.
type Proposer struct {
	logger      *zap.Logger
	forgeClient ProposalManager
	label       string
	retryPolicy forge.RetryPolicy
}

// NewProposer validates the dependencies and constructs a Proposer.
func NewProposer(dependencies Dependencies) (*Proposer, error) {
	if dependencies.Logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if dependencies.Forge == nil {
		return nil, ErrForgeNotConfigured
	}

	proposalLabel := dependencies.Label
	if len(proposalLabel) == 0 {
		proposalLabel = DefaultProposalLabel
	}

	return &Proposer{
		logger:      dependencies.Logger,
		forgeClient: dependencies.Forge,
		label:       proposalLabel,
		retryPolicy: dependencies.RetryPolicy,
	}, nil
}

// EnsureProposal opens the automation proposal for the fork or refreshes the
// existing one, keeping the at-most-one invariant for labeled proposals.
func (proposer *Proposer) EnsureProposal(executionContext context.Context, targetFork registry.Fork, sourceCommit string) (forge.Proposal, error) {
	if len(sourceCommit) == 0 {
		return forge.Proposal{}, ErrCommitRequired
	}

	var openProposals []forge.Proposal
	listingError := forge.Retry(executionContext, proposer.retryPolicy, func() error {
		var listError error
		openProposals, listError = proposer.forgeClient.ListOpenProposals(executionContext, targetFork.Identifier, targetFork.MainBranch, proposer.label)
		return listError
	})
	if listingError != nil {
		return forge.Proposal{}, fmt.Errorf(proposalListErrorTemplate, listingError)
	}

	proposalTitle := buildProposalTitle(sourceCommit)
	proposalBody := fmt.Sprintf(proposalBodyTemplateConstant, sourceCommit, targetFork.MainBranch)

	existingProposal, proposalFound := findTrackingProposal(openProposals, targetFork.TrackingBranch)
	if proposalFound {
		return proposer.refreshProposal(executionContext, targetFork, existingProposal, proposalTitle, proposalBody, sourceCommit)
	}

	specification := forge.ProposalSpecification{
		Title:      proposalTitle,
		Body:       proposalBody,
		HeadBranch: targetFork.TrackingBranch,
		BaseBranch: targetFork.MainBranch,
		Label:      proposer.label,
	}

	var openedProposal forge.Proposal
	creationError := forge.Retry(executionContext, proposer.retryPolicy, func() error {
		var createError error
		openedProposal, createError = proposer.forgeClient.CreateProposal(executionContext, targetFork.Identifier, specification)
		return createError
	})
	switch {
	case creationError == nil:
	case forge.KindOf(creationError) == forge.FailureKindAlreadyExists:
		// Either a concurrent run opened the proposal first or the branches
		// hold no differing commits. A second listing disambiguates.
		relistError := forge.Retry(executionContext, proposer.retryPolicy, func() error {
			var listError error
			openProposals, listError = proposer.forgeClient.ListOpenProposals(executionContext, targetFork.Identifier, targetFork.MainBranch, proposer.label)
			return listError
		})
		if relistError == nil {
			if racedProposal, racedFound := findTrackingProposal(openProposals, targetFork.TrackingBranch); racedFound {
				return racedProposal, nil
			}
		}
		return forge.Proposal{}, ErrNothingToPropose
	default:
		return forge.Proposal{}, fmt.Errorf(proposalCreateErrorTemplate, creationError)
	}

	proposer.logger.Info(
		proposalOpenedMessageConstant,
		zap.String(logFieldForkConstant, targetFork.Identifier),
		zap.Int(logFieldProposalNumberConstant, openedProposal.Number),
		zap.String(logFieldSourceCommitConstant, sourceCommit),
	)

	return openedProposal, nil
}

func (proposer *Proposer) refreshProposal(executionContext context.Context, targetFork registry.Fork, existingProposal forge.Proposal, proposalTitle string, proposalBody string, sourceCommit string) (forge.Proposal, error) {
	if existingProposal.Title == proposalTitle {
		return existingProposal, nil
	}

	updateError := forge.Retry(executionContext, proposer.retryPolicy, func() error {
		return proposer.forgeClient.UpdateProposal(executionContext, targetFork.Identifier, existingProposal.Number, proposalTitle, proposalBody)
	})
	if updateError != nil {
		return forge.Proposal{}, fmt.Errorf(proposalUpdateErrorTemplate, updateError)
	}

	proposer.logger.Info(
		proposalRefreshedMessageConstant,
		zap.String(logFieldForkConstant, targetFork.Identifier),
		zap.Int(logFieldProposalNumberConstant, existingProposal.Number),
		zap.String(logFieldSourceCommitConstant, sourceCommit),
	)

	refreshedProposal := existingProposal
	refreshedProposal.Title = proposalTitle
	return refreshedProposal, nil
}

func findTrackingProposal(openProposals []forge.Proposal, trackingBranch string) (forge.Proposal, bool) {
	for _, candidateProposal := range openProposals {
		if candidateProposal.HeadBranch == trackingBranch {
			return candidateProposal, true
		}
	}
	return forge.Proposal{}, false
}

func buildProposalTitle(sourceCommit string) string {
	shortCommit := sourceCommit
	if len(shortCommit) > shortCommitLengthConstant {
		shortCommit = shortCommit[:shortCommitLengthConstant]
	}
	return fmt.Sprintf(proposalTitleTemplateConstant, shortCommit)
}
