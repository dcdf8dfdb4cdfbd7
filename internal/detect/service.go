package detect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	loggerMissingMessageConstant        = "logger not configured"
	resolverMissingMessageConstant      = "branch head resolver not configured"
	storeMissingMessageConstant         = "marker store not configured"
	templateMissingMessageConstant      = "template repository not configured"
	headResolutionErrorTemplateConstant = "resolving template head: %w"
	markerLoadErrorTemplateConstant     = "loading sync marker: %w"
	changeDetectedMessageConstant       = "template change detected"
	templateUnchangedMessageConstant    = "template unchanged since last sync"
	logFieldRepositoryConstant          = "repository"
	logFieldBranchConstant              = "branch"
	logFieldCommitConstant              = "commit"
	logFieldLastSyncedConstant          = "last_synced_commit"
)

// Sentinel errors for detector construction.
var (
	ErrLoggerNotConfigured   = errors.New(loggerMissingMessageConstant)
	ErrResolverNotConfigured = errors.New(resolverMissingMessageConstant)
	ErrStoreNotConfigured    = errors.New(storeMissingMessageConstant)
	ErrTemplateNotConfigured = errors.New(templateMissingMessageConstant)
)

// ChangeEvent reports a template head that has not been propagated yet.
type ChangeEvent struct {
	Repository   string
	Branch       string
	SourceCommit string
	ObservedAt   time.Time
}

// BranchHeadResolver reads the tip commit of a remote branch.
type BranchHeadResolver interface {
	ResolveBranchHead(executionContext context.Context, repository string, branch string) (string, error)
}

// Dependencies lists the collaborators required by the detector.
type Dependencies struct {
	Logger      *zap.Logger
	Resolver    BranchHeadResolver
	MarkerStore *MarkerStore
	Clock       func() time.Time
}

// Detector compares the template head against the persisted sync marker.
type Detector struct {
	logger      *zap.Logger
	resolver    BranchHeadResolver
	markerStore *MarkerStore
	clock       func() time.Time
}

// NewDetector validates the dependencies and constructs a Detector.
func NewDetector(dependencies Dependencies) (*Detector, error) {
	if dependencies.Logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if dependencies.Resolver == nil {
		return nil, ErrResolverNotConfigured
	}
	if dependencies.MarkerStore == nil {
		return nil, ErrStoreNotConfigured
	}

	clock := dependencies.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Detector{
		logger:      dependencies.Logger,
		resolver:    dependencies.Resolver,
		markerStore: dependencies.MarkerStore,
		clock:       clock,
	}, nil
}

// Detect returns a change event when the template head differs from the marker.
// A nil event means the template is already synchronized.
func (detector *Detector) Detect(executionContext context.Context, repository string, branch string) (*ChangeEvent, error) {
	templateRepository := strings.TrimSpace(repository)
	if len(templateRepository) == 0 {
		return nil, ErrTemplateNotConfigured
	}

	headCommit, resolutionError := detector.resolver.ResolveBranchHead(executionContext, templateRepository, branch)
	if resolutionError != nil {
		return nil, fmt.Errorf(headResolutionErrorTemplateConstant, resolutionError)
	}

	persistedMarker, loadError := detector.markerStore.Load()
	if loadError != nil {
		return nil, fmt.Errorf(markerLoadErrorTemplateConstant, loadError)
	}

	if headCommit == persistedMarker.LastSyncedCommit {
		detector.logger.Debug(
			templateUnchangedMessageConstant,
			zap.String(logFieldRepositoryConstant, templateRepository),
			zap.String(logFieldBranchConstant, branch),
			zap.String(logFieldCommitConstant, headCommit),
		)
		return nil, nil
	}

	detector.logger.Info(
		changeDetectedMessageConstant,
		zap.String(logFieldRepositoryConstant, templateRepository),
		zap.String(logFieldBranchConstant, branch),
		zap.String(logFieldCommitConstant, headCommit),
		zap.String(logFieldLastSyncedConstant, persistedMarker.LastSyncedCommit),
	)

	return &ChangeEvent{
		Repository:   templateRepository,
		Branch:       branch,
		SourceCommit: headCommit,
		ObservedAt:   detector.clock(),
	}, nil
}

// RecordSynced advances the marker to the propagated commit.
func (detector *Detector) RecordSynced(sourceCommit string) error {
	return detector.markerStore.Save(Marker{
		LastSyncedCommit: sourceCommit,
		UpdatedAt:        detector.clock(),
	})
}
