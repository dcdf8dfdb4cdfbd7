package registry

import (
	"fmt"
	"strings"
)

const (
	// DefaultTrackingBranchName is the fork branch that mirrors the template when none is configured.
	DefaultTrackingBranchName = "template-sync"
	// DefaultMainBranchName is the fork integration branch when none is configured.
	DefaultMainBranchName = "main"

	repositorySeparatorConstant           = "/"
	identifierFieldNameConstant           = "identifier"
	trackingBranchFieldNameConstant       = "tracking_branch"
	identifierRequiredMessageConstant     = "fork identifier required"
	identifierShapeMessageConstant        = "fork identifier must use the owner/name form"
	identifierDuplicateMessageConstant    = "fork identifier declared more than once"
	branchCollisionMessageConstant        = "tracking branch must differ from the main branch"
	validationErrorTemplateConstant       = "fork %q: %s: %s"
	validationErrorNoForkTemplateConstant = "%s: %s"
)

// Fork declares a downstream repository that receives template changes.
type Fork struct {
	Identifier     string `mapstructure:"identifier" yaml:"identifier"`
	TrackingBranch string `mapstructure:"tracking_branch" yaml:"tracking_branch"`
	MainBranch     string `mapstructure:"main_branch" yaml:"main_branch"`
}

// Normalized returns the fork with whitespace trimmed and defaults applied.
func (fork Fork) Normalized() Fork {
	normalizedFork := Fork{
		Identifier:     strings.TrimSpace(fork.Identifier),
		TrackingBranch: strings.TrimSpace(fork.TrackingBranch),
		MainBranch:     strings.TrimSpace(fork.MainBranch),
	}
	if len(normalizedFork.TrackingBranch) == 0 {
		normalizedFork.TrackingBranch = DefaultTrackingBranchName
	}
	if len(normalizedFork.MainBranch) == 0 {
		normalizedFork.MainBranch = DefaultMainBranchName
	}
	return normalizedFork
}

// Owner returns the account segment of the fork identifier.
func (fork Fork) Owner() string {
	segments := strings.SplitN(fork.Identifier, repositorySeparatorConstant, 2)
	return segments[0]
}

// Name returns the repository segment of the fork identifier.
func (fork Fork) Name() string {
	segments := strings.SplitN(fork.Identifier, repositorySeparatorConstant, 2)
	if len(segments) < 2 {
		return ""
	}
	return segments[1]
}

// ValidationError reports an invalid fork declaration.
type ValidationError struct {
	ForkIdentifier string
	FieldName      string
	Message        string
}

// Error describes the invalid declaration.
func (validationError ValidationError) Error() string {
	if len(validationError.ForkIdentifier) == 0 {
		return fmt.Sprintf(validationErrorNoForkTemplateConstant, validationError.FieldName, validationError.Message)
	}
	return fmt.Sprintf(validationErrorTemplateConstant, validationError.ForkIdentifier, validationError.FieldName, validationError.Message)
}

// Registry holds validated fork declarations in declaration order. Invalid
// declarations are retained separately so a sync run can report them without
// blocking the valid forks.
type Registry struct {
	forks   []Fork
	invalid []ValidationError
}

// NewRegistry normalizes and validates the provided declarations. An invalid
// declaration fails only itself: it is recorded and the remaining forks still
// register. Declaration order is preserved so sync runs report forks
// deterministically.
func NewRegistry(declarations []Fork) *Registry {
	seenIdentifiers := make(map[string]struct{}, len(declarations))
	validatedForks := make([]Fork, 0, len(declarations))
	invalidDeclarations := []ValidationError{}

	for _, declaration := range declarations {
		normalizedFork := declaration.Normalized()
		if validationError := validateFork(normalizedFork); validationError != nil {
			invalidDeclarations = append(invalidDeclarations, *validationError)
			continue
		}
		if _, alreadySeen := seenIdentifiers[normalizedFork.Identifier]; alreadySeen {
			invalidDeclarations = append(invalidDeclarations, ValidationError{
				ForkIdentifier: normalizedFork.Identifier,
				FieldName:      identifierFieldNameConstant,
				Message:        identifierDuplicateMessageConstant,
			})
			continue
		}
		seenIdentifiers[normalizedFork.Identifier] = struct{}{}
		validatedForks = append(validatedForks, normalizedFork)
	}

	return &Registry{forks: validatedForks, invalid: invalidDeclarations}
}

// Forks returns the registered forks in declaration order.
func (forkRegistry *Registry) Forks() []Fork {
	snapshot := make([]Fork, len(forkRegistry.forks))
	copy(snapshot, forkRegistry.forks)
	return snapshot
}

// InvalidDeclarations returns the declarations that failed validation, in
// declaration order.
func (forkRegistry *Registry) InvalidDeclarations() []ValidationError {
	snapshot := make([]ValidationError, len(forkRegistry.invalid))
	copy(snapshot, forkRegistry.invalid)
	return snapshot
}

// Size returns the number of registered forks.
func (forkRegistry *Registry) Size() int {
	return len(forkRegistry.forks)
}

func validateFork(candidateFork Fork) *ValidationError {
	if len(candidateFork.Identifier) == 0 {
		return &ValidationError{FieldName: identifierFieldNameConstant, Message: identifierRequiredMessageConstant}
	}

	segments := strings.Split(candidateFork.Identifier, repositorySeparatorConstant)
	if len(segments) != 2 || len(strings.TrimSpace(segments[0])) == 0 || len(strings.TrimSpace(segments[1])) == 0 {
		return &ValidationError{
			ForkIdentifier: candidateFork.Identifier,
			FieldName:      identifierFieldNameConstant,
			Message:        identifierShapeMessageConstant,
		}
	}

	if candidateFork.TrackingBranch == candidateFork.MainBranch {
		return &ValidationError{
			ForkIdentifier: candidateFork.Identifier,
			FieldName:      trackingBranchFieldNameConstant,
			Message:        branchCollisionMessageConstant,
		}
	}

	return nil
}
