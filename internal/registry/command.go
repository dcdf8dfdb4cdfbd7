package registry

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

const (
	commandUseConstant                    = "forks"
	commandShortDescriptionConstant       = "List the forks registered for template propagation"
	commandLongDescriptionConstant        = "forks prints every registered fork with its tracking and main branches in declaration order."
	unexpectedArgumentsMessageConstant    = "forks does not accept positional arguments"
	commandExecutionErrorTemplateConstant = "fork listing failed: %w"
	reportWriteErrorTemplateConstant      = "writing fork report: %w"

	reportIdentifierHeaderConstant     = "identifier"
	reportTrackingBranchHeaderConstant = "tracking_branch"
	reportMainBranchHeaderConstant     = "main_branch"
)

var errUnexpectedArguments = errors.New(unexpectedArgumentsMessageConstant)

// ForksProvider supplies the fork declarations resolved from configuration.
type ForksProvider func() []Fork

// CommandBuilder assembles the Cobra command that lists registered forks.
type CommandBuilder struct {
	ForksProvider ForksProvider
}

// Build constructs the forks command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		RunE:  builder.run,
	}

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errUnexpectedArguments
	}

	declarations := []Fork{}
	if builder.ForksProvider != nil {
		declarations = builder.ForksProvider()
	}

	forkRegistry := NewRegistry(declarations)
	if reportError := writeForkReport(command.OutOrStdout(), forkRegistry.Forks()); reportError != nil {
		return reportError
	}

	invalidDeclarations := forkRegistry.InvalidDeclarations()
	if len(invalidDeclarations) == 0 {
		return nil
	}

	declarationErrors := make([]error, 0, len(invalidDeclarations))
	for _, invalidDeclaration := range invalidDeclarations {
		declarationErrors = append(declarationErrors, invalidDeclaration)
	}
	return fmt.Errorf(commandExecutionErrorTemplateConstant, errors.Join(declarationErrors...))
}

func writeForkReport(outputWriter io.Writer, forks []Fork) error {
	csvWriter := csv.NewWriter(outputWriter)

	headerRow := []string{reportIdentifierHeaderConstant, reportTrackingBranchHeaderConstant, reportMainBranchHeaderConstant}
	if writeError := csvWriter.Write(headerRow); writeError != nil {
		return fmt.Errorf(reportWriteErrorTemplateConstant, writeError)
	}

	for _, registeredFork := range forks {
		forkRow := []string{registeredFork.Identifier, registeredFork.TrackingBranch, registeredFork.MainBranch}
		if writeError := csvWriter.Write(forkRow); writeError != nil {
			return fmt.Errorf(reportWriteErrorTemplateConstant, writeError)
		}
	}

	csvWriter.Flush()
	if flushError := csvWriter.Error(); flushError != nil {
		return fmt.Errorf(reportWriteErrorTemplateConstant, flushError)
	}

	return nil
}
