package syncrun

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/templatesync/templatesync/internal/detect"
	"github.com/templatesync/templatesync/internal/execshell"
	"github.com/templatesync/templatesync/internal/forge"
	"github.com/templatesync/templatesync/internal/propagate"
	"github.com/templatesync/templatesync/internal/proposal"
	"github.com/templatesync/templatesync/internal/registry"
)

const (
	commandUseConstant                    = "sync"
	commandShortDescriptionConstant       = "Propagate template changes to the registered forks"
	commandLongDescriptionConstant        = "sync detects new commits on the template repository's main branch, fast-forwards each fork's tracking branch, opens labeled merge proposals, and merges the clean ones with a merge commit."
	unexpectedArgumentsMessageConstant    = "sync does not accept positional arguments"
	commandExecutionErrorTemplateConstant = "sync run failed: %w"
	forksFailedMessageConstant            = "one or more forks failed to sync"
	flagDryRunNameConstant                = "dry-run"
	flagDryRunDescriptionConstant         = "Detect changes and list affected forks without touching the forge"
	flagReportNameConstant                = "report"
	flagReportDescriptionConstant         = "Report format: text or csv"
)

var (
	errUnexpectedArguments = errors.New(unexpectedArgumentsMessageConstant)
	errForksFailed         = errors.New(forksFailedMessageConstant)
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider supplies the resolved sync configuration.
type ConfigurationProvider func() Configuration

// CommandBuilder assembles the Cobra command for sync runs.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	Executor              forge.CommandExecutor
}

// Build constructs the sync command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		RunE:  builder.run,
	}

	command.Flags().Bool(flagDryRunNameConstant, false, flagDryRunDescriptionConstant)
	command.Flags().String(flagReportNameConstant, ReportFormatText, flagReportDescriptionConstant)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errUnexpectedArguments
	}

	configuration := builder.resolveConfiguration()
	if validationError := configuration.Validate(); validationError != nil {
		return validationError
	}

	logger := builder.resolveLogger()

	forkRegistry := registry.NewRegistry(configuration.Forks)

	service, serviceError := builder.assembleService(logger, configuration, forkRegistry)
	if serviceError != nil {
		return serviceError
	}

	dryRunValue, _ := command.Flags().GetBool(flagDryRunNameConstant)
	reportFormatValue, _ := command.Flags().GetString(flagReportNameConstant)

	runReport, runError := service.Run(command.Context(), RunOptions{
		TemplateRepository: configuration.Template.Repository,
		TemplateBranch:     configuration.Template.Branch,
		Concurrency:        configuration.Concurrency,
		DryRun:             dryRunValue,
	})
	if runError != nil && len(runReport.Outcomes) == 0 {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, runError)
	}

	if renderError := RenderReport(command.OutOrStdout(), runReport, reportFormatValue); renderError != nil {
		return renderError
	}

	if runError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, runError)
	}
	if runReport.HasFailures() {
		return errForksFailed
	}

	return nil
}

func (builder *CommandBuilder) assembleService(logger *zap.Logger, configuration Configuration, forkRegistry *registry.Registry) (*Service, error) {
	executor, executorError := builder.resolveExecutor(logger)
	if executorError != nil {
		return nil, executorError
	}

	forgeClient, clientError := forge.NewClient(executor)
	if clientError != nil {
		return nil, clientError
	}

	markerStore, storeError := detect.NewMarkerStore(configuration.StateFile)
	if storeError != nil {
		return nil, storeError
	}

	detector, detectorError := detect.NewDetector(detect.Dependencies{
		Logger:      logger,
		Resolver:    forgeClient,
		MarkerStore: markerStore,
	})
	if detectorError != nil {
		return nil, detectorError
	}

	retryPolicy := forge.DefaultRetryPolicy()

	propagator, propagatorError := propagate.NewPropagator(propagate.Dependencies{
		Logger:      logger,
		Forge:       forgeClient,
		RetryPolicy: retryPolicy,
	})
	if propagatorError != nil {
		return nil, propagatorError
	}

	proposer, proposerError := proposal.NewProposer(proposal.Dependencies{
		Logger:      logger,
		Forge:       forgeClient,
		Label:       configuration.Label,
		RetryPolicy: retryPolicy,
	})
	if proposerError != nil {
		return nil, proposerError
	}

	evaluator, evaluatorError := proposal.NewEvaluator(proposal.EvaluatorDependencies{
		Logger:      logger,
		Forge:       forgeClient,
		RetryPolicy: retryPolicy,
	})
	if evaluatorError != nil {
		return nil, evaluatorError
	}

	return NewService(Dependencies{
		Logger:     logger,
		Detector:   detector,
		Propagator: propagator,
		Proposer:   proposer,
		Evaluator:  evaluator,
		Registry:   forkRegistry,
	})
}

func (builder *CommandBuilder) resolveConfiguration() Configuration {
	if builder.ConfigurationProvider == nil {
		return Configuration{}.Normalized()
	}
	return builder.ConfigurationProvider().Normalized()
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}

	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}

	return logger
}

func (builder *CommandBuilder) resolveExecutor(logger *zap.Logger) (forge.CommandExecutor, error) {
	if builder.Executor != nil {
		return builder.Executor, nil
	}

	commandRunner := execshell.NewOSCommandRunner()
	shellExecutor, creationError := execshell.NewShellExecutor(logger, commandRunner)
	if creationError != nil {
		return nil, creationError
	}

	return shellExecutor, nil
}
