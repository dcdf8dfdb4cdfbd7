package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	commandLabelTemplateConstant            = "%s%s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	commandArgumentsJoinSeparatorConstant   = " "
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
	fallbackUnknownValueLabelConstant       = "unknown"
)

const (
	gitLSRemoteSubcommandNameConstant           = "ls-remote"
	githubPullRequestSubcommandNameConstant     = "pr"
	githubPullRequestListSubcommandNameConstant = "list"
	githubPullRequestCreateSubcommandConstant   = "create"
	githubPullRequestEditSubcommandConstant     = "edit"
	githubPullRequestViewSubcommandConstant     = "view"
	githubPullRequestMergeSubcommandConstant    = "merge"
	githubAPICommandNameConstant                = "api"
	githubRepoFlagConstant                      = "--repo"
	githubBaseFlagConstant                      = "--base"
	githubHeadFlagConstant                      = "--head"
	githubLabelFlagConstant                     = "--label"
	githubMethodFlagConstant                    = "-X"
	githubReferenceEndpointSubstringConstant    = "/git/refs"
	githubCurrentRepositoryLabelConstant        = "current repository"
	githubReferenceCreateMethodConstant         = "POST"
	githubReferenceUpdateMethodConstant         = "PATCH"
)

const (
	gitLSRemoteStartTemplateConstant            = "Resolving %s on %s"
	gitLSRemoteSuccessTemplateConstant          = "Resolved %s on %s"
	gitLSRemoteFailureTemplateConstant          = "Failed to resolve %s on %s (exit code %d%s)"
	gitLSRemoteExecutionFailureTemplateConstant = "Unable to resolve %s on %s: %s"

	githubPullRequestListStartTemplateConstant            = "Listing open proposals for %s targeting %s"
	githubPullRequestListSuccessTemplateConstant          = "Listed open proposals for %s targeting %s"
	githubPullRequestListFailureTemplateConstant          = "Failed to list open proposals for %s targeting %s (exit code %d%s)"
	githubPullRequestListExecutionFailureTemplateConstant = "Unable to list open proposals for %s targeting %s: %s"

	githubPullRequestCreateStartTemplateConstant            = "Opening proposal from %s into %s on %s"
	githubPullRequestCreateSuccessTemplateConstant          = "Opened proposal from %s into %s on %s"
	githubPullRequestCreateFailureTemplateConstant          = "Failed to open proposal from %s into %s on %s (exit code %d%s)"
	githubPullRequestCreateExecutionFailureTemplateConstant = "Unable to open proposal from %s into %s on %s: %s"

	githubPullRequestEditStartTemplateConstant            = "Updating proposal #%d on %s"
	githubPullRequestEditSuccessTemplateConstant          = "Updated proposal #%d on %s"
	githubPullRequestEditFailureTemplateConstant          = "Failed to update proposal #%d on %s (exit code %d%s)"
	githubPullRequestEditExecutionFailureTemplateConstant = "Unable to update proposal #%d on %s: %s"

	githubPullRequestViewStartTemplateConstant            = "Checking mergeability of proposal #%d on %s"
	githubPullRequestViewSuccessTemplateConstant          = "Checked mergeability of proposal #%d on %s"
	githubPullRequestViewFailureTemplateConstant          = "Failed to check mergeability of proposal #%d on %s (exit code %d%s)"
	githubPullRequestViewExecutionFailureTemplateConstant = "Unable to check mergeability of proposal #%d on %s: %s"

	githubPullRequestMergeStartTemplateConstant            = "Merging proposal #%d on %s"
	githubPullRequestMergeSuccessTemplateConstant          = "Merged proposal #%d on %s"
	githubPullRequestMergeFailureTemplateConstant          = "Failed to merge proposal #%d on %s (exit code %d%s)"
	githubPullRequestMergeExecutionFailureTemplateConstant = "Unable to merge proposal #%d on %s: %s"

	githubReferenceCreateStartTemplateConstant            = "Creating branch reference on %s"
	githubReferenceCreateSuccessTemplateConstant          = "Created branch reference on %s"
	githubReferenceCreateFailureTemplateConstant          = "Failed to create branch reference on %s (exit code %d%s)"
	githubReferenceCreateExecutionFailureTemplateConstant = "Unable to create branch reference on %s: %s"

	githubReferenceUpdateStartTemplateConstant            = "Updating branch reference %s on %s"
	githubReferenceUpdateSuccessTemplateConstant          = "Updated branch reference %s on %s"
	githubReferenceUpdateFailureTemplateConstant          = "Failed to update branch reference %s on %s (exit code %d%s)"
	githubReferenceUpdateExecutionFailureTemplateConstant = "Unable to update branch reference %s on %s: %s"
)

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	switch command.Name {
	case CommandGit:
		return formatter.describeGitMessage(command, result, failure, stage)
	case CommandGitHub:
		return formatter.describeGitHubMessage(command, result, failure, stage)
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	arguments := command.Details.Arguments
	if len(arguments) == 0 || strings.TrimSpace(arguments[0]) != gitLSRemoteSubcommandNameConstant {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	remoteName := formatter.ensureValue(formatter.extractNonFlagArgument(arguments[1:], 0))
	reference := formatter.ensureValue(formatter.extractNonFlagArgument(arguments[1:], 1))

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitLSRemoteStartTemplateConstant, reference, remoteName)
	case messageStageSuccess:
		return fmt.Sprintf(gitLSRemoteSuccessTemplateConstant, reference, remoteName)
	case messageStageFailure:
		return fmt.Sprintf(gitLSRemoteFailureTemplateConstant, reference, remoteName, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(gitLSRemoteExecutionFailureTemplateConstant, reference, remoteName, formatter.describeFailure(failure))
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitHubMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	if len(command.Details.Arguments) == 0 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	primary := strings.TrimSpace(command.Details.Arguments[0])
	switch primary {
	case githubPullRequestSubcommandNameConstant:
		return formatter.describeGitHubPullRequestCommand(command, result, failure, stage)
	case githubAPICommandNameConstant:
		return formatter.describeGitHubAPICommand(command, result, failure, stage)
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitHubPullRequestCommand(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	arguments := command.Details.Arguments
	if len(arguments) < 2 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	subcommand := strings.TrimSpace(arguments[1])
	repository := formatter.resolveRepositoryLabel(arguments)

	switch subcommand {
	case githubPullRequestListSubcommandNameConstant:
		baseBranch := formatter.ensureValue(findFlagValue(arguments, githubBaseFlagConstant))
		return formatter.applyStageTemplates(stage, result, failure,
			fmt.Sprintf(githubPullRequestListStartTemplateConstant, repository, baseBranch),
			fmt.Sprintf(githubPullRequestListSuccessTemplateConstant, repository, baseBranch),
			githubPullRequestListFailureTemplateConstant, githubPullRequestListExecutionFailureTemplateConstant,
			repository, baseBranch)
	case githubPullRequestCreateSubcommandConstant:
		headBranch := formatter.ensureValue(findFlagValue(arguments, githubHeadFlagConstant))
		baseBranch := formatter.ensureValue(findFlagValue(arguments, githubBaseFlagConstant))
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(githubPullRequestCreateStartTemplateConstant, headBranch, baseBranch, repository)
		case messageStageSuccess:
			return fmt.Sprintf(githubPullRequestCreateSuccessTemplateConstant, headBranch, baseBranch, repository)
		case messageStageFailure:
			return fmt.Sprintf(githubPullRequestCreateFailureTemplateConstant, headBranch, baseBranch, repository, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
		case messageStageExecutionFailure:
			return fmt.Sprintf(githubPullRequestCreateExecutionFailureTemplateConstant, headBranch, baseBranch, repository, formatter.describeFailure(failure))
		}
	case githubPullRequestEditSubcommandConstant:
		return formatter.describeNumberedPullRequestMessage(arguments, repository, result, failure, stage,
			githubPullRequestEditStartTemplateConstant, githubPullRequestEditSuccessTemplateConstant,
			githubPullRequestEditFailureTemplateConstant, githubPullRequestEditExecutionFailureTemplateConstant)
	case githubPullRequestViewSubcommandConstant:
		return formatter.describeNumberedPullRequestMessage(arguments, repository, result, failure, stage,
			githubPullRequestViewStartTemplateConstant, githubPullRequestViewSuccessTemplateConstant,
			githubPullRequestViewFailureTemplateConstant, githubPullRequestViewExecutionFailureTemplateConstant)
	case githubPullRequestMergeSubcommandConstant:
		return formatter.describeNumberedPullRequestMessage(arguments, repository, result, failure, stage,
			githubPullRequestMergeStartTemplateConstant, githubPullRequestMergeSuccessTemplateConstant,
			githubPullRequestMergeFailureTemplateConstant, githubPullRequestMergeExecutionFailureTemplateConstant)
	}

	return formatter.buildGenericMessage(command, result, failure, stage)
}

func (formatter CommandMessageFormatter) describeNumberedPullRequestMessage(arguments []string, repository string, result ExecutionResult, failure error, stage messageStage, startTemplate string, successTemplate string, failureTemplate string, executionFailureTemplate string) string {
	pullRequestNumber := parseIntegerArgument(formatter.extractNonFlagArgument(arguments[2:], 0))
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(startTemplate, pullRequestNumber, repository)
	case messageStageSuccess:
		return fmt.Sprintf(successTemplate, pullRequestNumber, repository)
	case messageStageFailure:
		return fmt.Sprintf(failureTemplate, pullRequestNumber, repository, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(executionFailureTemplate, pullRequestNumber, repository, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) describeGitHubAPICommand(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	arguments := command.Details.Arguments
	if len(arguments) < 2 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	endpoint := strings.TrimSpace(arguments[1])
	method := strings.TrimSpace(findFlagValue(arguments, githubMethodFlagConstant))

	if !strings.Contains(endpoint, githubReferenceEndpointSubstringConstant) {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	repository := formatter.extractRepositoryFromEndpoint(endpoint)

	if method == githubReferenceCreateMethodConstant {
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(githubReferenceCreateStartTemplateConstant, repository)
		case messageStageSuccess:
			return fmt.Sprintf(githubReferenceCreateSuccessTemplateConstant, repository)
		case messageStageFailure:
			return fmt.Sprintf(githubReferenceCreateFailureTemplateConstant, repository, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
		case messageStageExecutionFailure:
			return fmt.Sprintf(githubReferenceCreateExecutionFailureTemplateConstant, repository, formatter.describeFailure(failure))
		}
	}

	if method == githubReferenceUpdateMethodConstant {
		branchName := formatter.extractBranchFromReferenceEndpoint(endpoint)
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(githubReferenceUpdateStartTemplateConstant, branchName, repository)
		case messageStageSuccess:
			return fmt.Sprintf(githubReferenceUpdateSuccessTemplateConstant, branchName, repository)
		case messageStageFailure:
			return fmt.Sprintf(githubReferenceUpdateFailureTemplateConstant, branchName, repository, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
		case messageStageExecutionFailure:
			return fmt.Sprintf(githubReferenceUpdateExecutionFailureTemplateConstant, branchName, repository, formatter.describeFailure(failure))
		}
	}

	return formatter.buildGenericMessage(command, result, failure, stage)
}

func (formatter CommandMessageFormatter) applyStageTemplates(stage messageStage, result ExecutionResult, failure error, startMessage string, successMessage string, failureTemplate string, executionFailureTemplate string, primaryValue string, secondaryValue string) string {
	switch stage {
	case messageStageStart:
		return startMessage
	case messageStageSuccess:
		return successMessage
	case messageStageFailure:
		return fmt.Sprintf(failureTemplate, primaryValue, secondaryValue, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(executionFailureTemplate, primaryValue, secondaryValue, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := formatter.formatCommandLabel(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	commandLabel := string(command.Name)
	if len(command.Details.Arguments) > 0 {
		commandLabel = fmt.Sprintf("%s %s", commandLabel, strings.Join(command.Details.Arguments, commandArgumentsJoinSeparatorConstant))
	}
	workingDirectorySuffix := formatter.formatWorkingDirectorySuffix(command)
	return fmt.Sprintf(commandLabelTemplateConstant, commandLabel, workingDirectorySuffix)
}

func (formatter CommandMessageFormatter) formatWorkingDirectorySuffix(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

func (formatter CommandMessageFormatter) resolveRepositoryLabel(arguments []string) string {
	repository := strings.TrimSpace(findFlagValue(arguments, githubRepoFlagConstant))
	if len(repository) == 0 {
		return githubCurrentRepositoryLabelConstant
	}
	return repository
}

func (formatter CommandMessageFormatter) ensureValue(value string) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return trimmed
}

func (formatter CommandMessageFormatter) extractNonFlagArgument(arguments []string, position int) string {
	seen := 0
	skipNext := false
	for _, argument := range arguments {
		trimmed := strings.TrimSpace(argument)
		if skipNext {
			skipNext = false
			continue
		}
		if len(trimmed) == 0 {
			continue
		}
		if strings.HasPrefix(trimmed, "-") {
			skipNext = true
			continue
		}
		if seen == position {
			return trimmed
		}
		seen++
	}
	return emptyStringConstant
}

func (formatter CommandMessageFormatter) extractRepositoryFromEndpoint(endpoint string) string {
	trimmed := strings.TrimPrefix(strings.TrimSpace(endpoint), "repos/")
	parts := strings.Split(trimmed, "/")
	if len(parts) < 2 {
		return githubCurrentRepositoryLabelConstant
	}
	return strings.Join(parts[:2], "/")
}

func (formatter CommandMessageFormatter) extractBranchFromReferenceEndpoint(endpoint string) string {
	separatorIndex := strings.Index(endpoint, githubReferenceEndpointSubstringConstant)
	if separatorIndex < 0 {
		return fallbackUnknownValueLabelConstant
	}
	remainder := strings.TrimPrefix(endpoint[separatorIndex+len(githubReferenceEndpointSubstringConstant):], "/")
	remainder = strings.TrimPrefix(remainder, "heads/")
	if len(remainder) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return remainder
}

func findFlagValue(arguments []string, flag string) string {
	for index := 0; index < len(arguments); index++ {
		if strings.TrimSpace(arguments[index]) == flag && index+1 < len(arguments) {
			return strings.TrimSpace(arguments[index+1])
		}
	}
	return emptyStringConstant
}

func parseIntegerArgument(argument string) int {
	trimmed := strings.TrimSpace(argument)
	value := 0
	for _, character := range trimmed {
		if character < '0' || character > '9' {
			return value
		}
		value = value*10 + int(character-'0')
	}
	return value
}
