package forge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/templatesync/templatesync/internal/execshell"
)

const (
	pullRequestSubcommandConstant        = "pr"
	listSubcommandConstant               = "list"
	createSubcommandConstant             = "create"
	editSubcommandConstant               = "edit"
	viewSubcommandConstant               = "view"
	mergeSubcommandConstant              = "merge"
	apiSubcommandConstant                = "api"
	lsRemoteSubcommandConstant           = "ls-remote"
	repoFlagConstant                     = "--repo"
	stateFlagConstant                    = "--state"
	baseFlagConstant                     = "--base"
	headFlagConstant                     = "--head"
	labelFlagConstant                    = "--label"
	titleFlagConstant                    = "--title"
	bodyFlagConstant                     = "--body"
	jsonFlagConstant                     = "--json"
	limitFlagConstant                    = "--limit"
	mergeStrategyFlagConstant            = "--merge"
	methodFlagConstant                   = "-X"
	inputFlagConstant                    = "--input"
	stdinReferenceConstant               = "-"
	httpMethodPostConstant               = "POST"
	httpMethodPatchConstant              = "PATCH"
	openStateValueConstant               = "open"
	proposalJSONFieldsConstant           = "number,title,headRefName"
	mergeStateJSONFieldsConstant         = "mergeable,state"
	proposalListLimitConstant            = 100
	repositoryURLTemplateConstant        = "https://github.com/%s.git"
	branchReferenceTemplateConstant      = "refs/heads/%s"
	referencesEndpointTemplateConstant   = "repos/%s/git/refs"
	referenceEndpointTemplateConstant    = "repos/%s/git/refs/heads/%s"
	repositoryFieldNameConstant          = "repository"
	branchFieldNameConstant              = "branch"
	commitFieldNameConstant              = "commit"
	titleFieldNameConstant               = "title"
	headBranchFieldNameConstant          = "head_branch"
	baseBranchFieldNameConstant          = "base_branch"
	proposalNumberFieldNameConstant      = "proposal_number"
	requiredValueMessageConstant         = "value required"
	positiveValueMessageConstant         = "positive value required"
	executorNotConfiguredMessageConstant = "forge command executor not configured"
	invalidInputErrorTemplateConstant    = "%s: %s"
	responseDecodingTemplateConstant     = "%s response decoding failed: %s"
	payloadEncodingTemplateConstant      = "%s payload encoding failed: %s"
	branchNotFoundTemplateConstant       = "branch %s not found on %s"
	proposalURLSeparatorConstant         = "/"

	resolveBranchHeadOperationConstant  = OperationName("ResolveBranchHead")
	createReferenceOperationConstant    = OperationName("CreateBranchReference")
	updateReferenceOperationConstant    = OperationName("UpdateBranchReference")
	listProposalsOperationConstant      = OperationName("ListOpenProposals")
	createProposalOperationConstant     = OperationName("CreateProposal")
	updateProposalOperationConstant     = OperationName("UpdateProposal")
	proposalMergeStateOperationConstant = OperationName("ResolveProposalMergeState")
	mergeProposalOperationConstant      = OperationName("MergeProposal")
)

// OperationName describes a named forge workflow supported by the client.
type OperationName string

// MergeableState describes the forge-reported mergeability of a proposal.
type MergeableState string

// Mergeable state enumerations as reported by the forge.
const (
	MergeableStateClean       MergeableState = MergeableState("MERGEABLE")
	MergeableStateConflicting MergeableState = MergeableState("CONFLICTING")
	MergeableStateUnknown     MergeableState = MergeableState("UNKNOWN")
)

// Proposal represents minimal merge proposal details returned by the forge.
type Proposal struct {
	Number     int
	Title      string
	HeadBranch string
}

// ProposalSpecification describes a merge proposal to open.
type ProposalSpecification struct {
	Title      string
	Body       string
	HeadBranch string
	BaseBranch string
	Label      string
}

// ProposalMergeState captures the forge's view of a proposal's mergeability.
type ProposalMergeState struct {
	Mergeable MergeableState
	State     string
}

// CommandExecutor is the minimal interface required from execshell.ShellExecutor.
type CommandExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
	ExecuteGitHubCLI(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// Client coordinates forge operations through execshell.
type Client struct {
	executor CommandExecutor
}

// ErrExecutorNotConfigured indicates the client was constructed without an executor.
var ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)

// InvalidInputError surfaces validation issues for operation inputs.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}

// ResponseDecodingError indicates JSON decoding failures.
type ResponseDecodingError struct {
	Operation OperationName
	Cause     error
}

// Error describes the decoding failure.
func (decodingError ResponseDecodingError) Error() string {
	return fmt.Sprintf(responseDecodingTemplateConstant, decodingError.Operation, decodingError.Cause)
}

// Unwrap exposes the underlying JSON error.
func (decodingError ResponseDecodingError) Unwrap() error {
	return decodingError.Cause
}

// PayloadEncodingError indicates JSON encoding issues.
type PayloadEncodingError struct {
	Operation OperationName
	Cause     error
}

// Error describes the encoding failure.
func (encodingError PayloadEncodingError) Error() string {
	return fmt.Sprintf(payloadEncodingTemplateConstant, encodingError.Operation, encodingError.Cause)
}

// Unwrap exposes the underlying error.
func (encodingError PayloadEncodingError) Unwrap() error {
	return encodingError.Cause
}

// NewClient constructs a forge client.
func NewClient(executor CommandExecutor) (*Client, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	return &Client{executor: executor}, nil
}

// ResolveBranchHead retrieves the tip commit of a branch using git ls-remote.
func (client *Client) ResolveBranchHead(executionContext context.Context, repository string, branch string) (string, error) {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return "", InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}
	branchName := strings.TrimSpace(branch)
	if len(branchName) == 0 {
		return "", InvalidInputError{FieldName: branchFieldNameConstant, Message: requiredValueMessageConstant}
	}

	commandDetails := execshell.CommandDetails{
		Arguments: []string{
			lsRemoteSubcommandConstant,
			fmt.Sprintf(repositoryURLTemplateConstant, repositoryIdentifier),
			fmt.Sprintf(branchReferenceTemplateConstant, branchName),
		},
	}

	executionResult, executionError := client.executor.ExecuteGit(executionContext, commandDetails)
	if executionError != nil {
		return "", classifyExecutionFailure(string(resolveBranchHeadOperationConstant), executionError)
	}

	commitIdentifier := parseLsRemoteCommit(executionResult.StandardOutput)
	if len(commitIdentifier) == 0 {
		return "", ClassifiedError{
			Kind:      FailureKindNotFound,
			Operation: string(resolveBranchHeadOperationConstant),
			Cause:     fmt.Errorf(branchNotFoundTemplateConstant, branchName, repositoryIdentifier),
		}
	}

	return commitIdentifier, nil
}

// CreateBranchReference creates a branch pointing at the provided commit using gh api.
func (client *Client) CreateBranchReference(executionContext context.Context, repository string, branch string, commit string) error {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}
	branchName := strings.TrimSpace(branch)
	if len(branchName) == 0 {
		return InvalidInputError{FieldName: branchFieldNameConstant, Message: requiredValueMessageConstant}
	}
	commitIdentifier := strings.TrimSpace(commit)
	if len(commitIdentifier) == 0 {
		return InvalidInputError{FieldName: commitFieldNameConstant, Message: requiredValueMessageConstant}
	}

	payload := struct {
		Reference string `json:"ref"`
		Commit    string `json:"sha"`
	}{
		Reference: fmt.Sprintf(branchReferenceTemplateConstant, branchName),
		Commit:    commitIdentifier,
	}

	payloadBytes, encodingError := json.Marshal(payload)
	if encodingError != nil {
		return PayloadEncodingError{Operation: createReferenceOperationConstant, Cause: encodingError}
	}

	commandDetails := execshell.CommandDetails{
		Arguments: []string{
			apiSubcommandConstant,
			fmt.Sprintf(referencesEndpointTemplateConstant, repositoryIdentifier),
			methodFlagConstant,
			httpMethodPostConstant,
			inputFlagConstant,
			stdinReferenceConstant,
		},
		StandardInput: payloadBytes,
	}

	_, executionError := client.executor.ExecuteGitHubCLI(executionContext, commandDetails)
	if executionError != nil {
		return classifyExecutionFailure(string(createReferenceOperationConstant), executionError)
	}

	return nil
}

// UpdateBranchReference fast-forwards an existing branch to the provided commit using gh api.
// The forge rejects non-fast-forward updates because force is never requested.
func (client *Client) UpdateBranchReference(executionContext context.Context, repository string, branch string, commit string) error {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}
	branchName := strings.TrimSpace(branch)
	if len(branchName) == 0 {
		return InvalidInputError{FieldName: branchFieldNameConstant, Message: requiredValueMessageConstant}
	}
	commitIdentifier := strings.TrimSpace(commit)
	if len(commitIdentifier) == 0 {
		return InvalidInputError{FieldName: commitFieldNameConstant, Message: requiredValueMessageConstant}
	}

	payload := struct {
		Commit string `json:"sha"`
		Force  bool   `json:"force"`
	}{
		Commit: commitIdentifier,
		Force:  false,
	}

	payloadBytes, encodingError := json.Marshal(payload)
	if encodingError != nil {
		return PayloadEncodingError{Operation: updateReferenceOperationConstant, Cause: encodingError}
	}

	commandDetails := execshell.CommandDetails{
		Arguments: []string{
			apiSubcommandConstant,
			fmt.Sprintf(referenceEndpointTemplateConstant, repositoryIdentifier, branchName),
			methodFlagConstant,
			httpMethodPatchConstant,
			inputFlagConstant,
			stdinReferenceConstant,
		},
		StandardInput: payloadBytes,
	}

	_, executionError := client.executor.ExecuteGitHubCLI(executionContext, commandDetails)
	if executionError != nil {
		return classifyExecutionFailure(string(updateReferenceOperationConstant), executionError)
	}

	return nil
}

// ListOpenProposals enumerates open labeled proposals targeting the base branch using gh pr list.
func (client *Client) ListOpenProposals(executionContext context.Context, repository string, baseBranch string, label string) ([]Proposal, error) {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return nil, InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(baseBranch)) == 0 {
		return nil, InvalidInputError{FieldName: baseBranchFieldNameConstant, Message: requiredValueMessageConstant}
	}

	arguments := []string{
		pullRequestSubcommandConstant,
		listSubcommandConstant,
		repoFlagConstant,
		repositoryIdentifier,
		stateFlagConstant,
		openStateValueConstant,
		baseFlagConstant,
		baseBranch,
		jsonFlagConstant,
		proposalJSONFieldsConstant,
		limitFlagConstant,
		strconv.Itoa(proposalListLimitConstant),
	}
	if len(strings.TrimSpace(label)) > 0 {
		arguments = append(arguments, labelFlagConstant, label)
	}

	executionResult, executionError := client.executor.ExecuteGitHubCLI(executionContext, execshell.CommandDetails{Arguments: arguments})
	if executionError != nil {
		return nil, classifyExecutionFailure(string(listProposalsOperationConstant), executionError)
	}

	var response []struct {
		Number      int    `json:"number"`
		Title       string `json:"title"`
		HeadRefName string `json:"headRefName"`
	}

	decodingError := json.Unmarshal([]byte(executionResult.StandardOutput), &response)
	if decodingError != nil {
		return nil, ResponseDecodingError{Operation: listProposalsOperationConstant, Cause: decodingError}
	}

	proposals := make([]Proposal, 0, len(response))
	for _, proposalEntry := range response {
		proposals = append(proposals, Proposal{
			Number:     proposalEntry.Number,
			Title:      proposalEntry.Title,
			HeadBranch: proposalEntry.HeadRefName,
		})
	}

	return proposals, nil
}

// CreateProposal opens a labeled merge proposal using gh pr create and returns its number.
func (client *Client) CreateProposal(executionContext context.Context, repository string, specification ProposalSpecification) (Proposal, error) {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return Proposal{}, InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(specification.Title)) == 0 {
		return Proposal{}, InvalidInputError{FieldName: titleFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(specification.HeadBranch)) == 0 {
		return Proposal{}, InvalidInputError{FieldName: headBranchFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(specification.BaseBranch)) == 0 {
		return Proposal{}, InvalidInputError{FieldName: baseBranchFieldNameConstant, Message: requiredValueMessageConstant}
	}

	arguments := []string{
		pullRequestSubcommandConstant,
		createSubcommandConstant,
		repoFlagConstant,
		repositoryIdentifier,
		headFlagConstant,
		specification.HeadBranch,
		baseFlagConstant,
		specification.BaseBranch,
		titleFlagConstant,
		specification.Title,
		bodyFlagConstant,
		specification.Body,
	}
	if len(strings.TrimSpace(specification.Label)) > 0 {
		arguments = append(arguments, labelFlagConstant, specification.Label)
	}

	executionResult, executionError := client.executor.ExecuteGitHubCLI(executionContext, execshell.CommandDetails{Arguments: arguments})
	if executionError != nil {
		return Proposal{}, classifyExecutionFailure(string(createProposalOperationConstant), executionError)
	}

	proposalNumber, parseError := parseProposalNumber(executionResult.StandardOutput)
	if parseError != nil {
		return Proposal{}, ResponseDecodingError{Operation: createProposalOperationConstant, Cause: parseError}
	}

	return Proposal{
		Number:     proposalNumber,
		Title:      specification.Title,
		HeadBranch: specification.HeadBranch,
	}, nil
}

// UpdateProposal refreshes the title and body of an existing proposal using gh pr edit.
func (client *Client) UpdateProposal(executionContext context.Context, repository string, proposalNumber int, title string, body string) error {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if proposalNumber <= 0 {
		return InvalidInputError{FieldName: proposalNumberFieldNameConstant, Message: positiveValueMessageConstant}
	}
	if len(strings.TrimSpace(title)) == 0 {
		return InvalidInputError{FieldName: titleFieldNameConstant, Message: requiredValueMessageConstant}
	}

	commandDetails := execshell.CommandDetails{
		Arguments: []string{
			pullRequestSubcommandConstant,
			editSubcommandConstant,
			strconv.Itoa(proposalNumber),
			repoFlagConstant,
			repositoryIdentifier,
			titleFlagConstant,
			title,
			bodyFlagConstant,
			body,
		},
	}

	_, executionError := client.executor.ExecuteGitHubCLI(executionContext, commandDetails)
	if executionError != nil {
		return classifyExecutionFailure(string(updateProposalOperationConstant), executionError)
	}

	return nil
}

// ResolveProposalMergeState reads the forge-reported mergeability of a proposal using gh pr view.
func (client *Client) ResolveProposalMergeState(executionContext context.Context, repository string, proposalNumber int) (ProposalMergeState, error) {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return ProposalMergeState{}, InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if proposalNumber <= 0 {
		return ProposalMergeState{}, InvalidInputError{FieldName: proposalNumberFieldNameConstant, Message: positiveValueMessageConstant}
	}

	commandDetails := execshell.CommandDetails{
		Arguments: []string{
			pullRequestSubcommandConstant,
			viewSubcommandConstant,
			strconv.Itoa(proposalNumber),
			repoFlagConstant,
			repositoryIdentifier,
			jsonFlagConstant,
			mergeStateJSONFieldsConstant,
		},
	}

	executionResult, executionError := client.executor.ExecuteGitHubCLI(executionContext, commandDetails)
	if executionError != nil {
		return ProposalMergeState{}, classifyExecutionFailure(string(proposalMergeStateOperationConstant), executionError)
	}

	var response struct {
		Mergeable string `json:"mergeable"`
		State     string `json:"state"`
	}

	decodingError := json.Unmarshal([]byte(executionResult.StandardOutput), &response)
	if decodingError != nil {
		return ProposalMergeState{}, ResponseDecodingError{Operation: proposalMergeStateOperationConstant, Cause: decodingError}
	}

	return ProposalMergeState{
		Mergeable: normalizeMergeableState(response.Mergeable),
		State:     response.State,
	}, nil
}

// MergeProposal merges a proposal with a merge commit using gh pr merge.
// Squash and rebase strategies are never requested so fork history is preserved.
func (client *Client) MergeProposal(executionContext context.Context, repository string, proposalNumber int) error {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if proposalNumber <= 0 {
		return InvalidInputError{FieldName: proposalNumberFieldNameConstant, Message: positiveValueMessageConstant}
	}

	commandDetails := execshell.CommandDetails{
		Arguments: []string{
			pullRequestSubcommandConstant,
			mergeSubcommandConstant,
			strconv.Itoa(proposalNumber),
			repoFlagConstant,
			repositoryIdentifier,
			mergeStrategyFlagConstant,
		},
	}

	_, executionError := client.executor.ExecuteGitHubCLI(executionContext, commandDetails)
	if executionError != nil {
		return classifyExecutionFailure(string(mergeProposalOperationConstant), executionError)
	}

	return nil
}

func parseLsRemoteCommit(standardOutput string) string {
	trimmedOutput := strings.TrimSpace(standardOutput)
	if len(trimmedOutput) == 0 {
		return ""
	}
	outputFields := strings.Fields(trimmedOutput)
	return outputFields[0]
}

func parseProposalNumber(standardOutput string) (int, error) {
	outputLines := strings.Split(strings.TrimSpace(standardOutput), "\n")
	for lineIndex := len(outputLines) - 1; lineIndex >= 0; lineIndex-- {
		candidateLine := strings.TrimSpace(outputLines[lineIndex])
		segments := strings.Split(candidateLine, proposalURLSeparatorConstant)
		parsedNumber, parseError := strconv.Atoi(segments[len(segments)-1])
		if parseError == nil && parsedNumber > 0 {
			return parsedNumber, nil
		}
	}
	return 0, fmt.Errorf("proposal number missing in output %q", standardOutput)
}

func normalizeMergeableState(reportedState string) MergeableState {
	switch MergeableState(strings.ToUpper(strings.TrimSpace(reportedState))) {
	case MergeableStateClean:
		return MergeableStateClean
	case MergeableStateConflicting:
		return MergeableStateConflicting
	default:
		return MergeableStateUnknown
	}
}
