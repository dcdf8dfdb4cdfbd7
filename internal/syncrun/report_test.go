package syncrun_test

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"github.com/templatesync/templatesync/internal/forge"
	"github.com/templatesync/templatesync/internal/registry"
	"github.com/templatesync/templatesync/internal/syncrun"
)

func sampleReport() syncrun.Report {
	return syncrun.Report{
		TemplateRepository: testTemplateRepositoryConstant,
		TemplateBranch:     testTemplateBranchConstant,
		TemplateCommit:     testTemplateCommitConstant,
		Outcomes: []syncrun.ForkOutcome{
			{Fork: registry.Fork{Identifier: testFirstForkIdentifierConstant}, Status: syncrun.StatusMerged, ProposalNumber: 12},
			{Fork: registry.Fork{Identifier: testSecondForkIdentifierConstant}, Status: syncrun.StatusConflictPending, ProposalNumber: 7},
			{Fork: registry.Fork{Identifier: "acme/dataset-z"}, Status: syncrun.StatusError, FailureKind: forge.FailureKindTransient, Detail: "HTTP 503"},
		},
	}
}

func TestRenderReportCSV(testInstance *testing.T) {
	outputBuffer := &bytes.Buffer{}
	require.NoError(testInstance, syncrun.RenderReport(outputBuffer, sampleReport(), syncrun.ReportFormatCSV))

	expectedOutput := "fork,status,proposal,detail\n" +
		"acme/dataset-x,merged,12,\n" +
		"acme/dataset-y,conflict-pending,7,\n" +
		"acme/dataset-z,error:transient,,HTTP 503\n"
	require.Equal(testInstance, expectedOutput, outputBuffer.String())
}

func TestRenderReportText(testInstance *testing.T) {
	previousNoColor := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = previousNoColor }()

	outputBuffer := &bytes.Buffer{}
	require.NoError(testInstance, syncrun.RenderReport(outputBuffer, sampleReport(), syncrun.ReportFormatText))

	renderedOutput := outputBuffer.String()
	require.Contains(testInstance, renderedOutput, "template acme/service-template@main commit "+testTemplateCommitConstant)
	require.Contains(testInstance, renderedOutput, "acme/dataset-x")
	require.Contains(testInstance, renderedOutput, "merged")
	require.Contains(testInstance, renderedOutput, "conflict-pending")
	require.Contains(testInstance, renderedOutput, "error:transient")
	require.Contains(testInstance, renderedOutput, "#12")
}

func TestRenderReportUnchanged(testInstance *testing.T) {
	previousNoColor := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = previousNoColor }()

	unchangedReport := syncrun.Report{
		Unchanged: true,
		Outcomes: []syncrun.ForkOutcome{
			{Fork: registry.Fork{Identifier: testFirstForkIdentifierConstant}, Status: syncrun.StatusUpToDate},
			{Fork: registry.Fork{Identifier: testSecondForkIdentifierConstant}, Status: syncrun.StatusUpToDate},
		},
	}

	outputBuffer := &bytes.Buffer{}
	require.NoError(testInstance, syncrun.RenderReport(outputBuffer, unchangedReport, syncrun.ReportFormatText))

	renderedOutput := outputBuffer.String()
	require.Contains(testInstance, renderedOutput, "template unchanged, nothing to do\n")
	require.Contains(testInstance, renderedOutput, testFirstForkIdentifierConstant)
	require.Contains(testInstance, renderedOutput, testSecondForkIdentifierConstant)
	require.Contains(testInstance, renderedOutput, "up-to-date")
}

func TestRenderReportUnknownFormat(testInstance *testing.T) {
	renderError := syncrun.RenderReport(&bytes.Buffer{}, sampleReport(), "xml")
	require.Error(testInstance, renderError)
}
