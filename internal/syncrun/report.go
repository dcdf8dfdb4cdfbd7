package syncrun

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
)

const (
	// ReportFormatText renders a colored human-readable report.
	ReportFormatText = "text"
	// ReportFormatCSV renders a machine-readable report.
	ReportFormatCSV = "csv"

	reportForkHeaderConstant       = "fork"
	reportStatusHeaderConstant     = "status"
	reportProposalHeaderConstant   = "proposal"
	reportDetailHeaderConstant     = "detail"
	reportWriteErrorTemplate       = "writing sync report: %w"
	unknownReportFormatTemplate    = "unknown report format %q"
	unchangedReportMessageConstant = "template unchanged, nothing to do"
	textReportHeaderTemplate       = "template %s@%s commit %s\n"
	textReportLineTemplate         = "  %-40s %-18s %s\n"
	errorStatusTemplateConstant    = "error:%s"
	proposalReferenceTemplate      = "#%d"
	emptyProposalReferenceConstant = "-"
)

// RenderReport writes the report in the requested format.
func RenderReport(outputWriter io.Writer, runReport Report, reportFormat string) error {
	switch reportFormat {
	case ReportFormatCSV:
		return renderCSVReport(outputWriter, runReport)
	case ReportFormatText, "":
		return renderTextReport(outputWriter, runReport)
	default:
		return fmt.Errorf(unknownReportFormatTemplate, reportFormat)
	}
}

func statusLabel(forkOutcome ForkOutcome) string {
	if forkOutcome.Status == StatusError {
		return fmt.Sprintf(errorStatusTemplateConstant, forkOutcome.FailureKind)
	}
	return string(forkOutcome.Status)
}

func proposalReference(forkOutcome ForkOutcome) string {
	if forkOutcome.ProposalNumber <= 0 {
		return emptyProposalReferenceConstant
	}
	return fmt.Sprintf(proposalReferenceTemplate, forkOutcome.ProposalNumber)
}

func renderCSVReport(outputWriter io.Writer, runReport Report) error {
	csvWriter := csv.NewWriter(outputWriter)

	headerRow := []string{reportForkHeaderConstant, reportStatusHeaderConstant, reportProposalHeaderConstant, reportDetailHeaderConstant}
	if writeError := csvWriter.Write(headerRow); writeError != nil {
		return fmt.Errorf(reportWriteErrorTemplate, writeError)
	}

	for _, forkOutcome := range runReport.Outcomes {
		proposalColumn := ""
		if forkOutcome.ProposalNumber > 0 {
			proposalColumn = strconv.Itoa(forkOutcome.ProposalNumber)
		}
		outcomeRow := []string{forkOutcome.Fork.Identifier, statusLabel(forkOutcome), proposalColumn, forkOutcome.Detail}
		if writeError := csvWriter.Write(outcomeRow); writeError != nil {
			return fmt.Errorf(reportWriteErrorTemplate, writeError)
		}
	}

	csvWriter.Flush()
	if flushError := csvWriter.Error(); flushError != nil {
		return fmt.Errorf(reportWriteErrorTemplate, flushError)
	}

	return nil
}

func renderTextReport(outputWriter io.Writer, runReport Report) error {
	if runReport.Unchanged {
		if _, writeError := fmt.Fprintln(outputWriter, unchangedReportMessageConstant); writeError != nil {
			return fmt.Errorf(reportWriteErrorTemplate, writeError)
		}
	} else {
		if _, writeError := fmt.Fprintf(outputWriter, textReportHeaderTemplate, runReport.TemplateRepository, runReport.TemplateBranch, runReport.TemplateCommit); writeError != nil {
			return fmt.Errorf(reportWriteErrorTemplate, writeError)
		}
	}

	for _, forkOutcome := range runReport.Outcomes {
		coloredStatus := colorizeStatus(forkOutcome)
		if _, writeError := fmt.Fprintf(outputWriter, textReportLineTemplate, forkOutcome.Fork.Identifier, coloredStatus, proposalReference(forkOutcome)); writeError != nil {
			return fmt.Errorf(reportWriteErrorTemplate, writeError)
		}
	}

	return nil
}

func colorizeStatus(forkOutcome ForkOutcome) string {
	label := statusLabel(forkOutcome)
	switch forkOutcome.Status {
	case StatusMerged:
		return color.GreenString(label)
	case StatusConflictPending:
		return color.YellowString(label)
	case StatusError:
		return color.RedString(label)
	default:
		return label
	}
}
