package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/temirov/forksync/internal/forks/batch"
	"github.com/temirov/forksync/internal/forks/machine"
	"github.com/temirov/forksync/internal/repos/shared"
)

// Format names an output encoding for a batch report.
type Format string

// Supported report formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

const (
	unsupportedFormatTemplateConstant = "unsupported report format %q (expected one of %s)"
	formatSeparatorConstant           = ", "
	jsonIndentConstant                = "  "
	conflictedFilesSeparatorConstant  = ";"
	writerMissingMessageConstant      = "report writer not configured"

	textHeadlineTemplateConstant    = "%d repositories: %d succeeded, %d failed, %d skipped in %s\n"
	textCancelledLineConstant       = "run cancelled before every repository started\n"
	textOutcomeTemplateConstant     = "%-8s %-24s %-10s retries=%d %s\n"
	textFailureTemplateConstant     = "  %s: %s\n"
	textConflictsTemplateConstant   = "    conflicted: %s\n"
	textWarningTemplateConstant     = "  %s: stash %s not restored: %s\n"
	textFailuresHeaderConstant      = "failures:\n"
	textWarningsHeaderConstant      = "warnings:\n"
	textDurationsTemplateConstant   = "repository time %s, average %s\n"
	textOutcomeSuccessLabelConstant = "ok"
	textOutcomeFailedLabelConstant  = "FAILED"
	textOutcomeSkippedLabelConstant = "skipped"

	csvHeaderRepositoryConstant      = "repository"
	csvHeaderPathConstant            = "local_path"
	csvHeaderStatusConstant          = "status"
	csvHeaderStateConstant           = "final_state"
	csvHeaderFailedStateConstant     = "failed_state"
	csvHeaderKindConstant            = "error_kind"
	csvHeaderRetriesConstant         = "retries"
	csvHeaderStashConstant           = "stash_restore"
	csvHeaderConflictedFilesConstant = "conflicted_files"
	csvHeaderDurationConstant        = "duration"
	csvHeaderErrorConstant           = "error"
)

// ErrWriterNotConfigured indicates the encoder has nowhere to write.
var ErrWriterNotConfigured = errors.New(writerMissingMessageConstant)

// Formats lists the supported formats in display order.
func Formats() []Format {
	return []Format{FormatText, FormatJSON, FormatYAML, FormatCSV}
}

// ParseFormat normalizes a user supplied format name.
func ParseFormat(raw string) (Format, error) {
	normalized := Format(strings.ToLower(strings.TrimSpace(raw)))
	if len(normalized) == 0 {
		return FormatText, nil
	}
	for _, format := range Formats() {
		if normalized == format {
			return format, nil
		}
	}
	names := make([]string, 0, len(Formats()))
	for _, format := range Formats() {
		names = append(names, string(format))
	}
	return "", fmt.Errorf(unsupportedFormatTemplateConstant, raw, strings.Join(names, formatSeparatorConstant))
}

// Document is the serialized form of a batch report.
type Document struct {
	Summary  Summary               `json:"summary" yaml:"summary"`
	Outcomes []machine.SyncOutcome `json:"outcomes" yaml:"outcomes"`
}

// NewDocument pairs a result with its summary.
func NewDocument(result batch.Result) Document {
	return Document{Summary: Build(result), Outcomes: result.Outcomes}
}

// Encoder writes batch reports to a writer.
type Encoder struct {
	writer io.Writer
}

// NewEncoder constructs an Encoder for writer.
func NewEncoder(writer io.Writer) (*Encoder, error) {
	if writer == nil {
		return nil, ErrWriterNotConfigured
	}
	return &Encoder{writer: writer}, nil
}

// Encode writes result in the requested format.
func (encoder *Encoder) Encode(format Format, result batch.Result) error {
	switch format {
	case FormatJSON:
		jsonEncoder := json.NewEncoder(encoder.writer)
		jsonEncoder.SetIndent("", jsonIndentConstant)
		return jsonEncoder.Encode(NewDocument(result))
	case FormatYAML:
		yamlEncoder := yaml.NewEncoder(encoder.writer)
		yamlEncoder.SetIndent(2)
		if encodeError := yamlEncoder.Encode(NewDocument(result)); encodeError != nil {
			return encodeError
		}
		return yamlEncoder.Close()
	case FormatCSV:
		return encoder.encodeCSV(result)
	case FormatText, "":
		encoder.encodeText(shared.NewWriterReporter(encoder.writer), result)
		return nil
	default:
		_, parseError := ParseFormat(string(format))
		return parseError
	}
}

func (encoder *Encoder) encodeText(reporter shared.Reporter, result batch.Result) {
	summary := Build(result)
	for _, outcome := range result.Outcomes {
		detail := ""
		if outcome.Status != machine.OutcomeSuccess {
			detail = outcome.ErrorMessage
		}
		reporter.Printf(textOutcomeTemplateConstant, outcomeLabel(outcome.Status), outcome.Repository, outcome.FinalState, outcome.RetryCount, detail)
	}

	reporter.Printf(textHeadlineTemplateConstant, summary.Total, summary.Succeeded, summary.Failed, summary.Skipped, summary.WallClock)
	reporter.Printf(textDurationsTemplateConstant, summary.TotalDuration, summary.AverageDuration)
	if summary.Cancelled {
		reporter.Printf(textCancelledLineConstant)
	}
	if len(summary.Failures) > 0 {
		reporter.Printf(textFailuresHeaderConstant)
		for _, failure := range summary.Failures {
			reporter.Printf(textFailureTemplateConstant, failure.Repository, failure.Reason)
			if len(failure.ConflictedFiles) > 0 {
				reporter.Printf(textConflictsTemplateConstant, strings.Join(failure.ConflictedFiles, formatSeparatorConstant))
			}
		}
	}
	if len(summary.StashWarnings) > 0 {
		reporter.Printf(textWarningsHeaderConstant)
		for _, warning := range summary.StashWarnings {
			reporter.Printf(textWarningTemplateConstant, warning.Repository, warning.StashReference, warning.Reason)
		}
	}
}

func (encoder *Encoder) encodeCSV(result batch.Result) error {
	csvWriter := csv.NewWriter(encoder.writer)
	header := []string{
		csvHeaderRepositoryConstant,
		csvHeaderPathConstant,
		csvHeaderStatusConstant,
		csvHeaderStateConstant,
		csvHeaderFailedStateConstant,
		csvHeaderKindConstant,
		csvHeaderRetriesConstant,
		csvHeaderStashConstant,
		csvHeaderConflictedFilesConstant,
		csvHeaderDurationConstant,
		csvHeaderErrorConstant,
	}
	if writeError := csvWriter.Write(header); writeError != nil {
		return writeError
	}
	for _, outcome := range result.Outcomes {
		if writeError := csvWriter.Write(csvRecord(outcome)); writeError != nil {
			return writeError
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

func csvRecord(outcome machine.SyncOutcome) []string {
	failedState := ""
	if outcome.Status != machine.OutcomeSuccess {
		failedState = outcome.FailedState.String()
	}
	return []string{
		outcome.Repository,
		outcome.LocalPath,
		string(outcome.Status),
		outcome.FinalState.String(),
		failedState,
		string(outcome.ErrorKind),
		strconv.Itoa(outcome.RetryCount),
		string(outcome.StashRestore),
		strings.Join(outcome.ConflictedFiles, conflictedFilesSeparatorConstant),
		outcome.Duration.String(),
		outcome.ErrorMessage,
	}
}

func outcomeLabel(status machine.OutcomeStatus) string {
	switch status {
	case machine.OutcomeSuccess:
		return textOutcomeSuccessLabelConstant
	case machine.OutcomeSkipped:
		return textOutcomeSkippedLabelConstant
	default:
		return textOutcomeFailedLabelConstant
	}
}
