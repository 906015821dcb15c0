// Package output renders validation reports and run summaries.
package output

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/temirov/latextools/internal/types"
	"github.com/temirov/latextools/internal/utils"
	"github.com/temirov/latextools/internal/validate"
)

const (
	indentPrefix = ""
	indentSpacer = "  "

	xmlHeader = xml.Header

	unsupportedFormatMessage = "unsupported report format %q"
	offsetLocationFormat     = "offset %d"
)

// SupportedFormats lists the accepted report formats.
var SupportedFormats = []string{types.FormatRaw, types.FormatJSON, types.FormatXML, types.FormatYAML, types.FormatMarkdown, types.FormatHTML}

// RenderReports renders reports in format. The raw format prints summary
// counts unless verbose is set, in which case every item is listed.
func RenderReports(format string, reports []validate.Report, verbose bool) (string, error) {
	switch strings.ToLower(format) {
	case types.FormatRaw, "":
		return RenderRaw(reports, verbose), nil
	case types.FormatJSON:
		return RenderJSON(reports)
	case types.FormatXML:
		return RenderXML(reports)
	case types.FormatYAML:
		return RenderYAML(reports)
	case types.FormatMarkdown:
		return RenderMarkdown(reports), nil
	case types.FormatHTML:
		return RenderHTML(reports)
	default:
		return "", fmt.Errorf(unsupportedFormatMessage, format)
	}
}

// RenderJSON marshals a single report as an object and several as an array.
func RenderJSON(reports []validate.Report) (string, error) {
	if len(reports) == 1 {
		encoded, jsonEncodeError := json.MarshalIndent(reports[0], indentPrefix, indentSpacer)
		return string(encoded), jsonEncodeError
	}
	if reports == nil {
		reports = []validate.Report{}
	}
	encoded, jsonEncodeError := json.MarshalIndent(reports, indentPrefix, indentSpacer)
	return string(encoded), jsonEncodeError
}

// RenderXML marshals reports as an XML document rooted at <report> or <reports>.
func RenderXML(reports []validate.Report) (string, error) {
	var value interface{}
	if len(reports) == 1 {
		value = reports[0]
	} else {
		value = struct {
			XMLName xml.Name          `xml:"reports"`
			Reports []validate.Report `xml:"report"`
		}{Reports: reports}
	}
	encoded, xmlMarshalError := xml.MarshalIndent(value, indentPrefix, indentSpacer)
	if xmlMarshalError != nil {
		return "", xmlMarshalError
	}
	return xmlHeader + string(encoded), nil
}

// RenderYAML marshals a single report as a mapping and several as a sequence.
func RenderYAML(reports []validate.Report) (string, error) {
	var value interface{} = reports
	if len(reports) == 1 {
		value = reports[0]
	}
	encoded, yamlMarshalError := yaml.Marshal(value)
	if yamlMarshalError != nil {
		return "", yamlMarshalError
	}
	return string(encoded), nil
}

// FormatSummaryLine formats the summary of a written artifact.
func FormatSummaryLine(summary *types.OutputSummary) string {
	if summary == nil {
		summary = &types.OutputSummary{}
	}
	label := "files"
	if summary.Files == 1 {
		label = "file"
	}
	extra := ""
	if summary.TotalTokens > 0 {
		extra = fmt.Sprintf(", %d tokens", summary.TotalTokens)
	}
	modelSuffix := ""
	if summary.Model != "" {
		modelSuffix = fmt.Sprintf(" (model: %s)", summary.Model)
	}
	return fmt.Sprintf("Summary: %s (%s mode), %d %s, %s, %d citations, %d entries%s%s",
		summary.Path, summary.Mode, summary.Files, label, summary.TotalSize, summary.Citations, summary.Entries, extra, modelSuffix)
}

// NewOutputSummary builds the summary of an artifact of sizeBytes bytes.
func NewOutputSummary(path, mode string, files int, sizeBytes int64, citations, entries int) *types.OutputSummary {
	return &types.OutputSummary{
		Path:      path,
		Mode:      mode,
		Files:     files,
		TotalSize: utils.FormatFileSize(sizeBytes),
		Citations: citations,
		Entries:   entries,
	}
}

func describeOccurrence(occurrence validate.Occurrence) string {
	if location := occurrence.Location().String(); location != "" {
		return location
	}
	return fmt.Sprintf(offsetLocationFormat, occurrence.Position)
}

func describeOccurrences(occurrences []validate.Occurrence) string {
	described := make([]string, 0, len(occurrences))
	for _, occurrence := range occurrences {
		described = append(described, describeOccurrence(occurrence))
	}
	return strings.Join(described, ", ")
}

// itemStyle decorates keys and free text for a target format.
type itemStyle struct {
	key    func(string) string
	quote  func(string) string
	escape func(string) string
}

var plainStyle = itemStyle{
	key:    func(key string) string { return key },
	quote:  func(text string) string { return fmt.Sprintf("%q", text) },
	escape: func(text string) string { return text },
}

type section struct {
	title string
	items []string
}

// reportSections lists the detail sections of a report in display order.
func reportSections(report validate.Report, style itemStyle) []section {
	var labelsByKind, duplicates, undefined, unused, captions, citations, warnings []string
	for _, count := range report.LabelsByKind {
		labelsByKind = append(labelsByKind, fmt.Sprintf("%s: %d", count.Kind, count.Count))
	}
	for _, duplicate := range report.DuplicateLabels {
		duplicates = append(duplicates, fmt.Sprintf("%s defined at %s", style.key(duplicate.Key), describeOccurrences(duplicate.Definitions)))
	}
	for _, reference := range report.UndefinedReferences {
		undefined = append(undefined, fmt.Sprintf("%s used at %s", style.key(reference.Key), describeOccurrences(reference.Uses)))
	}
	for _, label := range report.UnusedLabels {
		unused = append(unused, fmt.Sprintf("%s (%s) at %s", style.key(label.Key), label.Kind, describeOccurrence(label.Occurrence)))
	}
	for _, issue := range report.CaptionIssues {
		captions = append(captions, fmt.Sprintf("%s at %s", describeCaptionIssue(issue, style), describeOccurrence(issue.Occurrence)))
	}
	for _, key := range report.UnresolvedCitations {
		citations = append(citations, style.key(key))
	}
	for _, warning := range report.Warnings {
		warnings = append(warnings, style.escape(warning.String()))
	}
	return []section{
		{title: "Labels by kind", items: labelsByKind},
		{title: "Duplicate labels", items: duplicates},
		{title: "Undefined references", items: undefined},
		{title: "Unused labels", items: unused},
		{title: "Caption issues", items: captions},
		{title: "Unresolved citations", items: citations},
		{title: "Warnings", items: warnings},
	}
}

func countsLine(counts validate.Counts) string {
	return fmt.Sprintf("Labels: %d, references: %d, captions: %d, floats: %d, citations: %d",
		counts.Labels, counts.References, counts.Captions, counts.Floats, counts.Citations)
}

func describeCaptionIssue(issue validate.CaptionIssue, style itemStyle) string {
	switch issue.Kind {
	case validate.CaptionMissing:
		return fmt.Sprintf("%s without a caption", issue.Environment)
	case validate.CaptionMismatched:
		return fmt.Sprintf("caption %s in %s is labelled %s", style.quote(issue.Caption), issue.Environment, style.key(issue.LabelKey))
	default:
		environment := issue.Environment
		if environment == "" {
			environment = "document"
		}
		return fmt.Sprintf("caption %s in %s has no label", style.quote(issue.Caption), environment)
	}
}

func reportTitle(report validate.Report) string {
	if report.Document == "" {
		return "Validation report"
	}
	return "Validation report: " + report.Document
}
