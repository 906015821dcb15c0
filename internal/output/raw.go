package output

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/temirov/latextools/internal/validate"
)

const (
	rawItemPrefix    = "  - "
	rawSectionFormat = "%s (%d)"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
	headingStyle = lipgloss.NewStyle().Bold(true)
	problemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// sections highlighted in the summary when non-empty
var rawProblemSections = map[string]struct{}{
	"Duplicate labels":     {},
	"Undefined references": {},
	"Caption issues":       {},
	"Unresolved citations": {},
}

// RenderRaw renders reports for the console.
func RenderRaw(reports []validate.Report, verbose bool) string {
	var builder strings.Builder
	for index, report := range reports {
		if index > 0 {
			builder.WriteString("\n")
		}
		writeRawReport(&builder, report, verbose)
	}
	return builder.String()
}

func writeRawReport(builder *strings.Builder, report validate.Report, verbose bool) {
	builder.WriteString(titleStyle.Render(reportTitle(report)))
	builder.WriteString("\n")
	builder.WriteString(countsLine(report.Counts))
	builder.WriteString("\n")
	for _, detail := range reportSections(report, plainStyle) {
		if !verbose {
			if detail.title == "Labels by kind" {
				continue
			}
			line := fmt.Sprintf("%s: %d", detail.title, len(detail.items))
			if _, problem := rawProblemSections[detail.title]; problem && len(detail.items) > 0 {
				line = problemStyle.Render(line)
			}
			builder.WriteString(line)
			builder.WriteString("\n")
			continue
		}
		if len(detail.items) == 0 {
			continue
		}
		builder.WriteString(headingStyle.Render(fmt.Sprintf(rawSectionFormat, detail.title, len(detail.items))))
		builder.WriteString("\n")
		for _, item := range detail.items {
			builder.WriteString(rawItemPrefix)
			builder.WriteString(item)
			builder.WriteString("\n")
		}
	}
}
