package output

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/temirov/latextools/internal/validate"
)

const (
	htmlDocumentStart = "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n"
	htmlDocumentEnd   = "</body>\n</html>\n"
	htmlTitleFallback = "Validation reports"
)

var markdownSpecialCharacters = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	`*`, `\*`,
	`_`, `\_`,
	`[`, `\[`,
	`]`, `\]`,
	`<`, `\<`,
	`>`, `\>`,
	`|`, `\|`,
	`#`, `\#`,
)

var markdownStyle = itemStyle{
	key:    func(key string) string { return "`" + strings.ReplaceAll(key, "`", "'") + "`" },
	quote:  func(text string) string { return "\"" + markdownSpecialCharacters.Replace(text) + "\"" },
	escape: markdownSpecialCharacters.Replace,
}

// RenderMarkdown renders reports as GitHub-flavored markdown.
func RenderMarkdown(reports []validate.Report) string {
	var builder strings.Builder
	for index, report := range reports {
		if index > 0 {
			builder.WriteString("\n")
		}
		fmt.Fprintf(&builder, "# %s\n\n", markdownSpecialCharacters.Replace(reportTitle(report)))
		builder.WriteString("| Item | Count |\n| --- | ---: |\n")
		counts := report.Counts
		for _, row := range []struct {
			name  string
			value int
		}{
			{name: "Labels", value: counts.Labels},
			{name: "References", value: counts.References},
			{name: "Captions", value: counts.Captions},
			{name: "Floats", value: counts.Floats},
			{name: "Citations", value: counts.Citations},
		} {
			fmt.Fprintf(&builder, "| %s | %d |\n", row.name, row.value)
		}
		for _, detail := range reportSections(report, markdownStyle) {
			fmt.Fprintf(&builder, "\n## %s\n\n", detail.title)
			if len(detail.items) == 0 {
				builder.WriteString("None.\n")
				continue
			}
			for _, item := range detail.items {
				fmt.Fprintf(&builder, "- %s\n", item)
			}
		}
	}
	return builder.String()
}

// RenderHTML converts the markdown rendering to a sanitized HTML page.
func RenderHTML(reports []validate.Report) (string, error) {
	var converted bytes.Buffer
	markdown := goldmark.New(goldmark.WithExtensions(extension.Table))
	if conversionError := markdown.Convert([]byte(RenderMarkdown(reports)), &converted); conversionError != nil {
		return "", fmt.Errorf("convert report to html: %w", conversionError)
	}
	sanitized := bluemonday.UGCPolicy().SanitizeBytes(converted.Bytes())

	title := htmlTitleFallback
	if len(reports) == 1 {
		title = reportTitle(reports[0])
	}
	var page strings.Builder
	fmt.Fprintf(&page, htmlDocumentStart, html.EscapeString(title))
	page.Write(sanitized)
	page.WriteString(htmlDocumentEnd)
	return page.String(), nil
}
