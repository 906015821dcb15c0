package output_test

import (
	"encoding/json"
	"encoding/xml"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/temirov/latextools/internal/latex/crossref"
	"github.com/temirov/latextools/internal/output"
	"github.com/temirov/latextools/internal/types"
	"github.com/temirov/latextools/internal/validate"
)

const sampleDocument = `\begin{figure}\caption{A <b>bold</b> claim}\label{fig:a}\end{figure}
\begin{figure}\label{fig:a}\end{figure}
\ref{fig:a} \ref{fig:missing}
\label{sec:unused}`

func sampleReport() validate.Report {
	return validate.Build(crossref.Scan(sampleDocument), validate.Options{
		Document:            "main.tex",
		Citations:           2,
		UnresolvedCitations: []string{"ghost"},
		Warnings:            []types.Warning{{Kind: types.WarningMissingInclude, Message: `included file "x" not found`, Path: "main.tex"}},
	})
}

func TestRenderReportsRawSummary(testingInstance *testing.T) {
	rendered, renderError := output.RenderReports(types.FormatRaw, []validate.Report{sampleReport()}, false)
	if renderError != nil {
		testingInstance.Fatalf("render: %v", renderError)
	}
	for _, fragment := range []string{
		"Validation report: main.tex",
		"Labels: 3, references: 2, captions: 1, floats: 2, citations: 2",
		"Duplicate labels: 1",
		"Undefined references: 1",
		"Unused labels: 1",
		"Caption issues: 1",
		"Unresolved citations: 1",
		"Warnings: 1",
	} {
		if !strings.Contains(rendered, fragment) {
			testingInstance.Fatalf("expected %q in:\n%s", fragment, rendered)
		}
	}
	if strings.Contains(rendered, "fig:missing") {
		testingInstance.Fatalf("summary must not list items")
	}
}

func TestRenderReportsRawVerbose(testingInstance *testing.T) {
	rendered, renderError := output.RenderReports(types.FormatRaw, []validate.Report{sampleReport()}, true)
	if renderError != nil {
		testingInstance.Fatalf("render: %v", renderError)
	}
	for _, fragment := range []string{
		"Duplicate labels (1)",
		"  - fig:a defined at offset 43, offset ",
		"  - fig:missing used at offset ",
		"  - sec:unused (section) at offset ",
		"  - figure without a caption at offset ",
		"  - ghost",
		"missing-include: included file \"x\" not found (main.tex)",
	} {
		if !strings.Contains(rendered, fragment) {
			testingInstance.Fatalf("expected %q in:\n%s", fragment, rendered)
		}
	}
}

func TestRenderReportsStructuredFormats(testingInstance *testing.T) {
	report := sampleReport()
	testCases := []struct {
		name   string
		format string
		check  func(testingHandle *testing.T, rendered string)
	}{
		{
			name:   "json",
			format: types.FormatJSON,
			check: func(testingHandle *testing.T, rendered string) {
				var decoded map[string]interface{}
				if err := json.Unmarshal([]byte(rendered), &decoded); err != nil {
					testingHandle.Fatalf("invalid json: %v", err)
				}
				if decoded["document"] != "main.tex" {
					testingHandle.Fatalf("unexpected document %v", decoded["document"])
				}
				if !strings.Contains(rendered, `"kind": "figure"`) {
					testingHandle.Fatalf("expected kinds rendered by name:\n%s", rendered)
				}
			},
		},
		{
			name:   "xml",
			format: types.FormatXML,
			check: func(testingHandle *testing.T, rendered string) {
				if !strings.HasPrefix(rendered, xml.Header) {
					testingHandle.Fatalf("missing xml header")
				}
				var decoded struct {
					XMLName  xml.Name `xml:"report"`
					Document string   `xml:"document,attr"`
					Keys     []string `xml:"unresolvedCitations>key"`
				}
				if err := xml.Unmarshal([]byte(strings.TrimPrefix(rendered, xml.Header)), &decoded); err != nil {
					testingHandle.Fatalf("invalid xml: %v", err)
				}
				if decoded.Document != "main.tex" || len(decoded.Keys) != 1 || decoded.Keys[0] != "ghost" {
					testingHandle.Fatalf("unexpected decoded report %+v", decoded)
				}
			},
		},
		{
			name:   "yaml",
			format: types.FormatYAML,
			check: func(testingHandle *testing.T, rendered string) {
				var decoded map[string]interface{}
				if err := yaml.Unmarshal([]byte(rendered), &decoded); err != nil {
					testingHandle.Fatalf("invalid yaml: %v", err)
				}
				if decoded["document"] != "main.tex" {
					testingHandle.Fatalf("unexpected document %v", decoded["document"])
				}
				if !strings.Contains(rendered, "kind: section") {
					testingHandle.Fatalf("expected kinds rendered by name:\n%s", rendered)
				}
			},
		},
		{
			name:   "markdown",
			format: types.FormatMarkdown,
			check: func(testingHandle *testing.T, rendered string) {
				for _, fragment := range []string{"# Validation report: main.tex", "| Labels | 3 |", "## Undefined references", "- `fig:missing` used at"} {
					if !strings.Contains(rendered, fragment) {
						testingHandle.Fatalf("expected %q in:\n%s", fragment, rendered)
					}
				}
			},
		},
		{
			name:   "html",
			format: types.FormatHTML,
			check: func(testingHandle *testing.T, rendered string) {
				if !strings.HasPrefix(rendered, "<!DOCTYPE html>") || !strings.Contains(rendered, "<table>") {
					testingHandle.Fatalf("expected an html page with a table:\n%s", rendered)
				}
				if !strings.Contains(rendered, "<code>fig:missing</code>") {
					testingHandle.Fatalf("expected code-formatted keys:\n%s", rendered)
				}
				if strings.Contains(rendered, "<b>") {
					testingHandle.Fatalf("caption markup must not reach the page:\n%s", rendered)
				}
			},
		},
	}
	for _, testCase := range testCases {
		testingInstance.Run(testCase.name, func(testingHandle *testing.T) {
			rendered, renderError := output.RenderReports(testCase.format, []validate.Report{report}, false)
			if renderError != nil {
				testingHandle.Fatalf("render: %v", renderError)
			}
			testCase.check(testingHandle, rendered)
		})
	}
}

func TestRenderReportsMultipleDocuments(testingInstance *testing.T) {
	first := sampleReport()
	second := validate.Build(crossref.Scan(""), validate.Options{Document: "other.tex"})
	rendered, renderError := output.RenderJSON([]validate.Report{first, second})
	if renderError != nil {
		testingInstance.Fatalf("render: %v", renderError)
	}
	var decoded []map[string]interface{}
	if err := json.Unmarshal([]byte(rendered), &decoded); err != nil || len(decoded) != 2 {
		testingInstance.Fatalf("expected a two-element array, got %v (%v)", rendered, err)
	}
	xmlRendered, xmlError := output.RenderXML([]validate.Report{first, second})
	if xmlError != nil || strings.Count(xmlRendered, "<report ") != 2 || !strings.Contains(xmlRendered, "<reports>") {
		testingInstance.Fatalf("unexpected xml %s (%v)", xmlRendered, xmlError)
	}
}

func TestRenderReportsRejectsUnknownFormat(testingInstance *testing.T) {
	if _, renderError := output.RenderReports("toon", nil, false); renderError == nil {
		testingInstance.Fatalf("expected an error for an unknown format")
	}
}

func TestFormatSummaryLine(testingInstance *testing.T) {
	summary := output.NewOutputSummary("onefile.tex", types.ModeAll, 3, 2048, 4, 2)
	summary.TotalTokens = 512
	summary.Model = "gpt-4o"
	expected := "Summary: onefile.tex (all mode), 3 files, 2kb, 4 citations, 2 entries, 512 tokens (model: gpt-4o)"
	if line := output.FormatSummaryLine(summary); line != expected {
		testingInstance.Fatalf("expected %q, got %q", expected, line)
	}
}
