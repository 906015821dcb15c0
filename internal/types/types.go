// Package types defines every cross‑package data structure used by the latextools CLI.
package types

import (
	"encoding/xml"
	"fmt"
)

const (
	FormatRaw      = "raw"
	FormatJSON     = "json"
	FormatXML      = "xml"
	FormatYAML     = "yaml"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"

	ModeAll    = "all"
	ModeBibTeX = "bibtex"

	TeXExtension    = ".tex"
	BibTeXExtension = ".bib"
)

// ValidatedPath is a document path that already passed existence checks.
// InputPath keeps the spelling given on the command line for reports.
type ValidatedPath struct {
	InputPath    string
	AbsolutePath string
}

// Location points at a line of a source file.
type Location struct {
	Path string `json:"path,omitempty" xml:"path,attr,omitempty" yaml:"path,omitempty"`
	Line int    `json:"line,omitempty" xml:"line,attr,omitempty" yaml:"line,omitempty"`
}

// String renders the location as path:line.
func (location Location) String() string {
	if location.Path == "" {
		return ""
	}
	if location.Line <= 0 {
		return location.Path
	}
	return fmt.Sprintf("%s:%d", location.Path, location.Line)
}

// WarningKind classifies a non-fatal diagnostic.
type WarningKind string

const (
	WarningCircularInclusion   WarningKind = "circular-inclusion"
	WarningRepeatedInclusion   WarningKind = "repeated-inclusion"
	WarningMissingInclude      WarningKind = "missing-include"
	WarningUnresolvedCitation  WarningKind = "unresolved-citation"
	WarningMissingBibliography WarningKind = "missing-bibliography"
	WarningParse               WarningKind = "parse"
	WarningUnbalancedEnv       WarningKind = "unbalanced-environment"
)

// Warning is a non-fatal condition collected during a run and surfaced once at the end.
type Warning struct {
	XMLName  xml.Name    `json:"-" xml:"warning" yaml:"-"`
	Kind     WarningKind `json:"kind" xml:"kind,attr" yaml:"kind"`
	Message  string      `json:"message" xml:",chardata" yaml:"message"`
	Path     string      `json:"path,omitempty" xml:"path,attr,omitempty" yaml:"path,omitempty"`
	Position int         `json:"position,omitempty" xml:"position,attr,omitempty" yaml:"position,omitempty"`
}

// String renders the warning for console output.
func (warning Warning) String() string {
	if warning.Path == "" {
		return fmt.Sprintf("%s: %s", warning.Kind, warning.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", warning.Kind, warning.Message, warning.Path)
}

// FatalError aborts a run. It is returned when there is nothing meaningful to produce.
type FatalError struct {
	Op   string
	Path string
	Err  error
}

func (fatalError *FatalError) Error() string {
	if fatalError.Path == "" {
		return fmt.Sprintf("%s: %v", fatalError.Op, fatalError.Err)
	}
	return fmt.Sprintf("%s %s: %v", fatalError.Op, fatalError.Path, fatalError.Err)
}

func (fatalError *FatalError) Unwrap() error {
	return fatalError.Err
}

// OutputSummary captures aggregate information about a written artifact.
type OutputSummary struct {
	Path        string `json:"path" xml:"path" yaml:"path"`
	Mode        string `json:"mode" xml:"mode" yaml:"mode"`
	Files       int    `json:"files" xml:"files" yaml:"files"`
	TotalSize   string `json:"totalSize" xml:"totalSize" yaml:"totalSize"`
	Citations   int    `json:"citations" xml:"citations" yaml:"citations"`
	Entries     int    `json:"entries" xml:"entries" yaml:"entries"`
	TotalTokens int    `json:"totalTokens,omitempty" xml:"totalTokens,omitempty" yaml:"totalTokens,omitempty"`
	Model       string `json:"model,omitempty" xml:"model,omitempty" yaml:"model,omitempty"`
}
