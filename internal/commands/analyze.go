// Package commands runs the consolidation and validation pipeline behind each command.
package commands

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/temirov/latextools/internal/bibtex"
	"github.com/temirov/latextools/internal/latex/citation"
	"github.com/temirov/latextools/internal/latex/crossref"
	"github.com/temirov/latextools/internal/latex/include"
	"github.com/temirov/latextools/internal/latex/source"
	"github.com/temirov/latextools/internal/types"
	"github.com/temirov/latextools/internal/validate"
)

const (
	unresolvedCitationFormat = "citation key %q not found in bibliography"

	logBibliography = "loaded bibliography"
	logFieldPath    = "path"
	logFieldEntries = "entries"
)

// AnalysisOptions configures a pipeline run over one root document.
type AnalysisOptions struct {
	InputPath         string
	Mode              string
	BibliographyPaths []string
	Markers           bool
	CitationCommands  []string
	Loader            source.Loader
	Logger            *zap.Logger
}

// Analysis is everything known about a consolidated document.
type Analysis struct {
	Document     include.Document
	Citations    []string
	Bibliography Bibliography
	Cited        []bibtex.Entry
	Report       validate.Report
	// Warnings holds every diagnostic of the run, including unresolved
	// citations which the report lists separately.
	Warnings []types.Warning
}

// Analyze resolves, scans and validates the document at options.InputPath.
// The returned error is always a *types.FatalError.
func Analyze(options AnalysisOptions) (Analysis, error) {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	loader := options.Loader
	if loader == nil {
		loader = source.FileLoader{}
	}

	resolver := include.NewResolver(
		include.WithLoader(loader),
		include.WithMarkers(options.Markers),
		include.WithLogger(logger),
	)
	document, warnings, resolveError := resolver.Resolve(options.InputPath)
	if resolveError != nil {
		return Analysis{}, resolveError
	}

	occurrences, citationWarnings := citation.Occurrences(document.Text, options.CitationCommands...)
	citedKeys := citation.UniqueKeys(occurrences)
	warnings = append(warnings, locateWarnings(document, citationWarnings)...)

	index := crossref.Scan(document.Text)
	index.Warnings = locateWarnings(document, index.Warnings)

	bibliography, bibliographyError := loadBibliography(document, options, loader)
	if bibliographyError != nil {
		return Analysis{}, bibliographyError
	}
	warnings = append(warnings, bibliography.Warnings...)
	for _, loaded := range bibliography.Sources {
		logger.Debug(logBibliography, zap.String(logFieldPath, loaded.Path), zap.Int(logFieldEntries, loaded.Entries))
	}

	cited, unresolved := bibtex.Filter(bibliography.Entries, citedKeys)

	report := validate.Build(index, validate.Options{
		Document:            options.InputPath,
		Locator:             document,
		Citations:           len(citedKeys),
		UnresolvedCitations: unresolved,
		Warnings:            warnings,
	})

	allWarnings := append([]types.Warning(nil), report.Warnings...)
	for _, key := range unresolved {
		allWarnings = append(allWarnings, types.Warning{
			Kind:    types.WarningUnresolvedCitation,
			Message: fmt.Sprintf(unresolvedCitationFormat, key),
		})
	}

	return Analysis{
		Document:     document,
		Citations:    citedKeys,
		Bibliography: bibliography,
		Cited:        cited,
		Report:       report,
		Warnings:     allWarnings,
	}, nil
}

// locateWarnings fills in the source file of warnings raised against the consolidated text.
func locateWarnings(document include.Document, warnings []types.Warning) []types.Warning {
	located := make([]types.Warning, 0, len(warnings))
	for _, warning := range warnings {
		if warning.Path == "" {
			warning.Path = document.Locate(warning.Position).Path
		}
		located = append(located, warning)
	}
	return located
}
