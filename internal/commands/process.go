package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/temirov/latextools/internal/bibtex"
	"github.com/temirov/latextools/internal/types"
)

const (
	writeOutputOperation  = "write output"
	unsupportedModeFormat = "unsupported mode %q (expected %s or %s)"
	outputFilePermissions = 0o644
)

// ProcessOptions configures a consolidation run.
type ProcessOptions struct {
	AnalysisOptions
	OutputPath string
}

// ProcessResult describes the artifact written by Process.
type ProcessResult struct {
	Analysis
	OutputPath string
	Content    string
	Entries    int
}

// Process consolidates the document and writes either the whole document with
// its bibliography inlined (all mode) or the cited BibTeX entries (bibtex mode).
// Nothing is written when an error is returned.
func Process(options ProcessOptions) (ProcessResult, error) {
	mode := strings.ToLower(strings.TrimSpace(options.Mode))
	if mode == "" {
		mode = types.ModeAll
	}
	if mode != types.ModeAll && mode != types.ModeBibTeX {
		return ProcessResult{}, fmt.Errorf(unsupportedModeFormat, options.Mode, types.ModeAll, types.ModeBibTeX)
	}
	options.Mode = mode

	analysis, analysisError := Analyze(options.AnalysisOptions)
	if analysisError != nil {
		return ProcessResult{}, analysisError
	}

	result := ProcessResult{Analysis: analysis, Entries: len(analysis.Cited)}
	switch mode {
	case types.ModeBibTeX:
		result.OutputPath = BibliographyOutputPath(options.OutputPath)
		result.Content = bibtex.RenderBibTeX(analysis.Cited)
	default:
		result.OutputPath = options.OutputPath
		result.Content = analysis.Document.Text
		if analysis.Bibliography.Loaded() {
			result.Content = SpliceBibliography(result.Content, bibtex.RenderBibliography(analysis.Cited))
		}
	}

	if writeError := os.WriteFile(result.OutputPath, []byte(result.Content), outputFilePermissions); writeError != nil {
		return ProcessResult{}, &types.FatalError{Op: writeOutputOperation, Path: result.OutputPath, Err: writeError}
	}
	return result, nil
}

// BibliographyOutputPath replaces the extension of path with .bib.
func BibliographyOutputPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + types.BibTeXExtension
}
