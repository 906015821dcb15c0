package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/temirov/latextools/internal/bibtex"
	"github.com/temirov/latextools/internal/latex/include"
	"github.com/temirov/latextools/internal/latex/scanner"
	"github.com/temirov/latextools/internal/latex/source"
	"github.com/temirov/latextools/internal/types"
)

const (
	commandBibliography      = "bibliography"
	commandBibliographyStyle = "bibliographystyle"
	commandAddBibResource    = "addbibresource"
	commandPrintBibliography = "printbibliography"

	bibliographySeparator = ","

	readBibliographyOperation  = "read bibliography"
	bibliographyNotFoundFormat = "bibliography %q not found"
	bibliographyUnreadFormat   = "bibliography %q could not be read: %v"
)

var errNoBibliography = errors.New("no bibliography source declared; use \\bibliography{}, \\addbibresource{} or --bib")

// BibliographySource describes one loaded .bib file.
type BibliographySource struct {
	Path    string `json:"path" xml:"path,attr" yaml:"path"`
	Entries int    `json:"entries" xml:"entries,attr" yaml:"entries"`
}

// Bibliography is the merged content of every bibliography source of a document.
type Bibliography struct {
	Sources  []BibliographySource
	Entries  []bibtex.Entry
	Warnings []types.Warning
}

// Loaded reports whether at least one source could be read.
func (bibliography Bibliography) Loaded() bool {
	return len(bibliography.Sources) > 0
}

func loadBibliography(document include.Document, options AnalysisOptions, loader source.Loader) (Bibliography, error) {
	rootDirectory := filepath.Dir(document.Root)
	declared := options.BibliographyPaths
	if len(declared) == 0 {
		declared = DiscoverBibliography(document.Text)
	}
	strict := options.Mode == types.ModeBibTeX
	if len(declared) == 0 {
		if strict {
			return Bibliography{}, &types.FatalError{Op: readBibliographyOperation, Path: document.Root, Err: errNoBibliography}
		}
		return Bibliography{}, nil
	}

	var bibliography Bibliography
	for _, name := range declared {
		path := bibliographyPath(rootDirectory, name)
		unit, loadError := loader.Load(path)
		if loadError != nil {
			if strict {
				return Bibliography{}, &types.FatalError{Op: readBibliographyOperation, Path: path, Err: loadError}
			}
			message := fmt.Sprintf(bibliographyUnreadFormat, name, loadError)
			if errors.Is(loadError, fs.ErrNotExist) {
				message = fmt.Sprintf(bibliographyNotFoundFormat, name)
			}
			bibliography.Warnings = append(bibliography.Warnings, types.Warning{
				Kind:    types.WarningMissingBibliography,
				Message: message,
				Path:    path,
			})
			continue
		}
		entries, parseWarnings := bibtex.Parse(unit.Text)
		for _, warning := range parseWarnings {
			warning.Path = path
			bibliography.Warnings = append(bibliography.Warnings, warning)
		}
		bibliography.Entries = append(bibliography.Entries, entries...)
		bibliography.Sources = append(bibliography.Sources, BibliographySource{Path: path, Entries: len(entries)})
	}
	return bibliography, nil
}

// DiscoverBibliography lists the bibliography files named by \bibliography and
// \addbibresource, in order of appearance and without duplicates.
func DiscoverBibliography(text string) []string {
	var names []string
	seen := map[string]struct{}{}
	for command := range scanner.New(text).Commands(commandBibliography, commandAddBibResource) {
		for _, rawName := range strings.Split(command.Arg(0), bibliographySeparator) {
			name := strings.TrimSpace(rawName)
			if name == "" {
				continue
			}
			if _, exists := seen[name]; exists {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return names
}

func bibliographyPath(rootDirectory, name string) string {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(rootDirectory, path)
	}
	if !strings.EqualFold(filepath.Ext(path), types.BibTeXExtension) {
		path += types.BibTeXExtension
	}
	return filepath.Clean(path)
}

// SpliceBibliography replaces \bibliography{...} and \printbibliography with
// rendered, and drops \bibliographystyle{...} and \addbibresource{...} together
// with the whitespace that follows them.
func SpliceBibliography(text string, rendered string) string {
	var builder strings.Builder
	last := 0
	commands := scanner.New(text).Commands(commandBibliography, commandPrintBibliography, commandBibliographyStyle, commandAddBibResource)
	for command := range commands {
		if command.Start < last {
			continue
		}
		builder.WriteString(text[last:command.Start])
		last = command.End
		switch command.Name {
		case commandBibliography, commandPrintBibliography:
			builder.WriteString(rendered)
		default:
			for last < len(text) && isWhitespace(text[last]) {
				last++
			}
		}
	}
	builder.WriteString(text[last:])
	return builder.String()
}

func isWhitespace(character byte) bool {
	switch character {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}
