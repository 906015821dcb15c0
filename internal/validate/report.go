// Package validate checks the label/reference/caption graph of a document and
// produces an immutable report.
package validate

import (
	"encoding/xml"
	"sort"

	"github.com/temirov/latextools/internal/latex/crossref"
	"github.com/temirov/latextools/internal/types"
)

// CaptionIssueKind names a caption problem.
type CaptionIssueKind string

const (
	CaptionMissing    CaptionIssueKind = "missing"
	CaptionOrphaned   CaptionIssueKind = "orphaned"
	CaptionMismatched CaptionIssueKind = "mismatched"
)

// Locator maps an offset of the consolidated text to the file and line that produced it.
type Locator interface {
	Locate(offset int) types.Location
}

// Occurrence is a position in the consolidated text, with its source location
// when a Locator was supplied.
type Occurrence struct {
	Position int    `json:"position" xml:"position,attr" yaml:"position"`
	Path     string `json:"path,omitempty" xml:"path,attr,omitempty" yaml:"path,omitempty"`
	Line     int    `json:"line,omitempty" xml:"line,attr,omitempty" yaml:"line,omitempty"`
}

// Location returns the source location of the occurrence.
func (occurrence Occurrence) Location() types.Location {
	return types.Location{Path: occurrence.Path, Line: occurrence.Line}
}

// DuplicateLabel lists every definition of a key defined more than once.
// The first definition is the one references resolve to.
type DuplicateLabel struct {
	Key         string       `json:"key" xml:"key,attr" yaml:"key"`
	Definitions []Occurrence `json:"definitions" xml:"definition" yaml:"definitions"`
}

// UndefinedReference lists every use of a key that no label defines.
type UndefinedReference struct {
	Key  string       `json:"key" xml:"key,attr" yaml:"key"`
	Uses []Occurrence `json:"uses" xml:"use" yaml:"uses"`
}

// UnusedLabel is a label no reference points at.
type UnusedLabel struct {
	Key        string        `json:"key" xml:"key,attr" yaml:"key"`
	Kind       crossref.Kind `json:"kind" xml:"kind,attr" yaml:"kind"`
	Occurrence `yaml:",inline"`
}

// CaptionIssue is a missing, orphaned or mismatched caption.
type CaptionIssue struct {
	Kind        CaptionIssueKind `json:"kind" xml:"kind,attr" yaml:"kind"`
	Environment string           `json:"environment,omitempty" xml:"environment,attr,omitempty" yaml:"environment,omitempty"`
	Caption     string           `json:"caption,omitempty" xml:"caption,omitempty" yaml:"caption,omitempty"`
	LabelKey    string           `json:"label,omitempty" xml:"label,attr,omitempty" yaml:"label,omitempty"`
	Occurrence  `yaml:",inline"`
}

// KindCount is the number of labels of one kind.
type KindCount struct {
	Kind  crossref.Kind `json:"kind" xml:"kind,attr" yaml:"kind"`
	Count int           `json:"count" xml:"count,attr" yaml:"count"`
}

// Counts summarizes the size of the indexed document.
type Counts struct {
	Labels     int `json:"labels" xml:"labels" yaml:"labels"`
	References int `json:"references" xml:"references" yaml:"references"`
	Captions   int `json:"captions" xml:"captions" yaml:"captions"`
	Floats     int `json:"floats" xml:"floats" yaml:"floats"`
	Citations  int `json:"citations" xml:"citations" yaml:"citations"`
}

// Report is the outcome of validating one document.
type Report struct {
	XMLName             xml.Name             `json:"-" xml:"report" yaml:"-"`
	Document            string               `json:"document,omitempty" xml:"document,attr,omitempty" yaml:"document,omitempty"`
	Counts              Counts               `json:"counts" xml:"counts" yaml:"counts"`
	LabelsByKind        []KindCount          `json:"labelsByKind" xml:"labelsByKind>kind" yaml:"labelsByKind"`
	DuplicateLabels     []DuplicateLabel     `json:"duplicateLabels" xml:"duplicateLabels>label" yaml:"duplicateLabels"`
	UndefinedReferences []UndefinedReference `json:"undefinedReferences" xml:"undefinedReferences>reference" yaml:"undefinedReferences"`
	UnusedLabels        []UnusedLabel        `json:"unusedLabels" xml:"unusedLabels>label" yaml:"unusedLabels"`
	CaptionIssues       []CaptionIssue       `json:"captionIssues" xml:"captionIssues>issue" yaml:"captionIssues"`
	UnresolvedCitations []string             `json:"unresolvedCitations" xml:"unresolvedCitations>key" yaml:"unresolvedCitations"`
	Warnings            []types.Warning      `json:"warnings" xml:"warnings>warning" yaml:"warnings"`
}

// HasErrors reports whether the document has duplicate labels, undefined
// references or unresolved citations.
func (report Report) HasErrors() bool {
	return len(report.DuplicateLabels) > 0 || len(report.UndefinedReferences) > 0 || len(report.UnresolvedCitations) > 0
}

// CaptionIssuesOf returns the caption issues of one kind.
func (report Report) CaptionIssuesOf(kind CaptionIssueKind) []CaptionIssue {
	var issues []CaptionIssue
	for _, issue := range report.CaptionIssues {
		if issue.Kind == kind {
			issues = append(issues, issue)
		}
	}
	return issues
}

// Options carries the inputs of Build beyond the crossref index.
type Options struct {
	Document            string
	Locator             Locator
	Citations           int
	UnresolvedCitations []string
	Warnings            []types.Warning
}

// Build validates index. It does not modify its inputs, and the same inputs
// always produce the same report.
func Build(index crossref.Index, options Options) Report {
	locate := func(position int) Occurrence {
		occurrence := Occurrence{Position: position}
		if options.Locator != nil {
			location := options.Locator.Locate(position)
			occurrence.Path = location.Path
			occurrence.Line = location.Line
		}
		return occurrence
	}

	report := Report{
		Document: options.Document,
		Counts: Counts{
			Labels:     len(index.Labels),
			References: len(index.References),
			Captions:   len(index.Captions),
			Floats:     len(index.Floats),
			Citations:  options.Citations,
		},
		LabelsByKind:        []KindCount{},
		DuplicateLabels:     []DuplicateLabel{},
		UndefinedReferences: []UndefinedReference{},
		UnusedLabels:        []UnusedLabel{},
		CaptionIssues:       []CaptionIssue{},
		UnresolvedCitations: append([]string{}, options.UnresolvedCitations...),
		Warnings:            append([]types.Warning{}, options.Warnings...),
	}
	report.Warnings = append(report.Warnings, index.Warnings...)

	definitions := map[string][]crossref.Label{}
	var labelOrder []string
	kindCounts := map[crossref.Kind]int{}
	for _, label := range index.Labels {
		if _, seen := definitions[label.Key]; !seen {
			labelOrder = append(labelOrder, label.Key)
		}
		definitions[label.Key] = append(definitions[label.Key], label)
		kindCounts[label.Kind]++
	}
	for _, kind := range crossref.Kinds {
		if count := kindCounts[kind]; count > 0 {
			report.LabelsByKind = append(report.LabelsByKind, KindCount{Kind: kind, Count: count})
		}
	}

	for _, key := range labelOrder {
		labels := definitions[key]
		if len(labels) < 2 {
			continue
		}
		duplicate := DuplicateLabel{Key: key}
		for _, label := range labels {
			duplicate.Definitions = append(duplicate.Definitions, locate(label.Position))
		}
		report.DuplicateLabels = append(report.DuplicateLabels, duplicate)
	}

	uses := map[string][]crossref.Reference{}
	var undefinedOrder []string
	for _, reference := range index.References {
		if _, seen := uses[reference.Key]; !seen {
			if _, defined := definitions[reference.Key]; !defined {
				undefinedOrder = append(undefinedOrder, reference.Key)
			}
		}
		uses[reference.Key] = append(uses[reference.Key], reference)
	}
	for _, key := range undefinedOrder {
		undefined := UndefinedReference{Key: key}
		for _, reference := range uses[key] {
			undefined.Uses = append(undefined.Uses, locate(reference.Position))
		}
		report.UndefinedReferences = append(report.UndefinedReferences, undefined)
	}

	for _, key := range labelOrder {
		if len(uses[key]) > 0 {
			continue
		}
		retained := definitions[key][0]
		report.UnusedLabels = append(report.UnusedLabels, UnusedLabel{Key: key, Kind: retained.Kind, Occurrence: locate(retained.Position)})
	}

	report.CaptionIssues = append(report.CaptionIssues, captionIssues(index, locate)...)
	return report
}

func captionIssues(index crossref.Index, locate func(int) Occurrence) []CaptionIssue {
	var issues []CaptionIssue
	for _, float := range index.Floats {
		if float.Captions > 0 {
			continue
		}
		issues = append(issues, CaptionIssue{Kind: CaptionMissing, Environment: float.Environment, Occurrence: locate(float.Start)})
	}
	for _, caption := range index.Captions {
		if caption.LabelKey == "" {
			issues = append(issues, CaptionIssue{Kind: CaptionOrphaned, Environment: caption.Environment, Caption: caption.Text, Occurrence: locate(caption.Position)})
			continue
		}
		prefixKind, hasPrefix := crossref.KindFromPrefix(caption.LabelKey)
		if !hasPrefix || !isFloatKind(caption.Kind) || !isFloatKind(prefixKind) || prefixKind == caption.Kind {
			continue
		}
		issues = append(issues, CaptionIssue{
			Kind:        CaptionMismatched,
			Environment: caption.Environment,
			Caption:     caption.Text,
			LabelKey:    caption.LabelKey,
			Occurrence:  locate(caption.Position),
		})
	}
	sort.SliceStable(issues, func(left, right int) bool {
		return issues[left].Position < issues[right].Position
	})
	return issues
}

func isFloatKind(kind crossref.Kind) bool {
	return kind == crossref.KindFigure || kind == crossref.KindTable || kind == crossref.KindListing
}
