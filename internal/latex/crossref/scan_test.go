package crossref_test

import (
	"encoding/json"
	"testing"

	"github.com/temirov/latextools/internal/latex/crossref"
	"github.com/temirov/latextools/internal/types"
)

func labelKinds(index crossref.Index) map[string]crossref.Kind {
	kinds := map[string]crossref.Kind{}
	for _, label := range index.Labels {
		kinds[label.Key] = label.Kind
	}
	return kinds
}

// TestScanClassifiesLabels verifies label kinds derived from environments, sections and key prefixes.
func TestScanClassifiesLabels(testingHandle *testing.T) {
	testCases := []struct {
		name     string
		text     string
		key      string
		expected crossref.Kind
	}{
		{name: "figure", text: "\\begin{figure}\\label{one}\\end{figure}", key: "one", expected: crossref.KindFigure},
		{name: "starred_table", text: "\\begin{table*}[t]\\label{one}\\end{table*}", key: "one", expected: crossref.KindTable},
		{name: "nested_unclassified", text: "\\begin{figure}\\begin{center}\\label{one}\\end{center}\\end{figure}", key: "one", expected: crossref.KindFigure},
		{name: "subfigure", text: "\\begin{figure}\\begin{subfigure}{0.5\\textwidth}\\label{one}\\end{subfigure}\\end{figure}", key: "one", expected: crossref.KindFigure},
		{name: "align", text: "\\begin{align}x\\label{one}\\end{align}", key: "one", expected: crossref.KindEquation},
		{name: "algorithm", text: "\\begin{algorithm}\\label{one}\\end{algorithm}", key: "one", expected: crossref.KindListing},
		{name: "after_section", text: "\\section{Intro}\n\\label{one}", key: "one", expected: crossref.KindSection},
		{name: "inside_section_title", text: "\\subsection{Intro \\label{one}}", key: "one", expected: crossref.KindSection},
		{name: "section_then_paragraph_break", text: "\\section{Intro}\n\nText \\label{one}", key: "one", expected: crossref.KindOther},
		{name: "prefix_fallback", text: "Text \\label{tab:results}", key: "tab:results", expected: crossref.KindTable},
		{name: "environment_beats_prefix", text: "\\begin{figure}\\label{tab:wrong}\\end{figure}", key: "tab:wrong", expected: crossref.KindFigure},
		{name: "plain", text: "\\label{thing}", key: "thing", expected: crossref.KindOther},
	}
	for _, testCase := range testCases {
		testingHandle.Run(testCase.name, func(testingHandle *testing.T) {
			index := crossref.Scan(testCase.text)
			kind, found := labelKinds(index)[testCase.key]
			if !found {
				testingHandle.Fatalf("label %q not found", testCase.key)
			}
			if kind != testCase.expected {
				testingHandle.Fatalf("expected %s, got %s", testCase.expected, kind)
			}
		})
	}
}

// TestScanReferences verifies that every reference command and list key is recorded.
func TestScanReferences(testingHandle *testing.T) {
	text := `See \ref{a}, \eqref{b}, \autoref{c}, \cref{d, e} and \Cref{f}. \refname{x}`
	index := crossref.Scan(text)
	expected := []struct {
		key     string
		command crossref.RefCommand
	}{
		{key: "a", command: crossref.RefPlain},
		{key: "b", command: crossref.RefEquation},
		{key: "c", command: crossref.RefAuto},
		{key: "d", command: crossref.RefClever},
		{key: "e", command: crossref.RefClever},
		{key: "f", command: crossref.RefCleverCapitalized},
	}
	if len(index.References) != len(expected) {
		testingHandle.Fatalf("expected %d references, got %+v", len(expected), index.References)
	}
	for position, reference := range index.References {
		if reference.Key != expected[position].key || reference.Command != expected[position].command {
			testingHandle.Fatalf("reference %d: expected %s via %s, got %+v", position, expected[position].key, expected[position].command, reference)
		}
	}
}

// TestScanAssociatesCaptions verifies that captions are tied to the nearest label of their block.
func TestScanAssociatesCaptions(testingHandle *testing.T) {
	text := `\begin{figure}
\includegraphics{a}
\caption{First figure}
\label{fig:first}
\end{figure}
\begin{table}
\label{tab:second}
\caption{Second   table}
\end{table}
\begin{figure}
\caption{Orphan}
\end{figure}
\begin{figure}
\includegraphics{b}
\label{fig:nocaption}
\end{figure}
\section{Results}
\label{sec:results}`
	index := crossref.Scan(text)
	if len(index.Captions) != 3 {
		testingHandle.Fatalf("expected 3 captions, got %+v", index.Captions)
	}
	expected := []struct {
		text     string
		labelKey string
		kind     crossref.Kind
	}{
		{text: "First figure", labelKey: "fig:first", kind: crossref.KindFigure},
		{text: "Second table", labelKey: "tab:second", kind: crossref.KindTable},
		{text: "Orphan", labelKey: "", kind: crossref.KindFigure},
	}
	for position, caption := range index.Captions {
		if caption.Text != expected[position].text || caption.LabelKey != expected[position].labelKey || caption.Kind != expected[position].kind {
			testingHandle.Fatalf("caption %d: expected %+v, got %+v", position, expected[position], caption)
		}
	}
	if len(index.Floats) != 4 {
		testingHandle.Fatalf("expected 4 floats, got %+v", index.Floats)
	}
	if index.Floats[3].Captions != 0 || index.Floats[0].Captions != 1 {
		testingHandle.Fatalf("unexpected caption counts %+v", index.Floats)
	}
	if labelKinds(index)["sec:results"] != crossref.KindSection {
		testingHandle.Fatalf("expected section label")
	}
}

// TestScanSubfigureCaptionsStayInTheirBlock verifies that subfigure captions do not leak into the enclosing figure.
func TestScanSubfigureCaptionsStayInTheirBlock(testingHandle *testing.T) {
	text := `\begin{figure}
\begin{subfigure}{0.4\textwidth}\caption{Left}\label{fig:left}\end{subfigure}
\begin{subfigure}{0.4\textwidth}\caption{Right}\label{fig:right}\end{subfigure}
\caption{Both}\label{fig:both}
\end{figure}`
	index := crossref.Scan(text)
	associations := map[string]string{}
	for _, caption := range index.Captions {
		associations[caption.Text] = caption.LabelKey
	}
	if associations["Left"] != "fig:left" || associations["Right"] != "fig:right" || associations["Both"] != "fig:both" {
		testingHandle.Fatalf("unexpected associations %v", associations)
	}
	if len(index.Floats) != 1 || index.Floats[0].Captions != 1 {
		testingHandle.Fatalf("expected the outer figure to own one caption, got %+v", index.Floats)
	}
}

// TestScanListingOptions verifies that lstlisting caption and label options are indexed.
func TestScanListingOptions(testingHandle *testing.T) {
	text := "\\begin{lstlisting}[language=Go, caption={Hello, world}, label=lst:hello]\n\\label{not:real}\n\\end{lstlisting}"
	index := crossref.Scan(text)
	if len(index.Labels) != 1 || index.Labels[0].Key != "lst:hello" || index.Labels[0].Kind != crossref.KindListing {
		testingHandle.Fatalf("expected only the option label, got %+v", index.Labels)
	}
	if len(index.Captions) != 1 || index.Captions[0].Text != "Hello, world" || index.Captions[0].LabelKey != "lst:hello" {
		testingHandle.Fatalf("unexpected captions %+v", index.Captions)
	}
}

// TestScanUnbalancedEnvironments verifies that unbalanced environments produce warnings.
func TestScanUnbalancedEnvironments(testingHandle *testing.T) {
	testCases := []struct {
		name string
		text string
	}{
		{name: "stray_end", text: "text \\end{figure}"},
		{name: "never_closed", text: "\\begin{figure}\\caption{x}"},
		{name: "crossed", text: "\\begin{figure}\\begin{center}\\end{figure}"},
	}
	for _, testCase := range testCases {
		testingHandle.Run(testCase.name, func(testingHandle *testing.T) {
			index := crossref.Scan(testCase.text)
			found := false
			for _, warning := range index.Warnings {
				if warning.Kind == types.WarningUnbalancedEnv {
					found = true
				}
			}
			if !found {
				testingHandle.Fatalf("expected an unbalanced-environment warning, got %v", index.Warnings)
			}
		})
	}
}

// TestScanIgnoresVerbatimText verifies that a percent sign inside verbatim text does not hide later labels and references.
func TestScanIgnoresVerbatimText(testingHandle *testing.T) {
	testCases := []struct {
		name     string
		text     string
		captions int
	}{
		{
			name: "percent_in_inline_verb",
			text: "Use \\verb|50%| here \\label{sec:x} and \\ref{sec:x}.\n",
		},
		{
			name:     "percent_before_verbatim_end",
			text:     "\\begin{verbatim}x % y \\end{verbatim}\n\\begin{figure}\\caption{C}\\label{fig:a}\\end{figure}\nSee \\ref{fig:a}.",
			captions: 1,
		},
	}
	for _, testCase := range testCases {
		testingHandle.Run(testCase.name, func(testingHandle *testing.T) {
			index := crossref.Scan(testCase.text)
			if len(index.Labels) != 1 || len(index.References) != 1 || index.Labels[0].Key != index.References[0].Key {
				testingHandle.Fatalf("expected one label and its reference, got %+v %+v", index.Labels, index.References)
			}
			if len(index.Captions) != testCase.captions {
				testingHandle.Fatalf("expected %d captions, got %+v", testCase.captions, index.Captions)
			}
			if testCase.captions > 0 && index.Captions[0].LabelKey != "fig:a" {
				testingHandle.Fatalf("caption must be tied to fig:a, got %+v", index.Captions[0])
			}
			if len(index.Warnings) != 0 {
				testingHandle.Fatalf("unexpected warnings %v", index.Warnings)
			}
		})
	}
}

// TestKindMarshalsByName verifies that label kinds serialize by name.
func TestKindMarshalsByName(testingHandle *testing.T) {
	encoded, marshalError := json.Marshal(crossref.Label{Key: "fig:a", Kind: crossref.KindFigure})
	if marshalError != nil {
		testingHandle.Fatalf("marshal: %v", marshalError)
	}
	if string(encoded) != `{"key":"fig:a","kind":"figure","position":0}` {
		testingHandle.Fatalf("unexpected json %s", encoded)
	}
	var kind crossref.Kind
	if unmarshalError := kind.UnmarshalText([]byte("equation")); unmarshalError != nil || kind != crossref.KindEquation {
		testingHandle.Fatalf("unexpected unmarshal result %v %v", kind, unmarshalError)
	}
}
