// Package crossref indexes labels, references and captions of a LaTeX document.
package crossref

import (
	"fmt"
	"strings"
)

// Kind classifies what a label points at.
type Kind int

const (
	KindOther Kind = iota
	KindFigure
	KindTable
	KindSection
	KindEquation
	KindListing
)

var kindNames = map[Kind]string{
	KindOther:    "other",
	KindFigure:   "figure",
	KindTable:    "table",
	KindSection:  "section",
	KindEquation: "equation",
	KindListing:  "listing",
}

// Kinds lists every kind in display order.
var Kinds = []Kind{KindFigure, KindTable, KindSection, KindEquation, KindListing, KindOther}

func (kind Kind) String() string {
	if name, ok := kindNames[kind]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(kind))
}

// MarshalText renders the kind by name in json, xml and yaml output.
func (kind Kind) MarshalText() ([]byte, error) {
	return []byte(kind.String()), nil
}

// UnmarshalText parses a kind name.
func (kind *Kind) UnmarshalText(text []byte) error {
	for candidate, name := range kindNames {
		if name == string(text) {
			*kind = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown label kind %q", string(text))
}

// conventional key prefixes, consulted when no environment decides the kind
var prefixKinds = []struct {
	prefix string
	kind   Kind
}{
	{prefix: "fig:", kind: KindFigure},
	{prefix: "tab:", kind: KindTable},
	{prefix: "sec:", kind: KindSection},
	{prefix: "eq:", kind: KindEquation},
	{prefix: "lst:", kind: KindListing},
}

// KindFromPrefix returns the kind implied by a conventional key prefix such as
// "fig:", and false when the key carries none.
func KindFromPrefix(key string) (Kind, bool) {
	for _, candidate := range prefixKinds {
		if strings.HasPrefix(key, candidate.prefix) {
			return candidate.kind, true
		}
	}
	return KindOther, false
}

var environmentKinds = map[string]Kind{
	"figure":       KindFigure,
	"figure*":      KindFigure,
	"wrapfigure":   KindFigure,
	"subfigure":    KindFigure,
	"table":        KindTable,
	"table*":       KindTable,
	"longtable":    KindTable,
	"supertabular": KindTable,
	"wraptable":    KindTable,
	"equation":     KindEquation,
	"equation*":    KindEquation,
	"align":        KindEquation,
	"align*":       KindEquation,
	"gather":       KindEquation,
	"gather*":      KindEquation,
	"multline":     KindEquation,
	"multline*":    KindEquation,
	"eqnarray":     KindEquation,
	"eqnarray*":    KindEquation,
	"flalign":      KindEquation,
	"flalign*":     KindEquation,
	"lstlisting":   KindListing,
	"listing":      KindListing,
	"minted":       KindListing,
	"algorithm":    KindListing,
}

// EnvironmentKind returns the kind assigned to labels inside environment.
func EnvironmentKind(environment string) (Kind, bool) {
	kind, ok := environmentKinds[environment]
	return kind, ok
}

// environments that must carry a caption
var floatEnvironments = map[string]struct{}{
	"figure":     {},
	"figure*":    {},
	"wrapfigure": {},
	"table":      {},
	"table*":     {},
	"wraptable":  {},
	"longtable":  {},
}

// RefCommand identifies the command used by a reference.
type RefCommand int

const (
	RefPlain RefCommand = iota
	RefEquation
	RefAuto
	RefClever
	RefCleverCapitalized
)

var refCommandNames = map[RefCommand]string{
	RefPlain:             "ref",
	RefEquation:          "eqref",
	RefAuto:              "autoref",
	RefClever:            "cref",
	RefCleverCapitalized: "Cref",
}

func (command RefCommand) String() string {
	if name, ok := refCommandNames[command]; ok {
		return name
	}
	return fmt.Sprintf("RefCommand(%d)", int(command))
}

// MarshalText renders the command by name.
func (command RefCommand) MarshalText() ([]byte, error) {
	return []byte(command.String()), nil
}

// AcceptsList reports whether the command takes a comma-separated key list.
func (command RefCommand) AcceptsList() bool {
	return command == RefClever || command == RefCleverCapitalized
}

func refCommandByName(name string) (RefCommand, bool) {
	for command, commandName := range refCommandNames {
		if commandName == name {
			return command, true
		}
	}
	return RefPlain, false
}
