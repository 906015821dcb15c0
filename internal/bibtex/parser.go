// Package bibtex parses BibTeX sources and renders cited entries.
package bibtex

import (
	"fmt"
	"strings"

	"github.com/temirov/latextools/internal/latex/scanner"
	"github.com/temirov/latextools/internal/types"
)

const (
	entryMarker = '@'

	malformedEntryFormat = "malformed @%s entry at offset %d: no closing delimiter"
	missingKeyFormat     = "@%s entry at offset %d has no key"
	malformedFieldFormat = "entry %s: malformed field near offset %d"
	duplicateKeyFormat   = "entry %s defined more than once; keeping the first definition"
)

// non-entry blocks that carry no bibliographic record
var skippedEntryTypes = map[string]struct{}{
	"comment":  {},
	"string":   {},
	"preamble": {},
}

// Entry is one bibliographic record.
type Entry struct {
	Type       string            `json:"type" yaml:"type"`
	Key        string            `json:"key" yaml:"key"`
	Fields     map[string]string `json:"fields" yaml:"fields"`
	FieldOrder []string          `json:"-" yaml:"-"`
	Raw        string            `json:"-" yaml:"-"`
	Start      int               `json:"-" yaml:"-"`
	End        int               `json:"-" yaml:"-"`
}

// Field returns the value of a field, or an empty string.
func (entry Entry) Field(name string) string {
	return entry.Fields[strings.ToLower(name)]
}

// Parse reads every entry of a BibTeX source. Malformed entries are skipped
// with a warning and parsing resumes at the next @.
func Parse(text string) ([]Entry, []types.Warning) {
	var entries []Entry
	var warnings []types.Warning
	seenKeys := map[string]struct{}{}
	index := 0
	for index < len(text) {
		relativeAt := strings.IndexByte(text[index:], entryMarker)
		if relativeAt < 0 {
			break
		}
		at := index + relativeAt
		typeEnd := at + 1
		for typeEnd < len(text) && isIdentifierCharacter(text[typeEnd]) {
			typeEnd++
		}
		if typeEnd == at+1 {
			index = at + 1
			continue
		}
		entryType := strings.ToLower(text[at+1 : typeEnd])
		open := skipSpace(text, typeEnd)
		if open >= len(text) || (text[open] != '{' && text[open] != '(') {
			index = typeEnd
			continue
		}
		closing := byte('}')
		if text[open] == '(' {
			closing = ')'
		}
		closeIndex, ok := scanner.MatchDelimiter(text, open, closing)
		if !ok {
			warnings = append(warnings, parseWarning(fmt.Sprintf(malformedEntryFormat, entryType, at), at))
			index = typeEnd
			continue
		}
		index = closeIndex + 1
		if _, skipped := skippedEntryTypes[entryType]; skipped {
			continue
		}

		entry, entryWarnings := parseBody(text[open+1:closeIndex], open+1)
		warnings = append(warnings, entryWarnings...)
		if entry.Key == "" {
			warnings = append(warnings, parseWarning(fmt.Sprintf(missingKeyFormat, entryType, at), at))
			continue
		}
		if _, duplicate := seenKeys[entry.Key]; duplicate {
			warnings = append(warnings, parseWarning(fmt.Sprintf(duplicateKeyFormat, entry.Key), at))
			continue
		}
		seenKeys[entry.Key] = struct{}{}
		entry.Type = entryType
		entry.Raw = text[at : closeIndex+1]
		entry.Start = at
		entry.End = closeIndex + 1
		entries = append(entries, entry)
	}
	return entries, warnings
}

// parseBody reads "key, name = value, ..." where base is the offset of body in the source.
func parseBody(body string, base int) (Entry, []types.Warning) {
	var warnings []types.Warning
	entry := Entry{Fields: map[string]string{}}
	keyEnd := strings.IndexByte(body, ',')
	if keyEnd < 0 {
		entry.Key = strings.TrimSpace(body)
		return entry, nil
	}
	entry.Key = strings.TrimSpace(body[:keyEnd])

	position := keyEnd + 1
	for {
		position = skipSeparators(body, position)
		if position >= len(body) {
			break
		}
		equals := position
		for equals < len(body) && body[equals] != '=' && body[equals] != ',' {
			equals++
		}
		if equals >= len(body) || body[equals] != '=' {
			warnings = append(warnings, parseWarning(fmt.Sprintf(malformedFieldFormat, entry.Key, base+position), base+position))
			position = equals + 1
			continue
		}
		name := strings.ToLower(strings.TrimSpace(body[position:equals]))
		valueEnd, ok := scanValue(body, equals+1)
		if !ok || name == "" {
			warnings = append(warnings, parseWarning(fmt.Sprintf(malformedFieldFormat, entry.Key, base+position), base+position))
			break
		}
		if _, exists := entry.Fields[name]; !exists {
			entry.FieldOrder = append(entry.FieldOrder, name)
		}
		entry.Fields[name] = unwrapValue(strings.TrimSpace(body[equals+1 : valueEnd]))
		position = valueEnd
	}
	return entry, warnings
}

// scanValue returns the offset of the comma ending the value starting at
// position, or len(body) for the last field.
func scanValue(body string, position int) (int, bool) {
	depth := 0
	inQuotes := false
	for index := position; index < len(body); index++ {
		switch body[index] {
		case '\\':
			index++
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return -1, false
			}
		case '"':
			if depth == 0 {
				inQuotes = !inQuotes
			}
		case ',':
			if depth == 0 && !inQuotes {
				return index, true
			}
		}
	}
	if depth != 0 || inQuotes {
		return -1, false
	}
	return len(body), true
}

// unwrapValue removes one level of enclosing braces or quotes, keeping the content verbatim.
func unwrapValue(raw string) string {
	if len(raw) < 2 {
		return raw
	}
	if raw[0] == '{' {
		if closeIndex, ok := scanner.MatchBrace(raw, 0); ok && closeIndex == len(raw)-1 {
			return raw[1 : len(raw)-1]
		}
		return raw
	}
	if raw[0] == '"' && raw[len(raw)-1] == '"' {
		return raw[1 : len(raw)-1]
	}
	return raw
}

func parseWarning(message string, position int) types.Warning {
	return types.Warning{Kind: types.WarningParse, Message: message, Position: position}
}

func skipSpace(text string, index int) int {
	for index < len(text) && isSpace(text[index]) {
		index++
	}
	return index
}

func skipSeparators(text string, index int) int {
	for index < len(text) && (isSpace(text[index]) || text[index] == ',') {
		index++
	}
	return index
}

func isSpace(character byte) bool {
	return character == ' ' || character == '\t' || character == '\n' || character == '\r'
}

func isIdentifierCharacter(character byte) bool {
	return (character >= 'a' && character <= 'z') || (character >= 'A' && character <= 'Z') || (character >= '0' && character <= '9') || character == '_' || character == '-'
}
