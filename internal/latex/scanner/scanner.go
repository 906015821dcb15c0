// Package scanner locates LaTeX commands and captures their arguments.
//
// Arguments are matched with an explicit depth-counting scan so that values
// with arbitrarily nested braces are captured whole. Escaped braces (\{ and
// \}) never change the depth, and unescaped % starts a comment that runs to
// the end of the line. Inline \verb text and the bodies of verbatim
// environments are opaque: no command or comment is recognized inside them.
package scanner

import (
	"fmt"
	"iter"
	"strings"

	"github.com/temirov/latextools/internal/types"
)

const (
	commandPrefix    = '\\'
	commentCharacter = '%'
	starCharacter    = '*'
	groupOpen        = '{'
	groupClose       = '}'
	optionOpen       = '['
	optionClose      = ']'

	verbCommand   = "verb"
	beginCommand  = "begin"
	endTerminator = "\\end{%s}"

	unbalancedBracesMessageFormat = "unbalanced braces in \\%s argument"
)

// VerbatimEnvironments are the environments whose bodies are copied literally
// up to their \end.
var VerbatimEnvironments = map[string]struct{}{
	"verbatim":   {},
	"verbatim*":  {},
	"Verbatim":   {},
	"lstlisting": {},
	"minted":     {},
	"comment":    {},
}

// Command is one occurrence of a scanned command.
type Command struct {
	Name      string
	Star      bool
	Start     int
	End       int
	Options   []string
	Args      []string
	ArgStarts []int
}

// Arg returns the argument at index or an empty string when it is absent.
func (command Command) Arg(index int) string {
	if index < 0 || index >= len(command.Args) {
		return ""
	}
	return command.Args[index]
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithComments makes the scanner yield commands that appear inside % comments.
func WithComments() Option {
	return func(scanner *Scanner) {
		scanner.skipComments = false
	}
}

// Scanner walks LaTeX source looking for named commands.
type Scanner struct {
	text         string
	skipComments bool
	warnings     []types.Warning
	warned       map[int]struct{}
}

// New returns a Scanner over text.
func New(text string, options ...Option) *Scanner {
	scanner := &Scanner{
		text:         text,
		skipComments: true,
		warned:       map[int]struct{}{},
	}
	for _, option := range options {
		option(scanner)
	}
	return scanner
}

// Text returns the scanned source.
func (scanner *Scanner) Text() string {
	return scanner.text
}

// Warnings returns the parse warnings recorded by all iterations so far.
func (scanner *Scanner) Warnings() []types.Warning {
	return append([]types.Warning(nil), scanner.warnings...)
}

// Commands lazily yields, in source order, every occurrence of the named commands.
// Commands nested inside the arguments of a yielded command are yielded as well.
func (scanner *Scanner) Commands(names ...string) iter.Seq[Command] {
	wanted := make(map[string]struct{}, len(names))
	for _, name := range names {
		wanted[name] = struct{}{}
	}
	return func(yield func(Command) bool) {
		text := scanner.text
		index := 0
		for index < len(text) {
			switch text[index] {
			case commentCharacter:
				if scanner.skipComments {
					index = lineEnd(text, index)
					continue
				}
				index++
			case commandPrefix:
				nameEnd := index + 1
				for nameEnd < len(text) && isCommandLetter(text[nameEnd]) {
					nameEnd++
				}
				if nameEnd == index+1 {
					// control symbol such as \\, \{ or \%
					index += 2
					continue
				}
				name := text[index+1 : nameEnd]
				if name == verbCommand {
					index = skipInlineVerbatim(text, nameEnd)
					continue
				}
				if _, ok := wanted[name]; ok {
					command, parsed := scanner.parseCommand(index, name, nameEnd)
					if parsed && !yield(command) {
						return
					}
				}
				index = nameEnd
				if name == beginCommand {
					if bodyEnd, verbatim := verbatimBodyEnd(text, nameEnd); verbatim {
						index = bodyEnd
					}
				}
			default:
				index++
			}
		}
	}
}

func (scanner *Scanner) parseCommand(start int, name string, nameEnd int) (Command, bool) {
	text := scanner.text
	command := Command{Name: name, Start: start}
	position := nameEnd
	if position < len(text) && text[position] == starCharacter {
		command.Star = true
		position++
	}
	firstGroup := true
	for {
		lookahead := position
		if firstGroup {
			lookahead = skipInlineSpace(text, position)
		}
		if lookahead >= len(text) {
			break
		}
		if text[lookahead] == optionOpen {
			closeIndex, ok := matchOption(text, lookahead, scanner.skipComments)
			if !ok {
				break
			}
			command.Options = append(command.Options, text[lookahead+1:closeIndex])
			position = closeIndex + 1
			firstGroup = false
			continue
		}
		if text[lookahead] != groupOpen {
			break
		}
		closeIndex, ok := matchGroup(text, lookahead, scanner.skipComments)
		if !ok {
			scanner.warn(start, fmt.Sprintf(unbalancedBracesMessageFormat, name))
			return Command{}, false
		}
		command.Args = append(command.Args, text[lookahead+1:closeIndex])
		command.ArgStarts = append(command.ArgStarts, lookahead+1)
		position = closeIndex + 1
		firstGroup = false
	}
	command.End = position
	return command, true
}

func (scanner *Scanner) warn(position int, message string) {
	if _, seen := scanner.warned[position]; seen {
		return
	}
	scanner.warned[position] = struct{}{}
	scanner.warnings = append(scanner.warnings, types.Warning{
		Kind:     types.WarningParse,
		Message:  message,
		Position: position,
	})
}

// MatchBrace returns the index of the brace closing the group opened at open.
// Escaped braces do not count. It reports false when text[open] is not an
// opening brace or the group is unbalanced to the end of text.
func MatchBrace(text string, open int) (int, bool) {
	return matchGroup(text, open, false)
}

// MatchDelimiter is MatchBrace for an arbitrary pair of delimiters, still
// honouring nested braces inside the delimited region.
func MatchDelimiter(text string, open int, closing byte) (int, bool) {
	if open < 0 || open >= len(text) {
		return -1, false
	}
	if closing == groupClose {
		return matchGroup(text, open, false)
	}
	braceDepth := 0
	for index := open + 1; index < len(text); index++ {
		switch text[index] {
		case commandPrefix:
			index++
		case groupOpen:
			braceDepth++
		case groupClose:
			braceDepth--
		case closing:
			if braceDepth <= 0 {
				return index, true
			}
		}
	}
	return -1, false
}

func matchGroup(text string, open int, skipComments bool) (int, bool) {
	if open < 0 || open >= len(text) || text[open] != groupOpen {
		return -1, false
	}
	depth := 0
	for index := open; index < len(text); index++ {
		switch text[index] {
		case commandPrefix:
			index++
		case commentCharacter:
			if skipComments {
				index = lineEnd(text, index)
			}
		case groupOpen:
			depth++
		case groupClose:
			depth--
			if depth == 0 {
				return index, true
			}
		}
	}
	return -1, false
}

func matchOption(text string, open int, skipComments bool) (int, bool) {
	braceDepth := 0
	for index := open + 1; index < len(text); index++ {
		switch text[index] {
		case commandPrefix:
			index++
		case commentCharacter:
			if skipComments {
				index = lineEnd(text, index)
			}
		case groupOpen:
			braceDepth++
		case groupClose:
			braceDepth--
			if braceDepth < 0 {
				return -1, false
			}
		case optionClose:
			if braceDepth == 0 {
				return index, true
			}
		}
	}
	return -1, false
}

// skipInlineVerbatim returns the index after \verb<d>...<d>, where position
// is just past "\verb". An unterminated \verb runs to the end of its line.
func skipInlineVerbatim(text string, position int) int {
	if position < len(text) && text[position] == starCharacter {
		position++
	}
	if position >= len(text) || isCommandLetter(text[position]) || isBlank(text[position]) {
		return position
	}
	delimiter := text[position]
	for index := position + 1; index < len(text); index++ {
		switch text[index] {
		case delimiter:
			return index + 1
		case '\n':
			return index
		}
	}
	return len(text)
}

// verbatimBodyEnd reports whether the \begin ending at position opens a
// verbatim environment and, if so, the index of its literal \end{name}, or
// len(text) when the environment is never closed.
func verbatimBodyEnd(text string, position int) (int, bool) {
	open := skipInlineSpace(text, position)
	if open >= len(text) || text[open] != groupOpen {
		return 0, false
	}
	closeOffset := strings.IndexByte(text[open:], groupClose)
	if closeOffset < 0 {
		return 0, false
	}
	name := strings.TrimSpace(text[open+1 : open+closeOffset])
	if _, verbatim := VerbatimEnvironments[name]; !verbatim {
		return 0, false
	}
	bodyStart := open + closeOffset + 1
	terminator := strings.Index(text[bodyStart:], fmt.Sprintf(endTerminator, name))
	if terminator < 0 {
		return len(text), true
	}
	return bodyStart + terminator, true
}

// lineEnd returns the index of the newline ending the line containing index,
// or len(text) on the last line.
func lineEnd(text string, index int) int {
	for index < len(text) && text[index] != '\n' {
		index++
	}
	return index
}

// skipInlineSpace skips blanks and at most one line break, stopping before a
// paragraph break.
func skipInlineSpace(text string, index int) int {
	newlines := 0
	for index < len(text) {
		switch text[index] {
		case ' ', '\t', '\r':
			index++
		case '\n':
			if newlines > 0 {
				return index
			}
			newlines++
			index++
		default:
			return index
		}
	}
	return index
}

func isBlank(character byte) bool {
	return character == ' ' || character == '\t' || character == '\r' || character == '\n'
}

func isCommandLetter(character byte) bool {
	return (character >= 'a' && character <= 'z') || (character >= 'A' && character <= 'Z') || character == '@'
}
