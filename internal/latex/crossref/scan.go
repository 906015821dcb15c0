package crossref

import (
	"fmt"
	"strings"

	"github.com/temirov/latextools/internal/latex/scanner"
	"github.com/temirov/latextools/internal/types"
)

const (
	commandBegin   = "begin"
	commandEnd     = "end"
	commandLabel   = "label"
	commandCaption = "caption"

	listingEnvironment = "lstlisting"
	listingLabelKey    = "label"
	listingCaptionKey  = "caption"
	keySeparator       = ","

	unmatchedEndFormat   = "\\end{%s} has no matching \\begin"
	unclosedBeforeFormat = "environment %s opened at offset %d is closed implicitly by \\end{%s}"
	unclosedFormat       = "environment %s opened at offset %d is never closed"

	noBlock = -1
)

var sectioningCommands = []string{"part", "chapter", "section", "subsection", "subsubsection", "paragraph", "subparagraph"}

// Label is one \label definition.
type Label struct {
	Key         string `json:"key" xml:"key,attr" yaml:"key"`
	Kind        Kind   `json:"kind" xml:"kind,attr" yaml:"kind"`
	Environment string `json:"environment,omitempty" xml:"environment,attr,omitempty" yaml:"environment,omitempty"`
	Position    int    `json:"position" xml:"position,attr" yaml:"position"`
}

// Reference is one key referenced by a reference command.
type Reference struct {
	Key      string     `json:"key" xml:"key,attr" yaml:"key"`
	Command  RefCommand `json:"command" xml:"command,attr" yaml:"command"`
	Position int        `json:"position" xml:"position,attr" yaml:"position"`
}

// Caption is one \caption with the label it describes, if any.
type Caption struct {
	Text        string `json:"text" xml:"text" yaml:"text"`
	Position    int    `json:"position" xml:"position,attr" yaml:"position"`
	LabelKey    string `json:"label,omitempty" xml:"label,attr,omitempty" yaml:"label,omitempty"`
	Environment string `json:"environment,omitempty" xml:"environment,attr,omitempty" yaml:"environment,omitempty"`
	Kind        Kind   `json:"kind" xml:"kind,attr" yaml:"kind"`
}

// Float is one figure or table environment instance.
type Float struct {
	Environment string `json:"environment" xml:"environment,attr" yaml:"environment"`
	Kind        Kind   `json:"kind" xml:"kind,attr" yaml:"kind"`
	Start       int    `json:"start" xml:"start,attr" yaml:"start"`
	End         int    `json:"end" xml:"end,attr" yaml:"end"`
	Captions    int    `json:"captions" xml:"captions,attr" yaml:"captions"`
}

// Index is everything Scan found, each slice in source order.
type Index struct {
	Labels     []Label
	References []Reference
	Captions   []Caption
	Floats     []Float
	Warnings   []types.Warning
}

type environmentInstance struct {
	name       string
	start      int
	id         int
	kind       Kind
	classified bool
	floatIndex int
}

type indexer struct {
	text          string
	stack         []environmentInstance
	nextID        int
	index         Index
	labelBlocks   []int
	captionBlocks []int
	sectionStart  int
	sectionEnd    int
}

// Scan indexes text in one ordered pass, tracking the stack of open
// environments to classify labels and group captions with labels.
func Scan(text string) Index {
	state := &indexer{text: text, sectionStart: -1, sectionEnd: -1}
	names := []string{commandBegin, commandEnd, commandLabel, commandCaption}
	names = append(names, sectioningCommands...)
	for _, refCommand := range []RefCommand{RefPlain, RefEquation, RefAuto, RefClever, RefCleverCapitalized} {
		names = append(names, refCommand.String())
	}
	sectioning := map[string]struct{}{}
	for _, name := range sectioningCommands {
		sectioning[name] = struct{}{}
	}

	commandScanner := scanner.New(text)
	for command := range commandScanner.Commands(names...) {
		switch command.Name {
		case commandBegin:
			state.begin(command)
		case commandEnd:
			state.end(command)
		case commandLabel:
			state.label(strings.TrimSpace(command.Arg(0)), command.Start)
		case commandCaption:
			state.caption(command.Arg(0), command.Start)
		default:
			if _, ok := sectioning[command.Name]; ok {
				state.sectionStart = command.Start
				state.sectionEnd = command.End
				continue
			}
			state.reference(command)
		}
	}
	for index := len(state.stack) - 1; index >= 0; index-- {
		instance := state.stack[index]
		state.warn(fmt.Sprintf(unclosedFormat, instance.name, instance.start), instance.start)
		state.close(instance, len(text))
	}
	state.stack = nil
	state.associateCaptions()
	state.index.Warnings = append(commandScanner.Warnings(), state.index.Warnings...)
	return state.index
}

func (state *indexer) begin(command scanner.Command) {
	name := strings.TrimSpace(command.Arg(0))
	if name == "" {
		return
	}
	kind, classified := EnvironmentKind(name)
	instance := environmentInstance{name: name, start: command.Start, id: state.nextID, kind: kind, classified: classified, floatIndex: -1}
	state.nextID++
	if _, isFloat := floatEnvironments[name]; isFloat {
		instance.floatIndex = len(state.index.Floats)
		state.index.Floats = append(state.index.Floats, Float{Environment: name, Kind: kind, Start: command.Start, End: -1})
	}
	state.stack = append(state.stack, instance)

	if name == listingEnvironment {
		for _, option := range command.Options {
			values := keyValueOptions(option)
			if caption, ok := values[listingCaptionKey]; ok {
				state.caption(caption, command.Start)
			}
			if label, ok := values[listingLabelKey]; ok {
				state.label(label, command.Start)
			}
		}
	}
}

func (state *indexer) end(command scanner.Command) {
	name := strings.TrimSpace(command.Arg(0))
	match := -1
	for index := len(state.stack) - 1; index >= 0; index-- {
		if state.stack[index].name == name {
			match = index
			break
		}
	}
	if match < 0 {
		state.warn(fmt.Sprintf(unmatchedEndFormat, name), command.Start)
		return
	}
	for index := len(state.stack) - 1; index > match; index-- {
		instance := state.stack[index]
		state.warn(fmt.Sprintf(unclosedBeforeFormat, instance.name, instance.start, name), instance.start)
		state.close(instance, command.Start)
	}
	state.close(state.stack[match], command.End)
	state.stack = state.stack[:match]
}

func (state *indexer) close(instance environmentInstance, end int) {
	if instance.floatIndex >= 0 {
		state.index.Floats[instance.floatIndex].End = end
	}
}

func (state *indexer) label(key string, position int) {
	if key == "" {
		return
	}
	label := Label{Key: key, Position: position}
	if classified, ok := state.classified(); ok {
		label.Kind = classified.kind
		label.Environment = classified.name
	} else {
		if innermost, ok := state.innermost(); ok {
			label.Environment = innermost.name
		}
		switch prefixKind, hasPrefix := KindFromPrefix(key); {
		case state.followsSection(position):
			label.Kind = KindSection
		case hasPrefix:
			label.Kind = prefixKind
		default:
			label.Kind = KindOther
		}
	}
	state.index.Labels = append(state.index.Labels, label)
	state.labelBlocks = append(state.labelBlocks, state.block())
}

func (state *indexer) caption(text string, position int) {
	caption := Caption{Text: strings.Join(strings.Fields(text), " "), Position: position, Kind: KindOther}
	if classified, ok := state.classified(); ok {
		caption.Kind = classified.kind
		caption.Environment = classified.name
		if classified.floatIndex >= 0 {
			state.index.Floats[classified.floatIndex].Captions++
		}
	} else if innermost, ok := state.innermost(); ok {
		caption.Environment = innermost.name
	}
	state.index.Captions = append(state.index.Captions, caption)
	state.captionBlocks = append(state.captionBlocks, state.block())
}

func (state *indexer) reference(command scanner.Command) {
	refCommand, ok := refCommandByName(command.Name)
	if !ok {
		return
	}
	keys := []string{command.Arg(0)}
	if refCommand.AcceptsList() {
		keys = strings.Split(command.Arg(0), keySeparator)
	}
	for _, rawKey := range keys {
		key := strings.TrimSpace(rawKey)
		if key == "" {
			continue
		}
		state.index.References = append(state.index.References, Reference{Key: key, Command: refCommand, Position: command.Start})
	}
}

// associateCaptions links every caption to the nearest non-section label of
// its block, preferring the later label on a tie.
func (state *indexer) associateCaptions() {
	for captionIndex := range state.index.Captions {
		caption := &state.index.Captions[captionIndex]
		bestDistance := -1
		for labelIndex, label := range state.index.Labels {
			if state.labelBlocks[labelIndex] != state.captionBlocks[captionIndex] || label.Kind == KindSection {
				continue
			}
			distance := label.Position - caption.Position
			if distance < 0 {
				distance = -distance
			}
			if bestDistance < 0 || distance < bestDistance || (distance == bestDistance && label.Position > caption.Position) {
				bestDistance = distance
				caption.LabelKey = label.Key
			}
		}
	}
}

// block identifies the grouping unit for captions and labels: the nearest
// classified environment instance, else the innermost one.
func (state *indexer) block() int {
	if classified, ok := state.classified(); ok {
		return classified.id
	}
	if innermost, ok := state.innermost(); ok {
		return innermost.id
	}
	return noBlock
}

func (state *indexer) classified() (environmentInstance, bool) {
	for index := len(state.stack) - 1; index >= 0; index-- {
		if state.stack[index].classified {
			return state.stack[index], true
		}
	}
	return environmentInstance{}, false
}

func (state *indexer) innermost() (environmentInstance, bool) {
	if len(state.stack) == 0 {
		return environmentInstance{}, false
	}
	return state.top(), true
}

func (state *indexer) top() environmentInstance {
	return state.stack[len(state.stack)-1]
}

// followsSection reports whether position lies in a sectioning command or in
// the paragraph that starts right after it.
func (state *indexer) followsSection(position int) bool {
	if state.sectionStart < 0 || position < state.sectionStart {
		return false
	}
	if position < state.sectionEnd {
		return true
	}
	return !hasParagraphBreak(state.text[state.sectionEnd:position])
}

func (state *indexer) warn(message string, position int) {
	state.index.Warnings = append(state.index.Warnings, types.Warning{Kind: types.WarningUnbalancedEnv, Message: message, Position: position})
}

func hasParagraphBreak(text string) bool {
	newline := false
	for index := 0; index < len(text); index++ {
		switch text[index] {
		case '\n':
			if newline {
				return true
			}
			newline = true
		case ' ', '\t', '\r':
		default:
			newline = false
		}
	}
	return false
}

// keyValueOptions splits "key=value, key={a, b}" at top-level commas.
func keyValueOptions(option string) map[string]string {
	values := map[string]string{}
	addPair := func(pair string) {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			return
		}
		value = strings.TrimSpace(value)
		if len(value) >= 2 && value[0] == '{' && value[len(value)-1] == '}' {
			value = value[1 : len(value)-1]
		}
		values[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}
	depth := 0
	start := 0
	for index := 0; index < len(option); index++ {
		switch option[index] {
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				addPair(option[start:index])
				start = index + 1
			}
		}
	}
	addPair(option[start:])
	return values
}
