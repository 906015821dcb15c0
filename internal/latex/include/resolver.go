// Package include resolves \input and \include commands into one consolidated document.
package include

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/latextools/internal/latex/scanner"
	"github.com/temirov/latextools/internal/latex/source"
	"github.com/temirov/latextools/internal/types"
)

const (
	commandInput   = "input"
	commandInclude = "include"

	beginMarkerFormat = "\n%% Begin included file: %s\n"
	endMarkerFormat   = "\n%% End included file: %s\n"

	readRootOperation          = "read root document"
	circularInclusionFormat    = "circular inclusion of %s (%s)"
	repeatedInclusionFormat    = "%s included more than once; reusing its resolved text"
	missingIncludeFormat       = "included file %q not found"
	missingIncludeDetailFormat = "included file %q could not be read: %v"
	inclusionChainSeparator    = " -> "
)

// Option configures a Resolver.
type Option func(*Resolver)

// WithLoader replaces the file system loader.
func WithLoader(loader source.Loader) Option {
	return func(resolver *Resolver) {
		if loader != nil {
			resolver.loader = loader
		}
	}
}

// WithMarkers toggles the begin/end comment lines around spliced files.
func WithMarkers(enabled bool) Option {
	return func(resolver *Resolver) {
		resolver.markers = enabled
	}
}

// WithLogger sets the logger used for per-file progress messages.
func WithLogger(logger *zap.Logger) Option {
	return func(resolver *Resolver) {
		if logger != nil {
			resolver.logger = logger
		}
	}
}

// Resolver consolidates a document tree. A Resolver holds no per-call state and
// may be used for several documents, concurrently if needed.
type Resolver struct {
	loader  source.Loader
	markers bool
	logger  *zap.Logger
}

// NewResolver returns a Resolver reading from the file system with markers enabled.
func NewResolver(options ...Option) *Resolver {
	resolver := &Resolver{
		loader:  source.FileLoader{},
		markers: true,
		logger:  zap.NewNop(),
	}
	for _, option := range options {
		option(resolver)
	}
	return resolver
}

// resolution is the state of a single Resolve call.
type resolution struct {
	resolver      *Resolver
	rootDirectory string
	stack         []string
	active        map[string]bool
	resolved      map[string]resolvedUnit
	sources       map[string]string
	files         []string
	warnings      []types.Warning
}

type resolvedUnit struct {
	text  string
	spans []Span
}

// Resolve consolidates the document rooted at rootPath. Only an unreadable root
// is fatal; every other problem is returned as a warning.
func (resolver *Resolver) Resolve(rootPath string) (Document, []types.Warning, error) {
	absoluteRoot, absoluteError := filepath.Abs(rootPath)
	if absoluteError != nil {
		return Document{}, nil, &types.FatalError{Op: readRootOperation, Path: rootPath, Err: absoluteError}
	}
	state := &resolution{
		resolver:      resolver,
		rootDirectory: filepath.Dir(absoluteRoot),
		active:        map[string]bool{},
		resolved:      map[string]resolvedUnit{},
		sources:       map[string]string{},
	}
	unit, resolveError := state.resolve(absoluteRoot)
	if resolveError != nil {
		return Document{}, nil, &types.FatalError{Op: readRootOperation, Path: rootPath, Err: resolveError}
	}
	document := Document{
		Root:    absoluteRoot,
		Text:    unit.text,
		Files:   state.files,
		Spans:   unit.spans,
		sources: state.sources,
	}
	return document, state.warnings, nil
}

func (state *resolution) resolve(path string) (resolvedUnit, error) {
	unit, loadError := state.resolver.loader.Load(path)
	if loadError != nil {
		return resolvedUnit{}, loadError
	}
	state.resolver.logger.Debug("resolving file", zap.String("path", path), zap.Int("depth", len(state.stack)))
	state.sources[path] = unit.Text
	state.files = append(state.files, path)
	state.active[path] = true
	state.stack = append(state.stack, path)
	defer func() {
		delete(state.active, path)
		state.stack = state.stack[:len(state.stack)-1]
	}()

	text := unit.Text
	var builder strings.Builder
	var spans []Span
	appendSource := func(start, end int) {
		if end <= start {
			return
		}
		spans = append(spans, Span{Start: builder.Len(), End: builder.Len() + end - start, Path: path, Offset: start})
		builder.WriteString(text[start:end])
	}

	commandScanner := scanner.New(text)
	last := 0
	for command := range commandScanner.Commands(commandInput, commandInclude) {
		if command.Start < last || len(command.Args) == 0 {
			continue
		}
		target := strings.TrimSpace(command.Arg(0))
		if target == "" {
			continue
		}
		appendSource(last, command.Start)
		last = command.End

		included, includedPath, ok := state.include(path, target, command.Start)
		if !ok {
			continue
		}
		if state.resolver.markers {
			fmt.Fprintf(&builder, beginMarkerFormat, state.displayName(includedPath))
		}
		offset := builder.Len()
		for _, span := range included.spans {
			span.Start += offset
			span.End += offset
			spans = append(spans, span)
		}
		builder.WriteString(included.text)
		if state.resolver.markers {
			fmt.Fprintf(&builder, endMarkerFormat, state.displayName(includedPath))
		}
	}
	appendSource(last, len(text))

	for _, warning := range commandScanner.Warnings() {
		warning.Path = path
		state.warnings = append(state.warnings, warning)
	}
	return resolvedUnit{text: builder.String(), spans: spans}, nil
}

// include resolves one inclusion edge from currentPath. It reports false when
// the edge contributes no text.
func (state *resolution) include(currentPath, target string, position int) (resolvedUnit, string, bool) {
	var lastError error
	for _, candidate := range state.candidates(currentPath, target) {
		if state.active[candidate] {
			chain := append(append([]string{}, state.stack...), candidate)
			state.warn(types.WarningCircularInclusion, fmt.Sprintf(circularInclusionFormat, state.displayName(candidate), state.describeChain(chain)), currentPath, position)
			return resolvedUnit{}, "", false
		}
		if cached, ok := state.resolved[candidate]; ok {
			state.warn(types.WarningRepeatedInclusion, fmt.Sprintf(repeatedInclusionFormat, state.displayName(candidate)), currentPath, position)
			return cached, candidate, true
		}
		unit, resolveError := state.resolve(candidate)
		if resolveError != nil {
			lastError = resolveError
			continue
		}
		state.resolved[candidate] = unit
		return unit, candidate, true
	}
	message := fmt.Sprintf(missingIncludeFormat, target)
	if lastError != nil && !isNotExist(lastError) {
		message = fmt.Sprintf(missingIncludeDetailFormat, target, lastError)
	}
	state.warn(types.WarningMissingInclude, message, currentPath, position)
	return resolvedUnit{}, "", false
}

// candidates lists the paths tried for target, in order: relative to the
// including file, then relative to the root document's directory; each as given
// and then with the .tex extension appended.
func (state *resolution) candidates(currentPath, target string) []string {
	var bases []string
	if filepath.IsAbs(target) {
		bases = []string{target}
	} else {
		bases = []string{
			filepath.Join(filepath.Dir(currentPath), target),
			filepath.Join(state.rootDirectory, target),
		}
	}
	seen := map[string]struct{}{}
	var candidates []string
	add := func(path string) {
		cleanPath := filepath.Clean(path)
		if _, exists := seen[cleanPath]; exists {
			return
		}
		seen[cleanPath] = struct{}{}
		candidates = append(candidates, cleanPath)
	}
	for _, base := range bases {
		add(base)
		if !strings.HasSuffix(base, types.TeXExtension) {
			add(base + types.TeXExtension)
		}
	}
	return candidates
}

func (state *resolution) warn(kind types.WarningKind, message, path string, position int) {
	state.resolver.logger.Debug(message, zap.String("kind", string(kind)), zap.String("path", path))
	state.warnings = append(state.warnings, types.Warning{Kind: kind, Message: message, Path: path, Position: position})
}

func (state *resolution) displayName(path string) string {
	relativePath, relativeError := filepath.Rel(state.rootDirectory, path)
	if relativeError != nil || strings.HasPrefix(relativePath, "..") {
		return path
	}
	return filepath.ToSlash(relativePath)
}

func (state *resolution) describeChain(chain []string) string {
	names := make([]string, 0, len(chain))
	for _, path := range chain {
		names = append(names, state.displayName(path))
	}
	return strings.Join(names, inclusionChainSeparator)
}
