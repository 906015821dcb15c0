package include

import (
	"errors"
	"io/fs"
	"sort"
	"strings"

	"github.com/temirov/latextools/internal/types"
)

// Span records that consolidated text [Start, End) was copied from Path starting at byte Offset.
type Span struct {
	Start  int
	End    int
	Path   string
	Offset int
}

// Document is the consolidated result of a resolution.
type Document struct {
	Root  string
	Text  string
	Files []string
	Spans []Span

	sources map[string]string
}

// Locate maps an offset of the consolidated text back to the file and line it came from.
// Offsets inside generated text, such as inclusion markers, map to the root document.
func (document Document) Locate(offset int) types.Location {
	index := sort.Search(len(document.Spans), func(candidate int) bool {
		return document.Spans[candidate].End > offset
	})
	if index < len(document.Spans) && document.Spans[index].Start <= offset {
		span := document.Spans[index]
		text := document.sources[span.Path]
		fileOffset := span.Offset + offset - span.Start
		if fileOffset > len(text) {
			fileOffset = len(text)
		}
		return types.Location{Path: span.Path, Line: strings.Count(text[:fileOffset], "\n") + 1}
	}
	return types.Location{Path: document.Root}
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
