// Package citation extracts bibliography keys from citation commands.
package citation

import (
	"strings"

	"github.com/temirov/latextools/internal/latex/scanner"
	"github.com/temirov/latextools/internal/types"
)

const keySeparator = ","

// DefaultCommands are the citation commands recognized when none are configured.
var DefaultCommands = []string{"cite", "citep", "citet"}

// Citation is one cited key with the byte offset of the command citing it.
type Citation struct {
	Key   string `json:"key" xml:"key,attr" yaml:"key"`
	Index int    `json:"index" xml:"index,attr" yaml:"index"`
}

// Occurrences returns every cited key in source order, duplicates included.
// Starred variants and optional arguments are accepted; the first mandatory
// argument holds a comma-separated key list.
func Occurrences(text string, commands ...string) ([]Citation, []types.Warning) {
	if len(commands) == 0 {
		commands = DefaultCommands
	}
	commandScanner := scanner.New(text)
	var citations []Citation
	for command := range commandScanner.Commands(commands...) {
		if len(command.Args) == 0 {
			continue
		}
		for _, rawKey := range strings.Split(command.Arg(0), keySeparator) {
			key := strings.TrimSpace(rawKey)
			if key == "" {
				continue
			}
			citations = append(citations, Citation{Key: key, Index: command.Start})
		}
	}
	return citations, commandScanner.Warnings()
}

// Extract returns the unique cited keys in order of first occurrence.
func Extract(text string, commands ...string) ([]string, []types.Warning) {
	citations, warnings := Occurrences(text, commands...)
	return UniqueKeys(citations), warnings
}

// UniqueKeys deduplicates citations, keeping the first occurrence of each key.
func UniqueKeys(citations []Citation) []string {
	seen := make(map[string]struct{}, len(citations))
	keys := make([]string, 0, len(citations))
	for _, citation := range citations {
		if _, exists := seen[citation.Key]; exists {
			continue
		}
		seen[citation.Key] = struct{}{}
		keys = append(keys, citation.Key)
	}
	return keys
}
