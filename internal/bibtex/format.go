package bibtex

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	bibliographyBegin = "\\begin{thebibliography}{99}"
	bibliographyEnd   = "\\end{thebibliography}"

	bibitemWithLabelFormat = "\\bibitem[%s]{%s} %s"
	bibitemFormat          = "\\bibitem{%s}"
	doiURLFormat           = " \\url{https://doi.org/%s}."

	authorSeparator    = ", "
	lastAuthorJoin     = " \\& "
	lastAuthorListJoin = ", \\& "
	shortPairJoin      = " and "
	shortEtAl          = " et. al."
	authorConjunction  = "and"

	entryTypeArticle       = "article"
	entryTypeBook          = "book"
	entryTypeInproceedings = "inproceedings"
	entryTypeConference    = "conference"
	entryTypeIncollection  = "incollection"
	entryTypeTechreport    = "techreport"
	technicalReportLabel   = "Technical Report"
)

// Filter returns the entries for citedKeys in citation order, plus the keys
// with no matching entry.
func Filter(entries []Entry, citedKeys []string) ([]Entry, []string) {
	byKey := make(map[string]Entry, len(entries))
	for _, entry := range entries {
		if _, exists := byKey[entry.Key]; !exists {
			byKey[entry.Key] = entry
		}
	}
	var cited []Entry
	var missing []string
	for _, key := range citedKeys {
		entry, found := byKey[key]
		if !found {
			missing = append(missing, key)
			continue
		}
		cited = append(cited, entry)
	}
	return cited, missing
}

// RenderBibTeX writes entries back verbatim, separated by blank lines.
func RenderBibTeX(entries []Entry) string {
	if len(entries) == 0 {
		return ""
	}
	blocks := make([]string, 0, len(entries))
	for _, entry := range entries {
		blocks = append(blocks, entry.Raw)
	}
	return strings.Join(blocks, "\n\n") + "\n"
}

// RenderBibliography formats entries as a thebibliography environment.
func RenderBibliography(entries []Entry) string {
	var builder strings.Builder
	builder.WriteString(bibliographyBegin)
	builder.WriteString("\n")
	for index, entry := range entries {
		if index > 0 {
			builder.WriteString("\n\n")
		}
		builder.WriteString(FormatBibitem(entry))
	}
	if len(entries) > 0 {
		builder.WriteString("\n")
	}
	builder.WriteString(bibliographyEnd)
	return builder.String()
}

// FormatBibitem renders one entry as an author-year \bibitem.
func FormatBibitem(entry Entry) string {
	author := normalizeSpace(entry.Field("author"))
	year := normalizeSpace(entry.Field("year"))
	title := cleanTitle(entry.Field("title"))

	var builder strings.Builder
	if author != "" {
		fmt.Fprintf(&builder, bibitemWithLabelFormat, ShortLabel(author, year), entry.Key, FormatAuthors(author))
	} else {
		fmt.Fprintf(&builder, bibitemFormat, entry.Key)
	}
	if year != "" {
		fmt.Fprintf(&builder, " (%s).", year)
	}

	switch entry.Type {
	case entryTypeArticle:
		writeSentence(&builder, title)
		if journal := normalizeSpace(entry.Field("journal")); journal != "" {
			fmt.Fprintf(&builder, " \\textit{%s}", journal)
			if volume := normalizeSpace(entry.Field("volume")); volume != "" {
				fmt.Fprintf(&builder, ", %s", volume)
				if number := normalizeSpace(entry.Field("number")); number != "" {
					fmt.Fprintf(&builder, "(%s)", number)
				}
			}
			if pages := normalizeSpace(entry.Field("pages")); pages != "" {
				fmt.Fprintf(&builder, ", %s", pages)
			}
			builder.WriteString(".")
		}
	case entryTypeBook:
		if title != "" {
			fmt.Fprintf(&builder, " \\textit{%s}.", title)
		}
		if publisher := normalizeSpace(entry.Field("publisher")); publisher != "" {
			fmt.Fprintf(&builder, " %s", publisher)
			if address := normalizeSpace(entry.Field("address")); address != "" {
				fmt.Fprintf(&builder, ": %s", address)
			}
			builder.WriteString(".")
		}
	case entryTypeInproceedings, entryTypeConference, entryTypeIncollection:
		writeSentence(&builder, title)
		if booktitle := cleanTitle(entry.Field("booktitle")); booktitle != "" {
			fmt.Fprintf(&builder, " In \\textit{%s}", booktitle)
			if pages := normalizeSpace(entry.Field("pages")); pages != "" {
				fmt.Fprintf(&builder, " (pp. %s)", pages)
			}
			builder.WriteString(".")
		}
	case entryTypeTechreport:
		writeSentence(&builder, title)
		builder.WriteString(" " + technicalReportLabel)
		if institution := normalizeSpace(entry.Field("institution")); institution != "" {
			fmt.Fprintf(&builder, ", %s", institution)
		}
		builder.WriteString(".")
	default:
		writeSentence(&builder, title)
		for _, venueField := range []string{"howpublished", "publisher", "school", "institution"} {
			if venue := normalizeSpace(entry.Field(venueField)); venue != "" {
				writeSentence(&builder, venue)
				break
			}
		}
	}

	if doi := normalizeSpace(entry.Field("doi")); doi != "" {
		doi = strings.ReplaceAll(doi, "{\\_}", "_")
		doi = strings.ReplaceAll(doi, "\\_", "_")
		fmt.Fprintf(&builder, doiURLFormat, doi)
	}
	return builder.String()
}

// FormatAuthors renders a BibTeX author list as "Last, F. M." names joined
// with commas and a final \&.
func FormatAuthors(author string) string {
	names := SplitAuthors(author)
	formatted := make([]string, 0, len(names))
	for _, name := range names {
		formatted = append(formatted, formatName(name))
	}
	switch len(formatted) {
	case 0:
		return ""
	case 1:
		return formatted[0]
	case 2:
		return formatted[0] + lastAuthorJoin + formatted[1]
	default:
		return strings.Join(formatted[:len(formatted)-1], authorSeparator) + lastAuthorListJoin + formatted[len(formatted)-1]
	}
}

// ShortLabel returns the optional \bibitem label: "Last(Year)",
// "Last and Other(Year)" or "Last et. al.(Year)". The "(Year)" suffix is
// left out when year is empty.
func ShortLabel(author, year string) string {
	suffix := ""
	if year != "" {
		suffix = "(" + year + ")"
	}
	names := SplitAuthors(author)
	if len(names) == 0 {
		return year
	}
	first := lastName(names[0])
	switch len(names) {
	case 1:
		return first + suffix
	case 2:
		return first + shortPairJoin + lastName(names[1]) + suffix
	default:
		return first + shortEtAl + suffix
	}
}

// SplitAuthors splits an author field on "and" separators outside braces.
func SplitAuthors(author string) []string {
	author = normalizeSpace(author)
	var names []string
	depth := 0
	start := 0
	for index := 0; index < len(author); index++ {
		switch author[index] {
		case '{':
			depth++
		case '}':
			depth--
		case ' ':
			if depth != 0 {
				continue
			}
			rest := author[index+1:]
			if len(rest) > len(authorConjunction) && strings.EqualFold(rest[:len(authorConjunction)], authorConjunction) && rest[len(authorConjunction)] == ' ' {
				names = appendName(names, author[start:index])
				start = index + len(authorConjunction) + 2
				index = start - 1
			}
		}
	}
	return appendName(names, author[start:])
}

func appendName(names []string, name string) []string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return names
	}
	return append(names, trimmed)
}

// formatName turns "Last, First Middle" or "First Middle Last" into "Last, F. M.".
func formatName(name string) string {
	var last string
	var given []string
	if comma := strings.IndexByte(name, ','); comma >= 0 {
		last = strings.TrimSpace(name[:comma])
		given = strings.Fields(name[comma+1:])
	} else {
		parts := strings.Fields(name)
		if len(parts) < 2 {
			return name
		}
		last = parts[len(parts)-1]
		given = parts[:len(parts)-1]
	}
	var initials []string
	for _, part := range given {
		firstRune, _ := utf8.DecodeRuneInString(part)
		if unicode.IsLetter(firstRune) {
			initials = append(initials, string(unicode.ToUpper(firstRune))+".")
		}
	}
	if len(initials) == 0 {
		return last
	}
	return last + ", " + strings.Join(initials, " ")
}

func lastName(name string) string {
	if comma := strings.IndexByte(name, ','); comma >= 0 {
		return strings.TrimSpace(name[:comma])
	}
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return name
	}
	return parts[len(parts)-1]
}

func cleanTitle(title string) string {
	return normalizeSpace(stripProtectedGroups(title))
}

// stripProtectedGroups removes the braces BibTeX uses to protect case, at any
// depth, keeping the braces of command arguments such as \textit{...}.
func stripProtectedGroups(title string) string {
	var builder strings.Builder
	var kept []bool
	lastClosedKept := false
	for index := 0; index < len(title); index++ {
		character := title[index]
		switch {
		case character == '\\' && index+1 < len(title):
			builder.WriteByte(character)
			builder.WriteByte(title[index+1])
			index++
		case character == '{':
			keep := isCommandArgument(title, index, lastClosedKept)
			kept = append(kept, keep)
			if keep {
				builder.WriteByte(character)
			}
		case character == '}' && len(kept) > 0:
			lastClosedKept = kept[len(kept)-1]
			kept = kept[:len(kept)-1]
			if lastClosedKept {
				builder.WriteByte(character)
			}
		default:
			builder.WriteByte(character)
		}
	}
	return builder.String()
}

// isCommandArgument reports whether the brace at open follows a command name
// or closes off a previous argument of the same command.
func isCommandArgument(title string, open int, previousKept bool) bool {
	index := open - 1
	if index >= 0 && title[index] == '}' {
		return previousKept
	}
	for index >= 0 && isASCIILetter(title[index]) {
		index--
	}
	return index >= 0 && index < open-1 && title[index] == '\\'
}

func isASCIILetter(character byte) bool {
	return (character >= 'a' && character <= 'z') || (character >= 'A' && character <= 'Z')
}

func writeSentence(builder *strings.Builder, text string) {
	if text == "" {
		return
	}
	builder.WriteString(" ")
	builder.WriteString(text)
	if !strings.HasSuffix(text, ".") && !strings.HasSuffix(text, "?") && !strings.HasSuffix(text, "!") {
		builder.WriteString(".")
	}
}

func normalizeSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
