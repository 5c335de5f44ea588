package pfm

import "strings"

// The escape codec keeps arbitrary content from being mistaken for
// structure. Any physical line whose first non-backslash characters
// form a marker prefix (#@ or #!) gains exactly one leading backslash
// on write; the reader strips exactly one. Applying escape n times and
// unescape n times is the identity for every input, at any depth of
// pre-existing backslashes.

// needsEscape reports whether line, after skipping leading
// backslashes, starts with a marker prefix.
func needsEscape(line string) bool {
	i := 0
	for i < len(line) && line[i] == '\\' {
		i++
	}
	rest := line[i:]
	return strings.HasPrefix(rest, SectionPrefix) || strings.HasPrefix(rest, "#!")
}

// EscapeLine escapes a single physical line for serialization.
func EscapeLine(line string) string {
	if needsEscape(line) {
		return "\\" + line
	}
	return line
}

// UnescapeLine reverses EscapeLine.
func UnescapeLine(line string) string {
	if strings.HasPrefix(line, "\\") && needsEscape(line) {
		return line[1:]
	}
	return line
}

// escapeBody escapes every line of a section body.
func escapeBody(content string) string {
	if !strings.ContainsAny(content, "#\\") {
		return content
	}
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = EscapeLine(line)
	}
	return strings.Join(lines, "\n")
}

// unescapeBody reverses escapeBody.
func unescapeBody(content string) string {
	if !strings.Contains(content, "\\") {
		return content
	}
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = UnescapeLine(line)
	}
	return strings.Join(lines, "\n")
}
