package config

import (
	"bufio"
	"io"
	"regexp"
	"strings"
)

// keyLine matches the start of an assignment: KEY=rest
var keyLine = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)=(.*)$`)

// entry is one parsed assignment, in file order. The same key may appear
// more than once within a file; merging keeps the last occurrence, but
// callers that need every occurrence (PROMPT= lists) read entries directly.
type entry struct {
	key   string
	value string
}

// parseEntries reads the tier line grammar:
//
//	line     = comment | blank | assign | continuation
//	comment  = "#" ...            (ignored)
//	blank    = ""                 (terminates any open value)
//	assign   = KEY "=" value      (KEY = [A-Za-z_][A-Za-z0-9_]*)
//	value    = optionally quoted with matching " or ', may continue on
//	           following lines until a blank line or the next assign
//
// Lines that match none of the rules while no value is open are skipped
// silently; parsing is best-effort by design.
func parseEntries(r io.Reader) []entry {
	var entries []entry
	var open *entry

	flush := func() {
		if open != nil {
			open.value = unquote(open.value)
			entries = append(entries, *open)
			open = nil
		}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			flush()
		case strings.HasPrefix(trimmed, "#"):
			// comments are ignored and do not extend an open value
		default:
			if m := keyLine.FindStringSubmatch(trimmed); m != nil {
				flush()
				open = &entry{key: m[1], value: strings.TrimSpace(m[2])}
			} else if open != nil {
				open.value += "\n" + trimmed
			}
			// otherwise: malformed line, skipped silently
		}
	}
	flush()

	return entries
}

// parseMap parses the grammar and keeps the last value per key.
func parseMap(r io.Reader) map[string]string {
	m := make(map[string]string)
	for _, e := range parseEntries(r) {
		m[e.key] = e.value
	}
	return m
}

// unquote strips one pair of matching surrounding quotes and trims space.
func unquote(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			v = v[1 : len(v)-1]
		}
	}
	return strings.TrimSpace(v)
}
