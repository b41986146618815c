package config

import (
	"encoding/json"
	"strings"
)

// parseJSONC strips // line comments and /* */ block comments from a JSON
// document and parses what remains. Comments inside string literals are
// left untouched: each line is scanned character by character tracking
// string and escape state, and only an unescaped, non-string "//" or "/*"
// is treated as a comment start. Block comments are tracked across lines so
// a comment that opens on one line and closes on a later one is removed in
// full.
func parseJSONC(content []byte) (map[string]any, error) {
	lines := strings.Split(string(content), "\n")
	cleaned := make([]string, 0, len(lines))
	inBlockComment := false

	for _, line := range lines {
		var stripped string
		stripped, inBlockComment = stripComments(line, inBlockComment)
		cleaned = append(cleaned, stripped)
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(strings.Join(cleaned, "\n")), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// stripComments removes // and /* */ comments from line, respecting string
// literals and backslash escapes so neither marker is ever mistaken for a
// comment inside a quoted value (a bark_url glob or regex, say). The second
// result reports whether a block comment opened on this line is still open when the
// line ends, for the caller to carry into the next line.
func stripComments(line string, inBlockComment bool) (string, bool) {
	var out strings.Builder
	inString := false
	escapeNext := false

	i := 0
	for i < len(line) {
		if inBlockComment {
			end := strings.Index(line[i:], "*/")
			if end < 0 {
				return out.String(), true
			}
			i += end + 2
			inBlockComment = false
			continue
		}

		c := line[i]
		if escapeNext {
			escapeNext = false
			out.WriteByte(c)
			i++
			continue
		}
		if c == '\\' {
			escapeNext = true
			out.WriteByte(c)
			i++
			continue
		}
		if c == '"' {
			inString = !inString
			out.WriteByte(c)
			i++
			continue
		}
		if !inString && c == '/' && i+1 < len(line) && line[i+1] == '/' {
			return out.String(), false
		}
		if !inString && c == '/' && i+1 < len(line) && line[i+1] == '*' {
			inBlockComment = true
			i += 2
			continue
		}
		out.WriteByte(c)
		i++
	}
	return out.String(), inBlockComment
}
