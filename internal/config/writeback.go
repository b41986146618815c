package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

// UpdateNotificationSection merges updates onto the current notification
// section, validates the result against the full config, persists it to
// disk formatting only the changed keys so comments and unrelated sections
// survive untouched, and publishes the merged config as the new snapshot.
func (s *Store) UpdateNotificationSection(updates map[string]any) (*Config, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current := s.snapshot.Load()
	currentMap, err := toMap(current.Notification)
	if err != nil {
		return nil, err
	}
	mergedNotification := deepMerge(currentMap, updates)

	fullMap, err := toMap(*current)
	if err != nil {
		return nil, err
	}
	fullMap["notification"] = mergedNotification

	mergedJSON, err := json.Marshal(fullMap)
	if err != nil {
		return nil, err
	}
	var next Config
	if err := json.Unmarshal(mergedJSON, &next); err != nil {
		return nil, fmt.Errorf("decode merged config: %w", err)
	}
	if err := validate(&next); err != nil {
		return nil, err
	}

	newText, err := updateSectionKeys(s.rawText, "notification", updates)
	if err != nil {
		return nil, fmt.Errorf("format write-back: %w", err)
	}
	if err := writeFileAtomic(s.path, []byte(newText)); err != nil {
		return nil, fmt.Errorf("write config: %w", err)
	}

	s.rawText = newText
	s.snapshot.Store(&next)
	return &next, nil
}

// updateSectionKeys rewrites, inside the named top-level section of text,
// the line for each key in updates, preserving every other line (including
// comments) byte for byte. Keys not already present are appended just
// before the section's closing brace.
func updateSectionKeys(text, section string, updates map[string]any) (string, error) {
	lines := strings.Split(text, "\n")
	start, end, err := findSectionBlock(lines, section)
	if err != nil {
		return "", err
	}

	remaining := make(map[string]any, len(updates))
	for k, v := range updates {
		remaining[k] = v
	}

	for i := start + 1; i < end; i++ {
		key, ok := lineKey(lines[i])
		if !ok {
			continue
		}
		if val, pending := remaining[key]; pending {
			lines[i] = replaceLineValue(lines[i], val)
			delete(remaining, key)
		}
	}

	if len(remaining) > 0 {
		insertAt := end
		// Ensure the line immediately before the closing brace ends with a
		// comma so the newly appended keys form valid JSON.
		if insertAt-1 > start {
			lines[insertAt-1] = ensureTrailingComma(lines[insertAt-1])
		}
		indent := lineIndent(lines[start]) + "  "
		added := make([]string, 0, len(remaining))
		for key, val := range remaining {
			encoded, err := json.Marshal(val)
			if err != nil {
				return "", err
			}
			added = append(added, fmt.Sprintf(`%s"%s": %s,`, indent, key, encoded))
		}
		if len(added) > 0 {
			added[len(added)-1] = strings.TrimSuffix(added[len(added)-1], ",")
		}
		tail := append(added, lines[insertAt:]...)
		lines = append(lines[:insertAt], tail...)
	}

	return strings.Join(lines, "\n"), nil
}

// findSectionBlock returns the line indices of the section's opening "{"
// line and its matching closing "}" line.
func findSectionBlock(lines []string, section string) (start, end int, err error) {
	header := fmt.Sprintf(`"%s"`, section)
	for i, line := range lines {
		if strings.Contains(line, header) && strings.Contains(line, "{") {
			depth := strings.Count(line, "{") - strings.Count(line, "}")
			for j := i + 1; j < len(lines); j++ {
				depth += strings.Count(lines[j], "{") - strings.Count(lines[j], "}")
				if depth <= 0 {
					return i, j, nil
				}
			}
			return 0, 0, fmt.Errorf("unterminated section %q", section)
		}
	}
	return 0, 0, fmt.Errorf("section %q not found", section)
}

// lineKey returns the JSON key declared on a "key": value line, if any.
func lineKey(line string) (string, bool) {
	stripped, _ := stripComments(line, false)
	trimmed := strings.TrimSpace(stripped)
	if !strings.HasPrefix(trimmed, `"`) {
		return "", false
	}
	rest := trimmed[1:]
	end := strings.Index(rest, `"`)
	if end < 0 {
		return "", false
	}
	key := rest[:end]
	after := strings.TrimSpace(rest[end+1:])
	if !strings.HasPrefix(after, ":") {
		return "", false
	}
	return key, true
}

// replaceLineValue swaps the value portion of a "key": value[,] [// comment]
// line, preserving indentation, the trailing comma, and any comment.
func replaceLineValue(line string, value any) string {
	comment := ""
	body := line
	if idx := commentIndex(line); idx >= 0 {
		body, comment = line[:idx], line[idx:]
	}
	trimmedRight := strings.TrimRight(body, " \t")
	hasComma := strings.HasSuffix(trimmedRight, ",")

	colon := strings.Index(body, ":")
	if colon < 0 {
		return line
	}
	keyPart := body[:colon+1]

	encoded, err := json.Marshal(value)
	if err != nil {
		return line
	}
	newBody := keyPart + " " + string(encoded)
	if hasComma {
		newBody += ","
	}
	if comment != "" {
		newBody += " " + strings.TrimSpace(comment)
	}
	return newBody
}

// commentIndex finds the start of a trailing "//" comment outside of string
// literals, reusing the same string/escape-aware scan as the JSONC parser.
func commentIndex(line string) int {
	inString := false
	escapeNext := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		if escapeNext {
			escapeNext = false
			continue
		}
		if c == '\\' {
			escapeNext = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if !inString && c == '/' && i+1 < len(line) && line[i+1] == '/' {
			return i
		}
	}
	return -1
}

func ensureTrailingComma(line string) string {
	comment := ""
	body := line
	if idx := commentIndex(line); idx >= 0 {
		body, comment = line[:idx], line[idx:]
	}
	trimmed := strings.TrimRight(body, " \t")
	if trimmed == "" || strings.HasSuffix(trimmed, ",") || strings.HasSuffix(trimmed, "{") {
		return line
	}
	out := trimmed + ","
	if comment != "" {
		out += " " + strings.TrimSpace(comment)
	}
	return out
}

func lineIndent(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}
