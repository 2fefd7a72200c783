package extract

import (
	"regexp"
	"strings"
)

// Truncation happens when the model hits its output token limit mid-object:
// the reply opens a fenced JSON block that never closes, or stops in the
// middle of an entry. Repair only restores structural closure; it never
// invents translation content.

var (
	openFenceRe     = regexp.MustCompile("^```[a-zA-Z0-9_-]*[ \\t]*\\r?\\n?")
	closeFenceRe    = regexp.MustCompile("\\r?\\n?```\\s*$")
	completeEntryRe = regexp.MustCompile(`^"[^"]+"\s*:\s*".*"\s*,?\s*$`)
)

// IsTruncated reports whether a reply looks cut off: an opening fence with
// no closing one, more opening than closing braces, or a last line that
// ends mid-entry.
func IsTruncated(content string) bool {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return false
	}
	if strings.HasPrefix(trimmed, "```") && !strings.Contains(trimmed[3:], "```") {
		return true
	}
	if strings.Count(trimmed, "{") > strings.Count(trimmed, "}") {
		return true
	}
	last := lastNonEmptyLine(fencePayload(trimmed))
	if last == "" {
		return false
	}
	switch last[len(last)-1] {
	case '}', '"', ',':
		return false
	}
	return true
}

// Repair attempts to reconstruct a truncated reply and returns the mapping
// parsed from the repaired content. Repairing an already well-formed blob
// is a no-op yielding the same parsed result. Failure reports ok=false and
// the caller falls back to the normal extraction cascade.
func Repair(content string) (map[string]string, bool) {
	payload := fencePayload(content)
	payload = trimTrailingComma(payload)

	if m, ok := closeAndParse(payload); ok {
		return m, true
	}

	// Cut everything after the last complete "key": "value" entry and
	// retry with structural closure restored.
	lines := strings.Split(payload, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if !completeEntryRe.MatchString(strings.TrimSpace(lines[i])) {
			continue
		}
		head := trimTrailingComma(strings.Join(lines[:i+1], "\n"))
		if m, ok := closeAndParse(head); ok {
			return m, true
		}
		break
	}
	return nil, false
}

// fencePayload returns the JSON-looking payload with any opening and
// closing fence markers removed.
func fencePayload(content string) string {
	trimmed := strings.TrimSpace(content)
	trimmed = openFenceRe.ReplaceAllString(trimmed, "")
	trimmed = closeFenceRe.ReplaceAllString(trimmed, "")
	return strings.TrimSpace(trimmed)
}

func trimTrailingComma(s string) string {
	s = strings.TrimRight(s, " \t\r\n")
	s = strings.TrimSuffix(s, ",")
	return strings.TrimRight(s, " \t\r\n")
}

func closeAndParse(s string) (map[string]string, bool) {
	if s == "" {
		return nil, false
	}
	if diff := strings.Count(s, "{") - strings.Count(s, "}"); diff > 0 {
		s += strings.Repeat("}", diff)
	}
	return parseJSONMapping(s)
}

func lastNonEmptyLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
