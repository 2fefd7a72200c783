package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/orugallu/diagtranslate/internal/record"
)

// The model is instructed to reply with a bare JSON object mapping
// identifiers to translations, but historically it has wrapped the object
// in markdown fences, drifted fences into the payload, truncated it, or
// fallen back to older numbered line formats. Extraction runs a fixed
// cascade of cleanup+parse strategies and stops at the first one that
// yields a non-empty mapping.

type strategy struct {
	name  string
	apply func(string) (map[string]string, bool)
}

var strategies = []strategy{
	{"strict-fence", parseStrictFence},
	{"loose-fence", parseLooseFence},
	{"fence-interior", parseFenceInterior},
	{"brace-repair", parseBraceRepair},
}

// Extract recovers an identifier -> translation mapping from one raw model
// reply. Empty or absent input yields an empty mapping. Extract never
// fails and never returns an identifier not literally present in raw.
func Extract(raw string) map[string]string {
	m, _ := extractTagged(raw)
	return m
}

// extractTagged additionally reports which strategy produced the mapping,
// so tests can observe that no later strategy ran.
func extractTagged(raw string) (map[string]string, string) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return map[string]string{}, "empty"
	}
	for _, st := range strategies {
		if m, ok := st.apply(trimmed); ok {
			return m, st.name
		}
	}
	if m := parseLegacyLines(trimmed); len(m) > 0 {
		return m, "legacy-lines"
	}
	return map[string]string{}, "none"
}

var (
	strictFenceRe = regexp.MustCompile("(?s)^```(?:json)?\\n(.*)\\n```$")
	looseFenceRe  = regexp.MustCompile("```[a-zA-Z0-9_-]*[ \\t]*")
)

// parseStrictFence strips a single well-formed fenced block, or takes the
// content as-is when no fence is present, then parses a JSON object.
func parseStrictFence(s string) (map[string]string, bool) {
	if m := strictFenceRe.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	return parseJSONMapping(s)
}

// parseLooseFence removes fence markers wherever they appear, tolerating
// language tag variants and whitespace irregularities.
func parseLooseFence(s string) (map[string]string, bool) {
	cleaned := looseFenceRe.ReplaceAllString(s, "")
	return parseJSONMapping(strings.TrimSpace(cleaned))
}

// parseFenceInterior keeps only the lines between fence marker lines,
// covering replies where prose or a second fence drifted into the payload.
func parseFenceInterior(s string) (map[string]string, bool) {
	lines := strings.Split(s, "\n")
	inside := false
	sawFence := false
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			sawFence = true
			inside = !inside
			continue
		}
		if inside {
			kept = append(kept, line)
		}
	}
	if !sawFence || len(kept) == 0 {
		return nil, false
	}
	return parseJSONMapping(strings.Join(kept, "\n"))
}

// parseBraceRepair patches near-JSON: a matching pair of stray surrounding
// quotes trimmed, a missing opening brace prepended when the content still
// carries key:value pairs, a missing closing brace appended.
func parseBraceRepair(s string) (map[string]string, bool) {
	repaired := trimWrappingQuotes(strings.TrimSpace(s))
	if !strings.HasPrefix(repaired, "{") && strings.Contains(repaired, ":") {
		repaired = "{" + repaired
	}
	if strings.HasPrefix(repaired, "{") && !strings.HasSuffix(repaired, "}") {
		repaired = repaired + "}"
	}
	return parseJSONMapping(repaired)
}

// trimWrappingQuotes removes one layer of identical quotes wrapping the
// whole content. Unpaired quotes stay: a trailing quote may belong to a
// truncated JSON string.
func trimWrappingQuotes(s string) string {
	for len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first != last || (first != '"' && first != '\'') {
			break
		}
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

// parseJSONMapping parses s as a JSON object of identifier -> translation.
// Non-string values are skipped; suspicious values are discarded. A valid
// object that filters down to nothing counts as a failure so the cascade
// can continue.
func parseJSONMapping(s string) (map[string]string, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, false
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		text, ok := v.(string)
		if !ok {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" || IsSuspicious(text) {
			continue
		}
		id := record.NormalizeID(k)
		if id == "" {
			continue
		}
		out[id] = text
	}
	return out, len(out) > 0
}

var legacyPatterns = []*regexp.Regexp{
	// "21": "translation"  (JSON fragment spilled onto its own lines)
	regexp.MustCompile(`^"?([A-Za-z0-9_]+)"?\s*:\s*"(.+?)"\s*[,}]?\s*$`),
	// 320. ('640', 'translation')  (the true identifier is inside the tuple)
	regexp.MustCompile(`^\d+\.\s*\(\s*'([^']+)'\s*,\s*'(.+?)'\s*\)\s*,?$`),
	// desc_21. translation  /  21. translation
	regexp.MustCompile(`^(?:desc_)?(\d+)\.\s*(.+)$`),
}

// parseLegacyLines is the last-resort line-oriented parser covering the
// historical reply formats. First matching pattern wins per line.
func parseLegacyLines(s string) map[string]string {
	out := map[string]string{}
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || skipLegacyLine(line) {
			continue
		}
		for _, re := range legacyPatterns {
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			id := record.NormalizeID(m[1])
			text := strings.TrimSpace(strings.Trim(strings.TrimSpace(m[2]), `"'`))
			if id != "" && text != "" && !IsSuspicious(text) {
				out[id] = text
			}
			break
		}
	}
	return out
}

func skipLegacyLine(line string) bool {
	if strings.HasPrefix(line, "```") || strings.HasPrefix(line, "<") {
		return true
	}
	switch strings.ToLower(line) {
	case "plaintext", "json", "text", "{", "}":
		return true
	}
	return false
}
