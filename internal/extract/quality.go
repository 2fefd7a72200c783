package extract

import (
	"strings"
	"unicode/utf8"
)

// minTranslationLen is the shortest trimmed text accepted as a real
// translation. Shorter values are almost always format leakage.
const minTranslationLen = 3

// placeholderTokens are values the model emits instead of a translation.
var placeholderTokens = map[string]struct{}{
	"[translation_failed]": {},
	"translation_failed":   {},
	"plaintext":            {},
	"text":                 {},
	"code":                 {},
	"output":               {},
	"none":                 {},
	"null":                 {},
	"undefined":            {},
	"error":                {},
	"failed":               {},
	"missing":              {},
	"empty":                {},
	"json":                 {},
	"translation":          {},
	"response":             {},
	"content":              {},
	"message":              {},
	"system":               {},
	"user":                 {},
}

// IsSuspicious reports whether a recovered value is structurally or
// semantically unlikely to be a genuine translation: blank, a known
// placeholder token, residual markup, structural JSON leakage, implausibly
// short, or purely numeric.
func IsSuspicious(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return true
	}
	if _, ok := placeholderTokens[strings.ToLower(trimmed)]; ok {
		return true
	}
	if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "<") {
		return true
	}
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return true
	}
	if utf8.RuneCountInString(trimmed) < minTranslationLen {
		return true
	}
	if isAllDigits(trimmed) {
		return true
	}
	return false
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
