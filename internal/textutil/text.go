package textutil

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText converts s to NFC and collapses all whitespace runs.
func NormalizeText(s string) string {
	if s == "" {
		return ""
	}
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// JoinTexts joins non-empty texts with a single space.
func JoinTexts(texts []string) string {
	parts := make([]string, 0, len(texts))
	for _, text := range texts {
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, " ")
}

const sentenceTerminals = ".!?…。！？"

const closingMarks = "\"'”’»)]}」』）"

// EndsSentence reports whether text ends with a sentence-terminal mark,
// ignoring trailing whitespace, closing quotes and brackets.
func EndsSentence(text string) bool {
	text = strings.TrimRight(text, " \t\r\n")
	for text != "" {
		r, size := utf8.DecodeLastRuneInString(text)
		if strings.ContainsRune(closingMarks, r) {
			text = text[:len(text)-size]
			continue
		}
		return strings.ContainsRune(sentenceTerminals, r)
	}
	return false
}

// Snippet flattens whitespace and truncates text to limit runes, appending an
// ellipsis when truncated.
func Snippet(text string, limit int) string {
	clean := strings.Join(strings.Fields(text), " ")
	if clean == "" {
		return "<empty>"
	}
	if limit <= 0 {
		return clean
	}
	runes := []rune(clean)
	if len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return clean
}
