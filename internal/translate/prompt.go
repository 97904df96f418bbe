package translate

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

const basePrompt = `You translate transcript excerpts for a voice dub.
The translation will be spoken aloud in the same time slot as the original, so keep it about as long as the source and natural to say.
Translate only the latest user message. Earlier messages are context.
Do not add notes, speaker labels, or explanations.
Respond with JSON only: {"translation": "<text>"}`

// LanguageName renders a BCP 47 tag as an English language name; unknown or
// empty tags are returned as given.
func LanguageName(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ""
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	if name := display.English.Tags().Name(parsed); name != "" {
		return name
	}
	return tag
}

// SystemPrompt builds the translator instructions for style.
func SystemPrompt(style Style) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\n")
	if src := LanguageName(style.SourceLanguage); src != "" {
		fmt.Fprintf(&b, "Source language: %s.\n", src)
	} else {
		b.WriteString("Detect the source language.\n")
	}
	fmt.Fprintf(&b, "Target language: %s.\n", LanguageName(style.TargetLanguage))
	if tone := strings.TrimSpace(style.Tone); tone != "" {
		fmt.Fprintf(&b, "Tone: %s.\n", tone)
	}
	switch strings.ToLower(strings.TrimSpace(style.Formality)) {
	case "formal":
		b.WriteString("Use formal register and polite forms of address.\n")
	case "informal":
		b.WriteString("Use informal, conversational register.\n")
	}
	if len(style.Glossary) > 0 {
		terms := make([]string, 0, len(style.Glossary))
		for term := range style.Glossary {
			terms = append(terms, term)
		}
		sort.Strings(terms)
		b.WriteString("Always translate these terms as given:\n")
		for _, term := range terms {
			fmt.Fprintf(&b, "- %q -> %q\n", term, style.Glossary[term])
		}
	}
	return strings.TrimSpace(b.String())
}
