package voice

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	fencedCodePattern   = regexp.MustCompile("(?s)```.*?```")
	inlineCodePattern   = regexp.MustCompile("`[^`]*`")
	markdownLinkPattern = regexp.MustCompile(`\[(.*?)\]\((.*?)\)`)
	urlPattern          = regexp.MustCompile(`https?://\S+`)
	tableRowPattern     = regexp.MustCompile(`\|[^\n]+\|`)
)

const sanitizeMaxRunes = 500

// SanitizeForSpeech is the local fallback when the rewriter is unavailable:
// strip everything that sounds wrong when read aloud and truncate what is
// left. The output is worse than a proper rewrite but always available.
func SanitizeForSpeech(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	raw = fencedCodePattern.ReplaceAllString(raw, " code block omitted ")
	raw = inlineCodePattern.ReplaceAllString(raw, " ")
	raw = markdownLinkPattern.ReplaceAllString(raw, "$1")
	raw = urlPattern.ReplaceAllString(raw, " ")
	raw = tableRowPattern.ReplaceAllString(raw, " ")

	var b strings.Builder
	b.Grow(len(raw))
	prevSpace := true

	for _, r := range raw {
		switch {
		case unicode.IsSpace(r):
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
		case unicode.IsControl(r):
			continue
		case isBoxDrawing(r):
			continue
		case isSpeechSafeRune(r):
			b.WriteRune(r)
			prevSpace = false
		case unicode.IsPunct(r) || unicode.In(r, unicode.So, unicode.Sm, unicode.Sk):
			// Markdown sigils, emoji, and diagram glyphs all read as noise.
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
		default:
			b.WriteRune(r)
			prevSpace = false
		}
	}

	out := strings.TrimSpace(b.String())
	runes := []rune(out)
	if len(runes) > sanitizeMaxRunes {
		out = strings.TrimSpace(string(runes[:sanitizeMaxRunes])) + "... and more."
	}
	return out
}

func isBoxDrawing(r rune) bool {
	return r >= 0x2500 && r <= 0x257f
}

func isSpeechSafeRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case '.', ',', '!', '?', ':', ';', '\'', '"', '-', '(', ')':
		return true
	default:
		return false
	}
}
