package voice

import (
	"strings"
	"unicode/utf8"
)

// DefaultRewriteMaxChars is the length past which text gets rewritten
// before synthesis.
const DefaultRewriteMaxChars = 200

// nonProseMarkers are substrings that flag text as something other than
// plain prose: fenced code, tables, box-drawing diagrams. Crude on purpose;
// the policy is a tunable default, not a contract.
var nonProseMarkers = []string{"```", "|", "─", "│", "┌", "└"}

// DefaultRewritePolicy triggers a rewrite when the text is longer than
// maxChars or looks like non-prose content. Reading a 300-character diff
// aloud verbatim is worse than useless, so anything long or code-shaped
// goes through the rewriter.
func DefaultRewritePolicy(maxChars int) RewritePolicy {
	if maxChars <= 0 {
		maxChars = DefaultRewriteMaxChars
	}
	return func(text string) bool {
		if utf8.RuneCountInString(text) > maxChars {
			return true
		}
		for _, marker := range nonProseMarkers {
			if strings.Contains(text, marker) {
				return true
			}
		}
		return false
	}
}

// StripLightMarkdown removes emphasis and inline-code markers from short
// prose that skips the rewriter, so the TTS engine never reads asterisks
// aloud.
func StripLightMarkdown(text string) string {
	return strings.TrimSpace(strings.NewReplacer(
		"**", "",
		"*", "",
		"`", "",
	).Replace(text))
}
