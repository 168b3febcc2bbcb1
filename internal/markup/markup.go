// Package markup converts the model's markdown-flavored output into Telegram
// HTML and splits oversized replies into messages the API will accept.
package markup

import (
	"regexp"
	"strings"
)

// Substitution order matters: headings and double-asterisk bold must run
// before single-asterisk italic, or **bold** would parse as nested italics.
var (
	headingRe = regexp.MustCompile(`###\s+(.+)`)
	boldRe    = regexp.MustCompile(`\*\*(.+?)\*\*`)
	bulletRe  = regexp.MustCompile(`(?m)^[ \t]*\*\s+`)
	italicRe  = regexp.MustCompile(`\*(.+?)\*`)
)

// Format rewrites markdown markers into Telegram HTML: "### h" headings and
// **bold** spans become <b>, "* " list items become "• " bullets, and
// remaining *emphasis* becomes <i>. Text without markers passes through
// unchanged, so reapplying Format is a no-op.
func Format(raw string) string {
	text := headingRe.ReplaceAllString(raw, "<b>$1</b>")
	text = boldRe.ReplaceAllString(text, "<b>$1</b>")
	text = bulletRe.ReplaceAllString(text, "• ")
	text = italicRe.ReplaceAllString(text, "<i>$1</i>")
	return text
}

// Chunk splits text into segments of at most maxLen runes, preserving order
// with no overlap or loss: concatenating the result reproduces the input
// exactly. Segments prefer to break after a newline when one falls in the
// second half of the window. Empty input yields no segments.
func Chunk(text string, maxLen int) []string {
	if text == "" {
		return nil
	}
	if maxLen <= 0 {
		return []string{text}
	}

	var parts []string
	runes := []rune(text)
	for len(runes) > 0 {
		if len(runes) <= maxLen {
			parts = append(parts, string(runes))
			break
		}

		splitAt := maxLen

		// Break after a newline when one lands past the midpoint, so
		// multi-message replies split between paragraphs when possible.
		window := string(runes[:maxLen])
		if idx := strings.LastIndex(window, "\n"); idx > 0 {
			at := len([]rune(window[:idx])) + 1
			if at > maxLen/2 {
				splitAt = at
			}
		}

		parts = append(parts, string(runes[:splitAt]))
		runes = runes[splitAt:]
	}

	return parts
}
