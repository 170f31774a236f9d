package compare

import (
	"regexp"
	"strings"
)

// minPointLen is the exclusive length cutoff: fragments must be longer than
// this to count as a point.
const minPointLen = 20

var bulletPrefix = regexp.MustCompile(`^[-•\s]+`)

// ExtractPoints splits free-form text into short declarative fragments usable
// as units of comparison. Text is split on line breaks and after
// sentence-terminal punctuation (., ?, !) followed by whitespace; the
// punctuation stays attached to its sentence. Each fragment is trimmed,
// stripped of a leading bullet marker, and discarded unless longer than 20
// characters. Order is preserved. Pure and idempotent; empty input yields nil.
func ExtractPoints(text string) []string {
	if text == "" {
		return nil
	}

	var points []string
	for _, block := range strings.FieldsFunc(text, isLineBreak) {
		for _, sentence := range splitSentences(block) {
			frag := strings.TrimSpace(sentence)
			frag = bulletPrefix.ReplaceAllString(frag, "")
			if len(frag) > minPointLen {
				points = append(points, frag)
			}
		}
	}
	return points
}

func isLineBreak(r rune) bool {
	return r == '\n' || r == '\r'
}

// splitSentences cuts after terminal punctuation followed by whitespace.
// Go's regexp has no lookbehind, so the boundary scan is done by hand.
func splitSentences(block string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(block)-1; i++ {
		if isTerminal(block[i]) && isSpace(block[i+1]) {
			parts = append(parts, block[start:i+1])
			i++
			for i < len(block) && isSpace(block[i]) {
				i++
			}
			start = i
			i--
		}
	}
	if start < len(block) {
		parts = append(parts, block[start:])
	}
	return parts
}

func isTerminal(b byte) bool {
	return b == '.' || b == '?' || b == '!'
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t'
}
