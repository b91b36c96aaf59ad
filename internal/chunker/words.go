package chunker

import (
	"regexp"
	"strings"
)

// CountWords counts whitespace-separated words. Empty runs contribute nothing,
// so the count is stable under whitespace normalization.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

var (
	crlfRe     = regexp.MustCompile(`\r\n?`)
	manyNLRe   = regexp.MustCompile(`\n{3,}`)
	spaceRunRe = regexp.MustCompile(`[ \t]+`)
)

// Normalize canonicalizes whitespace: CRLF/CR become LF, runs of three or
// more newlines collapse to a paragraph break, and runs of spaces/tabs
// collapse to a single space. Paragraph structure is preserved; exact
// byte-level formatting is not.
func Normalize(text string) string {
	text = crlfRe.ReplaceAllString(text, "\n")
	text = manyNLRe.ReplaceAllString(text, "\n\n")
	text = spaceRunRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// span is a region of the normalized source.
type span struct {
	start int
	end   int
}

// scanBlocks splits normalized text into paragraph-separated blocks, keeping
// each block's offsets into the source string.
func scanBlocks(norm string) []span {
	var blocks []span
	pos := 0
	for pos < len(norm) {
		next := strings.Index(norm[pos:], "\n\n")
		if next < 0 {
			if strings.TrimSpace(norm[pos:]) != "" {
				blocks = append(blocks, span{start: pos, end: len(norm)})
			}
			break
		}
		end := pos + next
		if strings.TrimSpace(norm[pos:end]) != "" {
			blocks = append(blocks, span{start: pos, end: end})
		}
		pos = end + 2
	}
	return blocks
}
