package chunker

import (
	"regexp"
	"strings"
	"unicode"
)

// Kind labels a block's structural role prior to chunking.
type Kind int

const (
	KindParagraph Kind = iota
	KindHeading
	KindSpeech
)

func (k Kind) String() string {
	switch k {
	case KindHeading:
		return "heading"
	case KindSpeech:
		return "speech"
	default:
		return "paragraph"
	}
}

var (
	// "Chapter 12", "Part IV", "Section Two: The Return", "BOOK THREE".
	numberedHeadingRe = regexp.MustCompile(
		`(?i)^(chapter|part|section|volume|book)\s+(\d+|[ivxlcdm]+|(?:[A-Z][a-z]*(?:\s+[A-Z][a-z]*){0,4}))(\s*:\s*\S.*)?$`)

	// Standalone front/back-matter headings.
	bareHeadingRe = regexp.MustCompile(
		`(?i)^(prologue|epilogue|introduction|foreword|preface|interlude|afterword|appendix|dedication|acknowledgements|acknowledgments|contents)$`)
)

// Quote glyph pairs recognized for speech detection and quotation balance.
// The straight double quote closes itself.
var quotePairs = map[rune]rune{
	'"': '"',
	'“': '”',
	'‘': '’',
	'«': '»',
	'‟': '”',
	'‛': '’',
}

// Classify labels a block. Rules run in order and the first match wins:
// heading patterns, then speech, then plain paragraph. Multi-line blocks are
// never headings, so a quoted multi-line block still classifies as speech.
func Classify(text string) Kind {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return KindParagraph
	}
	if !strings.Contains(trimmed, "\n") && isHeading(trimmed) {
		return KindHeading
	}
	if isSpeech(trimmed) {
		return KindSpeech
	}
	return KindParagraph
}

func isHeading(line string) bool {
	if numberedHeadingRe.MatchString(line) {
		return true
	}
	if bareHeadingRe.MatchString(line) {
		return true
	}
	return isShoutedLine(line)
}

// isShoutedLine reports whether the line is a 3-60 character span made of
// upper-case letters, digits, punctuation, and spaces, e.g. "THE GATHERING
// STORM". Short all-caps sentences can misclassify; the rule is heuristic.
func isShoutedLine(line string) bool {
	n := len([]rune(line))
	if n < 3 || n > 60 {
		return false
	}
	hasLetter := false
	for _, r := range line {
		switch {
		case unicode.IsUpper(r):
			hasLetter = true
		case unicode.IsLower(r):
			return false
		case unicode.IsDigit(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) || r == ' ':
		default:
			return false
		}
	}
	return hasLetter
}

func isSpeech(text string) bool {
	runes := []rune(text)
	if len(runes) < 2 {
		return false
	}
	closer, ok := quotePairs[runes[0]]
	if !ok {
		return false
	}
	return runes[len(runes)-1] == closer
}

// quoteBalance returns the number of quotations left open at the end of the
// text. Directional glyphs count open/close; the straight double quote
// toggles. Never negative.
func quoteBalance(text string) int {
	balance := 0
	straightOpen := false
	for _, r := range text {
		switch r {
		case '“', '‘', '«', '‟', '‛':
			balance++
		case '”', '’', '»':
			if balance > 0 {
				balance--
			}
		case '"':
			if straightOpen {
				straightOpen = false
				if balance > 0 {
					balance--
				}
			} else {
				straightOpen = true
				balance++
			}
		}
	}
	return balance
}
