package chunker

import (
	"strings"
	"unicode/utf8"
)

// Config controls chunk sizing. TargetWords is the size each chunk aims for;
// Tolerance is the allowed deviation in either direction.
type Config struct {
	TargetWords int
	Tolerance   int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TargetWords: 500,
		Tolerance:   100,
	}
}

// Chunk is a bounded-size, structure-respecting segment of the normalized
// source text. StartOffset/EndOffset index the normalized source; across a
// chunk sequence they are monotonically increasing and non-overlapping, and
// their union covers the source modulo inter-chunk separators.
type Chunk struct {
	Index       int
	Text        string
	WordCount   int
	StartOffset int
	EndOffset   int
}

// Split normalizes text and cuts it into chunks of roughly TargetWords words.
// Headings always start a fresh chunk and are never split. Oversized blocks
// are split at sentence boundaries, except that quoted speech is never cut
// inside an open quotation even when that overshoots the size bound.
// Splitting is total: empty input yields no chunks, and a pathological block
// larger than every bound is still emitted rather than dropped.
func Split(text string, cfg Config) []Chunk {
	if cfg.TargetWords <= 0 {
		cfg.TargetWords = 500
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = 100
	}
	maxWords := cfg.TargetWords + cfg.Tolerance

	norm := Normalize(text)
	if norm == "" {
		return nil
	}

	var chunks []Chunk
	var pending []span
	pendingWords := 0

	flush := func() {
		if len(pending) == 0 {
			return
		}
		chunks = append(chunks, makeChunk(norm, pending[0].start, pending[len(pending)-1].end))
		pending = nil
		pendingWords = 0
	}

	for _, b := range scanBlocks(norm) {
		blockText := norm[b.start:b.end]
		kind := Classify(blockText)
		words := CountWords(blockText)

		switch {
		case kind == KindHeading:
			// A heading always closes the pending chunk and opens the next.
			flush()
			if words > maxWords {
				// Emitted verbatim as its own chunk, never split.
				chunks = append(chunks, makeChunk(norm, b.start, b.end))
				continue
			}
			pending = append(pending, b)
			pendingWords = words

		case words > maxWords:
			flush()
			for _, sub := range splitOversized(norm, b, kind, maxWords) {
				chunks = append(chunks, makeChunk(norm, sub.start, sub.end))
			}

		default:
			if pendingWords+words > maxWords {
				flush()
			}
			pending = append(pending, b)
			pendingWords += words
		}
	}
	flush()

	chunks = rebalance(norm, chunks, cfg)
	for i := range chunks {
		chunks[i].Index = i
	}
	return chunks
}

func makeChunk(norm string, start, end int) Chunk {
	text := norm[start:end]
	return Chunk{
		Text:        text,
		WordCount:   CountWords(text),
		StartOffset: start,
		EndOffset:   end,
	}
}

// splitOversized cuts a single over-limit block into sentence-aligned
// sub-spans. For speech blocks a sub-span only ends where the quotation
// balance returns to zero.
func splitOversized(norm string, b span, kind Kind, maxWords int) []span {
	sentences := sentenceSpans(norm, b.start, b.end)

	var out []span
	curStart := -1
	curEnd := 0
	curWords := 0

	for _, s := range sentences {
		words := CountWords(norm[s.start:s.end])
		if curStart >= 0 && curWords+words > maxWords {
			if kind != KindSpeech || quoteBalance(norm[curStart:curEnd]) == 0 {
				out = append(out, span{start: curStart, end: curEnd})
				curStart = -1
				curWords = 0
			}
		}
		if curStart < 0 {
			curStart = s.start
		}
		curEnd = s.end
		curWords += words
	}
	if curStart >= 0 {
		out = append(out, span{start: curStart, end: curEnd})
	}
	return out
}

// sentenceSpans finds sentence boundaries within norm[start:end]. A sentence
// ends at . ! or ? (plus any trailing closing quotes) followed by whitespace.
func sentenceSpans(norm string, start, end int) []span {
	var out []span
	segStart := start
	i := start
	for i < end {
		r, size := utf8.DecodeRuneInString(norm[i:end])
		i += size
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		for i < end {
			next, nsize := utf8.DecodeRuneInString(norm[i:end])
			if next == '"' || next == '”' || next == '’' || next == '»' {
				i += nsize
			} else {
				break
			}
		}
		if i >= end || norm[i] == ' ' || norm[i] == '\n' {
			out = append(out, span{start: segStart, end: i})
			for i < end && (norm[i] == ' ' || norm[i] == '\n') {
				i++
			}
			segStart = i
		}
	}
	if segStart < end {
		out = append(out, span{start: segStart, end: end})
	}
	return out
}

// rebalance merges an undersized trailing chunk into its predecessor when the
// combined size stays within 1.5x tolerance of the target. A trailing chunk
// that opens with a heading is left alone so headings stay chunk-initial.
func rebalance(norm string, chunks []Chunk, cfg Config) []Chunk {
	n := len(chunks)
	if n < 2 {
		return chunks
	}
	last := chunks[n-1]
	if last.WordCount >= cfg.TargetWords-cfg.Tolerance {
		return chunks
	}
	if Classify(firstBlock(last.Text)) == KindHeading {
		return chunks
	}
	prev := chunks[n-2]
	if prev.WordCount+last.WordCount > cfg.TargetWords+cfg.Tolerance*3/2 {
		return chunks
	}
	merged := makeChunk(norm, prev.StartOffset, last.EndOffset)
	return append(chunks[:n-2], merged)
}

func firstBlock(text string) string {
	if i := strings.Index(text, "\n\n"); i >= 0 {
		return text[:i]
	}
	return text
}
