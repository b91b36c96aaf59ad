package editor

import (
	"context"
	"strings"
	"sync"

	"github.com/dgallion1/redraft/internal/chunker"
)

const defaultChunkConcurrency = 4

// ChunkResult is one chunk's outcome within a chunked document edit. Failed
// means every backend failed for that chunk and its original text was
// substituted.
type ChunkResult struct {
	Index  int    `json:"index"`
	Text   string `json:"-"`
	Failed bool   `json:"failed"`
}

// DocumentOptions configure a whole-document edit.
type DocumentOptions struct {
	Options
	Chunking chunker.Config
	// LargeDocThreshold in words; documents at or below it are edited in a
	// single call. 0 means the default 1000.
	LargeDocThreshold int
	// MaxConcurrent bounds simultaneous chunk calls. 0 means the default 4.
	MaxConcurrent int
	// OnStart, when set, is called once with the chunk count before any
	// backend call (1 for the single-call path).
	OnStart func(totalChunks int)
	// OnChunk, when set, is called as each chunk settles.
	OnChunk func(index int, failed bool)
}

// EditDocument edits a full document. Short documents go out as one call and
// surface failure directly. Long documents are chunked and dispatched with
// bounded concurrency; a chunk whose backends all fail contributes its
// original text (fail-open) so the aggregate always has every chunk, in
// order. The returned results slice is nil for the single-call path.
func (d *Dispatcher) EditDocument(ctx context.Context, text, instruction string, opts DocumentOptions) (string, []ChunkResult, error) {
	threshold := opts.LargeDocThreshold
	if threshold <= 0 {
		threshold = 1000
	}
	if chunker.CountWords(text) <= threshold {
		if opts.OnStart != nil {
			opts.OnStart(1)
		}
		out, err := d.EditChunk(ctx, text, instruction, opts.Options)
		if err != nil {
			return "", nil, err
		}
		return out, nil, nil
	}

	chunks := chunker.Split(text, opts.Chunking)
	if opts.OnStart != nil {
		opts.OnStart(len(chunks))
	}
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaultChunkConcurrency
	}

	// Pre-sized result slots; goroutines never share a slot.
	results := make([]ChunkResult, len(chunks))
	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup

	for i, ch := range chunks {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, ch chunker.Chunk) {
			defer wg.Done()
			defer func() { <-sem }()

			out, err := d.EditChunk(ctx, ch.Text, instruction, opts.Options)
			if err != nil {
				d.log.Error("chunk edit failed, keeping original text", "chunk", i, "error", err)
				results[i] = ChunkResult{Index: i, Text: ch.Text, Failed: true}
			} else {
				results[i] = ChunkResult{Index: i, Text: out}
			}
			if opts.OnChunk != nil {
				opts.OnChunk(i, results[i].Failed)
			}
		}(i, ch)
	}
	wg.Wait()

	return Aggregate(results), results, nil
}

// Aggregate joins per-chunk edited texts back into one document with a blank
// line between chunks. Chunk order and count are preserved; failed chunks
// already carry their original text.
func Aggregate(results []ChunkResult) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = r.Text
	}
	return strings.Join(parts, "\n\n")
}
