package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgallion1/redraft/internal/chunker"
	"github.com/dgallion1/redraft/internal/docstore"
	"github.com/dgallion1/redraft/internal/editor"
	"github.com/dgallion1/redraft/internal/track"
)

// Worker processes a single edit job end to end: normalize, edit (chunked or
// whole), diff against the original, and attach the change set for review.
type Worker struct {
	dispatcher *editor.Dispatcher
	docstore   *docstore.Client
	log        *slog.Logger

	chunkCfg            chunker.Config
	largeDocThreshold   int
	maxConcurrentChunks int
}

func NewWorker(dispatcher *editor.Dispatcher, ds *docstore.Client, log *slog.Logger, chunkCfg chunker.Config, largeDocThreshold, maxChunks int) *Worker {
	return &Worker{
		dispatcher:          dispatcher,
		docstore:            ds,
		log:                 log,
		chunkCfg:            chunkCfg,
		largeDocThreshold:   largeDocThreshold,
		maxConcurrentChunks: maxChunks,
	}
}

// Process runs the full edit pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID)

	source := chunker.Normalize(job.SourceText())
	if source == "" {
		job.AddError("no text to edit")
		job.SetStatus(StatusFailed, "editing")
		return
	}
	job.SetSourceText(source)

	// Phase 1: Edit. Chunked documents fail open per chunk; a whole-document
	// edit retries transient backend errors, then surfaces the last error.
	job.SetStatus(StatusEditing, "editing")
	opts := editor.DocumentOptions{
		Options: editor.Options{
			Refine: job.Refine,
		},
		Chunking:          w.chunkCfg,
		LargeDocThreshold: w.largeDocThreshold,
		MaxConcurrent:     w.maxConcurrentChunks,
		OnStart:           job.SetTotalChunks,
		OnChunk: func(_ int, failed bool) {
			job.ChunkSettled(failed)
		},
	}

	var edited string
	var results []editor.ChunkResult
	var err error
	for attempt := range MaxRetries {
		edited, results, err = w.dispatcher.EditDocument(ctx, source, job.Instruction, opts)
		if err == nil || !IsRetryable(err) {
			break
		}
		log.Warn("retryable edit error", "attempt", attempt, "error", err)
		select {
		case <-time.After(Backoff(attempt)):
		case <-ctx.Done():
			job.AddError(ctx.Err().Error())
			job.SetStatus(StatusFailed, "editing")
			return
		}
	}
	if err != nil {
		log.Error("edit failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "editing")
		return
	}

	if results == nil {
		// Single-call path: one logical chunk, fully edited.
		job.ChunkSettled(false)
	}
	chunksFailed := 0
	for _, r := range results {
		if r.Failed {
			chunksFailed++
		}
	}
	log.Info("edit complete", "chunks", len(results), "chunks_failed", chunksFailed)

	// Phase 2: Diff into resolvable change groups.
	job.SetStatus(StatusDiffing, "diffing")
	changes := track.Build(source, edited)
	job.SetResult(edited, changes)
	log.Info("diff complete", "change_groups", changes.Len())

	// Persist the working draft so a restart can resume review.
	if job.DocID != "" {
		putErr := w.docstore.PutDraft(ctx, job.DocID, docstore.Draft{
			OriginalText: source,
			EditedText:   edited,
			Title:        job.Filename,
		})
		if putErr != nil {
			log.Warn("draft store failed", "error", putErr)
			job.AddError("store draft: " + putErr.Error())
		}
	}

	if chunksFailed > 0 {
		job.SetStatus(StatusPartial, "done")
	} else {
		job.SetStatus(StatusCompleted, "done")
	}
}
