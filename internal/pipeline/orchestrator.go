package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/redraft/internal/chunker"
	"github.com/dgallion1/redraft/internal/config"
	"github.com/dgallion1/redraft/internal/docstore"
	"github.com/dgallion1/redraft/internal/editor"
)

// Orchestrator manages the edit job pipeline.
type Orchestrator struct {
	jobs       *JobStore
	queue      chan *Job
	dispatcher *editor.Dispatcher
	ds         *docstore.Client
	log        *slog.Logger
	cfg        config.Config
	chunkCfg   chunker.Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline; call Start to launch workers.
func NewOrchestrator(cfg config.Config, dispatcher *editor.Dispatcher, ds *docstore.Client, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:       NewJobStore(cfg.JobTTL),
		queue:      make(chan *Job, cfg.MaxQueueSize),
		dispatcher: dispatcher,
		ds:         ds,
		log:        log,
		cfg:        cfg,
		chunkCfg: chunker.Config{
			TargetWords: cfg.TargetWords,
			Tolerance:   cfg.Tolerance,
		},
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.dispatcher, o.ds, o.log, o.chunkCfg, o.cfg.LargeDocThresholdWords, o.cfg.MaxConcurrentChunks)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// DocstoreClient returns the docstore client for direct use by API handlers.
func (o *Orchestrator) DocstoreClient() *docstore.Client {
	return o.ds
}
