package pipeline

import (
	"sync"
	"time"

	"github.com/dgallion1/redraft/internal/track"
)

// JobStatus represents the state of an edit job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusEditing   JobStatus = "editing"
	StatusDiffing   JobStatus = "diffing"
	StatusCompleted JobStatus = "completed"
	StatusPartial   JobStatus = "partial"
	StatusFailed    JobStatus = "failed"
)

// Job tracks the state of a single document edit. The change set stays
// attached to the job for the review phase; a new edit of the same document
// replaces job and change set wholesale.
type Job struct {
	mu sync.Mutex

	ID    string `json:"job_id"`
	DocID string `json:"doc_id,omitempty"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename,omitempty"`

	Instruction string `json:"instruction"`
	Refine      bool   `json:"refine,omitempty"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	sourceText string
	editedText string
	changes    *track.ChangeSet
	errors     []string
}

// Progress tracks processing progress. ChunksFailed counts fail-open chunks
// whose original text was kept.
type Progress struct {
	TotalChunks     int      `json:"total_chunks"`
	ChunksProcessed int      `json:"chunks_processed"`
	ChunksFailed    int      `json:"chunks_failed"`
	ChangeGroups    int      `json:"change_groups"`
	Errors          []string `json:"errors"`
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetTotalChunks records the chunk count for this edit.
func (j *Job) SetTotalChunks(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalChunks = n
	j.UpdatedAt = time.Now()
}

// ChunkSettled records one chunk finishing, edited or fail-open.
func (j *Job) ChunkSettled(failed bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.ChunksProcessed++
	if failed {
		j.Progress.ChunksFailed++
	}
	j.UpdatedAt = time.Now()
}

// SetSourceText sets the normalized source text to edit.
func (j *Job) SetSourceText(text string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.sourceText = text
}

// SourceText returns the source text.
func (j *Job) SourceText() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.sourceText
}

// SetResult attaches the edited text and its change set.
func (j *Job) SetResult(edited string, changes *track.ChangeSet) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.editedText = edited
	j.changes = changes
	j.Progress.ChangeGroups = changes.Len()
	j.UpdatedAt = time.Now()
}

// EditedText returns the aggregated edited text, empty until the edit phase
// finishes.
func (j *Job) EditedText() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.editedText
}

// Changes returns the change set, nil until the diff phase finishes.
func (j *Job) Changes() *track.ChangeSet {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.changes
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID       string    `json:"job_id"`
	DocID    string    `json:"doc_id,omitempty"`
	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename,omitempty"`
	Progress Progress  `json:"progress"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := j.Progress.Errors
	if errs == nil {
		errs = []string{}
	}
	return JobSnapshot{
		ID:       j.ID,
		DocID:    j.DocID,
		Status:   j.Status,
		Phase:    j.Phase,
		Filename: j.Filename,
		Progress: Progress{
			TotalChunks:     j.Progress.TotalChunks,
			ChunksProcessed: j.Progress.ChunksProcessed,
			ChunksFailed:    j.Progress.ChunksFailed,
			ChangeGroups:    j.Progress.ChangeGroups,
			Errors:          errs,
		},
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.UpdatedAt) > s.ttl {
			delete(s.jobs, id)
		}
	}
}
