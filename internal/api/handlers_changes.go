package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/redraft/internal/pipeline"
	"github.com/dgallion1/redraft/internal/track"
)

// changesFromRequest resolves the job and its change set, writing the error
// response itself when either is unavailable.
func (s *Server) changesFromRequest(w http.ResponseWriter, r *http.Request) (*pipeline.Job, *track.ChangeSet) {
	job := s.jobFromRequest(w, r)
	if job == nil {
		return nil, nil
	}
	changes := job.Changes()
	if changes == nil {
		jsonError(w, "changes not ready: job is "+string(job.Snapshot().Status), http.StatusConflict)
		return nil, nil
	}
	return job, changes
}

func (s *Server) handleListChanges(w http.ResponseWriter, r *http.Request) {
	_, changes := s.changesFromRequest(w, r)
	if changes == nil {
		return
	}
	pending, accepted, rejected := changes.Counts()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"groups":   changes.Groups(),
		"pending":  pending,
		"accepted": accepted,
		"rejected": rejected,
	})
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	s.resolveChange(w, r, true)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	s.resolveChange(w, r, false)
}

func (s *Server) resolveChange(w http.ResponseWriter, r *http.Request, accept bool) {
	_, changes := s.changesFromRequest(w, r)
	if changes == nil {
		return
	}
	groupID := chi.URLParam(r, "groupID")

	var err error
	if accept {
		err = changes.Accept(groupID)
	} else {
		err = changes.Reject(groupID)
	}
	switch {
	case errors.Is(err, track.ErrNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, track.ErrResolved):
		jsonError(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeCounts(w, changes)
}

func (s *Server) handleAcceptAll(w http.ResponseWriter, r *http.Request) {
	_, changes := s.changesFromRequest(w, r)
	if changes == nil {
		return
	}
	changes.AcceptAll()
	s.writeCounts(w, changes)
}

func (s *Server) handleRejectAll(w http.ResponseWriter, r *http.Request) {
	_, changes := s.changesFromRequest(w, r)
	if changes == nil {
		return
	}
	changes.RejectAll()
	s.writeCounts(w, changes)
}

func (s *Server) writeCounts(w http.ResponseWriter, changes *track.ChangeSet) {
	pending, accepted, rejected := changes.Counts()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"pending":  pending,
		"accepted": accepted,
		"rejected": rejected,
	})
}

func (s *Server) handleCleanText(w http.ResponseWriter, r *http.Request) {
	_, changes := s.changesFromRequest(w, r)
	if changes == nil {
		return
	}
	pending, accepted, rejected := changes.Counts()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"clean_text": changes.CleanText(),
		"pending":    pending,
		"accepted":   accepted,
		"rejected":   rejected,
	})
}

// handleSave persists (original, clean) to the docstore for the job's
// document. Pending groups save with their edits applied.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	job, changes := s.changesFromRequest(w, r)
	if changes == nil {
		return
	}
	if job.DocID == "" {
		jsonError(w, "job has no document id", http.StatusBadRequest)
		return
	}

	clean := changes.CleanText()
	if err := s.orchestrator.DocstoreClient().SaveClean(r.Context(), job.DocID, job.SourceText(), clean); err != nil {
		jsonError(w, "save document: "+err.Error(), http.StatusBadGateway)
		return
	}
	s.log.Info("document saved", "job_id", job.ID, "doc_id", job.DocID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"doc_id": job.DocID,
		"saved":  true,
	})
}
