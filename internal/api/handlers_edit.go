package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dgallion1/redraft/internal/editor"
	"github.com/dgallion1/redraft/internal/parser"
	"github.com/dgallion1/redraft/internal/pipeline"
)

type editRequest struct {
	DocID       string `json:"doc_id"`
	Text        string `json:"text"`
	Instruction string `json:"instruction"`
	Refine      bool   `json:"refine"`
}

// handleEdit accepts either a JSON body with inline text (or a doc_id whose
// draft is loaded from the docstore) or a multipart upload of a supported
// document format. It queues an edit job and returns a poll URL.
func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	filename := ""

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		text, name, err := s.readUpload(w, r)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		req = editRequest{
			DocID:       r.FormValue("doc_id"),
			Text:        text,
			Instruction: r.FormValue("instruction"),
			Refine:      r.FormValue("refine") == "true",
		}
		filename = name
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	if req.Instruction == "" {
		jsonError(w, "instruction is required", http.StatusBadRequest)
		return
	}

	// No inline text: load the document's stored draft.
	if req.Text == "" && req.DocID != "" {
		draft, err := s.orchestrator.DocstoreClient().GetDraft(r.Context(), req.DocID)
		if err != nil {
			jsonError(w, "load draft: "+err.Error(), http.StatusBadGateway)
			return
		}
		if draft == nil {
			jsonError(w, "document not found: "+req.DocID, http.StatusNotFound)
			return
		}
		req.Text = draft.OriginalText
	}
	if strings.TrimSpace(req.Text) == "" {
		jsonError(w, "text or doc_id is required", http.StatusBadRequest)
		return
	}
	if req.DocID == "" {
		req.DocID = uuid.NewString()
	}

	now := time.Now()
	job := &pipeline.Job{
		ID:          uuid.NewString(),
		DocID:       req.DocID,
		Status:      pipeline.StatusQueued,
		Phase:       "queued",
		Filename:    filename,
		Instruction: req.Instruction,
		Refine:      req.Refine,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	job.SetSourceText(req.Text)

	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":   job.ID,
		"doc_id":   job.DocID,
		"status":   job.Status,
		"poll_url": fmt.Sprintf("/api/edit/%s/status", job.ID),
	})
}

// readUpload extracts plain text from a multipart file upload.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (text, filename string, err error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return "", "", fmt.Errorf("invalid multipart form: %w", err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", "", fmt.Errorf("file is required: %w", err)
	}
	defer file.Close()

	filename = sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		return "", "", fmt.Errorf("unsupported file type: %s", filepath.Ext(filename))
	}

	p, err := parser.ForFile(filename)
	if err != nil {
		return "", "", err
	}
	if pp, ok := p.(*parser.PDFParser); ok {
		pp.FallbackPdftotext = s.cfg.PDFFallbackPdftotext
	}
	limited := io.LimitReader(file, s.cfg.MaxUploadBytes+1)
	text, err = p.Parse(limited, filename)
	if err != nil {
		return "", "", fmt.Errorf("parse %s: %w", filename, err)
	}
	return text, filename, nil
}

func (s *Server) handleEditStatus(w http.ResponseWriter, r *http.Request) {
	job := s.jobFromRequest(w, r)
	if job == nil {
		return
	}
	snap := job.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

type variationsRequest struct {
	Text          string `json:"text"`
	Instruction   string `json:"instruction"`
	NumVariations int    `json:"num_variations"`
}

// handleVariations runs variation mode synchronously: several candidate
// edits of one short passage at ascending temperatures, deduplicated.
func (s *Server) handleVariations(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	var req variationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" || req.Instruction == "" {
		jsonError(w, "text and instruction are required", http.StatusBadRequest)
		return
	}

	variations, err := s.dispatcher.EditVariations(r.Context(), req.Text, req.Instruction, editor.Options{
		NumVariations: req.NumVariations,
	})
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"variations": variations,
	})
}

func (s *Server) jobFromRequest(w http.ResponseWriter, r *http.Request) *pipeline.Job {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return nil
	}
	return job
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
