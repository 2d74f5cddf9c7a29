package api

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/docstruct/internal/assemble"
	"github.com/dgallion1/docstruct/internal/pipeline"
	"github.com/dgallion1/docstruct/internal/serialize"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	mode, err := assemble.ParseMode(r.FormValue("merge"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if mode == assemble.ModeExternal && s.cfg.MergeAPIKey() == "" {
		jsonError(w, "external merge is not configured on this server", http.StatusBadRequest)
		return
	}

	maxDepth := 0
	if v := r.FormValue("max_depth"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			jsonError(w, "max_depth must be a non-negative integer", http.StatusBadRequest)
			return
		}
		maxDepth = n
	}
	if r.FormValue("flat") == "true" {
		maxDepth = 1
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	var inputs []pipeline.Input
	var total int64
	for _, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		if !pipeline.IsSupported(filename) {
			jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
			return
		}

		f, err := fh.Open()
		if err != nil {
			jsonError(w, "failed to open file", http.StatusInternalServerError)
			return
		}
		data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes-total+1))
		f.Close()
		if err != nil {
			jsonError(w, "failed to read file", http.StatusInternalServerError)
			return
		}
		total += int64(len(data))
		if total > s.cfg.MaxUploadBytes {
			jsonError(w, fmt.Sprintf("upload exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
			return
		}
		inputs = append(inputs, pipeline.Input{Name: filename, Data: data})
	}

	job := pipeline.NewJob(inputs, r.FormValue("title"), mode, maxDepth)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":     job.ID,
		"status":     pipeline.StatusQueued,
		"poll_url":   fmt.Sprintf("/api/jobs/%s", job.ID),
		"result_url": fmt.Sprintf("/api/jobs/%s/result", job.ID),
	})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.orchestrator.ListJobs()
	snaps := make([]pipeline.JobSnapshot, 0, len(jobs))
	for _, j := range jobs {
		snaps = append(snaps, j.Snapshot())
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": snaps})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	format, err := serialize.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	snap := job.Snapshot()
	res := job.Result()
	if res == nil {
		msg := fmt.Sprintf("job is %s", snap.Status)
		if n := len(snap.Progress.Errors); n > 0 {
			msg += ": " + snap.Progress.Errors[n-1]
		}
		jsonError(w, msg, http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("X-Job-Status", string(snap.Status))
	if err := serialize.Write(w, res.Document, format); err != nil {
		s.log.Error("write result", "job_id", snap.ID, "error", err)
	}
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	if !s.orchestrator.DeleteJob(id) {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job_id": id, "deleted": true})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
