package server

import (
	"io"
	"net/http"
	"strconv"

	"github.com/jonathan/resume-editor/internal/editor"
)

// maxHistory caps the n query parameter of /history.
const maxHistory = 100

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGetResume returns the current document and the artifact path.
func (s *Server) handleGetResume(w http.ResponseWriter, r *http.Request) {
	latex, err := s.editor.Document(r.Context())
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"latex":   latex,
		"pdf_url": s.editor.PDFURL(),
	})
}

// handleGetPDF streams the published artifact.
func (s *Server) handleGetPDF(w http.ResponseWriter, r *http.Request) {
	rc, err := s.editor.Artifact(r.Context())
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("failed to stream artifact", "error", err)
	}
}

// handleUpdate runs an instruction-driven edit.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req editor.UpdateRequest
	if err := s.decodeJSON(w, r, &req, false); err != nil {
		s.errorResponse(w, err)
		return
	}

	result, err := s.editor.Update(r.Context(), req, nil)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

// handleUpdateStream runs an edit and streams stage events over SSE.
func (s *Server) handleUpdateStream(w http.ResponseWriter, r *http.Request) {
	var req editor.UpdateRequest
	if err := s.decodeJSON(w, r, &req, false); err != nil {
		s.errorResponse(w, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.jsonResponse(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	result, err := s.editor.Update(r.Context(), req, func(ev editor.Event) {
		if werr := sse.WriteEvent("stage", ev); werr != nil {
			s.logger.Debug("client stopped reading stage events", "error", werr)
		}
	})
	if err != nil {
		sse.WriteError(err)
		return
	}
	sse.WriteComplete(result)
}

// handleSave replaces the document without compiling.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if err := s.decodeJSON(w, r, &req, false); err != nil {
		s.errorResponse(w, err)
		return
	}
	if err := s.editor.Save(r.Context(), req.Latex); err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "saved"})
}

// handlePreview compiles a draft and returns the PDF bytes.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := s.decodeJSON(w, r, &req, true); err != nil {
		s.errorResponse(w, err)
		return
	}

	preview, err := s.editor.Preview(r.Context(), req.Latex)
	if err != nil {
		s.errorResponse(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(preview.PDF)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(preview.PDF); err != nil {
		s.logger.Warn("failed to write preview", "error", err)
	}
}

// handleHistory lists recent revisions.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	n := editor.DefaultHistoryLimit
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxHistory {
			s.errorResponse(w, &ErrValidation{Field: "n", Message: "must be between 1 and 100"})
			return
		}
		n = parsed
	}

	revs, err := s.editor.History(r.Context(), n)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, revs)
}

// handleCommit records the current document as a revision.
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	var req CommitRequest
	if err := s.decodeJSON(w, r, &req, true); err != nil {
		s.errorResponse(w, err)
		return
	}

	result, err := s.editor.Commit(r.Context(), req.Message)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

// handleStop terminates the instance.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if s.stopper == nil {
		s.jsonResponse(w, http.StatusNotImplemented, ErrorResponse{Error: "self-termination is not configured"})
		return
	}
	if err := s.stopper.Stop(r.Context()); err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "stopping"})
}

// handleSpend reports today's spend against the limit.
func (s *Server) handleSpend(w http.ResponseWriter, r *http.Request) {
	if s.spend == nil {
		s.jsonResponse(w, http.StatusNotImplemented, ErrorResponse{Error: "spend reporting is not configured"})
		return
	}
	status, err := s.spend.Status(r.Context())
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, status)
}
