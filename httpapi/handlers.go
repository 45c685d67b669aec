package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/catalog"
	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/job"
)

const maxBodySize = 1 << 20

type submitJobRequest struct {
	DemoID     string          `json:"demo_id"`
	Parameters json.RawMessage `json:"parameters"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Version:   s.opts.Version,
		Timestamp: time.Now().UTC(),
	})
}

func (s *Server) handleListDemos(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.service.Demos())
}

func (s *Server) handleGetDemo(w http.ResponseWriter, r *http.Request) {
	demo, err := s.service.Demo(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, demo)
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req submitJobRequest
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.DemoID == "" {
		s.writeError(w, http.StatusBadRequest, "demo_id is required")
		return
	}
	if p := bytes.TrimSpace(req.Parameters); len(p) > 0 && p[0] != '{' && !bytes.Equal(p, []byte("null")) {
		s.writeError(w, http.StatusBadRequest, "parameters must be an object")
		return
	}

	snap, err := s.service.Submit(r.Context(), req.DemoID, req.Parameters)
	var verr *catalog.ValidationError
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusAccepted, snap)
	case errors.Is(err, job.ErrUnknownDemo):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &verr):
		s.writeError(w, http.StatusUnprocessableEntity, verr.Error())
	default:
		s.logger.Error("submit job", zap.String("demo_id", req.DemoID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to submit job")
	}
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := s.service.Status(r.Context(), id)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, snap)
	case errors.Is(err, job.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "job not found")
	default:
		s.logger.Error("get job", zap.String("job_id", id), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to get job")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}
