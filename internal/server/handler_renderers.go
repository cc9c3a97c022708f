package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/me/rerender/internal/sim"
	"github.com/me/rerender/pkg/model"
)

func (s *Server) handleListRenderers(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	infos, err := s.backend.Renderers(r.Context())
	if err != nil {
		respondBackendError(w, reqID, err)
		return
	}
	respondList(w, reqID, infos, &model.Pagination{
		Total: len(infos),
		Limit: len(infos),
	})
}

func (s *Server) handleGetRenderer(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	info, err := s.backend.Renderer(r.Context(), id)
	if err != nil {
		respondBackendError(w, reqID, err)
		return
	}
	respondOK(w, reqID, info)
}

func (s *Server) handleBumpRenderer(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := s.backend.Bump(r.Context(), id); err != nil {
		s.logger.Warn("bump failed", "renderer_id", id, "error", err)
		respondBackendError(w, reqID, err)
		return
	}
	s.logger.Info("renderer bumped", "renderer_id", id)

	info, err := s.backend.Renderer(r.Context(), id)
	if err != nil {
		respondBackendError(w, reqID, err)
		return
	}
	respondAccepted(w, reqID, info)
}

func (s *Server) handleApplyStep(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var step sim.Step
	if err := json.NewDecoder(r.Body).Decode(&step); err != nil {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrValidation,
			Message: "Invalid JSON body: " + err.Error(),
		})
		return
	}

	if err := s.backend.Apply(r.Context(), step); err != nil {
		s.logger.Warn("step failed", "error", err)
		respondBackendError(w, reqID, err)
		return
	}

	infos, err := s.backend.Renderers(r.Context())
	if err != nil {
		respondBackendError(w, reqID, err)
		return
	}
	respondAccepted(w, reqID, infos)
}
