package server

import (
	"net/http"

	"github.com/me/rerender/pkg/model"
)

func (s *Server) requireJournal(w http.ResponseWriter, reqID string) bool {
	if s.journal != nil {
		return true
	}
	respondError(w, reqID, http.StatusServiceUnavailable, &model.APIError{
		Code:    model.ErrUnavailable,
		Message: "journal is disabled; set journal_path to enable it",
	})
	return false
}

func (s *Server) handleListPasses(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if !s.requireJournal(w, reqID) {
		return
	}
	opts, err := listOptions(r)
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{Code: model.ErrValidation, Message: err.Error()})
		return
	}

	passes, total, err := s.journal.ListPasses(r.Context(), opts)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}
	if passes == nil {
		passes = []model.PassRecord{}
	}

	respondList(w, reqID, passes, &model.Pagination{
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
		HasMore: opts.Offset+opts.Limit < total,
	})
}

func (s *Server) handleListFaults(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if !s.requireJournal(w, reqID) {
		return
	}
	opts, err := listOptions(r)
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{Code: model.ErrValidation, Message: err.Error()})
		return
	}

	faults, total, err := s.journal.ListFaults(r.Context(), opts)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}
	if faults == nil {
		faults = []model.FaultRecord{}
	}

	respondList(w, reqID, faults, &model.Pagination{
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
		HasMore: opts.Offset+opts.Limit < total,
	})
}
