package server

import (
	"net/http"
	"runtime"
	"time"
)

type healthResponse struct {
	Status          string `json:"status"`
	Version         string `json:"version"`
	GoVersion       string `json:"go_version"`
	Uptime          string `json:"uptime"`
	HasViews        bool   `json:"has_views"`
	Journal         string `json:"journal"`
	MaxReflushLoops int    `json:"max_reflush_loops"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	journal := "disabled"
	if s.journal != nil {
		journal = "sqlite"
	}
	respondOK(w, reqID, healthResponse{
		Status:          "healthy",
		Version:         "0.1.0",
		GoVersion:       runtime.Version(),
		Uptime:          time.Since(s.startTime).Round(time.Second).String(),
		HasViews:        s.backend.HasViews(),
		Journal:         journal,
		MaxReflushLoops: s.config.MaxReflushLoops,
	})
}
