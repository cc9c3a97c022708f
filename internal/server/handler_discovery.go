package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "rerender debug API",
		Version:     "v1",
		Description: "Inspect and drive the renderers of a running simulation",
		Endpoints: []endpointInfo{
			{"/api/v1/renderers", []string{"GET"}, "Snapshot of every renderer and its roots"},
			{"/api/v1/renderers/{id}", []string{"GET"}, "Snapshot of one renderer"},
			{"/api/v1/renderers/{id}/bump", []string{"POST"}, "Advance the clock and revalidate one renderer"},
			{"/api/v1/steps", []string{"POST"}, "Apply a scenario step (set cells, bump, remove a view)"},
			{"/api/v1/passes", []string{"GET"}, "Journaled render passes, newest first"},
			{"/api/v1/faults", []string{"GET"}, "Journaled render and invalidation-cycle faults"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
		},
	})
}
