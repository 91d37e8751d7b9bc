package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Artifacts
	mux.Handle("POST /api/v1/artifacts", chain(http.HandlerFunc(h.UploadArtifact)))
	mux.Handle("GET /api/v1/artifacts/{id}", chain(http.HandlerFunc(h.GetArtifact)))
	mux.Handle("POST /api/v1/artifacts/{id}/process", chain(http.HandlerFunc(h.ProcessArtifact)))
	mux.Handle("GET /api/v1/artifacts/{id}/execution", chain(http.HandlerFunc(h.GetArtifactExecution)))
	mux.Handle("POST /api/v1/artifacts/{id}/workflows/{name}", chain(http.HandlerFunc(h.RunWorkflow)))

	// Executions
	mux.Handle("GET /api/v1/executions", chain(http.HandlerFunc(h.ListExecutions)))
	mux.Handle("GET /api/v1/executions/{id}", chain(http.HandlerFunc(h.GetExecution)))

	// Stats
	mux.Handle("GET /api/v1/stats", chain(http.HandlerFunc(h.GetStats)))
}
