package handlers

import (
	"net/http"

	"github.com/upb/mlops-service/utils"
)

// IndexResponse describes the service and its endpoints
type IndexResponse struct {
	Service    string            `json:"service"`
	Version    string            `json:"version"`
	Monitoring string            `json:"monitoring"`
	Endpoints  map[string]string `json:"endpoints"`
}

// IndexHandler handles GET /
func IndexHandler(service, version string) http.HandlerFunc {
	response := IndexResponse{
		Service:    service,
		Version:    version,
		Monitoring: "prometheus",
		Endpoints: map[string]string{
			"POST /track":                  "Record one AI interaction",
			"GET /metrics":                 "Prometheus exposition",
			"GET /health":                  "Liveness",
			"GET /health/ready":            "Readiness",
			"GET /analytics/{business_id}": "30 day analytics summary",
			"POST /refresh-metrics":        "Replay stored events into the registry",
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteOK(w, response)
	}
}

// NotFoundHandler answers unknown routes
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteNotFound(w, "endpoint not found")
}

// MethodNotAllowedHandler answers known routes called with the wrong method
func MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteMethodNotAllowed(w)
}
