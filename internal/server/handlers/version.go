package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/tra-portal/tra-portal/internal/version"
)

type VersionResponse struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date"`
	GitCommit string `json:"git_commit"`
	Service   string `json:"service"`
}

// HandleVersion returns the build information of the service.
//
//	GET /version
func HandleVersion(service string) http.HandlerFunc {
	v := version.Get()
	response := VersionResponse{
		Version:   v.Version,
		BuildDate: v.BuildDate,
		GitCommit: v.GitCommit,
		Service:   service,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, "Failed to encode version", http.StatusInternalServerError)
			return
		}
	}
}
