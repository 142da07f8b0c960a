package http

import (
	"net/http"
	"time"

	"github.com/ikimina/sacco-auth/pkg/httpx"
	"github.com/ikimina/sacco-auth/pkg/mfasdk"
)

// LivezHandler is the liveness probe. It returns 200 whenever the process
// is up, with uptime and version for quick inspection.
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, mfasdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}
