package http

import (
	"net/http"
	"time"

	"github.com/ikimina/sacco-auth/internal/mfa/store"
	"github.com/ikimina/sacco-auth/pkg/httpx"
	"github.com/ikimina/sacco-auth/pkg/mfasdk"
)

// ReadyzHandler is the readiness probe. It checks database connectivity and
// degrades to 503 when the store cannot be reached.
func ReadyzHandler(startTime time.Time, version string, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &mfasdk.HealthChecks{
			Database: "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, statusCode, mfasdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
