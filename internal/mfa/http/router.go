package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ikimina/sacco-auth/internal/mfa/service"
	"github.com/ikimina/sacco-auth/internal/mfa/store"
	"github.com/ikimina/sacco-auth/pkg/httpx"
	"github.com/ikimina/sacco-auth/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store

	ChallengeService  *service.ChallengeService
	InitiateService   *service.InitiateService
	EnrollmentService *service.EnrollmentService
}

func NewRouter(buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerMFA()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerMFA() {
	verifyHandler := &VerifyHandler{
		Challenges: r.ChallengeService,
	}

	// POST /verify - strict rate limit by IP on top of the service's own
	// per-member and per-address attempt budgets
	r.Mux.Handle("POST /v1/mfa/verify",
		httpx.Chain(http.HandlerFunc(verifyHandler.HandleVerify),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	initiateHandler := &InitiateHandler{
		Initiations: r.InitiateService,
	}

	// POST /initiate - strict rate limit (each call sends an email or message)
	r.Mux.Handle("POST /v1/mfa/initiate",
		httpx.Chain(http.HandlerFunc(initiateHandler.HandleInitiate),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	enrollHandler := &EnrollHandler{
		Enrollments: r.EnrollmentService,
	}
	if r.EnrollmentService != nil {
		enrollHandler.Issuer = r.EnrollmentService.Issuer
	}

	r.Mux.Handle("POST /v1/mfa/totp/enroll",
		httpx.Chain(http.HandlerFunc(enrollHandler.HandleEnrollTOTP),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/mfa/backup/issue",
		httpx.Chain(http.HandlerFunc(enrollHandler.HandleIssueBackupCodes),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store))
}
