package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/makerlink/sourcing-bfa-go/internal/domain"
	"github.com/makerlink/sourcing-bfa-go/internal/infra/observability"
	"github.com/makerlink/sourcing-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Services bundles everything the router needs.
type Services struct {
	Wizard       *service.WizardService
	Submission   *service.SubmissionService
	RFI          *service.RFIService
	Message      *service.MessageService
	Completeness *service.CompletenessService
	Admin        *service.AdminService
	Auth         *service.AuthService
}

// NewRouter creates the HTTP router with all routes and middleware.
// DataPing is a cheap data-backend probe used by /healthz; nil skips it.
func NewRouter(svcs Services, metrics *observability.Metrics, dataPing func(context.Context) error, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Device-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(dataPing))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// Wizard + submission serve guests and signed-in buyers alike.
		r.Group(func(r chi.Router) {
			r.Use(OptionalAuthMiddleware(svcs.Auth, logger))

			r.Post("/wizard/session", wizardSessionHandler(svcs.Wizard, logger))
			r.Get("/wizard/session", wizardSessionHandler(svcs.Wizard, logger))
			r.Put("/wizard/fields", wizardFieldsHandler(svcs.Wizard, logger))
			r.Post("/wizard/next", wizardNextHandler(svcs.Wizard, logger))
			r.Post("/wizard/back", wizardBackHandler(svcs.Wizard, logger))

			r.Post("/rfi/submissions", submissionHandler(svcs.Submission, svcs.Wizard, logger))
			r.Post("/rfi/completeness", completenessHandler(svcs.Completeness, logger))
		})

		// Auth
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authLoginHandler(svcs.Auth, logger))
			r.Post("/refresh", authRefreshHandler(svcs.Auth, logger))

			r.Group(func(r chi.Router) {
				r.Use(JWTAuthMiddleware(svcs.Auth, logger))
				r.Get("/me", authMeHandler(svcs.Auth, logger))
			})
		})

		// Buyer dashboard (authenticated)
		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(svcs.Auth, logger))

			r.Get("/rfis", listRFIsHandler(svcs.RFI, logger))
			r.Get("/rfis/{rfiId}", getRFIHandler(svcs.RFI, logger))
			r.Patch("/rfis/{rfiId}", updateRFIHandler(svcs.RFI, logger))
			r.Get("/rfis/{rfiId}/messages", listMessagesHandler(svcs.Message, logger))
			r.Post("/rfis/{rfiId}/messages", postMessageHandler(svcs.Message, logger))
		})

		// Staff dashboard
		r.Route("/admin", func(r chi.Router) {
			r.Use(JWTAuthMiddleware(svcs.Auth, logger))
			r.Use(RequireStaff(svcs.Auth, logger))

			r.Get("/rfis", adminListRFIsHandler(svcs.Admin, logger))
			r.Post("/rfis/{rfiId}/status", adminStatusHandler(svcs.RFI, logger))
			r.Get("/companies", adminListCompaniesHandler(svcs.Admin, logger))
			r.Get("/users", adminListProfilesHandler(svcs.Admin, logger))
			r.Get("/metrics/ai", adminAIMetricsHandler(svcs.Admin, logger))
		})
	})

	return r
}

// ============================================================
// Health
// ============================================================

func healthzHandler(dataPing func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "sourcing-bfa", Status: "healthy", LatencyMs: 0, UptimePercent: 99.99, LastChecked: now},
		}

		if dataPing != nil {
			start := time.Now()
			err := dataPing(ctx)
			latency := time.Since(start).Milliseconds()
			status := "healthy"
			if err != nil {
				status = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name: "supabase", Status: status, LatencyMs: latency,
				UptimePercent: 99.9, LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "ready"})
	}
}
