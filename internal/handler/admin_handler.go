package handler

import (
	"encoding/json"
	"net/http"

	"github.com/makerlink/sourcing-bfa-go/internal/domain"
	"github.com/makerlink/sourcing-bfa-go/internal/port"
	"github.com/makerlink/sourcing-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Staff routes — /v1/admin (role-gated in the router)
// ============================================================

func adminListRFIsHandler(svc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/rfis")
		defer span.End()

		page, pageSize := parsePagination(r)
		filter := port.RFIFilter{
			Status:    domain.RFIStatus(r.URL.Query().Get("status")),
			AIStatus:  domain.AIStatus(r.URL.Query().Get("ai_status")),
			CompanyID: r.URL.Query().Get("company_id"),
			Page:      page,
			PageSize:  pageSize,
		}

		rfis, err := svc.ListRFIs(ctx, filter)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"rfis": rfis})
	}
}

func adminStatusHandler(svc *service.RFIService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/rfis/{rfiId}/status")
		defer span.End()

		var body struct {
			Status domain.RFIStatus `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.Status == "" {
			writeError(w, http.StatusBadRequest, "status is required")
			return
		}

		rfi, err := svc.AdvanceStatus(ctx, chi.URLParam(r, "rfiId"), body.Status)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, rfi)
	}
}

func adminListCompaniesHandler(svc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/companies")
		defer span.End()

		page, pageSize := parsePagination(r)
		companies, err := svc.ListCompanies(ctx, page, pageSize)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"companies": companies})
	}
}

func adminListProfilesHandler(svc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/users")
		defer span.End()

		page, pageSize := parsePagination(r)
		profiles, err := svc.ListProfiles(ctx, page, pageSize)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": profiles})
	}
}

func adminAIMetricsHandler(svc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.AIMetrics(r.Context()))
	}
}
