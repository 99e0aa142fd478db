package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/makerlink/sourcing-bfa-go/internal/domain"
	"github.com/makerlink/sourcing-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Buyer RFI routes — /v1/rfis
// ============================================================

func listRFIsHandler(svc *service.RFIService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/rfis")
		defer span.End()

		rfis, err := svc.ListMine(ctx, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"rfis": rfis})
	}
}

func getRFIHandler(svc *service.RFIService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/rfis/{rfiId}")
		defer span.End()

		detail, err := svc.GetRFI(ctx, UserIDFromContext(ctx), chi.URLParam(r, "rfiId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, detail)
	}
}

func updateRFIHandler(svc *service.RFIService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/rfis/{rfiId}")
		defer span.End()

		var upd domain.RFIUpdate
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		rfi, err := svc.Update(ctx, UserIDFromContext(ctx), chi.URLParam(r, "rfiId"), &upd)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, rfi)
	}
}

// ============================================================
// Messages — /v1/rfis/{rfiId}/messages
// ============================================================

func listMessagesHandler(svc *service.MessageService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/rfis/{rfiId}/messages")
		defer span.End()

		var since time.Time
		if v := r.URL.Query().Get("since"); v != "" {
			parsed, err := time.Parse(time.RFC3339, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "since must be RFC 3339")
				return
			}
			since = parsed
		}

		messages, err := svc.List(ctx, UserIDFromContext(ctx), chi.URLParam(r, "rfiId"), since)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
	}
}

func postMessageHandler(svc *service.MessageService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/rfis/{rfiId}/messages")
		defer span.End()

		var body struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		msg, err := svc.Append(ctx, UserIDFromContext(ctx), chi.URLParam(r, "rfiId"), body.Text)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	}
}
