package handler

import (
	"encoding/json"
	"net/http"

	"github.com/makerlink/sourcing-bfa-go/internal/domain"
	"github.com/makerlink/sourcing-bfa-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Wizard — /v1/wizard/*
// ============================================================

// wizardStateRequest is the body of the field-save and navigation calls.
// The client always sends its full form snapshot plus its current step.
type wizardStateRequest struct {
	Step int              `json:"step"`
	Form domain.FormState `json:"form"`
}

// wizardSessionHandler opens or resumes a session. ?fresh=1 drops any
// stored draft first.
func wizardSessionHandler(svc *service.WizardService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "wizard session")
		defer span.End()

		fresh := r.URL.Query().Get("fresh") == "1"
		session, err := svc.StartSession(ctx, deviceKey(w, r), UserIDFromContext(ctx), fresh)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, session)
	}
}

func wizardFieldsHandler(svc *service.WizardService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/wizard/fields")
		defer span.End()

		var req wizardStateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		session, err := svc.SaveFields(ctx, deviceKey(w, r), UserIDFromContext(ctx), req.Form, req.Step)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, session)
	}
}

func wizardNextHandler(svc *service.WizardService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/wizard/next")
		defer span.End()

		var req wizardStateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		session, err := svc.Next(ctx, deviceKey(w, r), UserIDFromContext(ctx), req.Form, req.Step)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, session)
	}
}

func wizardBackHandler(svc *service.WizardService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/wizard/back")
		defer span.End()

		var req wizardStateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		session, err := svc.Back(ctx, deviceKey(w, r), UserIDFromContext(ctx), req.Form, req.Step)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, session)
	}
}
