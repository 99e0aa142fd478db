package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/makerlink/sourcing-bfa-go/internal/domain"
	"github.com/makerlink/sourcing-bfa-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Submission — POST /v1/rfi/submissions
// ============================================================

const (
	maxUploadBytes = 10 << 20 // per file
	maxUploadCount = 5
	maxFormBytes   = 64 << 10
)

// submissionHandler accepts the final wizard payload as plain JSON or as
// multipart/form-data (a "form" JSON part plus "files" parts). The branch
// is picked from the auth state, never from the payload.
func submissionHandler(svc *service.SubmissionService, wizardSvc *service.WizardService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/rfi/submissions")
		defer span.End()

		var (
			form  domain.FormState
			files []domain.FileUpload
		)

		contentType := r.Header.Get("Content-Type")
		if strings.HasPrefix(contentType, "multipart/form-data") {
			if err := r.ParseMultipartForm(int64(maxUploadCount) * maxUploadBytes); err != nil {
				writeError(w, http.StatusBadRequest, "invalid multipart body")
				return
			}
			if err := json.Unmarshal([]byte(r.FormValue("form")), &form); err != nil {
				writeError(w, http.StatusBadRequest, "invalid form payload")
				return
			}

			uploads := r.MultipartForm.File["files"]
			if len(uploads) > maxUploadCount {
				writeError(w, http.StatusBadRequest, "too many attachments (max 5)")
				return
			}
			for _, fh := range uploads {
				if fh.Size > maxUploadBytes {
					writeError(w, http.StatusBadRequest, "attachment too large (max 10 MB): "+fh.Filename)
					return
				}
				f, err := fh.Open()
				if err != nil {
					writeError(w, http.StatusBadRequest, "unreadable attachment: "+fh.Filename)
					return
				}
				content, err := io.ReadAll(f)
				f.Close()
				if err != nil {
					writeError(w, http.StatusBadRequest, "unreadable attachment: "+fh.Filename)
					return
				}
				files = append(files, domain.FileUpload{
					FileName: fh.Filename,
					MimeType: fh.Header.Get("Content-Type"),
					Size:     fh.Size,
					Content:  content,
				})
			}
		} else {
			var body struct {
				Form domain.FormState `json:"form"`
			}
			if err := json.NewDecoder(io.LimitReader(r.Body, maxFormBytes)).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			form = body.Form
		}

		var (
			result *domain.SubmissionResult
			err    error
		)
		if userID := UserIDFromContext(ctx); userID != "" {
			result, err = svc.SubmitAuthenticated(ctx, userID, &form, files)
		} else {
			result, err = svc.SubmitGuest(ctx, &form, files)
		}
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		wizardSvc.ClearDraft(ctx, deviceKey(w, r))
		writeJSON(w, http.StatusCreated, result)
	}
}

// ============================================================
// Completeness — POST /v1/rfi/completeness
// ============================================================

func completenessHandler(svc *service.CompletenessService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/rfi/completeness")
		defer span.End()

		var req domain.CompletenessRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxFormBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if strings.TrimSpace(req.ProductName) == "" && strings.TrimSpace(req.Requirements) == "" {
			writeError(w, http.StatusBadRequest, "nothing to analyse: provide at least a product name or requirements")
			return
		}

		report, err := svc.Check(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}
