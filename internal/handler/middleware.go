package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/makerlink/sourcing-bfa-go/internal/service"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const userIDKey contextKey = "userID"

// JWTAuthMiddleware validates Bearer tokens and injects the user id into
// the request context. Requests without a valid token are rejected.
func JWTAuthMiddleware(authSvc *service.AuthService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := bearerUserID(r, authSvc)
			if err != nil {
				logger.Warn("auth: rejected request",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuthMiddleware injects the user id when a valid token is
// present and lets anonymous requests through untouched. The wizard and
// submission endpoints serve both guests and signed-in buyers.
func OptionalAuthMiddleware(authSvc *service.AuthService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := bearerUserID(r, authSvc)
			if err != nil {
				// A presented-but-invalid token is rejected rather than
				// silently downgraded to guest.
				logger.Warn("auth: invalid token on optional route",
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireStaff gates a route group to admin/agent roles. Must run after
// JWTAuthMiddleware.
func RequireStaff(authSvc *service.AuthService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := UserIDFromContext(r.Context())
			role, err := authSvc.GetRole(r.Context(), userID)
			if err != nil {
				handleServiceError(w, err, logger)
				return
			}
			if !role.IsStaff() {
				logger.Warn("admin route denied",
					zap.String("user_id", userID),
					zap.String("role", string(role)),
					zap.String("path", r.URL.Path),
				)
				writeError(w, http.StatusForbidden, "staff access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerUserID(r *http.Request, authSvc *service.AuthService) (string, error) {
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errInvalidTokenFormat
	}
	return authSvc.ValidateAccessToken(parts[1])
}

var errInvalidTokenFormat = &tokenFormatError{}

type tokenFormatError struct{}

func (*tokenFormatError) Error() string { return "missing or malformed bearer token" }

// UserIDFromContext extracts the authenticated user id from context.
// Empty string means guest.
func UserIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(userIDKey).(string)
	return v
}

const deviceKeyCookie = "ml_device_key"

// deviceKey identifies the browser for draft persistence. Prefers the
// X-Device-Key header (SPA-managed), falls back to a cookie, and mints a
// new key (setting the cookie) when neither is present.
func deviceKey(w http.ResponseWriter, r *http.Request) string {
	if key := r.Header.Get("X-Device-Key"); key != "" {
		return key
	}
	if c, err := r.Cookie(deviceKeyCookie); err == nil && c.Value != "" {
		return c.Value
	}

	key := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     deviceKeyCookie,
		Value:    key,
		Path:     "/",
		MaxAge:   int((30 * 24 * 3600)),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return key
}
