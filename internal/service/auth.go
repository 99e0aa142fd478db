package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/makerlink/sourcing-bfa-go/internal/domain"
	"github.com/makerlink/sourcing-bfa-go/internal/infra/observability"
	"github.com/makerlink/sourcing-bfa-go/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var authTracer = otel.Tracer("service/auth")

// AuthService fronts the identity provider (GoTrue in production, the
// bcrypt dev fallback locally) and validates access tokens for the
// middleware. Roles come from the profile row, cached briefly.
type AuthService struct {
	identity  port.IdentityProvider
	profiles  port.ProfileStore
	roleCache port.Cache[domain.Role]
	jwtSecret []byte
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewAuthService creates the auth service. jwtSecret must match the
// secret the identity provider signs access tokens with.
func NewAuthService(identity port.IdentityProvider, profiles port.ProfileStore, roleCache port.Cache[domain.Role], jwtSecret string, metrics *observability.Metrics, logger *zap.Logger) *AuthService {
	return &AuthService{
		identity:  identity,
		profiles:  profiles,
		roleCache: roleCache,
		jwtSecret: []byte(jwtSecret),
		metrics:   metrics,
		logger:    logger,
	}
}

// Login exchanges credentials for tokens and enriches them with profile data.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.LoginResponse, error) {
	ctx, span := authTracer.Start(ctx, "Auth.Login")
	defer span.End()

	pair, err := s.identity.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}

	resp := &domain.LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		UserID:       pair.UserID,
	}

	profile, err := s.profiles.GetProfile(ctx, pair.UserID)
	if err != nil {
		var notFound *domain.ErrNotFound
		if !errors.As(err, &notFound) {
			return nil, err
		}
		// Identity exists but the profile row is missing (partial signup).
		// The token is still valid; the client completes the profile later.
		s.logger.Warn("login: no profile for authenticated user",
			zap.String("user_id", pair.UserID),
		)
		return resp, nil
	}

	resp.FullName = profile.FullName
	resp.Role = profile.Role
	resp.CompanyID = profile.CompanyID

	s.logger.Info("user logged in", zap.String("user_id", pair.UserID))
	return resp, nil
}

// Refresh rotates a refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.LoginResponse, error) {
	ctx, span := authTracer.Start(ctx, "Auth.Refresh")
	defer span.End()

	pair, err := s.identity.RefreshSession(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return &domain.LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		UserID:       pair.UserID,
	}, nil
}

// Me returns the caller's profile.
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.Profile, error) {
	ctx, span := authTracer.Start(ctx, "Auth.Me")
	defer span.End()

	return s.profiles.GetProfile(ctx, userID)
}

// AccessClaims are the claims the middleware needs from an access token.
type AccessClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// ValidateAccessToken parses and verifies an HS256 access token and
// returns the principal's user id.
func (s *AuthService) ValidateAccessToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return "", &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", &domain.ErrUnauthorized{Message: "invalid token"}
	}
	return claims.Subject, nil
}

// GetRole resolves the principal's role, cached to keep the per-request
// role gate off the profile table.
func (s *AuthService) GetRole(ctx context.Context, userID string) (domain.Role, error) {
	if role, ok := s.roleCache.Get(userID); ok {
		s.metrics.IncrCacheHit("role")
		return role, nil
	}
	s.metrics.IncrCacheMiss("role")

	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return "", err
	}
	role := profile.Role
	if role == "" {
		role = domain.RoleBuyer
	}
	s.roleCache.Set(userID, role)
	return role, nil
}
