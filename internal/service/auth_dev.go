package service

import (
	"context"
	"time"

	"github.com/makerlink/sourcing-bfa-go/internal/domain"
	"github.com/makerlink/sourcing-bfa-go/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	devAccessTTL  = time.Hour
	devRefreshTTL = 7 * 24 * time.Hour
)

// DevIdentity is the DEV_AUTH=true identity provider: accounts live in
// the profiles table with a bcrypt password hash, and tokens are local
// HS256 JWTs. Never enabled in production, where GoTrue owns identity.
type DevIdentity struct {
	profiles  port.ProfileStore
	jwtSecret []byte
	logger    *zap.Logger
}

// NewDevIdentity creates the dev identity provider.
func NewDevIdentity(profiles port.ProfileStore, jwtSecret string, logger *zap.Logger) *DevIdentity {
	return &DevIdentity{
		profiles:  profiles,
		jwtSecret: []byte(jwtSecret),
		logger:    logger,
	}
}

// CreateUser registers a dev account. Mirrors the GoTrue contract: a
// taken email returns ErrDuplicateAccount with no side effects.
func (d *DevIdentity) CreateUser(ctx context.Context, email, password string) (string, error) {
	existing, err := d.profiles.GetProfileByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", &domain.ErrDuplicateAccount{Email: email}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	userID := uuid.NewString()
	if _, err := d.profiles.UpsertProfile(ctx, &domain.Profile{
		ID:           userID,
		Email:        email,
		Role:         domain.RoleBuyer,
		PasswordHash: string(hash),
	}); err != nil {
		return "", err
	}

	d.logger.Warn("DEV_AUTH: user created locally", zap.String("user_id", userID))
	return userID, nil
}

// SignIn checks the bcrypt hash on the profile row and issues local tokens.
func (d *DevIdentity) SignIn(ctx context.Context, email, password string) (*port.TokenPair, error) {
	profile, err := d.profiles.GetProfileByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if profile == nil || profile.PasswordHash == "" {
		return nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)); err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
	}
	return d.issueTokens(profile.ID, profile.Email)
}

// RefreshSession accepts the local refresh JWT and issues a fresh pair.
func (d *DevIdentity) RefreshSession(ctx context.Context, refreshToken string) (*port.TokenPair, error) {
	token, err := jwt.ParseWithClaims(refreshToken, &devClaims{}, func(t *jwt.Token) (any, error) {
		return d.jwtSecret, nil
	})
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid refresh token"}
	}
	claims, ok := token.Claims.(*devClaims)
	if !ok || !token.Valid || claims.Type != "refresh" {
		return nil, &domain.ErrUnauthorized{Message: "invalid refresh token"}
	}
	return d.issueTokens(claims.Subject, claims.Email)
}

type devClaims struct {
	Email string `json:"email,omitempty"`
	Type  string `json:"type"`
	jwt.RegisteredClaims
}

func (d *DevIdentity) issueTokens(userID, email string) (*port.TokenPair, error) {
	access, err := d.sign(userID, email, "access", devAccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := d.sign(userID, email, "refresh", devRefreshTTL)
	if err != nil {
		return nil, err
	}
	return &port.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(devAccessTTL.Seconds()),
		UserID:       userID,
	}, nil
}

func (d *DevIdentity) sign(userID, email, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := devClaims{
		Email: email,
		Type:  tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "sourcing-bfa-dev",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(d.jwtSecret)
}
