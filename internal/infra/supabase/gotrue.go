package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/makerlink/sourcing-bfa-go/internal/domain"
	"github.com/makerlink/sourcing-bfa-go/internal/port"

	"go.uber.org/zap"
)

// ============================================================
// IdentityProvider implementation — GoTrue auth endpoints
// ============================================================

type gotrueTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	User         struct {
		ID string `json:"id"`
	} `json:"user"`
}

type gotrueErrorResponse struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorDescription string `json:"error_description"`
}

func (e *gotrueErrorResponse) text() string {
	for _, s := range []string{e.Msg, e.Message, e.ErrorDescription} {
		if s != "" {
			return s
		}
	}
	return ""
}

// CreateUser registers a new identity through the admin endpoint, which
// requires the service-role key. The account is created pre-confirmed so
// the wizard can sign the buyer in immediately after submission.
func (c *Client) CreateUser(ctx context.Context, email, password string) (string, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateUser")
	defer span.End()

	if c.serviceRoleKey == "" {
		return "", &domain.ErrConfiguration{Setting: "SUPABASE_SERVICE_ROLE_KEY"}
	}

	payload, err := json.Marshal(map[string]any{
		"email":         email,
		"password":      password,
		"email_confirm": true,
	})
	if err != nil {
		return "", err
	}

	u := fmt.Sprintf("%s/auth/v1/admin/users", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceRoleKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("gotrue: create user request failed", zap.Error(err))
		return "", &domain.ErrExternalService{Service: "gotrue", Err: err}
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return "", err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var gtErr gotrueErrorResponse
		_ = json.Unmarshal(body, &gtErr)
		if resp.StatusCode == http.StatusUnprocessableEntity ||
			strings.Contains(strings.ToLower(gtErr.text()), "already") {
			return "", &domain.ErrDuplicateAccount{Email: email}
		}
		c.logger.Warn("gotrue: create user non-2xx",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return "", &domain.ErrExternalService{
			Service: "gotrue",
			Err:     fmt.Errorf("create user returned %d", resp.StatusCode),
		}
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("decode create user response: %w", err)
	}
	if created.ID == "" {
		return "", &domain.ErrExternalService{Service: "gotrue", Err: fmt.Errorf("create user returned no id")}
	}

	c.logger.Info("gotrue: user created", zap.String("user_id", created.ID))
	return created.ID, nil
}

// SignIn exchanges email/password credentials for a token pair.
func (c *Client) SignIn(ctx context.Context, email, password string) (*port.TokenPair, error) {
	ctx, span := tracer.Start(ctx, "Supabase.SignIn")
	defer span.End()

	return c.tokenGrant(ctx, "password", map[string]string{
		"email":    email,
		"password": password,
	})
}

// RefreshSession rotates a refresh token for a fresh token pair.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*port.TokenPair, error) {
	ctx, span := tracer.Start(ctx, "Supabase.RefreshSession")
	defer span.End()

	return c.tokenGrant(ctx, "refresh_token", map[string]string{
		"refresh_token": refreshToken,
	})
}

func (c *Client) tokenGrant(ctx context.Context, grantType string, body map[string]string) (*port.TokenPair, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/auth/v1/token?grant_type=%s", c.baseURL, grantType)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("gotrue: token request failed",
			zap.String("grant_type", grantType),
			zap.Error(err),
		)
		return nil, &domain.ErrExternalService{Service: "gotrue", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
		var gtErr gotrueErrorResponse
		_ = json.Unmarshal(respBody, &gtErr)
		msg := gtErr.text()
		if msg == "" {
			msg = "invalid credentials"
		}
		return nil, &domain.ErrUnauthorized{Message: msg}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("gotrue: token non-2xx",
			zap.String("grant_type", grantType),
			zap.Int("status", resp.StatusCode),
		)
		return nil, &domain.ErrExternalService{
			Service: "gotrue",
			Err:     fmt.Errorf("token grant returned %d", resp.StatusCode),
		}
	}

	var token gotrueTokenResponse
	if err := json.Unmarshal(respBody, &token); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}

	return &port.TokenPair{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresIn:    token.ExpiresIn,
		UserID:       token.User.ID,
	}, nil
}
