// Package resend sends transactional email through the Resend API. All
// sends are best-effort: callers log failures and never fail a request
// because an email did not go out.
package resend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/makerlink/sourcing-bfa-go/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("resend")

// Client sends email via POST /emails.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	from       string
	staffInbox string
	logger     *zap.Logger
}

// NewClient creates a Resend client. staffInbox receives the internal
// new-RFI notifications.
func NewClient(httpClient *http.Client, baseURL, apiKey, from, staffInbox string, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		from:       from,
		staffInbox: staffInbox,
		logger:     logger,
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// SendWelcome greets a newly created account.
func (c *Client) SendWelcome(ctx context.Context, to, name string) error {
	return c.send(ctx, "welcome", to, "Welcome to Makerlink", welcomeHTML(name))
}

// SendRFIConfirmation confirms a submitted RFI to the buyer.
func (c *Client) SendRFIConfirmation(ctx context.Context, to, name string, rfi *domain.RFI) error {
	subject := fmt.Sprintf("We received your sourcing request: %s", rfi.ProductName)
	return c.send(ctx, "rfi_confirmation", to, subject, confirmationHTML(name, rfi))
}

// SendRFINotification alerts the staff inbox about a new RFI.
func (c *Client) SendRFINotification(ctx context.Context, rfi *domain.RFI, companyName string) error {
	subject := fmt.Sprintf("New RFI: %s (%s)", rfi.ProductName, companyName)
	return c.send(ctx, "rfi_notification", c.staffInbox, subject, notificationHTML(rfi, companyName))
}

func (c *Client) send(ctx context.Context, template, to, subject, html string) error {
	ctx, span := tracer.Start(ctx, "Resend.Send")
	defer span.End()
	span.SetAttributes(attribute.String("email.template", template))

	body, err := json.Marshal(sendRequest{
		From:    c.from,
		To:      []string{to},
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/emails", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("resend: request failed",
			zap.String("template", template),
			zap.Error(err),
		)
		return &domain.ErrExternalService{Service: "resend", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("resend: non-2xx response",
			zap.String("template", template),
			zap.Int("status", resp.StatusCode),
		)
		return &domain.ErrExternalService{
			Service: "resend",
			Err:     fmt.Errorf("send returned %d", resp.StatusCode),
		}
	}

	c.logger.Debug("resend: email sent", zap.String("template", template))
	return nil
}
