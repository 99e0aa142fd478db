// Package openai calls the OpenAI Chat Completions API to run the
// advisory completeness check on an RFI draft.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/makerlink/sourcing-bfa-go/internal/domain"
	"github.com/makerlink/sourcing-bfa-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("openai")

const systemPrompt = `You are a sourcing specialist reviewing a buyer's Request for Information (RFI) before it is sent to suppliers.
Assess whether the RFI gives suppliers enough detail to quote. Respond with JSON only, using this schema:
{
  "status": "complete" | "needs_clarification",
  "issues": ["short description of each missing or vague detail"],
  "questions": ["concrete question the buyer should answer"],
  "summary": {
    "Product": "...",
    "Specifications": "...",
    "Volumes": "...",
    "Target Price": "...",
    "Timeline": "...",
    "Destination Markets": "..."
  }
}
Every summary section must be present; write "Not specified" for sections the buyer left empty. Keep issues and questions short and actionable. Do not invent details the buyer did not provide.`

// Client calls the Chat Completions endpoint with JSON-mode output.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	logger     *zap.Logger
}

// NewClient creates an OpenAI client. baseURL normally points at
// https://api.openai.com but is configurable for tests.
func NewClient(httpClient *http.Client, baseURL, apiKey, model string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		cb:         cb,
		cfg:        cfg,
		logger:     logger,
	}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	Temperature    float64         `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage domain.TokenUsage `json:"usage"`
}

// Check runs the completeness analysis. The report is advisory: callers
// degrade to a fallback report when this returns an error.
func (c *Client) Check(ctx context.Context, req *domain.CompletenessRequest) (*domain.CompletenessReport, *domain.TokenUsage, error) {
	ctx, span := tracer.Start(ctx, "OpenAI.Check")
	defer span.End()
	span.SetAttributes(attribute.String("openai.model", c.model))

	var (
		report domain.CompletenessReport
		usage  domain.TokenUsage
	)

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := json.Marshal(chatRequest{
				Model: c.model,
				Messages: []chatMessage{
					{Role: "system", Content: systemPrompt},
					{Role: "user", Content: buildUserPrompt(req)},
				},
				ResponseFormat: &responseFormat{Type: "json_object"},
				Temperature:    0.2,
			})
			if err != nil {
				return err
			}

			url := fmt.Sprintf("%s/v1/chat/completions", c.baseURL)
			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return err
			}
			httpReq.Header.Set("Content-Type", "application/json")
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

			resp, err := c.httpClient.Do(httpReq)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("openai API returned status %d", resp.StatusCode)
			}

			var chat chatResponse
			if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
				return err
			}
			if len(chat.Choices) == 0 {
				return fmt.Errorf("openai API returned no choices")
			}

			if err := json.Unmarshal([]byte(chat.Choices[0].Message.Content), &report); err != nil {
				return fmt.Errorf("decode completeness report: %w", err)
			}
			usage = chat.Usage
			return nil
		})
	})
	if err != nil {
		c.logger.Warn("openai: completeness check failed", zap.Error(err))
		return nil, nil, &domain.ErrExternalService{Service: "openai", Err: err}
	}

	normalizeReport(&report)
	span.SetAttributes(attribute.Int("openai.total_tokens", usage.TotalTokens))
	return &report, &usage, nil
}

// buildUserPrompt renders the structured fields as a labelled block. Empty
// optional fields are omitted so the model sees exactly what the buyer gave.
func buildUserPrompt(req *domain.CompletenessRequest) string {
	var b strings.Builder
	write := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
	}
	write("Product name", req.ProductName)
	write("Requirements", req.Requirements)
	write("Product description", req.ProductDescription)
	write("Estimated volume", req.EstimatedVolume)
	write("Volume unit", req.VolumeUnit)
	write("Guidance price", req.GuidancePrice)
	write("Timeline", req.Timeline)
	if len(req.DestinationMarkets) > 0 {
		write("Destination markets", strings.Join(req.DestinationMarkets, ", "))
	}
	return b.String()
}

// normalizeReport enforces the response contract even when the model drifts:
// a valid status, non-nil slices and all summary sections present.
func normalizeReport(r *domain.CompletenessReport) {
	if r.Status != "complete" && r.Status != "needs_clarification" {
		if len(r.Issues) > 0 || len(r.Questions) > 0 {
			r.Status = "needs_clarification"
		} else {
			r.Status = "complete"
		}
	}
	if r.Issues == nil {
		r.Issues = []string{}
	}
	if r.Questions == nil {
		r.Questions = []string{}
	}
	if r.Summary == nil {
		r.Summary = map[string]string{}
	}
	for _, section := range domain.SummarySections {
		if r.Summary[section] == "" {
			r.Summary[section] = "Not specified"
		}
	}
}
