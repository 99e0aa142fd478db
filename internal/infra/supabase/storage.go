package supabase

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/makerlink/sourcing-bfa-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// FileStorage implementation — Supabase Storage objects
// ============================================================

// Upload stores an object in the configured bucket and returns its public
// URL. The bucket is expected to allow public reads.
func (c *Client) Upload(ctx context.Context, path string, content io.Reader, size int64, contentType string) (string, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Upload")
	defer span.End()
	span.SetAttributes(
		attribute.String("storage.path", path),
		attribute.Int64("storage.size", size),
	)

	u := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, c.storageBucket, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, content)
	if err != nil {
		return "", err
	}
	req.ContentLength = size
	req.Header.Set("apikey", c.apiKey)
	key := c.serviceRoleKey
	if key == "" {
		key = c.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+key)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("storage: upload request failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return "", &domain.ErrExternalService{Service: "supabase/storage", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := readBody(resp)
		c.logger.Warn("storage: upload non-2xx",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return "", &domain.ErrExternalService{
			Service: "supabase/storage",
			Err:     fmt.Errorf("upload returned %d", resp.StatusCode),
		}
	}

	publicURL := fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.baseURL, c.storageBucket, path)
	c.logger.Debug("storage: upload OK", zap.String("path", path))
	return publicURL, nil
}
