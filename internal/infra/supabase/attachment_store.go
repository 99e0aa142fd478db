package supabase

import (
	"context"
	"fmt"

	"github.com/makerlink/sourcing-bfa-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// AttachmentStore implementation — attachments table
// ============================================================

// CreateAttachment records attachment metadata after a successful upload.
func (c *Client) CreateAttachment(ctx context.Context, a *domain.Attachment) (*domain.Attachment, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateAttachment")
	defer span.End()
	span.SetAttributes(attribute.String("rfi.id", a.RFIID))

	body, err := c.doPost(ctx, "attachments", map[string]any{
		"id":           a.ID,
		"rfi_id":       a.RFIID,
		"file_name":    a.FileName,
		"storage_path": a.StoragePath,
		"size_bytes":   a.SizeBytes,
		"mime_type":    a.MimeType,
		"public_url":   a.PublicURL,
		"uploaded_by":  a.UploadedBy,
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/attachments", Err: err}
	}
	return decodeFirst[domain.Attachment](body)
}

// ListAttachments returns an RFI's attachments in upload order.
func (c *Client) ListAttachments(ctx context.Context, rfiID string) ([]domain.Attachment, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListAttachments")
	defer span.End()
	span.SetAttributes(attribute.String("rfi.id", rfiID))

	path := fmt.Sprintf("attachments?rfi_id=eq.%s&order=created_at.asc", q(rfiID))
	return getMany[domain.Attachment](ctx, c, path)
}
