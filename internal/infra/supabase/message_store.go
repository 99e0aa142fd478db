package supabase

import (
	"context"
	"fmt"
	"time"

	"github.com/makerlink/sourcing-bfa-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// MessageStore implementation — messages table (append-only)
// ============================================================

// CreateMessage appends one message to an RFI's log.
func (c *Client) CreateMessage(ctx context.Context, m *domain.Message) (*domain.Message, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateMessage")
	defer span.End()
	span.SetAttributes(attribute.String("rfi.id", m.RFIID))

	body, err := c.doPost(ctx, "messages", map[string]any{
		"id":        m.ID,
		"rfi_id":    m.RFIID,
		"sender_id": m.SenderID,
		"text":      m.Text,
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/messages", Err: err}
	}
	return decodeFirst[domain.Message](body)
}

// ListMessages returns messages in chronological order. A non-zero since
// acts as a cursor for the client's fixed-interval poll: only rows created
// strictly after it are returned.
func (c *Client) ListMessages(ctx context.Context, rfiID string, since time.Time) ([]domain.Message, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListMessages")
	defer span.End()
	span.SetAttributes(attribute.String("rfi.id", rfiID))

	path := fmt.Sprintf("messages?rfi_id=eq.%s&order=created_at.asc", q(rfiID))
	if !since.IsZero() {
		path += fmt.Sprintf("&created_at=gt.%s", q(since.UTC().Format(time.RFC3339Nano)))
	}
	return getMany[domain.Message](ctx, c, path)
}
