package supabase

import (
	"context"
	"fmt"
	"time"

	"github.com/makerlink/sourcing-bfa-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// DraftStore implementation — wizard_drafts table
// ============================================================

// draftRow maps the wizard_drafts table. The form column is jsonb.
type draftRow struct {
	DeviceKey string           `json:"device_key"`
	OwnerID   string           `json:"owner_id"`
	Step      int              `json:"step"`
	Form      domain.FormState `json:"form"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// AdoptIfOwnerMatches loads the draft stored under deviceKey. When the
// stored owner tag differs from ownerID the draft is deleted and nil is
// returned: a draft left by one principal must never leak to another on
// the same device. Absence is nil, nil.
func (c *Client) AdoptIfOwnerMatches(ctx context.Context, deviceKey, ownerID string) (*domain.Draft, error) {
	ctx, span := tracer.Start(ctx, "Supabase.AdoptDraft")
	defer span.End()
	span.SetAttributes(attribute.String("draft.owner", ownerID))

	row, err := getOne[draftRow](ctx, c, fmt.Sprintf("wizard_drafts?device_key=eq.%s&limit=1", q(deviceKey)))
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/wizard_drafts", Err: err}
	}
	if row == nil {
		return nil, nil
	}

	if row.OwnerID != ownerID {
		c.logger.Info("discarding wizard draft with mismatched owner tag",
			zap.String("stored_owner", row.OwnerID),
			zap.String("current_owner", ownerID),
		)
		if err := c.doDelete(ctx, fmt.Sprintf("wizard_drafts?device_key=eq.%s", q(deviceKey))); err != nil {
			c.logger.Warn("failed to clear mismatched draft", zap.Error(err))
		}
		return nil, nil
	}

	return &domain.Draft{
		OwnerID:   row.OwnerID,
		Step:      row.Step,
		Form:      row.Form,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

// Save upserts the draft under deviceKey. Last write wins.
func (c *Client) Save(ctx context.Context, deviceKey string, d *domain.Draft) error {
	ctx, span := tracer.Start(ctx, "Supabase.SaveDraft")
	defer span.End()

	_, err := c.doUpsert(ctx, "wizard_drafts", map[string]any{
		"device_key": deviceKey,
		"owner_id":   d.OwnerID,
		"step":       d.Step,
		"form":       d.Form,
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/wizard_drafts", Err: err}
	}
	return nil
}

// Clear removes the draft under deviceKey, if any.
func (c *Client) Clear(ctx context.Context, deviceKey string) error {
	ctx, span := tracer.Start(ctx, "Supabase.ClearDraft")
	defer span.End()

	return c.doDelete(ctx, fmt.Sprintf("wizard_drafts?device_key=eq.%s", q(deviceKey)))
}
