package service

import (
	"context"
	"time"

	"github.com/makerlink/sourcing-bfa-go/internal/domain"
	"github.com/makerlink/sourcing-bfa-go/internal/infra/observability"
	"github.com/makerlink/sourcing-bfa-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// RFIService serves reads and the post-submission edit flow. Buyers see
// their own company's RFIs; staff see everything and drive the lifecycle.
type RFIService struct {
	rfis        port.RFIStore
	profiles    port.ProfileStore
	attachments port.AttachmentStore
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewRFIService creates the RFI service.
func NewRFIService(rfis port.RFIStore, profiles port.ProfileStore, attachments port.AttachmentStore, metrics *observability.Metrics, logger *zap.Logger) *RFIService {
	return &RFIService{
		rfis:        rfis,
		profiles:    profiles,
		attachments: attachments,
		metrics:     metrics,
		logger:      logger,
	}
}

// RFIDetail bundles an RFI with its attachments for detail reads.
type RFIDetail struct {
	RFI         *domain.RFI         `json:"rfi"`
	Attachments []domain.Attachment `json:"attachments"`
}

// GetRFI returns one RFI with attachments. Buyers may only read RFIs of
// their own company.
func (s *RFIService) GetRFI(ctx context.Context, userID, rfiID string) (*RFIDetail, error) {
	ctx, span := tracer.Start(ctx, "RFI.Get")
	defer span.End()
	span.SetAttributes(attribute.String("rfi.id", rfiID))

	rfi, err := s.authorize(ctx, userID, rfiID)
	if err != nil {
		return nil, err
	}

	attachments, err := s.attachments.ListAttachments(ctx, rfiID)
	if err != nil {
		s.logger.Warn("attachment list failed, returning RFI without attachments",
			zap.String("rfi_id", rfiID),
			zap.Error(err),
		)
		attachments = []domain.Attachment{}
	}

	return &RFIDetail{RFI: rfi, Attachments: attachments}, nil
}

// ListMine returns the caller's company RFIs, newest first. A buyer with
// no linked company has none.
func (s *RFIService) ListMine(ctx context.Context, userID string) ([]domain.RFI, error) {
	ctx, span := tracer.Start(ctx, "RFI.ListMine")
	defer span.End()

	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile.CompanyID == "" {
		return []domain.RFI{}, nil
	}
	return s.rfis.ListRFIsByCompany(ctx, profile.CompanyID)
}

// contentFields are the RFI columns whose change invalidates a previous
// completeness check.
var contentFields = map[string]bool{
	"requirements":        true,
	"product_description": true,
	"estimated_volume":    true,
	"volume_unit":         true,
	"guidance_price":      true,
	"timeline":            true,
	"destination_markets": true,
}

// Update applies a buyer edit. Only the editable subset can change; any
// content change resets the AI status to pending so the check reruns.
func (s *RFIService) Update(ctx context.Context, userID, rfiID string, upd *domain.RFIUpdate) (*domain.RFI, error) {
	ctx, span := tracer.Start(ctx, "RFI.Update")
	defer span.End()
	span.SetAttributes(attribute.String("rfi.id", rfiID))

	if _, err := s.authorize(ctx, userID, rfiID); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	setStr := func(col string, v *string) {
		if v != nil {
			updates[col] = *v
		}
	}
	setStr("requirements", upd.Requirements)
	setStr("product_description", upd.ProductDescription)
	setStr("estimated_volume", upd.EstimatedVolume)
	setStr("volume_unit", upd.VolumeUnit)
	setStr("guidance_price", upd.GuidancePrice)
	setStr("timeline", upd.Timeline)
	if upd.DestinationMarkets != nil {
		updates["destination_markets"] = *upd.DestinationMarkets
	}

	if len(updates) == 0 {
		return s.rfis.GetRFI(ctx, rfiID)
	}

	for col := range updates {
		if contentFields[col] {
			updates["ai_status"] = string(domain.AIStatusPending)
			break
		}
	}
	updates["updated_at"] = time.Now().UTC().Format(time.RFC3339)

	return s.rfis.UpdateRFI(ctx, rfiID, updates)
}

// AdvanceStatus moves an RFI through the staff lifecycle. Illegal
// transitions are rejected with a conflict.
func (s *RFIService) AdvanceStatus(ctx context.Context, rfiID string, next domain.RFIStatus) (*domain.RFI, error) {
	ctx, span := tracer.Start(ctx, "RFI.AdvanceStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("rfi.id", rfiID),
		attribute.String("rfi.next_status", string(next)),
	)

	rfi, err := s.rfis.GetRFI(ctx, rfiID)
	if err != nil {
		return nil, err
	}
	if !rfi.Status.CanTransitionTo(next) {
		return nil, &domain.ErrConflict{
			Message: "cannot move RFI from " + string(rfi.Status) + " to " + string(next),
		}
	}

	updated, err := s.rfis.UpdateRFI(ctx, rfiID, map[string]any{
		"status":     string(next),
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("RFI status changed",
		zap.String("rfi_id", rfiID),
		zap.String("from", string(rfi.Status)),
		zap.String("to", string(next)),
	)
	return updated, nil
}

// authorize loads the RFI and checks the caller may access it.
func (s *RFIService) authorize(ctx context.Context, userID, rfiID string) (*domain.RFI, error) {
	rfi, err := s.rfis.GetRFI(ctx, rfiID)
	if err != nil {
		return nil, err
	}

	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile.Role.IsStaff() {
		return rfi, nil
	}
	if profile.CompanyID == "" || profile.CompanyID != rfi.CompanyID {
		return nil, &domain.ErrForbidden{Action: "access this RFI"}
	}
	return rfi, nil
}
