package service

import (
	"context"
	"time"

	"github.com/makerlink/sourcing-bfa-go/internal/domain"
	"github.com/makerlink/sourcing-bfa-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// WizardService drives the multi-step RFI wizard. All state lives in the
// draft store keyed by a device key; the variant is re-resolved from the
// auth state on every call, never trusted from the client.
type WizardService struct {
	drafts    port.DraftStore
	profiles  port.ProfileStore
	validator *FormValidator
	logger    *zap.Logger
}

// NewWizardService creates the wizard service.
func NewWizardService(drafts port.DraftStore, profiles port.ProfileStore, validator *FormValidator, logger *zap.Logger) *WizardService {
	return &WizardService{
		drafts:    drafts,
		profiles:  profiles,
		validator: validator,
		logger:    logger,
	}
}

// resolveVariant maps the auth state to a wizard variant. Guests get the
// full flow; authenticated buyers skip account creation, and those with a
// linked company skip company details too.
func (s *WizardService) resolveVariant(ctx context.Context, userID string) (domain.WizardVariant, error) {
	if userID == "" {
		return domain.VariantGuest, nil
	}

	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return "", err
	}
	if profile.CompanyID != "" {
		return domain.VariantAuthCompany, nil
	}
	return domain.VariantAuthNoCompany, nil
}

func ownerFor(userID string) string {
	if userID == "" {
		return domain.GuestOwner
	}
	return userID
}

// StartSession opens (or resumes) a wizard session for the device. When
// fresh is set, any stored draft is dropped first. Draft recovery is
// best-effort: a failing draft store degrades to a blank session.
func (s *WizardService) StartSession(ctx context.Context, deviceKey, userID string, fresh bool) (*domain.WizardSession, error) {
	ctx, span := tracer.Start(ctx, "Wizard.StartSession")
	defer span.End()

	variant, err := s.resolveVariant(ctx, userID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("wizard.variant", string(variant)))

	if fresh {
		if err := s.drafts.Clear(ctx, deviceKey); err != nil {
			s.logger.Warn("failed to clear draft for fresh session", zap.Error(err))
		}
		return s.session(variant, 1, domain.FormState{}), nil
	}

	draft, err := s.drafts.AdoptIfOwnerMatches(ctx, deviceKey, ownerFor(userID))
	if err != nil {
		s.logger.Warn("draft recovery failed, starting blank", zap.Error(err))
		draft = nil
	}
	if draft == nil {
		return s.session(variant, 1, domain.FormState{}), nil
	}

	step := clampStep(draft.Step, variant)
	return s.session(variant, step, draft.Form), nil
}

// SaveFields merges the submitted fields into the draft without
// validating them. Drafts are lenient: invalid in-progress values are
// kept so the buyer can come back to them.
func (s *WizardService) SaveFields(ctx context.Context, deviceKey, userID string, form domain.FormState, step int) (*domain.WizardSession, error) {
	ctx, span := tracer.Start(ctx, "Wizard.SaveFields")
	defer span.End()

	variant, err := s.resolveVariant(ctx, userID)
	if err != nil {
		return nil, err
	}

	step = clampStep(step, variant)
	if err := s.saveDraft(ctx, deviceKey, userID, form, step); err != nil {
		s.logger.Warn("draft save failed", zap.Error(err))
	}
	return s.session(variant, step, form), nil
}

// Next validates the current step and advances on success. A validation
// failure returns ErrInvalidForm and leaves the session in place.
func (s *WizardService) Next(ctx context.Context, deviceKey, userID string, form domain.FormState, step int) (*domain.WizardSession, error) {
	ctx, span := tracer.Start(ctx, "Wizard.Next")
	defer span.End()

	variant, err := s.resolveVariant(ctx, userID)
	if err != nil {
		return nil, err
	}

	steps := domain.StepsFor(variant)
	step = clampStep(step, variant)
	current := steps[step-1]

	if err := s.validator.ValidateStep(&form, current); err != nil {
		return nil, err
	}

	if step < len(steps) {
		step++
	}
	if err := s.saveDraft(ctx, deviceKey, userID, form, step); err != nil {
		s.logger.Warn("draft save failed", zap.Error(err))
	}
	return s.session(variant, step, form), nil
}

// Back moves one step back without validating. Entered values survive.
func (s *WizardService) Back(ctx context.Context, deviceKey, userID string, form domain.FormState, step int) (*domain.WizardSession, error) {
	ctx, span := tracer.Start(ctx, "Wizard.Back")
	defer span.End()

	variant, err := s.resolveVariant(ctx, userID)
	if err != nil {
		return nil, err
	}

	step = clampStep(step, variant)
	if step > 1 {
		step--
	}
	if err := s.saveDraft(ctx, deviceKey, userID, form, step); err != nil {
		s.logger.Warn("draft save failed", zap.Error(err))
	}
	return s.session(variant, step, form), nil
}

// ClearDraft drops the device's draft. Called after successful submission.
func (s *WizardService) ClearDraft(ctx context.Context, deviceKey string) {
	if err := s.drafts.Clear(ctx, deviceKey); err != nil {
		s.logger.Warn("failed to clear draft after submission", zap.Error(err))
	}
}

func (s *WizardService) saveDraft(ctx context.Context, deviceKey, userID string, form domain.FormState, step int) error {
	return s.drafts.Save(ctx, deviceKey, &domain.Draft{
		OwnerID:   ownerFor(userID),
		Step:      step,
		Form:      form,
		UpdatedAt: time.Now(),
	})
}

func (s *WizardService) session(variant domain.WizardVariant, step int, form domain.FormState) *domain.WizardSession {
	steps := domain.StepsFor(variant)
	return &domain.WizardSession{
		Variant: variant,
		Step:    step,
		StepID:  steps[step-1],
		Steps:   steps,
		Form:    form,
	}
}

func clampStep(step int, variant domain.WizardVariant) int {
	steps := domain.StepsFor(variant)
	if step < 1 {
		return 1
	}
	if step > len(steps) {
		return len(steps)
	}
	return step
}
