package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/makerlink/sourcing-bfa-go/internal/domain"
	"github.com/makerlink/sourcing-bfa-go/internal/infra/draft"
	"github.com/makerlink/sourcing-bfa-go/internal/service"

	"go.uber.org/zap"
)

func newWizard(drafts *draft.MemoryStore, profiles *mockProfileStore) *service.WizardService {
	if drafts == nil {
		drafts = draft.NewMemoryStore(time.Minute, zap.NewNop())
	}
	if profiles == nil {
		profiles = newMockProfileStore()
	}
	return service.NewWizardService(drafts, profiles, service.NewFormValidator(), zap.NewNop())
}

func TestStartSession_Guest(t *testing.T) {
	svc := newWizard(nil, nil)

	sess, err := svc.StartSession(context.Background(), "dev-1", "", false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sess.Variant != domain.VariantGuest {
		t.Errorf("expected guest variant, got %s", sess.Variant)
	}
	if sess.Step != 1 || sess.StepID != domain.StepCompany {
		t.Errorf("expected step 1 (company), got %d (%s)", sess.Step, sess.StepID)
	}
	if len(sess.Steps) != 6 {
		t.Errorf("expected 6 steps for guests, got %d", len(sess.Steps))
	}
}

func TestStartSession_AuthenticatedWithCompany(t *testing.T) {
	profiles := newMockProfileStore(&domain.Profile{ID: "user-1", CompanyID: "comp-1"})
	svc := newWizard(nil, profiles)

	sess, err := svc.StartSession(context.Background(), "dev-1", "user-1", false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sess.Variant != domain.VariantAuthCompany {
		t.Errorf("expected authenticated_with_company, got %s", sess.Variant)
	}
	if len(sess.Steps) != 4 || sess.StepID != domain.StepProduct {
		t.Errorf("expected 4 steps starting at product, got %d starting at %s", len(sess.Steps), sess.StepID)
	}
}

func TestStartSession_AuthenticatedNoCompany(t *testing.T) {
	profiles := newMockProfileStore(&domain.Profile{ID: "user-1"})
	svc := newWizard(nil, profiles)

	sess, err := svc.StartSession(context.Background(), "dev-1", "user-1", false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sess.Variant != domain.VariantAuthNoCompany {
		t.Errorf("expected authenticated_no_company, got %s", sess.Variant)
	}
	if len(sess.Steps) != 5 || sess.StepID != domain.StepCompany {
		t.Errorf("expected 5 steps starting at company, got %d starting at %s", len(sess.Steps), sess.StepID)
	}
}

func TestStartSession_ResumesDraft(t *testing.T) {
	drafts := draft.NewMemoryStore(time.Minute, zap.NewNop())
	svc := newWizard(drafts, nil)
	ctx := context.Background()

	form := domain.FormState{CompanyName: "Acme Trading GmbH"}
	if _, err := svc.SaveFields(ctx, "dev-1", "", form, 3); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	sess, err := svc.StartSession(ctx, "dev-1", "", false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sess.Step != 3 {
		t.Errorf("expected resumed step 3, got %d", sess.Step)
	}
	if sess.Form.CompanyName != "Acme Trading GmbH" {
		t.Errorf("expected resumed form, got %q", sess.Form.CompanyName)
	}
}

func TestStartSession_FreshDropsDraft(t *testing.T) {
	drafts := draft.NewMemoryStore(time.Minute, zap.NewNop())
	svc := newWizard(drafts, nil)
	ctx := context.Background()

	if _, err := svc.SaveFields(ctx, "dev-1", "", domain.FormState{CompanyName: "Old Co"}, 2); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	sess, err := svc.StartSession(ctx, "dev-1", "", true)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sess.Step != 1 || sess.Form.CompanyName != "" {
		t.Errorf("expected blank session after fresh start, got step %d form %q", sess.Step, sess.Form.CompanyName)
	}

	// Draft must be gone for subsequent sessions too.
	sess, _ = svc.StartSession(ctx, "dev-1", "", false)
	if sess.Form.CompanyName != "" {
		t.Error("expected draft to be dropped permanently")
	}
}

func TestStartSession_OwnerMismatchDiscardsDraft(t *testing.T) {
	drafts := draft.NewMemoryStore(time.Minute, zap.NewNop())
	profiles := newMockProfileStore(&domain.Profile{ID: "user-1"})
	svc := newWizard(drafts, profiles)
	ctx := context.Background()

	// Guest leaves a draft on the device.
	if _, err := svc.SaveFields(ctx, "dev-1", "", domain.FormState{CompanyName: "Guest Co"}, 2); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// A signed-in user on the same device must never see it.
	sess, err := svc.StartSession(ctx, "dev-1", "user-1", false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sess.Form.CompanyName != "" || sess.Step != 1 {
		t.Errorf("expected blank session for different owner, got step %d form %q", sess.Step, sess.Form.CompanyName)
	}

	// The mismatch discards the draft; the guest cannot recover it either.
	sess, _ = svc.StartSession(ctx, "dev-1", "", false)
	if sess.Form.CompanyName != "" {
		t.Error("expected mismatched draft to be discarded, not kept")
	}
}

func TestStartSession_DraftStoreFailureDegradesToBlank(t *testing.T) {
	drafts := &mockDraftStore{adoptErr: errors.New("draft backend down")}
	svc := service.NewWizardService(drafts, newMockProfileStore(), service.NewFormValidator(), zap.NewNop())

	sess, err := svc.StartSession(context.Background(), "dev-1", "", false)
	if err != nil {
		t.Fatalf("draft failure must not fail the session, got %v", err)
	}
	if sess.Step != 1 {
		t.Errorf("expected blank session, got step %d", sess.Step)
	}
}

func TestNext_InvalidStepBlocksAdvance(t *testing.T) {
	svc := newWizard(nil, nil)

	_, err := svc.Next(context.Background(), "dev-1", "", domain.FormState{}, 1)
	if err == nil {
		t.Fatal("expected validation error")
	}
	var formErr *domain.ErrInvalidForm
	if !errors.As(err, &formErr) {
		t.Fatalf("expected ErrInvalidForm, got %v", err)
	}
	if formErr.Step != domain.StepCompany {
		t.Errorf("expected error on company step, got %s", formErr.Step)
	}
	if len(formErr.Fields) == 0 {
		t.Error("expected per-field errors")
	}
}

func TestNext_ValidStepAdvances(t *testing.T) {
	svc := newWizard(nil, nil)
	form := validGuestForm()

	sess, err := svc.Next(context.Background(), "dev-1", "", form, 1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sess.Step != 2 || sess.StepID != domain.StepAccount {
		t.Errorf("expected advance to step 2 (account), got %d (%s)", sess.Step, sess.StepID)
	}
}

func TestNext_LastStepDoesNotOverflow(t *testing.T) {
	svc := newWizard(nil, nil)
	form := validGuestForm()

	sess, err := svc.Next(context.Background(), "dev-1", "", form, 6)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sess.Step != 6 {
		t.Errorf("expected step to stay at 6, got %d", sess.Step)
	}
}

func TestBack_MovesWithoutValidation(t *testing.T) {
	svc := newWizard(nil, nil)

	// Back never validates; a half-filled form is fine.
	sess, err := svc.Back(context.Background(), "dev-1", "", domain.FormState{}, 3)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sess.Step != 2 {
		t.Errorf("expected step 2, got %d", sess.Step)
	}

	sess, _ = svc.Back(context.Background(), "dev-1", "", domain.FormState{}, 1)
	if sess.Step != 1 {
		t.Errorf("expected step to stay at 1, got %d", sess.Step)
	}
}

func TestSaveFields_ClampsStepAndSkipsValidation(t *testing.T) {
	svc := newWizard(nil, nil)

	sess, err := svc.SaveFields(context.Background(), "dev-1", "", domain.FormState{CompanyName: "x"}, 99)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sess.Step != 6 {
		t.Errorf("expected clamp to 6, got %d", sess.Step)
	}
	if sess.Form.CompanyName != "x" {
		t.Error("expected invalid in-progress value to be kept")
	}
}
