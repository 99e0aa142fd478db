package service

import (
	"bytes"
	"context"
	"path"
	"time"

	"github.com/makerlink/sourcing-bfa-go/internal/domain"
	"github.com/makerlink/sourcing-bfa-go/internal/infra/observability"
	"github.com/makerlink/sourcing-bfa-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("service")

// SubmissionService orchestrates the two RFI submission paths. The core
// records (account, company, RFI) are required; attachment uploads and
// emails are best-effort and never fail a submission.
type SubmissionService struct {
	profiles    port.ProfileStore
	companies   port.CompanyStore
	rfis        port.RFIStore
	attachments port.AttachmentStore
	identity    port.IdentityProvider
	storage     port.FileStorage
	mailer      port.Mailer
	validator   *FormValidator
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewSubmissionService creates the submission orchestrator.
func NewSubmissionService(
	profiles port.ProfileStore,
	companies port.CompanyStore,
	rfis port.RFIStore,
	attachments port.AttachmentStore,
	identity port.IdentityProvider,
	storage port.FileStorage,
	mailer port.Mailer,
	validator *FormValidator,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *SubmissionService {
	return &SubmissionService{
		profiles:    profiles,
		companies:   companies,
		rfis:        rfis,
		attachments: attachments,
		identity:    identity,
		storage:     storage,
		mailer:      mailer,
		validator:   validator,
		metrics:     metrics,
		logger:      logger,
	}
}

// SubmitGuest runs the guest path: create the account first (so a
// duplicate email aborts before any other record exists), then company,
// profile and RFI, then the best-effort tail.
func (s *SubmissionService) SubmitGuest(ctx context.Context, form *domain.FormState, files []domain.FileUpload) (*domain.SubmissionResult, error) {
	ctx, span := tracer.Start(ctx, "Submission.SubmitGuest")
	defer span.End()

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("submit_guest", time.Since(start))
	}()

	if err := s.validator.ValidateAll(form, domain.VariantGuest); err != nil {
		s.metrics.IncrSubmission("guest", "error")
		return nil, err
	}

	userID, err := s.identity.CreateUser(ctx, form.WorkEmail, form.Password)
	if err != nil {
		s.metrics.IncrSubmission("guest", "error")
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", userID))

	company, err := s.createCompany(ctx, form)
	if err != nil {
		s.metrics.IncrSubmission("guest", "error")
		return nil, err
	}

	fullName := form.FirstName + " " + form.LastName
	if _, err := s.profiles.UpsertProfile(ctx, &domain.Profile{
		ID:            userID,
		Email:         form.WorkEmail,
		FullName:      fullName,
		FirstName:     form.FirstName,
		LastName:      form.LastName,
		Phone:         form.Phone,
		Role:          domain.RoleBuyer,
		CompanyID:     company.ID,
		TermsAccepted: form.AcceptTerms,
	}); err != nil {
		s.metrics.IncrSubmission("guest", "error")
		return nil, err
	}

	rfi, err := s.createRFI(ctx, form, company.ID, userID)
	if err != nil {
		s.metrics.IncrSubmission("guest", "error")
		return nil, err
	}

	uploaded := s.uploadAttachments(ctx, rfi.ID, userID, files)
	s.sendGuestEmails(ctx, form.WorkEmail, form.FirstName, rfi, company.Name)

	s.metrics.IncrSubmission("guest", "success")
	s.logger.Info("guest RFI submitted",
		zap.String("rfi_id", rfi.ID),
		zap.String("user_id", userID),
		zap.Int("attachments", len(uploaded)),
	)

	return &domain.SubmissionResult{
		RFIID:       rfi.ID,
		UserID:      userID,
		CompanyID:   company.ID,
		Attachments: uploaded,
	}, nil
}

// SubmitAuthenticated runs the signed-in path. Buyers without a linked
// company get one created and linked first.
func (s *SubmissionService) SubmitAuthenticated(ctx context.Context, userID string, form *domain.FormState, files []domain.FileUpload) (*domain.SubmissionResult, error) {
	ctx, span := tracer.Start(ctx, "Submission.SubmitAuthenticated")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("submit_authenticated", time.Since(start))
	}()

	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		s.metrics.IncrSubmission("authenticated", "error")
		return nil, err
	}

	variant := domain.VariantAuthCompany
	if profile.CompanyID == "" {
		variant = domain.VariantAuthNoCompany
	}
	if err := s.validator.ValidateAll(form, variant); err != nil {
		s.metrics.IncrSubmission("authenticated", "error")
		return nil, err
	}

	companyID := profile.CompanyID
	companyName := form.CompanyName
	if companyID == "" {
		company, err := s.createCompany(ctx, form)
		if err != nil {
			s.metrics.IncrSubmission("authenticated", "error")
			return nil, err
		}
		if err := s.profiles.LinkCompany(ctx, userID, company.ID); err != nil {
			s.metrics.IncrSubmission("authenticated", "error")
			return nil, err
		}
		companyID = company.ID
	} else if company, err := s.companies.GetCompany(ctx, companyID); err == nil {
		companyName = company.Name
	}

	rfi, err := s.createRFI(ctx, form, companyID, userID)
	if err != nil {
		s.metrics.IncrSubmission("authenticated", "error")
		return nil, err
	}

	uploaded := s.uploadAttachments(ctx, rfi.ID, userID, files)

	name := profile.FirstName
	if name == "" {
		name = profile.FullName
	}
	s.sendEmail(ctx, "rfi_confirmation", func(ctx context.Context) error {
		return s.mailer.SendRFIConfirmation(ctx, profile.Email, name, rfi)
	})
	s.sendEmail(ctx, "rfi_notification", func(ctx context.Context) error {
		return s.mailer.SendRFINotification(ctx, rfi, companyName)
	})

	s.metrics.IncrSubmission("authenticated", "success")
	s.logger.Info("RFI submitted",
		zap.String("rfi_id", rfi.ID),
		zap.String("user_id", userID),
		zap.Int("attachments", len(uploaded)),
	)

	return &domain.SubmissionResult{
		RFIID:       rfi.ID,
		UserID:      userID,
		CompanyID:   companyID,
		Attachments: uploaded,
	}, nil
}

func (s *SubmissionService) createCompany(ctx context.Context, form *domain.FormState) (*domain.Company, error) {
	return s.companies.CreateCompany(ctx, &domain.Company{
		ID:          uuid.NewString(),
		Name:        form.CompanyName,
		Website:     form.CompanyWebsite,
		Country:     form.Country,
		Industry:    form.Industry,
		Description: form.CompanyDescription,
	})
}

func (s *SubmissionService) createRFI(ctx context.Context, form *domain.FormState, companyID, userID string) (*domain.RFI, error) {
	return s.rfis.CreateRFI(ctx, &domain.RFI{
		ID:                 uuid.NewString(),
		CompanyID:          companyID,
		CreatedBy:          userID,
		Status:             domain.RFIStatusSubmitted,
		ProductName:        form.ProductName,
		Requirements:       form.Requirements,
		ProductDescription: form.ProductDescription,
		EstimatedVolume:    form.EstimatedVolume,
		VolumeUnit:         form.VolumeUnit,
		GuidancePrice:      form.GuidancePrice,
		Timeline:           form.Timeline,
		DestinationMarkets: form.DestinationMarkets,
		AIStatus:           domain.AIStatusPending,
	})
}

// uploadAttachments stores each file sequentially, best-effort: one bad
// file never blocks the rest, and failures only surface in logs and
// metrics. Returns the attachments that made it.
func (s *SubmissionService) uploadAttachments(ctx context.Context, rfiID, userID string, files []domain.FileUpload) []domain.Attachment {
	if len(files) == 0 {
		return nil
	}

	ctx, span := tracer.Start(ctx, "Submission.uploadAttachments")
	defer span.End()
	span.SetAttributes(attribute.Int("attachments.count", len(files)))

	var uploaded []domain.Attachment
	for _, f := range files {
		storagePath := path.Join(rfiID, uuid.NewString()+"-"+f.FileName)

		publicURL, err := s.storage.Upload(ctx, storagePath, bytes.NewReader(f.Content), f.Size, f.MimeType)
		if err != nil {
			s.logger.Warn("attachment upload failed, continuing",
				zap.String("rfi_id", rfiID),
				zap.String("file_name", f.FileName),
				zap.Error(err),
			)
			s.metrics.IncrUploadFailure()
			s.metrics.IncrExternalError("storage")
			continue
		}

		att, err := s.attachments.CreateAttachment(ctx, &domain.Attachment{
			ID:          uuid.NewString(),
			RFIID:       rfiID,
			FileName:    f.FileName,
			StoragePath: storagePath,
			SizeBytes:   f.Size,
			MimeType:    f.MimeType,
			PublicURL:   publicURL,
			UploadedBy:  userID,
		})
		if err != nil {
			s.logger.Warn("attachment record failed, continuing",
				zap.String("rfi_id", rfiID),
				zap.String("file_name", f.FileName),
				zap.Error(err),
			)
			s.metrics.IncrUploadFailure()
			continue
		}
		uploaded = append(uploaded, *att)
	}
	return uploaded
}

// sendGuestEmails dispatches the three guest-path emails concurrently.
// Each send is independently best-effort.
func (s *SubmissionService) sendGuestEmails(ctx context.Context, email, firstName string, rfi *domain.RFI, companyName string) {
	g := new(errgroup.Group)
	g.Go(func() error {
		s.sendEmail(ctx, "welcome", func(ctx context.Context) error {
			return s.mailer.SendWelcome(ctx, email, firstName)
		})
		return nil
	})
	g.Go(func() error {
		s.sendEmail(ctx, "rfi_confirmation", func(ctx context.Context) error {
			return s.mailer.SendRFIConfirmation(ctx, email, firstName, rfi)
		})
		return nil
	})
	g.Go(func() error {
		s.sendEmail(ctx, "rfi_notification", func(ctx context.Context) error {
			return s.mailer.SendRFINotification(ctx, rfi, companyName)
		})
		return nil
	})
	_ = g.Wait()
}

// sendEmail dispatches one transactional email best-effort with a
// detached timeout so a slow mail API cannot hold the response.
func (s *SubmissionService) sendEmail(ctx context.Context, template string, send func(context.Context) error) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := send(sendCtx); err != nil {
		s.logger.Warn("transactional email failed",
			zap.String("template", template),
			zap.Error(err),
		)
		s.metrics.IncrExternalError("resend")
	}
}
