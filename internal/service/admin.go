package service

import (
	"context"

	"github.com/makerlink/sourcing-bfa-go/internal/domain"
	"github.com/makerlink/sourcing-bfa-go/internal/infra/observability"
	"github.com/makerlink/sourcing-bfa-go/internal/port"

	"go.uber.org/zap"
)

// AdminService serves the staff dashboard reads. All routes behind it are
// role-gated in the router; the service itself assumes a staff caller.
type AdminService struct {
	rfis      port.RFIStore
	companies port.CompanyStore
	profiles  port.ProfileStore
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewAdminService creates the admin service.
func NewAdminService(rfis port.RFIStore, companies port.CompanyStore, profiles port.ProfileStore, metrics *observability.Metrics, logger *zap.Logger) *AdminService {
	return &AdminService{
		rfis:      rfis,
		companies: companies,
		profiles:  profiles,
		metrics:   metrics,
		logger:    logger,
	}
}

// ListRFIs returns RFIs across all companies with optional filters.
func (s *AdminService) ListRFIs(ctx context.Context, filter port.RFIFilter) ([]domain.RFI, error) {
	ctx, span := tracer.Start(ctx, "Admin.ListRFIs")
	defer span.End()

	return s.rfis.ListRFIs(ctx, filter)
}

// ListCompanies returns the company directory.
func (s *AdminService) ListCompanies(ctx context.Context, page, pageSize int) ([]domain.Company, error) {
	ctx, span := tracer.Start(ctx, "Admin.ListCompanies")
	defer span.End()

	return s.companies.ListCompanies(ctx, page, pageSize)
}

// ListProfiles returns the user directory.
func (s *AdminService) ListProfiles(ctx context.Context, page, pageSize int) ([]domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Admin.ListProfiles")
	defer span.End()

	return s.profiles.ListProfiles(ctx, page, pageSize)
}

// AIMetrics returns the completeness-check metrics snapshot.
func (s *AdminService) AIMetrics(ctx context.Context) *domain.AIMetrics {
	_, span := tracer.Start(ctx, "Admin.AIMetrics")
	defer span.End()

	return s.metrics.GetAISnapshot()
}
