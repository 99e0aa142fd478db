package supabase

import (
	"context"
	"fmt"

	"github.com/makerlink/sourcing-bfa-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// CompanyStore implementation — companies table
// ============================================================

// CreateCompany inserts a company row. The caller supplies the id.
func (c *Client) CreateCompany(ctx context.Context, company *domain.Company) (*domain.Company, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateCompany")
	defer span.End()

	body, err := c.doPost(ctx, "companies", map[string]any{
		"id":          company.ID,
		"name":        company.Name,
		"website":     company.Website,
		"country":     company.Country,
		"industry":    company.Industry,
		"description": company.Description,
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/companies", Err: err}
	}
	return decodeFirst[domain.Company](body)
}

// GetCompany fetches a company by id.
func (c *Client) GetCompany(ctx context.Context, id string) (*domain.Company, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetCompany")
	defer span.End()
	span.SetAttributes(attribute.String("company.id", id))

	company, err := getOne[domain.Company](ctx, c, fmt.Sprintf("companies?id=eq.%s&limit=1", q(id)))
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/companies", Err: err}
	}
	if company == nil {
		return nil, &domain.ErrNotFound{Resource: "company", ID: id}
	}
	return company, nil
}

// ListCompanies is the admin directory read, newest first.
func (c *Client) ListCompanies(ctx context.Context, page, pageSize int) ([]domain.Company, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListCompanies")
	defer span.End()

	path := fmt.Sprintf("companies?order=created_at.desc&offset=%d&limit=%d", (page-1)*pageSize, pageSize)
	return getMany[domain.Company](ctx, c, path)
}
