package supabase

import (
	"context"
	"fmt"
	"strings"

	"github.com/makerlink/sourcing-bfa-go/internal/domain"
	"github.com/makerlink/sourcing-bfa-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// RFIStore implementation — rfis table
// ============================================================

// CreateRFI inserts a new RFI row and returns the stored representation.
func (c *Client) CreateRFI(ctx context.Context, r *domain.RFI) (*domain.RFI, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateRFI")
	defer span.End()
	span.SetAttributes(
		attribute.String("rfi.id", r.ID),
		attribute.String("rfi.company_id", r.CompanyID),
	)

	body, err := c.doPost(ctx, "rfis", map[string]any{
		"id":                  r.ID,
		"company_id":          r.CompanyID,
		"created_by":          r.CreatedBy,
		"status":              string(r.Status),
		"product_name":        r.ProductName,
		"requirements":        r.Requirements,
		"product_description": r.ProductDescription,
		"estimated_volume":    r.EstimatedVolume,
		"volume_unit":         r.VolumeUnit,
		"guidance_price":      r.GuidancePrice,
		"timeline":            r.Timeline,
		"destination_markets": r.DestinationMarkets,
		"ai_status":           string(r.AIStatus),
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/rfis", Err: err}
	}
	return decodeFirst[domain.RFI](body)
}

// GetRFI fetches an RFI by id.
func (c *Client) GetRFI(ctx context.Context, id string) (*domain.RFI, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetRFI")
	defer span.End()
	span.SetAttributes(attribute.String("rfi.id", id))

	rfi, err := getOne[domain.RFI](ctx, c, fmt.Sprintf("rfis?id=eq.%s&limit=1", q(id)))
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/rfis", Err: err}
	}
	if rfi == nil {
		return nil, &domain.ErrNotFound{Resource: "rfi", ID: id}
	}
	return rfi, nil
}

// ListRFIsByCompany returns the buyer's RFIs, newest first.
func (c *Client) ListRFIsByCompany(ctx context.Context, companyID string) ([]domain.RFI, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListRFIsByCompany")
	defer span.End()
	span.SetAttributes(attribute.String("company.id", companyID))

	path := fmt.Sprintf("rfis?company_id=eq.%s&order=created_at.desc", q(companyID))
	return getMany[domain.RFI](ctx, c, path)
}

// ListRFIs is the admin list with optional filters and pagination.
func (c *Client) ListRFIs(ctx context.Context, filter port.RFIFilter) ([]domain.RFI, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListRFIs")
	defer span.End()

	conds := []string{}
	if filter.Status != "" {
		conds = append(conds, fmt.Sprintf("status=eq.%s", q(string(filter.Status))))
	}
	if filter.AIStatus != "" {
		conds = append(conds, fmt.Sprintf("ai_status=eq.%s", q(string(filter.AIStatus))))
	}
	if filter.CompanyID != "" {
		conds = append(conds, fmt.Sprintf("company_id=eq.%s", q(filter.CompanyID)))
	}

	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	conds = append(conds,
		"order=created_at.desc",
		fmt.Sprintf("offset=%d", (page-1)*pageSize),
		fmt.Sprintf("limit=%d", pageSize),
	)

	return getMany[domain.RFI](ctx, c, "rfis?"+strings.Join(conds, "&"))
}

// UpdateRFI patches the given columns and returns the updated row.
func (c *Client) UpdateRFI(ctx context.Context, id string, updates map[string]any) (*domain.RFI, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateRFI")
	defer span.End()
	span.SetAttributes(attribute.String("rfi.id", id))

	body, err := c.doPatch(ctx, fmt.Sprintf("rfis?id=eq.%s", q(id)), updates)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/rfis", Err: err}
	}
	rfi, err := decodeFirst[domain.RFI](body)
	if err != nil {
		return nil, &domain.ErrNotFound{Resource: "rfi", ID: id}
	}
	return rfi, nil
}
