package supabase

import (
	"context"
	"errors"
	"fmt"

	"github.com/makerlink/sourcing-bfa-go/internal/domain"
	"github.com/makerlink/sourcing-bfa-go/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// ProfileStore implementation — profiles table via PostgREST
// ============================================================

// GetProfile fetches a profile by principal id. This is the hot path (auth
// middleware resolves roles through it), so it runs under breaker + retry.
func (c *Client) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetProfile")
	defer span.End()
	span.SetAttributes(attribute.String("profile.id", id))

	var profile *domain.Profile

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			p, err := getOne[domain.Profile](ctx, c, fmt.Sprintf("profiles?id=eq.%s&limit=1", q(id)))
			if err != nil {
				return err
			}
			if p == nil {
				return &domain.ErrNotFound{Resource: "profile", ID: id}
			}
			profile = p
			return nil
		})
	})
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, &domain.ErrExternalService{Service: "supabase/profiles", Err: err}
	}

	return profile, nil
}

// GetProfileByEmail returns nil, nil when no profile matches — absence is
// not an error for signup and dev-auth lookups.
func (c *Client) GetProfileByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetProfileByEmail")
	defer span.End()

	return getOne[domain.Profile](ctx, c, fmt.Sprintf("profiles?email=eq.%s&limit=1", q(email)))
}

// UpsertProfile creates or merges a profile row keyed by id.
func (c *Client) UpsertProfile(ctx context.Context, p *domain.Profile) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpsertProfile")
	defer span.End()

	data := map[string]any{
		"id":             p.ID,
		"email":          p.Email,
		"full_name":      p.FullName,
		"first_name":     p.FirstName,
		"last_name":      p.LastName,
		"phone":          p.Phone,
		"role":           string(p.Role),
		"terms_accepted": p.TermsAccepted,
	}
	if p.CompanyID != "" {
		data["company_id"] = p.CompanyID
	}

	body, err := c.doUpsert(ctx, "profiles", data)
	if err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}
	return decodeFirst[domain.Profile](body)
}

// LinkCompany points an existing profile at a company.
func (c *Client) LinkCompany(ctx context.Context, profileID, companyID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.LinkCompany")
	defer span.End()

	path := fmt.Sprintf("profiles?id=eq.%s", q(profileID))
	_, err := c.doPatch(ctx, path, map[string]any{"company_id": companyID})
	return err
}

// ListProfiles is the admin directory read.
func (c *Client) ListProfiles(ctx context.Context, page, pageSize int) ([]domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListProfiles")
	defer span.End()

	path := fmt.Sprintf("profiles?order=created_at.desc&offset=%d&limit=%d", (page-1)*pageSize, pageSize)
	return getMany[domain.Profile](ctx, c, path)
}
