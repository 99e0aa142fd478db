// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"io"
	"time"

	"github.com/makerlink/sourcing-bfa-go/internal/domain"
)

// ProfileStore reads and writes supplementary profile fields. The identity
// itself is owned by the external auth provider.
type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (*domain.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*domain.Profile, error)
	UpsertProfile(ctx context.Context, p *domain.Profile) (*domain.Profile, error)
	LinkCompany(ctx context.Context, profileID, companyID string) error
	ListProfiles(ctx context.Context, page, pageSize int) ([]domain.Profile, error)
}

// CompanyStore persists companies. Shared by reference, never owned.
type CompanyStore interface {
	CreateCompany(ctx context.Context, c *domain.Company) (*domain.Company, error)
	GetCompany(ctx context.Context, id string) (*domain.Company, error)
	ListCompanies(ctx context.Context, page, pageSize int) ([]domain.Company, error)
}

// RFIFilter narrows admin list reads.
type RFIFilter struct {
	Status    domain.RFIStatus
	AIStatus  domain.AIStatus
	CompanyID string
	Page      int
	PageSize  int
}

// RFIStore persists RFIs.
type RFIStore interface {
	CreateRFI(ctx context.Context, r *domain.RFI) (*domain.RFI, error)
	GetRFI(ctx context.Context, id string) (*domain.RFI, error)
	ListRFIsByCompany(ctx context.Context, companyID string) ([]domain.RFI, error)
	ListRFIs(ctx context.Context, filter RFIFilter) ([]domain.RFI, error)
	UpdateRFI(ctx context.Context, id string, updates map[string]any) (*domain.RFI, error)
}

// AttachmentStore persists attachment records (metadata only; bytes live
// in object storage). Additive — deletion happens via RFI cascade.
type AttachmentStore interface {
	CreateAttachment(ctx context.Context, a *domain.Attachment) (*domain.Attachment, error)
	ListAttachments(ctx context.Context, rfiID string) ([]domain.Attachment, error)
}

// MessageStore persists the append-only chat log of an RFI. The since
// cursor serves the client's fixed-interval poll.
type MessageStore interface {
	CreateMessage(ctx context.Context, m *domain.Message) (*domain.Message, error)
	ListMessages(ctx context.Context, rfiID string, since time.Time) ([]domain.Message, error)
}

// DraftStore persists in-progress wizard state keyed by a device key.
// AdoptIfOwnerMatches returns the draft only when its owner tag matches
// the current principal; a mismatch discards the draft entirely (privacy
// guard — a different user on the same device must never see it).
type DraftStore interface {
	AdoptIfOwnerMatches(ctx context.Context, deviceKey, ownerID string) (*domain.Draft, error)
	Save(ctx context.Context, deviceKey string, d *domain.Draft) error
	Clear(ctx context.Context, deviceKey string) error
}

// IdentityProvider creates and authenticates principals against the
// external auth service (GoTrue) or the dev fallback.
type IdentityProvider interface {
	// CreateUser registers a new identity under elevated privilege.
	// Returns ErrDuplicateAccount when the email is taken and
	// ErrConfiguration when the elevated credential is missing.
	CreateUser(ctx context.Context, email, password string) (userID string, err error)
	// SignIn exchanges credentials for tokens.
	SignIn(ctx context.Context, email, password string) (*TokenPair, error)
	// RefreshSession rotates a refresh token.
	RefreshSession(ctx context.Context, refreshToken string) (*TokenPair, error)
}

// TokenPair is the result of a successful sign-in or refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"`
	UserID       string `json:"userId"`
}

// FileStorage uploads attachment bytes and yields a public URL.
type FileStorage interface {
	Upload(ctx context.Context, path string, content io.Reader, size int64, contentType string) (publicURL string, err error)
}

// Mailer dispatches transactional email. All sends are best-effort: the
// caller logs failures and never aborts on them.
type Mailer interface {
	SendWelcome(ctx context.Context, to, name string) error
	SendRFIConfirmation(ctx context.Context, to, name string, rfi *domain.RFI) error
	SendRFINotification(ctx context.Context, rfi *domain.RFI, companyName string) error
}

// CompletenessChecker invokes the external text-analysis endpoint.
type CompletenessChecker interface {
	Check(ctx context.Context, req *domain.CompletenessRequest) (*domain.CompletenessReport, *domain.TokenUsage, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
