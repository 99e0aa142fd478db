package service_test

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/makerlink/sourcing-bfa-go/internal/domain"
	"github.com/makerlink/sourcing-bfa-go/internal/port"
)

// --- Mocks ---

type mockProfileStore struct {
	mu       sync.Mutex
	profiles map[string]*domain.Profile
	upserted []*domain.Profile
	linked   map[string]string
	getCalls int
	err      error
}

func newMockProfileStore(profiles ...*domain.Profile) *mockProfileStore {
	m := &mockProfileStore{
		profiles: make(map[string]*domain.Profile),
		linked:   make(map[string]string),
	}
	for _, p := range profiles {
		m.profiles[p.ID] = p
	}
	return m
}

func (m *mockProfileStore) GetProfile(_ context.Context, id string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.profiles[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: id}
	}
	copied := *p
	return &copied, nil
}

func (m *mockProfileStore) GetProfileByEmail(_ context.Context, email string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, p := range m.profiles {
		if p.Email == email {
			copied := *p
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockProfileStore) UpsertProfile(_ context.Context, p *domain.Profile) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	copied := *p
	m.profiles[p.ID] = &copied
	m.upserted = append(m.upserted, &copied)
	return &copied, nil
}

func (m *mockProfileStore) LinkCompany(_ context.Context, profileID, companyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.linked[profileID] = companyID
	if p, ok := m.profiles[profileID]; ok {
		p.CompanyID = companyID
	}
	return nil
}

func (m *mockProfileStore) ListProfiles(_ context.Context, _, _ int) ([]domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, *p)
	}
	return out, nil
}

type mockCompanyStore struct {
	mu        sync.Mutex
	companies map[string]*domain.Company
	created   []*domain.Company
	err       error
}

func newMockCompanyStore(companies ...*domain.Company) *mockCompanyStore {
	m := &mockCompanyStore{companies: make(map[string]*domain.Company)}
	for _, c := range companies {
		m.companies[c.ID] = c
	}
	return m
}

func (m *mockCompanyStore) CreateCompany(_ context.Context, c *domain.Company) (*domain.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	copied := *c
	m.companies[c.ID] = &copied
	m.created = append(m.created, &copied)
	return &copied, nil
}

func (m *mockCompanyStore) GetCompany(_ context.Context, id string) (*domain.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.companies[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "company", ID: id}
	}
	copied := *c
	return &copied, nil
}

func (m *mockCompanyStore) ListCompanies(_ context.Context, _, _ int) ([]domain.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Company, 0, len(m.companies))
	for _, c := range m.companies {
		out = append(out, *c)
	}
	return out, nil
}

type mockRFIStore struct {
	mu      sync.Mutex
	rfis    map[string]*domain.RFI
	created []*domain.RFI
	updates map[string]map[string]any
	err     error
}

func newMockRFIStore(rfis ...*domain.RFI) *mockRFIStore {
	m := &mockRFIStore{
		rfis:    make(map[string]*domain.RFI),
		updates: make(map[string]map[string]any),
	}
	for _, r := range rfis {
		m.rfis[r.ID] = r
	}
	return m
}

func (m *mockRFIStore) CreateRFI(_ context.Context, r *domain.RFI) (*domain.RFI, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	copied := *r
	m.rfis[r.ID] = &copied
	m.created = append(m.created, &copied)
	return &copied, nil
}

func (m *mockRFIStore) GetRFI(_ context.Context, id string) (*domain.RFI, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rfis[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "rfi", ID: id}
	}
	copied := *r
	return &copied, nil
}

func (m *mockRFIStore) ListRFIsByCompany(_ context.Context, companyID string) ([]domain.RFI, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.RFI
	for _, r := range m.rfis {
		if r.CompanyID == companyID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockRFIStore) ListRFIs(_ context.Context, _ port.RFIFilter) ([]domain.RFI, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.RFI, 0, len(m.rfis))
	for _, r := range m.rfis {
		out = append(out, *r)
	}
	return out, nil
}

func (m *mockRFIStore) UpdateRFI(_ context.Context, id string, updates map[string]any) (*domain.RFI, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rfis[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "rfi", ID: id}
	}
	m.updates[id] = updates
	if s, ok := updates["status"].(string); ok {
		r.Status = domain.RFIStatus(s)
	}
	if s, ok := updates["ai_status"].(string); ok {
		r.AIStatus = domain.AIStatus(s)
	}
	copied := *r
	return &copied, nil
}

type mockAttachmentStore struct {
	mu      sync.Mutex
	created []*domain.Attachment
	listed  []domain.Attachment
	err     error
}

func (m *mockAttachmentStore) CreateAttachment(_ context.Context, a *domain.Attachment) (*domain.Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	copied := *a
	m.created = append(m.created, &copied)
	return &copied, nil
}

func (m *mockAttachmentStore) ListAttachments(_ context.Context, _ string) ([]domain.Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.listed, nil
}

type mockMessageStore struct {
	mu       sync.Mutex
	messages []*domain.Message
	since    time.Time
	err      error
}

func (m *mockMessageStore) CreateMessage(_ context.Context, msg *domain.Message) (*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	copied := *msg
	copied.CreatedAt = time.Now()
	m.messages = append(m.messages, &copied)
	return &copied, nil
}

func (m *mockMessageStore) ListMessages(_ context.Context, rfiID string, since time.Time) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.since = since
	var out []domain.Message
	for _, msg := range m.messages {
		if msg.RFIID == rfiID && (since.IsZero() || msg.CreatedAt.After(since)) {
			out = append(out, *msg)
		}
	}
	return out, nil
}

type mockDraftStore struct {
	adoptErr error
	saveErr  error
	clearErr error
	cleared  int
}

func (m *mockDraftStore) AdoptIfOwnerMatches(_ context.Context, _, _ string) (*domain.Draft, error) {
	return nil, m.adoptErr
}

func (m *mockDraftStore) Save(_ context.Context, _ string, _ *domain.Draft) error {
	return m.saveErr
}

func (m *mockDraftStore) Clear(_ context.Context, _ string) error {
	m.cleared++
	return m.clearErr
}

type mockIdentity struct {
	userID    string
	createErr error
	created   int
	pair      *port.TokenPair
	signInErr error
}

func (m *mockIdentity) CreateUser(_ context.Context, _, _ string) (string, error) {
	if m.createErr != nil {
		return "", m.createErr
	}
	m.created++
	return m.userID, nil
}

func (m *mockIdentity) SignIn(_ context.Context, _, _ string) (*port.TokenPair, error) {
	return m.pair, m.signInErr
}

func (m *mockIdentity) RefreshSession(_ context.Context, _ string) (*port.TokenPair, error) {
	return m.pair, m.signInErr
}

type mockStorage struct {
	mu      sync.Mutex
	uploads []string
	failOn  string // paths containing this substring fail
	err     error
}

func (m *mockStorage) Upload(_ context.Context, path string, _ io.Reader, _ int64, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	if m.failOn != "" && strings.Contains(path, m.failOn) {
		return "", &domain.ErrExternalService{Service: "supabase/storage", Err: io.ErrUnexpectedEOF}
	}
	m.uploads = append(m.uploads, path)
	return "https://cdn.test/" + path, nil
}

type mockMailer struct {
	mu            sync.Mutex
	welcomes      int
	confirmations int
	notifications int
	err           error
}

func (m *mockMailer) SendWelcome(_ context.Context, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.welcomes++
	return m.err
}

func (m *mockMailer) SendRFIConfirmation(_ context.Context, _, _ string, _ *domain.RFI) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmations++
	return m.err
}

func (m *mockMailer) SendRFINotification(_ context.Context, _ *domain.RFI, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications++
	return m.err
}

type mockChecker struct {
	report *domain.CompletenessReport
	usage  *domain.TokenUsage
	err    error
	calls  int
}

func (m *mockChecker) Check(_ context.Context, _ *domain.CompletenessRequest) (*domain.CompletenessReport, *domain.TokenUsage, error) {
	m.calls++
	if m.err != nil {
		return nil, nil, m.err
	}
	return m.report, m.usage, nil
}

// --- Fixtures ---

func validGuestForm() domain.FormState {
	return domain.FormState{
		CompanyName:        "Acme Trading GmbH",
		CompanyWebsite:     "https://acme-trading.example.com",
		Country:            "Germany",
		Industry:           "Consumer Goods",
		FirstName:          "Jane",
		LastName:           "Doe",
		WorkEmail:          "jane@acme-trading.example.com",
		Phone:              "+4915112345678",
		Password:           "s3cret-pass",
		AcceptTerms:        true,
		ProductName:        "Insulated steel bottles",
		ProductDescription: "Double-walled, 500ml, powder coated.",
		Requirements:       "Food-grade 304 stainless steel, leak-proof lid, custom logo print.",
		EstimatedVolume:    "5000",
		VolumeUnit:         "units",
		GuidancePrice:      "4.50 USD",
		Timeline:           "Q4 2026",
		DestinationMarkets: []string{"EU", "UK"},
		RFIConfirmed:       true,
	}
}
