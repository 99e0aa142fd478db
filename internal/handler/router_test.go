package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/makerlink/sourcing-bfa-go/internal/domain"
	"github.com/makerlink/sourcing-bfa-go/internal/handler"
	"github.com/makerlink/sourcing-bfa-go/internal/infra/cache"
	"github.com/makerlink/sourcing-bfa-go/internal/infra/draft"
	"github.com/makerlink/sourcing-bfa-go/internal/infra/observability"
	"github.com/makerlink/sourcing-bfa-go/internal/port"
	"github.com/makerlink/sourcing-bfa-go/internal/service"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const testSecret = "router-test-secret"

// stubBackend is an in-memory stand-in for every store and outbound port,
// so the router tests exercise real services end to end.
type stubBackend struct {
	mu        sync.Mutex
	profiles  map[string]*domain.Profile
	companies map[string]*domain.Company
	rfis      map[string]*domain.RFI
	messages  []*domain.Message
	checkErr  error
}

func newStubBackend() *stubBackend {
	return &stubBackend{
		profiles:  make(map[string]*domain.Profile),
		companies: make(map[string]*domain.Company),
		rfis:      make(map[string]*domain.RFI),
	}
}

func (b *stubBackend) GetProfile(_ context.Context, id string) (*domain.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.profiles[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: id}
	}
	copied := *p
	return &copied, nil
}

func (b *stubBackend) GetProfileByEmail(_ context.Context, email string) (*domain.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.profiles {
		if p.Email == email {
			copied := *p
			return &copied, nil
		}
	}
	return nil, nil
}

func (b *stubBackend) UpsertProfile(_ context.Context, p *domain.Profile) (*domain.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	copied := *p
	b.profiles[p.ID] = &copied
	return &copied, nil
}

func (b *stubBackend) LinkCompany(_ context.Context, profileID, companyID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.profiles[profileID]; ok {
		p.CompanyID = companyID
	}
	return nil
}

func (b *stubBackend) ListProfiles(_ context.Context, _, _ int) ([]domain.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Profile, 0, len(b.profiles))
	for _, p := range b.profiles {
		out = append(out, *p)
	}
	return out, nil
}

func (b *stubBackend) CreateCompany(_ context.Context, c *domain.Company) (*domain.Company, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	copied := *c
	b.companies[c.ID] = &copied
	return &copied, nil
}

func (b *stubBackend) GetCompany(_ context.Context, id string) (*domain.Company, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.companies[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "company", ID: id}
	}
	copied := *c
	return &copied, nil
}

func (b *stubBackend) ListCompanies(_ context.Context, _, _ int) ([]domain.Company, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Company, 0, len(b.companies))
	for _, c := range b.companies {
		out = append(out, *c)
	}
	return out, nil
}

func (b *stubBackend) CreateRFI(_ context.Context, r *domain.RFI) (*domain.RFI, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	copied := *r
	b.rfis[r.ID] = &copied
	return &copied, nil
}

func (b *stubBackend) GetRFI(_ context.Context, id string) (*domain.RFI, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.rfis[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "rfi", ID: id}
	}
	copied := *r
	return &copied, nil
}

func (b *stubBackend) ListRFIsByCompany(_ context.Context, companyID string) ([]domain.RFI, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []domain.RFI{}
	for _, r := range b.rfis {
		if r.CompanyID == companyID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (b *stubBackend) ListRFIs(_ context.Context, _ port.RFIFilter) ([]domain.RFI, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []domain.RFI{}
	for _, r := range b.rfis {
		out = append(out, *r)
	}
	return out, nil
}

func (b *stubBackend) UpdateRFI(_ context.Context, id string, updates map[string]any) (*domain.RFI, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.rfis[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "rfi", ID: id}
	}
	if s, ok := updates["status"].(string); ok {
		r.Status = domain.RFIStatus(s)
	}
	if s, ok := updates["ai_status"].(string); ok {
		r.AIStatus = domain.AIStatus(s)
	}
	copied := *r
	return &copied, nil
}

func (b *stubBackend) CreateAttachment(_ context.Context, a *domain.Attachment) (*domain.Attachment, error) {
	copied := *a
	return &copied, nil
}

func (b *stubBackend) ListAttachments(_ context.Context, _ string) ([]domain.Attachment, error) {
	return []domain.Attachment{}, nil
}

func (b *stubBackend) CreateMessage(_ context.Context, m *domain.Message) (*domain.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	copied := *m
	copied.CreatedAt = time.Now()
	b.messages = append(b.messages, &copied)
	return &copied, nil
}

func (b *stubBackend) ListMessages(_ context.Context, rfiID string, since time.Time) ([]domain.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []domain.Message{}
	for _, m := range b.messages {
		if m.RFIID == rfiID && (since.IsZero() || m.CreatedAt.After(since)) {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (b *stubBackend) Upload(_ context.Context, path string, _ io.Reader, _ int64, _ string) (string, error) {
	return "https://cdn.test/" + path, nil
}

func (b *stubBackend) SendWelcome(_ context.Context, _, _ string) error { return nil }

func (b *stubBackend) SendRFIConfirmation(_ context.Context, _, _ string, _ *domain.RFI) error {
	return nil
}

func (b *stubBackend) SendRFINotification(_ context.Context, _ *domain.RFI, _ string) error {
	return nil
}

func (b *stubBackend) Check(_ context.Context, req *domain.CompletenessRequest) (*domain.CompletenessReport, *domain.TokenUsage, error) {
	if b.checkErr != nil {
		return nil, nil, b.checkErr
	}
	return &domain.CompletenessReport{
		Status:    "complete",
		Issues:    []string{},
		Questions: []string{},
		Summary:   map[string]string{"Product": req.ProductName},
	}, &domain.TokenUsage{TotalTokens: 100}, nil
}

type testEnv struct {
	backend  *stubBackend
	identity *service.DevIdentity
	router   http.Handler
}

func newTestEnv(dataPing func(context.Context) error) *testEnv {
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	backend := newStubBackend()
	identity := service.NewDevIdentity(backend, testSecret, logger)
	validator := service.NewFormValidator()

	authSvc := service.NewAuthService(identity, backend, cache.New[domain.Role](time.Minute), testSecret, metrics, logger)
	wizardSvc := service.NewWizardService(draft.NewMemoryStore(time.Minute, logger), backend, validator, logger)
	submissionSvc := service.NewSubmissionService(
		backend, backend, backend, backend,
		identity, backend, backend, validator, metrics, logger,
	)
	rfiSvc := service.NewRFIService(backend, backend, backend, metrics, logger)
	messageSvc := service.NewMessageService(backend, backend, backend, logger)
	completenessSvc := service.NewCompletenessService(backend, cache.New[*domain.CompletenessReport](time.Minute), metrics, logger)
	adminSvc := service.NewAdminService(backend, backend, backend, metrics, logger)

	router := handler.NewRouter(handler.Services{
		Wizard:       wizardSvc,
		Submission:   submissionSvc,
		RFI:          rfiSvc,
		Message:      messageSvc,
		Completeness: completenessSvc,
		Admin:        adminSvc,
		Auth:         authSvc,
	}, metrics, dataPing, logger)

	return &testEnv{backend: backend, identity: identity, router: router}
}

// signup registers a dev user with the given role and returns a bearer token.
func (e *testEnv) signup(t *testing.T, email string, role domain.Role, companyID string) (userID, token string) {
	t.Helper()
	ctx := context.Background()

	userID, err := e.identity.CreateUser(ctx, email, "s3cret-pass")
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	e.backend.mu.Lock()
	p := e.backend.profiles[userID]
	p.Role = role
	p.CompanyID = companyID
	e.backend.mu.Unlock()

	pair, err := e.identity.SignIn(ctx, email, "s3cret-pass")
	if err != nil {
		t.Fatalf("sign-in failed: %v", err)
	}
	return userID, pair.AccessToken
}

func validForm() domain.FormState {
	return domain.FormState{
		CompanyName:        "Acme Trading GmbH",
		CompanyWebsite:     "https://acme-trading.example.com",
		Country:            "Germany",
		FirstName:          "Jane",
		LastName:           "Doe",
		WorkEmail:          "jane@acme-trading.example.com",
		Password:           "s3cret-pass",
		AcceptTerms:        true,
		ProductName:        "Insulated steel bottles",
		Requirements:       "Food-grade 304 stainless steel, leak-proof lid.",
		EstimatedVolume:    "5000",
		VolumeUnit:         "units",
		Timeline:           "Q4 2026",
		DestinationMarkets: []string{"EU"},
		RFIConfirmed:       true,
	}
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestHealthz(t *testing.T) {
	env := newTestEnv(nil)

	rec := doJSON(t, env.router, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHealthz_DegradedWhenPingFails(t *testing.T) {
	env := newTestEnv(func(context.Context) error { return errors.New("connection refused") })

	rec := doJSON(t, env.router, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var health domain.HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Status != "degraded" {
		t.Errorf("expected degraded, got %s", health.Status)
	}
}

func TestReadyz(t *testing.T) {
	env := newTestEnv(nil)

	rec := doJSON(t, env.router, http.MethodGet, "/readyz", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(nil)

	rec := doJSON(t, env.router, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestWizardSession_GuestMintsDeviceCookie(t *testing.T) {
	env := newTestEnv(nil)

	rec := doJSON(t, env.router, http.MethodPost, "/v1/wizard/session", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d. Body: %s", rec.Code, rec.Body.String())
	}

	var sess domain.WizardSession
	if err := json.NewDecoder(rec.Body).Decode(&sess); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sess.Variant != domain.VariantGuest {
		t.Errorf("expected guest variant, got %s", sess.Variant)
	}
	if len(sess.Steps) != 6 {
		t.Errorf("expected 6 steps, got %d", len(sess.Steps))
	}

	var found bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == "ml_device_key" && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("expected a minted device-key cookie")
	}
}

func TestWizardSession_AuthenticatedVariant(t *testing.T) {
	env := newTestEnv(nil)
	_, token := env.signup(t, "buyer@example.com", domain.RoleBuyer, "comp-1")

	rec := doJSON(t, env.router, http.MethodPost, "/v1/wizard/session", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d. Body: %s", rec.Code, rec.Body.String())
	}

	var sess domain.WizardSession
	if err := json.NewDecoder(rec.Body).Decode(&sess); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sess.Variant != domain.VariantAuthCompany {
		t.Errorf("expected authenticated_with_company, got %s", sess.Variant)
	}
}

func TestOptionalAuth_InvalidTokenRejected(t *testing.T) {
	env := newTestEnv(nil)

	rec := doJSON(t, env.router, http.MethodPost, "/v1/wizard/session", "garbage-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("a presented-but-invalid token must be rejected, got %d", rec.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(nil)

	for _, path := range []string{"/v1/rfis", "/v1/auth/me", "/v1/admin/rfis"} {
		rec := doJSON(t, env.router, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401 without token, got %d", path, rec.Code)
		}
	}
}

func TestAdminRoutes_BuyerForbidden(t *testing.T) {
	env := newTestEnv(nil)
	_, token := env.signup(t, "buyer@example.com", domain.RoleBuyer, "")

	rec := doJSON(t, env.router, http.MethodGet, "/v1/admin/rfis", token, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for a buyer, got %d", rec.Code)
	}
}

func TestAdminRoutes_StaffAllowed(t *testing.T) {
	env := newTestEnv(nil)
	_, token := env.signup(t, "admin@example.com", domain.RoleAdmin, "")

	rec := doJSON(t, env.router, http.MethodGet, "/v1/admin/rfis", token, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for staff, got %d. Body: %s", rec.Code, rec.Body.String())
	}
}

func TestGuestSubmission_EndToEnd(t *testing.T) {
	env := newTestEnv(nil)

	rec := doJSON(t, env.router, http.MethodPost, "/v1/rfi/submissions", "",
		map[string]any{"form": validForm()})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d. Body: %s", rec.Code, rec.Body.String())
	}

	var result domain.SubmissionResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.RFIID == "" || result.UserID == "" || result.CompanyID == "" {
		t.Errorf("incomplete result %+v", result)
	}

	env.backend.mu.Lock()
	defer env.backend.mu.Unlock()
	if len(env.backend.rfis) != 1 {
		t.Errorf("expected exactly one RFI, got %d", len(env.backend.rfis))
	}
}

func TestGuestSubmission_DuplicateEmailIs400(t *testing.T) {
	env := newTestEnv(nil)
	env.signup(t, "jane@acme-trading.example.com", domain.RoleBuyer, "")

	rec := doJSON(t, env.router, http.MethodPost, "/v1/rfi/submissions", "",
		map[string]any{"form": validForm()})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a duplicate email, got %d. Body: %s", rec.Code, rec.Body.String())
	}

	env.backend.mu.Lock()
	defer env.backend.mu.Unlock()
	if len(env.backend.rfis) != 0 {
		t.Error("duplicate signup must not create an RFI")
	}
}

func TestGuestSubmission_ValidationErrorsCarryFields(t *testing.T) {
	env := newTestEnv(nil)
	form := validForm()
	form.WorkEmail = "not-an-email"

	rec := doJSON(t, env.router, http.MethodPost, "/v1/rfi/submissions", "",
		map[string]any{"form": form})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var resp struct {
		Error  string              `json:"error"`
		Fields []domain.FieldError `json:"fields"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Fields) == 0 {
		t.Fatal("expected per-field errors")
	}
	if resp.Fields[0].Field == "" || resp.Fields[0].Message == "" {
		t.Errorf("expected field and message, got %+v", resp.Fields[0])
	}
}

func TestAuthenticatedSubmission_UsesLinkedCompany(t *testing.T) {
	env := newTestEnv(nil)
	userID, token := env.signup(t, "buyer@example.com", domain.RoleBuyer, "comp-1")
	env.backend.companies["comp-1"] = &domain.Company{ID: "comp-1", Name: "Existing GmbH"}

	form := validForm()
	form.Password = ""
	form.AcceptTerms = false

	rec := doJSON(t, env.router, http.MethodPost, "/v1/rfi/submissions", token,
		map[string]any{"form": form})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d. Body: %s", rec.Code, rec.Body.String())
	}

	var result domain.SubmissionResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.UserID != userID || result.CompanyID != "comp-1" {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestCompleteness_EmptyDraftRejected(t *testing.T) {
	env := newTestEnv(nil)

	rec := doJSON(t, env.router, http.MethodPost, "/v1/rfi/completeness", "",
		domain.CompletenessRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for an empty draft, got %d", rec.Code)
	}
}

func TestCompleteness_FallbackOnCheckerFailure(t *testing.T) {
	env := newTestEnv(nil)
	env.backend.checkErr = errors.New("model down")

	rec := doJSON(t, env.router, http.MethodPost, "/v1/rfi/completeness", "",
		domain.CompletenessRequest{ProductName: "Bottles", Requirements: "304 stainless steel."})
	if rec.Code != http.StatusOK {
		t.Fatalf("a failing checker must not fail the request, got %d", rec.Code)
	}

	var report domain.CompletenessReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !report.Fallback || report.Status != "unavailable" {
		t.Errorf("expected fallback report, got %+v", report)
	}
}

func TestMessages_PostAndPoll(t *testing.T) {
	env := newTestEnv(nil)
	_, token := env.signup(t, "buyer@example.com", domain.RoleBuyer, "comp-1")
	rfiID := uuid.NewString()
	env.backend.rfis[rfiID] = &domain.RFI{ID: rfiID, CompanyID: "comp-1", Status: domain.RFIStatusSubmitted}

	rec := doJSON(t, env.router, http.MethodPost, "/v1/rfis/"+rfiID+"/messages", token,
		map[string]string{"text": "Can you narrow the timeline?"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d. Body: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, env.router, http.MethodGet, "/v1/rfis/"+rfiID+"/messages", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d. Body: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Messages []domain.Message `json:"messages"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(resp.Messages))
	}

	// A since cursor after the message hides it from the poll.
	since := time.Now().Add(time.Minute).UTC().Format(time.RFC3339)
	rec = doJSON(t, env.router, http.MethodGet, "/v1/rfis/"+rfiID+"/messages?since="+since, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp.Messages = nil
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Messages) != 0 {
		t.Errorf("expected no messages after the cursor, got %d", len(resp.Messages))
	}
}

func TestRFIRead_ForbiddenForOtherCompany(t *testing.T) {
	env := newTestEnv(nil)
	_, token := env.signup(t, "other@example.com", domain.RoleBuyer, "comp-other")
	rfiID := uuid.NewString()
	env.backend.rfis[rfiID] = &domain.RFI{ID: rfiID, CompanyID: "comp-1"}

	rec := doJSON(t, env.router, http.MethodGet, "/v1/rfis/"+rfiID, token, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestAdminStatus_IllegalTransitionIs409(t *testing.T) {
	env := newTestEnv(nil)
	_, token := env.signup(t, "admin@example.com", domain.RoleAdmin, "")
	rfiID := uuid.NewString()
	env.backend.rfis[rfiID] = &domain.RFI{ID: rfiID, Status: domain.RFIStatusSubmitted}

	rec := doJSON(t, env.router, http.MethodPost, "/v1/admin/rfis/"+rfiID+"/status", token,
		map[string]string{"status": "sent_to_suppliers"})
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for an illegal transition, got %d. Body: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, env.router, http.MethodPost, "/v1/admin/rfis/"+rfiID+"/status", token,
		map[string]string{"status": "in_review"})
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for a legal transition, got %d. Body: %s", rec.Code, rec.Body.String())
	}
}
