// Package domain defines the core entities of the sourcing marketplace:
// profiles, companies, RFIs (Requests for Information), attachments and
// the buyer/agent message log. JSON tags match the Supabase column names.
package domain

import "time"

// ============================================================
// Roles & enums
// ============================================================

// Role gates access to the admin/dashboard surface.
type Role string

const (
	RoleBuyer Role = "buyer"
	RoleAdmin Role = "admin"
	RoleAgent Role = "agent"
)

// IsStaff reports whether the role may access admin views.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleAgent
}

// RFIStatus is the staff-driven lifecycle of an RFI.
type RFIStatus string

const (
	RFIStatusDraft           RFIStatus = "draft"
	RFIStatusSubmitted       RFIStatus = "submitted"
	RFIStatusInReview        RFIStatus = "in_review"
	RFIStatusSentToSuppliers RFIStatus = "sent_to_suppliers"
	RFIStatusClosed          RFIStatus = "closed"
)

// statusTransitions lists the allowed forward moves for staff.
var statusTransitions = map[RFIStatus][]RFIStatus{
	RFIStatusSubmitted:       {RFIStatusInReview, RFIStatusClosed},
	RFIStatusInReview:        {RFIStatusSentToSuppliers, RFIStatusClosed},
	RFIStatusSentToSuppliers: {RFIStatusClosed},
}

// CanTransitionTo reports whether a staff status change is allowed.
func (s RFIStatus) CanTransitionTo(next RFIStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AIStatus tracks the completeness check independently of RFIStatus.
type AIStatus string

const (
	AIStatusPending            AIStatus = "pending"
	AIStatusChecked            AIStatus = "checked"
	AIStatusNeedsClarification AIStatus = "needs_clarification"
)

// ============================================================
// Entities
// ============================================================

// Profile is the identity record linked 1:1 to an authenticated principal.
// PasswordHash is only populated when the dev-auth fallback is active.
type Profile struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	FullName      string    `json:"full_name"`
	FirstName     string    `json:"first_name,omitempty"`
	LastName      string    `json:"last_name,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Role          Role      `json:"role"`
	CompanyID     string    `json:"company_id,omitempty"`
	TermsAccepted bool      `json:"terms_accepted"`
	PasswordHash  string    `json:"password_hash,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Company is shared by many profiles and many RFIs (reference, not ownership).
type Company struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Website     string    `json:"website,omitempty"`
	Country     string    `json:"country,omitempty"`
	Industry    string    `json:"industry,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// RFI is the central work item: a buyer's structured sourcing brief.
// It exclusively owns its attachments and messages (cascade on delete).
type RFI struct {
	ID                 string    `json:"id"`
	CompanyID          string    `json:"company_id"`
	CreatedBy          string    `json:"created_by"`
	Status             RFIStatus `json:"status"`
	ProductName        string    `json:"product_name"`
	Requirements       string    `json:"requirements"`
	ProductDescription string    `json:"product_description,omitempty"`
	EstimatedVolume    string    `json:"estimated_volume,omitempty"`
	VolumeUnit         string    `json:"volume_unit,omitempty"`
	GuidancePrice      string    `json:"guidance_price,omitempty"`
	Timeline           string    `json:"timeline,omitempty"`
	DestinationMarkets []string  `json:"destination_markets"`
	AIStatus           AIStatus  `json:"ai_status"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Attachment belongs to exactly one RFI. Purely additive — no update flow.
type Attachment struct {
	ID          string    `json:"id"`
	RFIID       string    `json:"rfi_id"`
	FileName    string    `json:"file_name"`
	StoragePath string    `json:"storage_path"`
	SizeBytes   int64     `json:"size_bytes"`
	MimeType    string    `json:"mime_type"`
	PublicURL   string    `json:"public_url"`
	UploadedBy  string    `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// Message is one entry in the append-only buyer/agent chat log of an RFI.
type Message struct {
	ID        string    `json:"id"`
	RFIID     string    `json:"rfi_id"`
	SenderID  string    `json:"sender_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// ============================================================
// Submission
// ============================================================

// FileUpload is a locally selected file handed to the submission
// orchestrator. Content is fully buffered — wizard uploads are small.
type FileUpload struct {
	FileName string
	MimeType string
	Size     int64
	Content  []byte
}

// SubmissionResult is returned by both submission branches.
type SubmissionResult struct {
	RFIID       string       `json:"rfiId"`
	UserID      string       `json:"userId"`
	CompanyID   string       `json:"companyId"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// RFIUpdate is the buyer-editable field subset. Nil pointers mean
// "leave unchanged".
type RFIUpdate struct {
	Requirements       *string   `json:"requirements,omitempty"`
	ProductDescription *string   `json:"productDescription,omitempty"`
	EstimatedVolume    *string   `json:"estimatedVolume,omitempty"`
	VolumeUnit         *string   `json:"volumeUnit,omitempty"`
	GuidancePrice      *string   `json:"guidancePrice,omitempty"`
	Timeline           *string   `json:"timeline,omitempty"`
	DestinationMarkets *[]string `json:"destinationMarkets,omitempty"`
}

// ============================================================
// AI completeness check
// ============================================================

// CompletenessRequest carries the structured RFI fields collected so far.
// Both the product-overview and review steps send this same shape.
type CompletenessRequest struct {
	ProductName        string   `json:"productName"`
	Requirements       string   `json:"requirements"`
	ProductDescription string   `json:"productDescription,omitempty"`
	EstimatedVolume    string   `json:"estimatedVolume,omitempty"`
	VolumeUnit         string   `json:"volumeUnit,omitempty"`
	GuidancePrice      string   `json:"guidancePrice,omitempty"`
	Timeline           string   `json:"timeline,omitempty"`
	DestinationMarkets []string `json:"destinationMarkets,omitempty"`
}

// CompletenessReport is the unified advisory response. Summary sections
// carry "Not specified" when the buyer left them empty.
type CompletenessReport struct {
	Status    string            `json:"status"` // "complete" | "needs_clarification" | "unavailable"
	Issues    []string          `json:"issues"`
	Questions []string          `json:"questions"`
	Summary   map[string]string `json:"summary"`
	Fallback  bool              `json:"fallback,omitempty"`
}

// SummarySections are the fixed named sections of the supplier-facing summary.
var SummarySections = []string{
	"Product",
	"Specifications",
	"Volumes",
	"Target Price",
	"Timeline",
	"Destination Markets",
}

// TokenUsage reports LLM token consumption for one completeness call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// AIMetrics is the dashboard snapshot served to admins.
type AIMetrics struct {
	TotalChecks      int64   `json:"totalChecks"`
	ErrorRate        float64 `json:"errorRate"`
	FallbackRate     float64 `json:"fallbackRate"`
	AvgTokensPerCall float64 `json:"avgTokensPerCall"`
	EstimatedCostUsd float64 `json:"estimatedCostUsd"`
	CacheHitRate     float64 `json:"cacheHitRate"`
	Period           string  `json:"period"`
}

// ============================================================
// Health
// ============================================================

// ServiceHealth describes one dependency in the health report.
type ServiceHealth struct {
	Name          string  `json:"name"`
	Status        string  `json:"status"`
	LatencyMs     int64   `json:"latency_ms"`
	UptimePercent float64 `json:"uptime_percent"`
	LastChecked   string  `json:"last_checked"`
}

// HealthStatus is the /healthz response.
type HealthStatus struct {
	Status   string          `json:"status"`
	Services []ServiceHealth `json:"services"`
}

// SuccessResponse is a generic message envelope.
type SuccessResponse struct {
	Message string `json:"message"`
}

// ============================================================
// Auth
// ============================================================

// LoginResponse is returned by login and refresh.
type LoginResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"`
	UserID       string `json:"userId"`
	FullName     string `json:"fullName,omitempty"`
	Role         Role   `json:"role,omitempty"`
	CompanyID    string `json:"companyId,omitempty"`
}
