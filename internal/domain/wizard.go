package domain

import "time"

// ============================================================
// Wizard — variants, steps, form state, drafts
// ============================================================

// WizardVariant is resolved once at session start from the auth state and
// the profile's company link, and fixes the step sequence for the session.
type WizardVariant string

const (
	VariantGuest         WizardVariant = "guest"
	VariantAuthCompany   WizardVariant = "authenticated_with_company"
	VariantAuthNoCompany WizardVariant = "authenticated_no_company"
)

// StepID names one logical grouping of wizard fields.
type StepID string

const (
	StepCompany      StepID = "company"
	StepAccount      StepID = "account"
	StepProduct      StepID = "product"
	StepRequirements StepID = "requirements"
	StepVolumes      StepID = "volumes"
	StepReview       StepID = "review"

	// StepSuccess is the terminal pseudo-step reached only via successful
	// submission. It is not part of the numbered progress indicator.
	StepSuccess StepID = "success"
)

// stepSequences is the single step-sequence table: variant -> ordered steps.
// Render/validation logic looks steps up here instead of branching per variant.
var stepSequences = map[WizardVariant][]StepID{
	VariantGuest:         {StepCompany, StepAccount, StepProduct, StepRequirements, StepVolumes, StepReview},
	VariantAuthCompany:   {StepProduct, StepRequirements, StepVolumes, StepReview},
	VariantAuthNoCompany: {StepCompany, StepProduct, StepRequirements, StepVolumes, StepReview},
}

// StepsFor returns the ordered step sequence for a variant.
func StepsFor(v WizardVariant) []StepID {
	return stepSequences[v]
}

// GuestOwner is the owner tag used for unauthenticated wizard drafts.
const GuestOwner = "guest"

// FormState is the one shared schema consumed by every step and both
// submission paths. Validation is field-subset-scoped: each step validates
// only its own fields, so guest-only tags (password, terms) never fire for
// authenticated variants.
type FormState struct {
	// Company details
	CompanyName        string `json:"companyName" validate:"required,min=2"`
	CompanyWebsite     string `json:"companyWebsite" validate:"required,url"`
	Country            string `json:"country" validate:"required"`
	Industry           string `json:"industry" validate:"omitempty,min=2"`
	CompanyDescription string `json:"companyDescription" validate:"omitempty,max=2000"`

	// Account creation (guests only)
	FirstName   string `json:"firstName" validate:"required"`
	LastName    string `json:"lastName" validate:"required"`
	WorkEmail   string `json:"workEmail" validate:"required,email"`
	Phone       string `json:"phone" validate:"omitempty,min=7"`
	Password    string `json:"password" validate:"required,min=8"`
	AcceptTerms bool   `json:"acceptTerms" validate:"eq=true"`

	// Product overview
	ProductName        string `json:"productName" validate:"required,min=2"`
	ProductDescription string `json:"productDescription" validate:"omitempty,max=4000"`

	// Requirements
	Requirements string `json:"requirements" validate:"required,min=10"`

	// Volumes & markets
	EstimatedVolume    string   `json:"estimatedVolume" validate:"required"`
	VolumeUnit         string   `json:"volumeUnit" validate:"required"`
	GuidancePrice      string   `json:"guidancePrice" validate:"omitempty"`
	Timeline           string   `json:"timeline" validate:"required"`
	DestinationMarkets []string `json:"destinationMarkets" validate:"required,min=1,dive,required"`

	// Review
	RFIConfirmed bool `json:"rfiConfirmed" validate:"eq=true"`
}

// FieldError is one inline validation failure, surfaced per field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Draft is the persisted in-progress wizard state. Best-effort recovery,
// not transactional: last write wins.
type Draft struct {
	OwnerID   string    `json:"owner_id"`
	Step      int       `json:"step"`
	Form      FormState `json:"form"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WizardSession is the client-facing view of the state machine.
type WizardSession struct {
	Variant   WizardVariant `json:"variant"`
	Step      int           `json:"step"` // 1-based index into Steps
	StepID    StepID        `json:"stepId"`
	Steps     []StepID      `json:"steps"`
	Form      FormState     `json:"form"`
	Submitted bool          `json:"submitted,omitempty"`
}
