package onboarding

import (
	"time"

	"github.com/google/uuid"
	"github.com/salesforge-io/salesforge/internal/models"
)

// Step identifies where a session is in the onboarding flow.
type Step string

const (
	StepWebsiteInput          Step = "website_input"
	StepManualEnrichment      Step = "manual_enrichment"
	StepOrganizationSelection Step = "organization_selection"
	StepPendingApproval       Step = "pending_approval"
	StepEnrichmentLoading     Step = "enrichment_loading"
	StepEnrichmentResult      Step = "enrichment_result"
	StepSkillsConfig          Step = "skills_config"
	StepComplete              Step = "complete"
)

// ManualFacts are the answers a user gives when their company has no
// website to enrich from.
type ManualFacts struct {
	CompanyName string            `json:"company_name"`
	Industry    string            `json:"industry,omitempty"`
	CompanySize string            `json:"company_size,omitempty"`
	Answers     map[string]string `json:"answers,omitempty"`
}

// EnrichmentView is the client-visible state of the current enrichment
// attempt. Partial results are merged in as polling observes them, before
// the job reaches a terminal status.
type EnrichmentView struct {
	RecordID   uuid.UUID                `json:"record_id"`
	Status     models.EnrichmentStatus  `json:"status"`
	Error      string                   `json:"error,omitempty"`
	Result     *models.EnrichmentResult `json:"result,omitempty"`
	Confidence *float64                 `json:"confidence,omitempty"`
}

// Session is the per-user onboarding state. It references server-side
// records by id only; the backend stays the source of truth. The Resolver is
// its sole writer.
type Session struct {
	UserID               uuid.UUID               `json:"user_id"`
	Email                string                  `json:"email"`
	Domain               string                  `json:"domain"`
	PersonalEmail        bool                    `json:"personal_email"`
	CurrentStep          Step                    `json:"current_step"`
	WebsiteURL           string                  `json:"website_url,omitempty"`
	ManualFacts          *ManualFacts            `json:"manual_facts,omitempty"`
	OrganizationID       *uuid.UUID              `json:"organization_id,omitempty"`
	ProvisionalOrg       bool                    `json:"provisional_org"`
	Candidates           []Candidate             `json:"candidates,omitempty"`
	Enrichment           *EnrichmentView         `json:"enrichment,omitempty"`
	EnrichmentSource     models.EnrichmentSource `json:"enrichment_source,omitempty"`
	Skills               *SkillDraft             `json:"skills,omitempty"`
	PendingJoinRequestID *uuid.UUID              `json:"pending_join_request_id,omitempty"`
	Error                string                  `json:"error,omitempty"`
	SavedAt              time.Time               `json:"saved_at"`
}
