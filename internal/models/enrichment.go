package models

import (
	"encoding/json"

	"github.com/google/uuid"
)

type EnrichmentStatus string

const (
	EnrichmentPending   EnrichmentStatus = "pending"
	EnrichmentScraping  EnrichmentStatus = "scraping"
	EnrichmentAnalyzing EnrichmentStatus = "analyzing"
	EnrichmentCompleted EnrichmentStatus = "completed"
	EnrichmentFailed    EnrichmentStatus = "failed"
)

// InFlight reports whether the status is non-terminal.
func (s EnrichmentStatus) InFlight() bool {
	switch s {
	case EnrichmentPending, EnrichmentScraping, EnrichmentAnalyzing:
		return true
	}
	return false
}

// rank orders statuses for the monotonic-forward invariant. Terminal states
// share a rank so a job can end either way.
func (s EnrichmentStatus) rank() int {
	switch s {
	case EnrichmentPending:
		return 0
	case EnrichmentScraping:
		return 1
	case EnrichmentAnalyzing:
		return 2
	case EnrichmentCompleted, EnrichmentFailed:
		return 3
	}
	return -1
}

// CanTransitionTo reports whether moving from s to next keeps the status
// monotonic. Equal statuses are allowed so progress updates can repeat.
func (s EnrichmentStatus) CanTransitionTo(next EnrichmentStatus) bool {
	return next.rank() >= s.rank() && next.rank() >= 0 && s.rank() >= 0
}

type EnrichmentSource string

const (
	EnrichmentSourceWebsite EnrichmentSource = "website"
	EnrichmentSourceManual  EnrichmentSource = "manual"
)

// EnrichmentRecord tracks one enrichment attempt against an organization.
// ResultPayload is only populated once Status is completed.
type EnrichmentRecord struct {
	Base
	OrganizationID  uuid.UUID        `gorm:"index" json:"organization_id"`
	Source          EnrichmentSource `json:"source" example:"website"`
	SourceRef       string           `json:"source_ref" example:"acme.com"`
	Status          EnrichmentStatus `gorm:"index" json:"status" example:"pending"`
	ErrorMessage    string           `json:"error_message,omitempty"`
	ResultPayload   json.RawMessage  `gorm:"type:jsonb" json:"result_payload,omitempty"`
	ConfidenceScore *float64         `json:"confidence_score,omitempty" example:"0.92"`
}

// EnrichmentResult is the structured shape of ResultPayload.
type EnrichmentResult struct {
	CompanyName     string       `json:"company_name,omitempty"`
	Summary         string       `json:"summary,omitempty"`
	Industry        string       `json:"industry,omitempty"`
	Facts           JSONMap      `json:"facts,omitempty"`
	GeneratedSkills []SkillBlock `json:"generated_skills,omitempty"`
}

// StartEnrichment is the request body to start an enrichment job.
type StartEnrichment struct {
	Source     EnrichmentSource  `json:"source" example:"website"`
	WebsiteURL string            `json:"website_url,omitempty" example:"https://acme.com"`
	Facts      map[string]string `json:"facts,omitempty"`
	Force      bool              `json:"force"`
}

// UpdateEnrichment is the analyzer callback body reporting job progress.
type UpdateEnrichment struct {
	Status          EnrichmentStatus `json:"status"`
	ErrorMessage    string           `json:"error_message,omitempty"`
	ResultPayload   json.RawMessage  `json:"result_payload,omitempty"`
	ConfidenceScore *float64         `json:"confidence_score,omitempty"`
}

// EnrichmentStatusResponse is returned by the status endpoint.
type EnrichmentStatusResponse struct {
	Status          EnrichmentStatus  `json:"status"`
	Record          *EnrichmentRecord `json:"record,omitempty"`
	GeneratedSkills []SkillBlock      `json:"generated_skills,omitempty"`
}
