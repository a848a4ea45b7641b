package onboarding

import (
	"context"

	"github.com/google/uuid"
	"github.com/salesforge-io/salesforge/internal/models"
)

// Candidate is a possible organization match for a signup, scored 0..1.
type Candidate struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Score float64   `json:"similarity_score"`
}

// EnrichmentPayload carries the inputs for one enrichment attempt. At most
// one of WebsiteURL/Facts is set.
type EnrichmentPayload struct {
	WebsiteURL string            `json:"website_url,omitempty"`
	Facts      map[string]string `json:"facts,omitempty"`
}

// Backend is the remote API surface the engine drives. Implementations are
// expected to act on behalf of a single authenticated user. Any call may fail
// with a transient error, which is distinct from a domain-level failure
// reported in a returned record.
type Backend interface {
	// FindOrgByDomain returns the active organization with the given domain,
	// case-insensitively, or nil when there is none.
	FindOrgByDomain(ctx context.Context, domain string) (*models.Organization, error)

	// FindOrgByName returns the active organization whose name matches
	// exactly (case-insensitively), or nil when there is none.
	FindOrgByName(ctx context.Context, name string) (*models.Organization, error)

	SimilarOrgsByDomain(ctx context.Context, domain string, limit int) ([]Candidate, error)
	SimilarOrgsByName(ctx context.Context, name string, limit int) ([]Candidate, error)

	// CreateOrganization is idempotent per (user, domain): resubmitting the
	// same domain returns the organization created the first time.
	CreateOrganization(ctx context.Context, name string, domain string, provisional bool) (*models.Organization, error)

	CreateJoinRequest(ctx context.Context, orgID uuid.UUID, profile map[string]string) (uuid.UUID, error)

	// ResolveMembership removes the current user from the given provisional
	// organization and deletes it when it was created by this user and has no
	// other members. The emptiness check is enforced by the backend, not
	// replicated client-side.
	ResolveMembership(ctx context.Context, provisionalOrgID uuid.UUID) error

	StartEnrichment(ctx context.Context, orgID uuid.UUID, source models.EnrichmentSource, payload EnrichmentPayload) error
	GetEnrichmentStatus(ctx context.Context, orgID uuid.UUID) (*EnrichmentView, error)

	SaveSkillConfig(ctx context.Context, orgID uuid.UUID, blocks []models.SkillBlock) error
	MarkOnboardingComplete(ctx context.Context) error
}
