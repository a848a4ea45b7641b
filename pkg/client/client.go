// Package client is the HTTP client for the salesforge api server. It
// implements onboarding.Backend so the onboarding engine can run against a
// live server.
package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/salesforge-io/salesforge/internal/models"
	"github.com/salesforge-io/salesforge/internal/onboarding"
)

// APIError is a non-2xx response from the api server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Message)
}

// Identity carries the caller identity forwarded to the server. The server
// trusts these headers from its authenticating proxy.
type Identity struct {
	Sub      string
	Email    string
	UserName string
}

type Client struct {
	resty *resty.Client
}

var _ onboarding.Backend = &Client{}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.resty.SetTimeout(d)
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.resty.SetHeader("User-Agent", ua)
	}
}

func New(baseURL string, identity Identity, options ...Option) *Client {
	r := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetHeader("X-Auth-Sub", identity.Sub).
		SetHeader("X-Auth-Email", identity.Email).
		SetHeader("X-Auth-Username", identity.UserName)
	c := &Client{resty: r}
	for _, option := range options {
		option(c)
	}
	return c
}

func apiError(resp *resty.Response) error {
	var body models.BaseError
	if err, ok := resp.Error().(*models.BaseError); ok && err != nil {
		body = *err
	}
	return &APIError{
		StatusCode: resp.StatusCode(),
		Message:    body.Error,
	}
}

// CurrentUser fetches the caller's account, creating it server-side on first
// contact. Not part of onboarding.Backend; callers use it to learn their
// user id before starting a session.
func (c *Client) CurrentUser(ctx context.Context) (*models.User, error) {
	var user models.User
	resp, err := c.resty.R().
		SetContext(ctx).
		SetResult(&user).
		SetError(&models.BaseError{}).
		Get("/api/users/me")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}
	return &user, nil
}

func (c *Client) lookupOrganization(ctx context.Context, query string, value string) (*models.Organization, error) {
	var org models.Organization
	resp, err := c.resty.R().
		SetContext(ctx).
		SetQueryParam(query, value).
		SetResult(&org).
		SetError(&models.BaseError{}).
		Get("/api/organizations/lookup")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}
	return &org, nil
}

func (c *Client) FindOrgByDomain(ctx context.Context, domain string) (*models.Organization, error) {
	return c.lookupOrganization(ctx, "domain", domain)
}

func (c *Client) FindOrgByName(ctx context.Context, name string) (*models.Organization, error) {
	return c.lookupOrganization(ctx, "name", name)
}

func (c *Client) similarOrgs(ctx context.Context, query string, value string, limit int) ([]onboarding.Candidate, error) {
	var candidates []models.OrganizationCandidate
	resp, err := c.resty.R().
		SetContext(ctx).
		SetQueryParam(query, value).
		SetQueryParam("limit", fmt.Sprintf("%d", limit)).
		SetResult(&candidates).
		SetError(&models.BaseError{}).
		Get("/api/organizations/similar")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}
	result := make([]onboarding.Candidate, 0, len(candidates))
	for _, candidate := range candidates {
		result = append(result, onboarding.Candidate{
			ID:    candidate.ID,
			Name:  candidate.Name,
			Score: candidate.SimilarityScore,
		})
	}
	return result, nil
}

func (c *Client) SimilarOrgsByDomain(ctx context.Context, domain string, limit int) ([]onboarding.Candidate, error) {
	return c.similarOrgs(ctx, "domain", domain, limit)
}

func (c *Client) SimilarOrgsByName(ctx context.Context, name string, limit int) ([]onboarding.Candidate, error) {
	return c.similarOrgs(ctx, "name", name, limit)
}

func (c *Client) CreateOrganization(ctx context.Context, name string, domain string, provisional bool) (*models.Organization, error) {
	body := models.AddOrganization{
		Name:        name,
		Provisional: provisional,
	}
	if domain != "" {
		body.Domain = &domain
	}
	var org models.Organization
	resp, err := c.resty.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&org).
		SetError(&models.BaseError{}).
		Post("/api/organizations")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}
	return &org, nil
}

func (c *Client) CreateJoinRequest(ctx context.Context, orgID uuid.UUID, profile map[string]string) (uuid.UUID, error) {
	var joinRequest models.JoinRequest
	var conflict models.ConflictsError
	resp, err := c.resty.R().
		SetContext(ctx).
		SetBody(models.AddJoinRequest{
			OrganizationID: orgID,
			Profile:        profile,
		}).
		SetResult(&joinRequest).
		SetError(&conflict).
		Post("/api/join-requests")
	if err != nil {
		return uuid.Nil, err
	}
	if resp.StatusCode() == http.StatusConflict && conflict.ID != "" {
		// a pending request already exists, reuse it
		return uuid.Parse(conflict.ID)
	}
	if resp.IsError() {
		return uuid.Nil, &APIError{StatusCode: resp.StatusCode(), Message: conflict.Error}
	}
	return joinRequest.ID, nil
}

func (c *Client) ResolveMembership(ctx context.Context, provisionalOrgID uuid.UUID) error {
	resp, err := c.resty.R().
		SetContext(ctx).
		SetBody(struct{}{}).
		SetError(&models.BaseError{}).
		Post(fmt.Sprintf("/api/organizations/%s/memberships/resolve", provisionalOrgID))
	if err != nil {
		return err
	}
	if resp.IsError() {
		return apiError(resp)
	}
	return nil
}

func (c *Client) StartEnrichment(ctx context.Context, orgID uuid.UUID, source models.EnrichmentSource, payload onboarding.EnrichmentPayload) error {
	resp, err := c.resty.R().
		SetContext(ctx).
		SetBody(models.StartEnrichment{
			Source:     source,
			WebsiteURL: payload.WebsiteURL,
			Facts:      payload.Facts,
			Force:      true,
		}).
		SetError(&models.BaseError{}).
		Post(fmt.Sprintf("/api/organizations/%s/enrichments", orgID))
	if err != nil {
		return err
	}
	if resp.IsError() {
		return apiError(resp)
	}
	return nil
}

func (c *Client) GetEnrichmentStatus(ctx context.Context, orgID uuid.UUID) (*onboarding.EnrichmentView, error) {
	var records []models.EnrichmentRecord
	resp, err := c.resty.R().
		SetContext(ctx).
		SetResult(&records).
		SetError(&models.BaseError{}).
		Get(fmt.Sprintf("/api/organizations/%s/enrichments", orgID))
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return enrichmentView(&records[0]), nil
}

func (c *Client) SaveSkillConfig(ctx context.Context, orgID uuid.UUID, blocks []models.SkillBlock) error {
	resp, err := c.resty.R().
		SetContext(ctx).
		SetBody(struct {
			Skills []models.SkillBlock `json:"skills"`
		}{Skills: blocks}).
		SetError(&models.BaseError{}).
		Put(fmt.Sprintf("/api/organizations/%s/skills", orgID))
	if err != nil {
		return err
	}
	if resp.IsError() {
		return apiError(resp)
	}
	return nil
}

func (c *Client) MarkOnboardingComplete(ctx context.Context) error {
	resp, err := c.resty.R().
		SetContext(ctx).
		SetBody(struct{}{}).
		SetError(&models.BaseError{}).
		Post("/api/users/onboarding-complete")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return apiError(resp)
	}
	return nil
}
