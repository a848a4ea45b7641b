package onboarding

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/salesforge-io/salesforge/internal/models"
)

// fakeBackend is an in-memory Backend for engine tests. Behavior knobs are
// plain fields so each test configures only what it needs.
type fakeBackend struct {
	mu sync.Mutex

	orgs []*models.Organization

	similarByDomain map[string][]Candidate
	similarByName   map[string][]Candidate

	createOrgErr   error
	createOrgCalls int

	joinRequests   []uuid.UUID
	joinRequestErr error

	resolvedOrgs []uuid.UUID
	resolveErr   error

	startCalls int
	startErr   error

	// statusFn answers GetEnrichmentStatus, keyed by how many times it has
	// been called.
	statusCalls int
	statusFn    func(call int) (*EnrichmentView, error)

	savedSkills   map[uuid.UUID][]models.SkillBlock
	saveSkillsErr error

	completed   bool
	completeErr error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		similarByDomain: map[string][]Candidate{},
		similarByName:   map[string][]Candidate{},
		savedSkills:     map[uuid.UUID][]models.SkillBlock{},
	}
}

func (f *fakeBackend) addOrg(name, domain string, provisional bool) *models.Organization {
	f.mu.Lock()
	defer f.mu.Unlock()
	org := &models.Organization{
		Name:        name,
		IsActive:    true,
		Provisional: provisional,
	}
	org.ID = uuid.New()
	if domain != "" {
		org.Domain = &domain
	}
	f.orgs = append(f.orgs, org)
	return org
}

func (f *fakeBackend) FindOrgByDomain(_ context.Context, domain string) (*models.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, org := range f.orgs {
		if org.Domain != nil && strings.EqualFold(*org.Domain, domain) {
			return org, nil
		}
	}
	return nil, nil
}

func (f *fakeBackend) FindOrgByName(_ context.Context, name string) (*models.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, org := range f.orgs {
		if strings.EqualFold(org.Name, name) {
			return org, nil
		}
	}
	return nil, nil
}

func (f *fakeBackend) SimilarOrgsByDomain(_ context.Context, domain string, _ int) ([]Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.similarByDomain[domain], nil
}

func (f *fakeBackend) SimilarOrgsByName(_ context.Context, name string, _ int) ([]Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.similarByName[name], nil
}

func (f *fakeBackend) CreateOrganization(_ context.Context, name string, domain string, provisional bool) (*models.Organization, error) {
	f.mu.Lock()
	f.createOrgCalls++
	err := f.createOrgErr
	if err != nil {
		f.mu.Unlock()
		return nil, err
	}
	// idempotent per domain
	if domain != "" {
		for _, org := range f.orgs {
			if org.Domain != nil && *org.Domain == domain {
				f.mu.Unlock()
				return org, nil
			}
		}
	}
	f.mu.Unlock()
	return f.addOrg(name, domain, provisional), nil
}

func (f *fakeBackend) CreateJoinRequest(_ context.Context, orgID uuid.UUID, _ map[string]string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.joinRequestErr != nil {
		return uuid.Nil, f.joinRequestErr
	}
	f.joinRequests = append(f.joinRequests, orgID)
	return uuid.New(), nil
}

func (f *fakeBackend) ResolveMembership(_ context.Context, provisionalOrgID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resolveErr != nil {
		return f.resolveErr
	}
	f.resolvedOrgs = append(f.resolvedOrgs, provisionalOrgID)
	return nil
}

func (f *fakeBackend) StartEnrichment(_ context.Context, _ uuid.UUID, _ models.EnrichmentSource, _ EnrichmentPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	return f.startErr
}

func (f *fakeBackend) GetEnrichmentStatus(_ context.Context, _ uuid.UUID) (*EnrichmentView, error) {
	f.mu.Lock()
	f.statusCalls++
	call := f.statusCalls
	fn := f.statusFn
	f.mu.Unlock()
	if fn == nil {
		return &EnrichmentView{Status: models.EnrichmentPending}, nil
	}
	return fn(call)
}

func (f *fakeBackend) SaveSkillConfig(_ context.Context, orgID uuid.UUID, blocks []models.SkillBlock) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveSkillsErr != nil {
		return f.saveSkillsErr
	}
	f.savedSkills[orgID] = blocks
	return nil
}

func (f *fakeBackend) MarkOnboardingComplete(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completeErr != nil {
		return f.completeErr
	}
	f.completed = true
	return nil
}

// fakeStore is a map-backed SessionStore for resolver tests. The sessionstore
// package cannot be imported here without a cycle.
type fakeStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	saveErr  error
	clears   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: map[uuid.UUID]*Session{}}
}

func (s *fakeStore) Save(_ context.Context, userID uuid.UUID, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	copied := *session
	s.sessions[userID] = &copied
	return nil
}

func (s *fakeStore) Restore(_ context.Context, userID uuid.UUID) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[userID]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (s *fakeStore) Clear(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
	delete(s.sessions, userID)
	return nil
}
