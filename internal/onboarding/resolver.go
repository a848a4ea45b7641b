package onboarding

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/salesforge-io/salesforge/internal/models"
	"github.com/salesforge-io/salesforge/internal/util"
	"go.uber.org/zap"
)

var (
	// ErrActionInFlight is returned when an action is submitted while a
	// previous one has not finished, e.g. a double-clicked submit button.
	ErrActionInFlight = errors.New("another onboarding action is still in progress")

	// ErrInvalidStep is returned when an action is not valid for the
	// session's current step.
	ErrInvalidStep = errors.New("action not valid for the current onboarding step")

	errNoSession = errors.New("no active onboarding session")
)

// Resolver drives the onboarding flow for one user: it decides whether the
// user joins an existing organization or gets a new one, supervises
// enrichment, and keeps the persisted session consistent across reloads.
// It is the sole writer of the session.
type Resolver struct {
	logger       *zap.SugaredLogger
	backend      Backend
	store        SessionStore
	dedup        *Deduplicator
	orchestrator *Orchestrator

	mu         sync.Mutex
	inFlight   bool
	session    *Session
	pollCancel context.CancelFunc
	pollGen    uint64
	pollWG     sync.WaitGroup
}

func NewResolver(logger *zap.SugaredLogger, backend Backend, store SessionStore) *Resolver {
	r := &Resolver{
		logger:       logger,
		backend:      backend,
		store:        store,
		dedup:        NewDeduplicator(backend),
		orchestrator: NewOrchestrator(logger, backend),
	}
	r.orchestrator.OnProgress(r.mergeProgress)
	return r
}

// Session returns a copy of the current session state.
func (r *Resolver) Session() Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return Session{}
	}
	return *r.session
}

// Begin starts (or resumes) onboarding for a user. A fresh snapshot from the
// store wins over reclassifying; an absent or expired snapshot classifies
// the signup email to pick the entry step. Corporate domains are resolved
// immediately: the email domain is assumed to be the organization's.
func (r *Resolver) Begin(ctx context.Context, userID uuid.UUID, email string) error {
	if err := r.beginAction(); err != nil {
		return err
	}
	defer r.endAction()

	if restored, err := r.store.Restore(ctx, userID); err != nil {
		r.logger.Warnf("session restore failed for user %s: %v", userID, err)
	} else if restored != nil && restored.UserID == userID {
		r.mu.Lock()
		r.session = restored
		r.mu.Unlock()
		return nil
	}

	cls := ClassifyEmail(email)
	session := &Session{
		UserID:        userID,
		Email:         email,
		Domain:        cls.Domain,
		PersonalEmail: cls.Personal,
		CurrentStep:   StepWebsiteInput,
	}
	r.mu.Lock()
	r.session = session
	r.mu.Unlock()

	if !cls.Personal && cls.Domain != "" {
		err := r.resolveDomain(ctx, cls.Domain, "")
		r.persist(ctx)
		return err
	}

	r.persist(ctx)
	return nil
}

// SubmitWebsite resolves the company behind a submitted website. A
// high-confidence match reroutes to a join request; otherwise an
// organization is created (if needed) and enrichment starts.
func (r *Resolver) SubmitWebsite(ctx context.Context, rawURL string) error {
	if err := r.beginAction(); err != nil {
		return err
	}
	defer r.endAction()

	if err := r.requireStep(StepWebsiteInput); err != nil {
		return err
	}

	domain, err := websiteDomain(rawURL)
	if err != nil {
		return r.fail(ctx, fmt.Errorf("invalid website url: %w", err))
	}

	r.mu.Lock()
	r.session.WebsiteURL = rawURL
	r.session.Domain = domain
	r.session.Error = ""
	r.mu.Unlock()

	err = r.resolveDomain(ctx, domain, rawURL)
	r.persist(ctx)
	return err
}

// ChooseManual switches to the manual question flow for companies without a
// usable website.
func (r *Resolver) ChooseManual(ctx context.Context) error {
	if err := r.beginAction(); err != nil {
		return err
	}
	defer r.endAction()

	if err := r.requireStep(StepWebsiteInput); err != nil {
		return err
	}
	r.mu.Lock()
	r.session.CurrentStep = StepManualEnrichment
	r.session.Error = ""
	r.mu.Unlock()
	r.persist(ctx)
	return nil
}

// SubmitManualFacts runs name-driven dedup over the stated company name. An
// exact or high-confidence match joins directly; ambiguous matches are
// surfaced for the user to pick from; no match creates the organization and
// starts manual enrichment.
func (r *Resolver) SubmitManualFacts(ctx context.Context, facts ManualFacts) error {
	if err := r.beginAction(); err != nil {
		return err
	}
	defer r.endAction()

	if err := r.requireStep(StepManualEnrichment); err != nil {
		return err
	}
	if strings.TrimSpace(facts.CompanyName) == "" {
		return r.fail(ctx, errors.New("company name is required"))
	}

	r.mu.Lock()
	r.session.ManualFacts = &facts
	r.session.Error = ""
	r.mu.Unlock()

	auto, ambiguous, err := r.dedup.MatchName(ctx, facts.CompanyName)
	if err != nil {
		return r.fail(ctx, err)
	}

	switch {
	case auto != nil:
		err = r.joinExisting(ctx, auto.ID)
	case len(ambiguous) > 0:
		r.mu.Lock()
		r.session.Candidates = ambiguous
		r.session.CurrentStep = StepOrganizationSelection
		r.mu.Unlock()
	default:
		err = r.createAndEnrich(ctx, facts.CompanyName, "", models.EnrichmentSourceManual, EnrichmentPayload{Facts: facts.Answers})
	}
	r.persist(ctx)
	return err
}

// SelectOrganization joins one of the ambiguous candidates presented at the
// selection step.
func (r *Resolver) SelectOrganization(ctx context.Context, orgID uuid.UUID) error {
	if err := r.beginAction(); err != nil {
		return err
	}
	defer r.endAction()

	if err := r.requireStep(StepOrganizationSelection); err != nil {
		return err
	}

	found := false
	r.mu.Lock()
	for _, c := range r.session.Candidates {
		if c.ID == orgID {
			found = true
			break
		}
	}
	r.mu.Unlock()
	if !found {
		return r.fail(ctx, fmt.Errorf("organization %s is not one of the presented candidates", orgID))
	}

	err := r.joinExisting(ctx, orgID)
	r.persist(ctx)
	return err
}

// CreateNewOrganization declines all presented candidates and creates a
// fresh organization from whatever drove the selection step: the manual
// facts when they exist, the submitted website otherwise.
func (r *Resolver) CreateNewOrganization(ctx context.Context) error {
	if err := r.beginAction(); err != nil {
		return err
	}
	defer r.endAction()

	if err := r.requireStep(StepOrganizationSelection); err != nil {
		return err
	}

	r.mu.Lock()
	facts := r.session.ManualFacts
	domain := r.session.Domain
	websiteURL := r.session.WebsiteURL
	r.mu.Unlock()

	var err error
	switch {
	case facts != nil:
		err = r.createAndEnrich(ctx, facts.CompanyName, "", models.EnrichmentSourceManual, EnrichmentPayload{Facts: facts.Answers})
	case domain != "":
		payload := EnrichmentPayload{WebsiteURL: websiteURL}
		if websiteURL == "" {
			payload.WebsiteURL = "https://" + domain
		}
		err = r.createAndEnrich(ctx, orgNameFromDomain(domain), domain, models.EnrichmentSourceWebsite, payload)
	default:
		return r.fail(ctx, errors.New("no company details recorded for this session"))
	}
	r.persist(ctx)
	return err
}

// RetryEnrichment restarts enrichment after a failure or timeout. The
// orchestrator opens a clean polling window, so the retry gets a full
// attempt and wall-clock budget.
func (r *Resolver) RetryEnrichment(ctx context.Context) error {
	if err := r.beginAction(); err != nil {
		return err
	}
	defer r.endAction()

	if err := r.requireStep(StepEnrichmentLoading); err != nil {
		return err
	}

	r.mu.Lock()
	orgID := r.session.OrganizationID
	source := r.session.EnrichmentSource
	payload := r.enrichmentPayloadLocked()
	r.session.Error = ""
	r.mu.Unlock()

	if orgID == nil {
		return r.fail(ctx, errors.New("no organization recorded for this session"))
	}

	err := r.startEnrichment(ctx, *orgID, source, payload)
	r.persist(ctx)
	return err
}

// ReturnToInput abandons a failed enrichment attempt and returns to the
// input step that drove it, so the user can change the website or the facts.
func (r *Resolver) ReturnToInput(ctx context.Context) error {
	if err := r.beginAction(); err != nil {
		return err
	}
	defer r.endAction()

	if err := r.requireStep(StepEnrichmentLoading); err != nil {
		return err
	}
	r.stopPolling()

	r.mu.Lock()
	if r.session.EnrichmentSource == models.EnrichmentSourceManual {
		r.session.CurrentStep = StepManualEnrichment
	} else {
		r.session.CurrentStep = StepWebsiteInput
	}
	r.session.Enrichment = nil
	r.mu.Unlock()
	r.persist(ctx)
	return nil
}

// ConfirmEnrichment accepts the enrichment result and moves on to skill
// review.
func (r *Resolver) ConfirmEnrichment(ctx context.Context) error {
	if err := r.beginAction(); err != nil {
		return err
	}
	defer r.endAction()

	if err := r.requireStep(StepEnrichmentResult); err != nil {
		return err
	}
	r.mu.Lock()
	r.session.CurrentStep = StepSkillsConfig
	r.mu.Unlock()
	r.persist(ctx)
	return nil
}

// EditSkill, SkipSkill and ResetSkill adjust one block of the draft.
func (r *Resolver) EditSkill(ctx context.Context, kind models.SkillKind, content []byte) error {
	return r.updateSkill(ctx, func(d *SkillDraft) error { return d.Edit(kind, content) })
}

func (r *Resolver) SkipSkill(ctx context.Context, kind models.SkillKind) error {
	return r.updateSkill(ctx, func(d *SkillDraft) error { return d.Skip(kind) })
}

func (r *Resolver) ResetSkill(ctx context.Context, kind models.SkillKind) error {
	return r.updateSkill(ctx, func(d *SkillDraft) error { return d.Reset(kind) })
}

func (r *Resolver) updateSkill(ctx context.Context, fn func(*SkillDraft) error) error {
	r.mu.Lock()
	if r.session == nil || r.session.Skills == nil {
		r.mu.Unlock()
		return errNoSession
	}
	if r.session.CurrentStep != StepSkillsConfig {
		r.mu.Unlock()
		return ErrInvalidStep
	}
	err := fn(r.session.Skills)
	r.mu.Unlock()
	if err != nil {
		return err
	}
	r.persist(ctx)
	return nil
}

// SaveSkills persists the reviewed configuration and completes onboarding.
// The completion flag is only written after the skills write succeeded, and
// any failure leaves the account not-complete so the whole save can be
// retried.
func (r *Resolver) SaveSkills(ctx context.Context) error {
	if err := r.beginAction(); err != nil {
		return err
	}
	defer r.endAction()

	if err := r.requireStep(StepSkillsConfig); err != nil {
		return err
	}

	r.mu.Lock()
	orgID := r.session.OrganizationID
	var blocks []models.SkillBlock
	if r.session.Skills != nil {
		blocks = r.session.Skills.Save()
	}
	userID := r.session.UserID
	r.mu.Unlock()

	if orgID == nil {
		return r.fail(ctx, errors.New("no organization recorded for this session"))
	}

	if err := r.backend.SaveSkillConfig(ctx, *orgID, blocks); err != nil {
		return r.fail(ctx, fmt.Errorf("saving skill configuration: %w", err))
	}
	if err := r.backend.MarkOnboardingComplete(ctx); err != nil {
		return r.fail(ctx, fmt.Errorf("marking onboarding complete: %w", err))
	}

	if err := r.store.Clear(ctx, userID); err != nil {
		r.logger.Warnf("clearing onboarding session for user %s: %v", userID, err)
	}
	r.mu.Lock()
	r.session.CurrentStep = StepComplete
	r.session.Error = ""
	r.mu.Unlock()
	return nil
}

// Abandon stops polling and drops the persisted session. The remote job, if
// any, is left to expire on its own.
func (r *Resolver) Abandon(ctx context.Context) error {
	r.stopPolling()
	r.mu.Lock()
	session := r.session
	r.session = nil
	r.mu.Unlock()
	if session != nil {
		return r.store.Clear(ctx, session.UserID)
	}
	return nil
}

// Wait blocks until any background enrichment supervision has finished.
func (r *Resolver) Wait() {
	r.pollWG.Wait()
}

// resolveDomain is the shared core of website submission and corporate-email
// entry: dedup on domain, then either join the match or create and enrich.
func (r *Resolver) resolveDomain(ctx context.Context, domain, websiteURL string) error {
	auto, ambiguous, err := r.dedup.MatchDomain(ctx, domain)
	if err != nil {
		return r.fail(ctx, err)
	}

	switch {
	case auto != nil:
		return r.joinExisting(ctx, auto.ID)
	case len(ambiguous) > 0:
		r.mu.Lock()
		r.session.Candidates = ambiguous
		r.session.CurrentStep = StepOrganizationSelection
		r.mu.Unlock()
		return nil
	default:
		payload := EnrichmentPayload{WebsiteURL: websiteURL}
		if websiteURL == "" {
			payload.WebsiteURL = "https://" + domain
		}
		return r.createAndEnrich(ctx, orgNameFromDomain(domain), domain, models.EnrichmentSourceWebsite, payload)
	}
}

// joinExisting creates a join request against the matched organization and
// cleans up any provisional organization this flow created earlier.
func (r *Resolver) joinExisting(ctx context.Context, orgID uuid.UUID) error {
	profile := map[string]string{}
	r.mu.Lock()
	profile["email"] = r.session.Email
	provisional := r.session.OrganizationID
	wasProvisional := r.session.ProvisionalOrg
	r.mu.Unlock()

	joinID, err := r.backend.CreateJoinRequest(ctx, orgID, profile)
	if err != nil {
		return r.fail(ctx, fmt.Errorf("creating join request: %w", err))
	}

	if wasProvisional && provisional != nil && *provisional != orgID {
		if err := r.backend.ResolveMembership(ctx, *provisional); err != nil {
			// flagged for the gc pass; the join request itself stands
			r.logger.Warnf("provisional organization %s cleanup failed: %v", *provisional, err)
		}
	}

	r.mu.Lock()
	r.session.PendingJoinRequestID = &joinID
	r.session.OrganizationID = &orgID
	r.session.ProvisionalOrg = false
	r.session.Candidates = nil
	r.session.CurrentStep = StepPendingApproval
	r.session.Error = ""
	r.mu.Unlock()
	return nil
}

func (r *Resolver) createAndEnrich(ctx context.Context, name, domain string, source models.EnrichmentSource, payload EnrichmentPayload) error {
	r.mu.Lock()
	orgID := r.session.OrganizationID
	r.mu.Unlock()

	if orgID == nil {
		org, err := r.backend.CreateOrganization(ctx, name, domain, true)
		if err != nil {
			return r.fail(ctx, fmt.Errorf("creating organization: %w", err))
		}
		r.mu.Lock()
		r.session.OrganizationID = &org.ID
		r.session.ProvisionalOrg = true
		orgID = &org.ID
		r.mu.Unlock()
	}

	return r.startEnrichment(ctx, *orgID, source, payload)
}

func (r *Resolver) startEnrichment(ctx context.Context, orgID uuid.UUID, source models.EnrichmentSource, payload EnrichmentPayload) error {
	r.stopPolling()

	if err := r.orchestrator.Start(ctx, orgID, source, payload); err != nil {
		return r.fail(ctx, fmt.Errorf("starting enrichment: %w", err))
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.pollCancel = cancel
	r.pollGen++
	gen := r.pollGen
	r.session.EnrichmentSource = source
	r.session.Enrichment = &EnrichmentView{Status: models.EnrichmentPending}
	r.session.CurrentStep = StepEnrichmentLoading
	r.session.Candidates = nil
	r.session.Error = ""
	r.mu.Unlock()

	util.GoWithWaitGroup(&r.pollWG, func() {
		view, err := r.orchestrator.Supervise(pollCtx, orgID)
		r.finishEnrichment(pollCtx, gen, view, err)
	})
	return nil
}

// finishEnrichment applies the terminal outcome of one polling window.
// Failures and timeouts keep the session at enrichment_loading with an error
// string; RetryEnrichment and ReturnToInput are the ways out. gen identifies
// the window: a superseded window can deliver a terminal view after its
// cancellation, and only the current generation may touch the session.
func (r *Resolver) finishEnrichment(ctx context.Context, gen uint64, view *EnrichmentView, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}

	r.mu.Lock()
	if r.session == nil || r.session.CurrentStep != StepEnrichmentLoading || gen != r.pollGen {
		r.mu.Unlock()
		return
	}
	if err != nil {
		switch {
		case errors.Is(err, ErrEnrichmentTimeout):
			r.session.Error = "enrichment timed out, please try again"
		default:
			r.session.Error = err.Error()
		}
		if view != nil {
			r.session.Enrichment = view
		}
		r.mu.Unlock()
		r.persist(ctx)
		return
	}

	r.session.Enrichment = view
	if view.Result != nil {
		r.session.Skills = NewSkillDraft(view.Result.GeneratedSkills)
	} else {
		r.session.Skills = NewSkillDraft(nil)
	}
	r.session.CurrentStep = StepEnrichmentResult
	r.session.Error = ""
	r.mu.Unlock()
	r.persist(ctx)
}

// mergeProgress surfaces partial enrichment data as polling observes it.
func (r *Resolver) mergeProgress(view *EnrichmentView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil || r.session.CurrentStep != StepEnrichmentLoading {
		return
	}
	current := r.session.Enrichment
	if current == nil {
		r.session.Enrichment = view
		return
	}
	current.RecordID = view.RecordID
	current.Status = view.Status
	if view.Result != nil {
		current.Result = view.Result
	}
	if view.Confidence != nil {
		current.Confidence = view.Confidence
	}
}

func (r *Resolver) enrichmentPayloadLocked() EnrichmentPayload {
	if r.session.EnrichmentSource == models.EnrichmentSourceManual && r.session.ManualFacts != nil {
		return EnrichmentPayload{Facts: r.session.ManualFacts.Answers}
	}
	url := r.session.WebsiteURL
	if url == "" && r.session.Domain != "" {
		url = "https://" + r.session.Domain
	}
	return EnrichmentPayload{WebsiteURL: url}
}

func (r *Resolver) beginAction() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inFlight {
		return ErrActionInFlight
	}
	r.inFlight = true
	return nil
}

func (r *Resolver) endAction() {
	r.mu.Lock()
	r.inFlight = false
	r.mu.Unlock()
}

func (r *Resolver) requireStep(step Step) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return errNoSession
	}
	if r.session.CurrentStep != step {
		return fmt.Errorf("%w: at %s, expected %s", ErrInvalidStep, r.session.CurrentStep, step)
	}
	return nil
}

// fail records err as the session-level error without advancing the step.
func (r *Resolver) fail(ctx context.Context, err error) error {
	r.mu.Lock()
	if r.session != nil {
		r.session.Error = err.Error()
	}
	r.mu.Unlock()
	r.persist(ctx)
	return err
}

// persist snapshots the session. Best effort: the store is a cache and the
// backend remains authoritative.
func (r *Resolver) persist(ctx context.Context) {
	r.mu.Lock()
	if r.session == nil {
		r.mu.Unlock()
		return
	}
	r.session.SavedAt = time.Now()
	snapshot := *r.session
	r.mu.Unlock()

	if err := r.store.Save(ctx, snapshot.UserID, &snapshot); err != nil {
		r.logger.Warnf("persisting onboarding session for user %s: %v", snapshot.UserID, err)
	}
}

func (r *Resolver) stopPolling() {
	r.mu.Lock()
	cancel := r.pollCancel
	r.pollCancel = nil
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// websiteDomain extracts the registrable host from user input that may or
// may not carry a scheme or path.
func websiteDomain(raw string) (string, error) {
	s := strings.TrimSpace(strings.ToLower(raw))
	if s == "" {
		return "", errors.New("empty url")
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", err
	}
	host := u.Hostname()
	if host == "" {
		return "", errors.New("no host in url")
	}
	host = strings.TrimPrefix(host, "www.")
	if !strings.Contains(host, ".") {
		return "", fmt.Errorf("not a valid domain: %s", host)
	}
	return host, nil
}

// orgNameFromDomain derives a readable default organization name from a
// domain, e.g. "acme.com" -> "acme".
func orgNameFromDomain(domain string) string {
	name := domain
	if i := strings.Index(name, "."); i > 0 {
		name = name[:i]
	}
	return name
}
