package onboarding

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/salesforge-io/salesforge/internal/models"
	"go.uber.org/zap"
)

const (
	// PollInterval is the delay between status polls.
	PollInterval = 2 * time.Second
	// MaxPollingDuration bounds the wall-clock time of one polling window.
	MaxPollingDuration = 300 * time.Second
	// MaxPollAttempts bounds the number of polls in one polling window.
	MaxPollAttempts = 150
)

// ErrEnrichmentTimeout is returned when polling exceeds either bound.
var ErrEnrichmentTimeout = errors.New("enrichment polling timed out")

// RemoteJobError carries the failure message reported by the enrichment job
// itself, as opposed to a transport error reaching it.
type RemoteJobError struct {
	Message string
}

func (e *RemoteJobError) Error() string {
	if e.Message == "" {
		return "enrichment job failed"
	}
	return e.Message
}

// Orchestrator starts a remote enrichment job and supervises it to
// completion with bounded polling. Start resets the attempt counter and the
// wall clock, so a forced retry after a timeout gets a full fresh budget
// rather than inheriting the exhausted one.
type Orchestrator struct {
	logger  *zap.SugaredLogger
	backend Backend

	interval    time.Duration
	maxDuration time.Duration
	maxAttempts int
	now         func() time.Time

	onProgress func(*EnrichmentView)

	mu        sync.Mutex
	attempts  int
	startedAt time.Time
}

func NewOrchestrator(logger *zap.SugaredLogger, backend Backend) *Orchestrator {
	return &Orchestrator{
		logger:      logger,
		backend:     backend,
		interval:    PollInterval,
		maxDuration: MaxPollingDuration,
		maxAttempts: MaxPollAttempts,
		now:         time.Now,
	}
}

// OnProgress registers a callback invoked with every poll response that
// carries data, so partial enrichment results are visible before the job
// completes.
func (o *Orchestrator) OnProgress(fn func(*EnrichmentView)) {
	o.onProgress = fn
}

// Start begins a new enrichment job and opens a clean polling window.
func (o *Orchestrator) Start(ctx context.Context, orgID uuid.UUID, source models.EnrichmentSource, payload EnrichmentPayload) error {
	o.mu.Lock()
	o.attempts = 0
	o.startedAt = o.now()
	o.mu.Unlock()

	return o.backend.StartEnrichment(ctx, orgID, source, payload)
}

// Supervise polls the job until it reaches a terminal status or a bound
// trips. A transient poll error terminates the loop rather than being
// silently retried; the caller decides whether to start over.
func (o *Orchestrator) Supervise(ctx context.Context, orgID uuid.UUID) (*EnrichmentView, error) {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		o.mu.Lock()
		o.attempts++
		attempts := o.attempts
		elapsed := o.now().Sub(o.startedAt)
		o.mu.Unlock()

		if attempts > o.maxAttempts || elapsed > o.maxDuration {
			o.logger.Warnf("enrichment polling for org %s exceeded its budget (attempts=%d elapsed=%s)", orgID, attempts, elapsed)
			return nil, ErrEnrichmentTimeout
		}

		view, err := o.backend.GetEnrichmentStatus(ctx, orgID)
		if err != nil {
			return nil, err
		}
		if view == nil {
			continue
		}

		if o.onProgress != nil {
			o.onProgress(view)
		}

		switch view.Status {
		case models.EnrichmentCompleted:
			return view, nil
		case models.EnrichmentFailed:
			return view, &RemoteJobError{Message: view.Error}
		}
	}
}

// Attempts reports how many polls the current window has used.
func (o *Orchestrator) Attempts() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.attempts
}
