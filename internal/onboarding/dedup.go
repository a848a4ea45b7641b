package onboarding

import (
	"context"

	"github.com/salesforge-io/salesforge/internal/models"
)

// SimilarityThreshold is the fuzzy score above which a candidate is accepted
// without asking the user. Shared by domain and name matching.
const SimilarityThreshold = 0.7

// maxAmbiguousCandidates caps how many sub-threshold matches are surfaced
// for the user to pick from.
const maxAmbiguousCandidates = 5

// Deduplicator finds existing organizations a signup should join instead of
// creating a near-duplicate tenant.
type Deduplicator struct {
	backend Backend
}

func NewDeduplicator(backend Backend) *Deduplicator {
	return &Deduplicator{backend: backend}
}

// MatchDomain looks for an existing organization for the given domain. An
// exact domain match always wins. Otherwise the top fuzzy candidate is
// auto-selected only when it scores above SimilarityThreshold; weaker hits
// come back as ambiguous candidates for the user to decide.
func (d *Deduplicator) MatchDomain(ctx context.Context, domain string) (*Candidate, []Candidate, error) {
	exact, err := d.backend.FindOrgByDomain(ctx, domain)
	if err != nil {
		return nil, nil, err
	}
	if exact != nil {
		return exactCandidate(exact), nil, nil
	}

	similar, err := d.backend.SimilarOrgsByDomain(ctx, domain, maxAmbiguousCandidates)
	if err != nil {
		return nil, nil, err
	}
	return pickCandidate(similar)
}

// MatchName is MatchDomain for name-driven lookups (manual enrichment).
func (d *Deduplicator) MatchName(ctx context.Context, name string) (*Candidate, []Candidate, error) {
	exact, err := d.backend.FindOrgByName(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	if exact != nil {
		return exactCandidate(exact), nil, nil
	}

	similar, err := d.backend.SimilarOrgsByName(ctx, name, maxAmbiguousCandidates)
	if err != nil {
		return nil, nil, err
	}
	return pickCandidate(similar)
}

func exactCandidate(org *models.Organization) *Candidate {
	return &Candidate{ID: org.ID, Name: org.Name, Score: 1.0}
}

func pickCandidate(similar []Candidate) (*Candidate, []Candidate, error) {
	if len(similar) == 0 {
		return nil, nil, nil
	}
	top := similar[0]
	for _, c := range similar[1:] {
		if c.Score > top.Score {
			top = c
		}
	}
	if top.Score > SimilarityThreshold {
		return &top, nil, nil
	}

	ambiguous := make([]Candidate, 0, len(similar))
	for _, c := range similar {
		if c.Score > 0 {
			ambiguous = append(ambiguous, c)
		}
		if len(ambiguous) == maxAmbiguousCandidates {
			break
		}
	}
	if len(ambiguous) == 0 {
		return nil, nil, nil
	}
	return nil, ambiguous, nil
}
