package client

import (
	"encoding/json"

	"github.com/salesforge-io/salesforge/internal/models"
	"github.com/salesforge-io/salesforge/internal/onboarding"
)

// enrichmentView converts a server record into the engine's view of the
// attempt. A payload that fails to parse is treated as absent rather than
// failing the poll.
func enrichmentView(record *models.EnrichmentRecord) *onboarding.EnrichmentView {
	view := &onboarding.EnrichmentView{
		RecordID:   record.ID,
		Status:     record.Status,
		Error:      record.ErrorMessage,
		Confidence: record.ConfidenceScore,
	}
	if len(record.ResultPayload) > 0 {
		var result models.EnrichmentResult
		if err := json.Unmarshal(record.ResultPayload, &result); err == nil {
			view.Result = &result
		}
	}
	return view
}
