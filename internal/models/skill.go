package models

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type SkillKind string

const (
	SkillQualificationCriteria SkillKind = "qualification_criteria"
	SkillBrandVoice            SkillKind = "brand_voice"
	SkillObjectionPlaybook     SkillKind = "objection_playbook"
	SkillICP                   SkillKind = "icp"
	SkillEnrichmentQuestions   SkillKind = "enrichment_questions"
)

// SkillKinds lists the configuration blocks every organization carries, in
// display order.
var SkillKinds = []SkillKind{
	SkillQualificationCriteria,
	SkillBrandVoice,
	SkillObjectionPlaybook,
	SkillICP,
	SkillEnrichmentQuestions,
}

func (k SkillKind) Valid() bool {
	for _, known := range SkillKinds {
		if k == known {
			return true
		}
	}
	return false
}

type SkillSource string

const (
	SkillSourceAIDefault      SkillSource = "ai_default"
	SkillSourceUserConfigured SkillSource = "user_configured"
	SkillSourceUserSkipped    SkillSource = "user_skipped"
)

// SkillConfig is one named configuration block attached to an organization.
type SkillConfig struct {
	Base
	OrganizationID uuid.UUID       `gorm:"index:idx_skill_configs_org_kind,unique" json:"organization_id"`
	Kind           SkillKind       `gorm:"index:idx_skill_configs_org_kind,unique" json:"kind" example:"brand_voice"`
	Source         SkillSource     `json:"source" example:"ai_default"`
	Content        json.RawMessage `gorm:"type:jsonb" json:"content,omitempty"`
	Questions      pq.StringArray  `gorm:"type:text[]" json:"questions,omitempty"`
}

// SkillBlock is the wire form of a skill block, used by enrichment results
// and the skills save endpoint.
type SkillBlock struct {
	Kind      SkillKind       `json:"kind"`
	Source    SkillSource     `json:"source,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	Questions []string        `json:"questions,omitempty"`
}
