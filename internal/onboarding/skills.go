package onboarding

import (
	"encoding/json"
	"fmt"

	"github.com/salesforge-io/salesforge/internal/models"
)

// SkillBlockState tracks one configuration block through review. Original
// keeps the AI-generated value so a block can be reset independently.
type SkillBlockState struct {
	Kind      models.SkillKind   `json:"kind"`
	Source    models.SkillSource `json:"source"`
	Content   json.RawMessage    `json:"content,omitempty"`
	Original  json.RawMessage    `json:"original,omitempty"`
	Questions []string           `json:"questions,omitempty"`
}

// SkillDraft holds the generated skill configuration while the user reviews
// it. Every known kind is present even when the generator produced nothing
// for it.
type SkillDraft struct {
	Blocks []SkillBlockState `json:"blocks"`
}

// NewSkillDraft seeds a draft from generated enrichment output, defaulting
// every block to the AI value.
func NewSkillDraft(generated []models.SkillBlock) *SkillDraft {
	byKind := map[models.SkillKind]models.SkillBlock{}
	for _, b := range generated {
		byKind[b.Kind] = b
	}
	draft := &SkillDraft{}
	for _, kind := range models.SkillKinds {
		b := byKind[kind]
		draft.Blocks = append(draft.Blocks, SkillBlockState{
			Kind:      kind,
			Source:    models.SkillSourceAIDefault,
			Content:   b.Content,
			Original:  b.Content,
			Questions: b.Questions,
		})
	}
	return draft
}

func (d *SkillDraft) block(kind models.SkillKind) (*SkillBlockState, error) {
	for i := range d.Blocks {
		if d.Blocks[i].Kind == kind {
			return &d.Blocks[i], nil
		}
	}
	return nil, fmt.Errorf("unknown skill kind: %s", kind)
}

// Edit replaces the content of one block with a user-supplied value.
func (d *SkillDraft) Edit(kind models.SkillKind, content json.RawMessage) error {
	b, err := d.block(kind)
	if err != nil {
		return err
	}
	b.Content = content
	b.Source = models.SkillSourceUserConfigured
	return nil
}

// Skip marks a block as deliberately left unconfigured.
func (d *SkillDraft) Skip(kind models.SkillKind) error {
	b, err := d.block(kind)
	if err != nil {
		return err
	}
	b.Source = models.SkillSourceUserSkipped
	return nil
}

// Reset re-copies the AI-generated value for one block only.
func (d *SkillDraft) Reset(kind models.SkillKind) error {
	b, err := d.block(kind)
	if err != nil {
		return err
	}
	b.Content = b.Original
	b.Source = models.SkillSourceAIDefault
	return nil
}

// Save returns the blocks in persistable wire form.
func (d *SkillDraft) Save() []models.SkillBlock {
	blocks := make([]models.SkillBlock, 0, len(d.Blocks))
	for _, b := range d.Blocks {
		blocks = append(blocks, models.SkillBlock{
			Kind:      b.Kind,
			Source:    b.Source,
			Content:   b.Content,
			Questions: b.Questions,
		})
	}
	return blocks
}
