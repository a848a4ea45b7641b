package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Organization is the tenant record users belong to.
//
// An organization created as a side effect of signup, before the user has
// confirmed their real company, is marked Provisional. Provisional
// organizations are deletion candidates once their creator is rerouted to a
// different organization.
type Organization struct {
	Base
	OwnerID          uuid.UUID  `gorm:"index" json:"owner_id"`
	Name             string     `gorm:"index" json:"name" example:"Acme Corp"`
	Domain           *string    `gorm:"index" json:"domain,omitempty" example:"acme.com"`
	IsActive         bool       `json:"is_active"`
	Provisional      bool       `json:"provisional"`
	RequiresApproval bool       `json:"requires_approval"`
	SimilarToOrgID   *uuid.UUID `gorm:"type:uuid" json:"similar_to_org_id,omitempty"`
	Users            []*User    `gorm:"many2many:user_organizations;" json:"-"`
}

func (o *Organization) BeforeCreate(tx *gorm.DB) error {
	if o.Users == nil {
		o.Users = make([]*User, 0)
	}
	return o.Base.BeforeCreate(tx)
}

// AddOrganization is the request body to create an organization.
type AddOrganization struct {
	Name        string  `json:"name" example:"Acme Corp"`
	Domain      *string `json:"domain,omitempty" example:"acme.com"`
	Provisional bool    `json:"provisional"`
}

// OrganizationCandidate is a dedup candidate returned by the similarity
// lookup, scored 0..1.
type OrganizationCandidate struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Domain          *string   `json:"domain,omitempty"`
	SimilarityScore float64   `json:"similarity_score" example:"0.85"`
}
