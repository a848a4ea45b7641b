package models

import (
	"github.com/google/uuid"
)

// User is an account holder. A user belongs to one or more organizations,
// the first of which may be auto-created (provisional) during signup.
type User struct {
	Base
	IdpID               string          `gorm:"index" json:"idp_id"`
	UserName            string          `json:"username" example:"jdoe"`
	Email               string          `gorm:"index" json:"email" example:"jdoe@acme.com"`
	OnboardingCompleted bool            `json:"onboarding_completed"`
	Organizations       []*Organization `gorm:"many2many:user_organizations;" json:"-"`
}

// UserOrganization is the membership row joining users to organizations.
type UserOrganization struct {
	UserID         uuid.UUID `gorm:"type:uuid;primary_key" json:"user_id"`
	OrganizationID uuid.UUID `gorm:"type:uuid;primary_key" json:"organization_id"`
	Role           string    `json:"role" example:"member"`
}
