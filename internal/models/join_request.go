package models

import (
	"github.com/google/uuid"
)

type JoinRequestStatus string

const (
	JoinRequestPending  JoinRequestStatus = "pending"
	JoinRequestApproved JoinRequestStatus = "approved"
	JoinRequestRejected JoinRequestStatus = "rejected"
)

// JoinRequest is a request by a user to become a member of an existing
// organization, subject to approval by the organization's owner. At most one
// pending request may exist per (user, organization) pair.
type JoinRequest struct {
	Base
	OrganizationID uuid.UUID         `gorm:"index" json:"organization_id"`
	UserID         uuid.UUID         `gorm:"index" json:"user_id"`
	Status         JoinRequestStatus `gorm:"index" json:"status" example:"pending"`
	Profile        JSONMap           `gorm:"type:jsonb" json:"profile,omitempty"`
}

// AddJoinRequest is the request body to create a join request.
type AddJoinRequest struct {
	OrganizationID uuid.UUID         `json:"organization_id"`
	Profile        map[string]string `json:"profile,omitempty"`
}
