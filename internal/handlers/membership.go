package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/salesforge-io/salesforge/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// ResolveMembershipResponse reports what resolving a provisional membership
// did.
type ResolveMembershipResponse struct {
	OrganizationID         uuid.UUID `json:"organization_id"`
	ProvisionalOrgDeleted  bool      `json:"provisional_org_deleted"`
	ProvisionalOrgRetained bool      `json:"provisional_org_retained"`
}

// ResolveMembership drops the caller's provisional membership
// @Summary      Resolve membership
// @Description  Removes the caller's membership from the given organization and deletes the organization iff it is provisional, owned by the caller, and has no remaining members. An organization with other members is never deleted.
// @Id           ResolveMembership
// @Tags         Organizations
// @Accept       json
// @Produce      json
// @Param        id  path  string  true "Provisional Organization ID"
// @Success      200  {object}  ResolveMembershipResponse
// @Failure      400  {object}  models.BaseError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/organizations/{id}/memberships/resolve [post]
func (api *API) ResolveMembership(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "ResolveMembership",
		trace.WithAttributes(
			attribute.String("id", c.Param("id")),
		))
	defer span.End()
	userId := api.GetCurrentUserID(c)

	orgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPathParameterError("id"))
		return
	}

	response := ResolveMembershipResponse{OrganizationID: orgID}
	err = api.transaction(ctx, func(tx *gorm.DB) error {
		var org models.Organization
		if res := tx.First(&org, "id = ?", orgID); res.Error != nil {
			if errors.Is(res.Error, gorm.ErrRecordNotFound) {
				// already gone, nothing to clean up
				return nil
			}
			return res.Error
		}

		if res := tx.Delete(&models.UserOrganization{}, "user_id = ? AND organization_id = ?",
			userId, org.ID); res.Error != nil {
			return res.Error
		}

		if !org.Provisional || org.OwnerID != userId {
			response.ProvisionalOrgRetained = true
			return nil
		}

		var remaining int64
		if res := tx.Model(&models.UserOrganization{}).
			Where("organization_id = ?", org.ID).
			Count(&remaining); res.Error != nil {
			return res.Error
		}
		if remaining > 0 {
			response.ProvisionalOrgRetained = true
			return nil
		}

		if res := tx.Delete(&org); res.Error != nil {
			return res.Error
		}
		response.ProvisionalOrgDeleted = true
		return nil
	})

	if err != nil {
		api.SendInternalServerError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}
