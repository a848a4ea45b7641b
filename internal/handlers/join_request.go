package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/salesforge-io/salesforge/internal/database"
	"github.com/salesforge-io/salesforge/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var errOrgNotFound = errors.New("organization not found")

type errDuplicateJoinRequest struct {
	ID string
}

func (e errDuplicateJoinRequest) Error() string {
	return "join request already exists"
}

// CreateJoinRequest creates a request to join an organization
// @Summary      Create a Join Request
// @Description  Requests membership in an existing organization. At most one pending request per user and organization.
// @Id           CreateJoinRequest
// @Tags         JoinRequests
// @Accept       json
// @Produce      json
// @Param        JoinRequest  body     models.AddJoinRequest  true  "Add JoinRequest"
// @Success      201  {object}  models.JoinRequest
// @Failure      400  {object}  models.BaseError
// @Failure      404  {object}  models.BaseError
// @Failure      409  {object}  models.ConflictsError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/join-requests [post]
func (api *API) CreateJoinRequest(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "CreateJoinRequest")
	defer span.End()
	userId := api.GetCurrentUserID(c)

	var request models.AddJoinRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPayloadError())
		return
	}
	if request.OrganizationID == uuid.Nil {
		c.JSON(http.StatusBadRequest, models.NewFieldNotPresentError("organization_id"))
		return
	}

	var joinRequest models.JoinRequest
	err := api.transaction(ctx, func(tx *gorm.DB) error {
		var org models.Organization
		if res := tx.First(&org, "id = ? AND is_active = ?", request.OrganizationID, true); res.Error != nil {
			return errOrgNotFound
		}

		profile := models.JSONMap{}
		for k, v := range request.Profile {
			profile[k] = v
		}
		joinRequest = models.JoinRequest{
			OrganizationID: request.OrganizationID,
			UserID:         userId,
			Status:         models.JoinRequestPending,
			Profile:        profile,
		}
		if res := tx.Create(&joinRequest); res.Error != nil {
			if database.IsDuplicateError(res.Error) {
				var existing models.JoinRequest
				if r := tx.First(&existing, "organization_id = ? AND user_id = ? AND status = ?",
					request.OrganizationID, userId, models.JoinRequestPending); r.Error == nil {
					return errDuplicateJoinRequest{ID: existing.ID.String()}
				}
				return errDuplicateJoinRequest{}
			}
			return res.Error
		}
		span.SetAttributes(attribute.String("id", joinRequest.ID.String()))
		return nil
	})

	if err != nil {
		var duplicate errDuplicateJoinRequest
		if errors.Is(err, errOrgNotFound) {
			c.JSON(http.StatusNotFound, models.NewNotFoundError("organization"))
		} else if errors.As(err, &duplicate) {
			c.JSON(http.StatusConflict, models.NewConflictsError(duplicate.ID))
		} else {
			api.SendInternalServerError(c, err)
		}
		return
	}

	c.JSON(http.StatusCreated, joinRequest)
}

// ListJoinRequests lists join requests visible to the current user
// @Summary      List Join Requests
// @Description  Lists join requests targeting organizations the current user owns, plus the user's own requests
// @Id           ListJoinRequests
// @Tags         JoinRequests
// @Accept       json
// @Produce      json
// @Success      200  {object}  []models.JoinRequest
// @Failure      401  {object}  models.BaseError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/join-requests [get]
func (api *API) ListJoinRequests(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "ListJoinRequests")
	defer span.End()
	userId := api.GetCurrentUserID(c)

	var requests []models.JoinRequest
	db := api.db.WithContext(ctx).
		Where("user_id = ? OR organization_id in (SELECT id FROM organizations WHERE owner_id = ?)", userId, userId)
	db = FilterAndPaginate(db, &models.JoinRequest{}, c, "created_at")
	result := db.Find(&requests)
	if result.Error != nil {
		api.SendInternalServerError(c, result.Error)
		return
	}

	c.JSON(http.StatusOK, requests)
}

// ApproveJoinRequest approves a pending join request
// @Summary      Approve a Join Request
// @Description  Approves a pending join request and adds the requester as a member. Owner only.
// @Id           ApproveJoinRequest
// @Tags         JoinRequests
// @Accept       json
// @Produce      json
// @Param        id   path      string true "JoinRequest ID"
// @Success      200  {object}  models.JoinRequest
// @Failure      400  {object}  models.BaseError
// @Failure      403  {object}  models.NotAllowedError
// @Failure      404  {object}  models.BaseError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/join-requests/{id}/approve [post]
func (api *API) ApproveJoinRequest(c *gin.Context) {
	api.settleJoinRequest(c, models.JoinRequestApproved)
}

// RejectJoinRequest rejects a pending join request
// @Summary      Reject a Join Request
// @Description  Rejects a pending join request. Owner only.
// @Id           RejectJoinRequest
// @Tags         JoinRequests
// @Accept       json
// @Produce      json
// @Param        id   path      string true "JoinRequest ID"
// @Success      200  {object}  models.JoinRequest
// @Failure      400  {object}  models.BaseError
// @Failure      403  {object}  models.NotAllowedError
// @Failure      404  {object}  models.BaseError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/join-requests/{id}/reject [post]
func (api *API) RejectJoinRequest(c *gin.Context) {
	api.settleJoinRequest(c, models.JoinRequestRejected)
}

var (
	errNotOrgOwner        = errors.New("not the organization owner")
	errJoinRequestSettled = errors.New("join request already settled")
)

func (api *API) settleJoinRequest(c *gin.Context, status models.JoinRequestStatus) {
	ctx, span := tracer.Start(c.Request.Context(), "SettleJoinRequest",
		trace.WithAttributes(
			attribute.String("id", c.Param("id")),
			attribute.String("status", string(status)),
		))
	defer span.End()
	userId := api.GetCurrentUserID(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPathParameterError("id"))
		return
	}

	var joinRequest models.JoinRequest
	err = api.transaction(ctx, func(tx *gorm.DB) error {
		if res := tx.First(&joinRequest, "id = ?", id); res.Error != nil {
			return res.Error
		}
		var org models.Organization
		if res := tx.First(&org, "id = ?", joinRequest.OrganizationID); res.Error != nil {
			return res.Error
		}
		if org.OwnerID != userId {
			return errNotOrgOwner
		}
		if joinRequest.Status != models.JoinRequestPending {
			return errJoinRequestSettled
		}

		joinRequest.Status = status
		if res := tx.Save(&joinRequest); res.Error != nil {
			return res.Error
		}

		if status == models.JoinRequestApproved {
			membership := models.UserOrganization{
				UserID:         joinRequest.UserID,
				OrganizationID: joinRequest.OrganizationID,
				Role:           "member",
			}
			if res := tx.Create(&membership); res.Error != nil && !database.IsDuplicateError(res.Error) {
				return res.Error
			}
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, models.NewNotFoundError("join-request"))
		} else if errors.Is(err, errNotOrgOwner) {
			c.JSON(http.StatusForbidden, models.NewNotAllowedError("only the organization owner can settle join requests"))
		} else if errors.Is(err, errJoinRequestSettled) {
			c.JSON(http.StatusConflict, models.NewConflictsError(joinRequest.ID.String()))
		} else {
			api.SendInternalServerError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, joinRequest)
}
