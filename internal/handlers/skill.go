package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/salesforge-io/salesforge/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// ReplaceSkillConfigs is the request body for the skills save endpoint.
type ReplaceSkillConfigs struct {
	Skills []models.SkillBlock `json:"skills"`
}

// ReplaceOrganizationSkills saves the full skill configuration
// @Summary      Replace Organization skills
// @Description  Replaces the organization's skill configuration in a single transaction. All five blocks must be present.
// @Id           ReplaceOrganizationSkills
// @Tags         Skills
// @Accept       json
// @Produce      json
// @Param        id      path  string               true "Organization ID"
// @Param        Skills  body  ReplaceSkillConfigs  true "Skill blocks"
// @Success      200  {object}  []models.SkillConfig
// @Failure      400  {object}  models.BaseError
// @Failure      404  {object}  models.BaseError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/organizations/{id}/skills [put]
func (api *API) ReplaceOrganizationSkills(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "ReplaceOrganizationSkills",
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

	var request ReplaceSkillConfigs
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPayloadError())
		return
	}

	seen := map[models.SkillKind]bool{}
	for _, block := range request.Skills {
		if !block.Kind.Valid() {
			c.JSON(http.StatusBadRequest, models.NewFieldValidationError("kind", "unknown skill kind"))
			return
		}
		if seen[block.Kind] {
			c.JSON(http.StatusBadRequest, models.NewFieldValidationError("kind", "duplicate skill kind"))
			return
		}
		seen[block.Kind] = true
	}
	for _, kind := range models.SkillKinds {
		if !seen[kind] {
			c.JSON(http.StatusBadRequest, models.NewFieldValidationError("skills", "missing skill kind "+string(kind)))
			return
		}
	}

	var configs []models.SkillConfig
	err = api.transaction(ctx, func(tx *gorm.DB) error {
		var org models.Organization
		res := api.OrganizationIsReadableByCurrentUser(c, tx).First(&org, "id = ?", orgID)
		if res.Error != nil {
			return errOrgNotFound
		}

		if res := tx.Unscoped().
			Delete(&models.SkillConfig{}, "organization_id = ?", orgID); res.Error != nil {
			return res.Error
		}

		configs = make([]models.SkillConfig, 0, len(request.Skills))
		for _, block := range request.Skills {
			configs = append(configs, models.SkillConfig{
				OrganizationID: orgID,
				Kind:           block.Kind,
				Source:         block.Source,
				Content:        block.Content,
				Questions:      pq.StringArray(block.Questions),
			})
		}
		return tx.Create(&configs).Error
	})

	if err != nil {
		if errors.Is(err, errOrgNotFound) {
			c.JSON(http.StatusNotFound, models.NewNotFoundError("organization"))
		} else {
			api.SendInternalServerError(c, err)
		}
		return
	}

	api.logger.Infof("saved %d skill blocks for organization [ %s ] on behalf of user [ %s ]",
		len(configs), orgID, userId)
	c.JSON(http.StatusOK, configs)
}

// ListOrganizationSkills lists the skill configuration blocks
// @Summary      List Organization skills
// @Description  Lists the organization's saved skill configuration blocks
// @Id           ListOrganizationSkills
// @Tags         Skills
// @Accept       json
// @Produce      json
// @Param        id   path      string true "Organization ID"
// @Success      200  {object}  []models.SkillConfig
// @Failure      400  {object}  models.BaseError
// @Failure      404  {object}  models.BaseError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/organizations/{id}/skills [get]
func (api *API) ListOrganizationSkills(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "ListOrganizationSkills",
		trace.WithAttributes(
			attribute.String("id", c.Param("id")),
		))
	defer span.End()

	orgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPathParameterError("id"))
		return
	}

	var org models.Organization
	db := api.db.WithContext(ctx)
	if res := api.OrganizationIsReadableByCurrentUser(c, db).First(&org, "id = ?", orgID); res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, models.NewNotFoundError("organization"))
		} else {
			api.SendInternalServerError(c, res.Error)
		}
		return
	}

	var configs []models.SkillConfig
	if res := db.Where("organization_id = ?", orgID).Order("kind").Find(&configs); res.Error != nil {
		api.SendInternalServerError(c, res.Error)
		return
	}

	c.JSON(http.StatusOK, configs)
}
