package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/salesforge-io/salesforge/internal/database"
	"github.com/salesforge-io/salesforge/internal/models"
	"github.com/xrash/smetrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var errDuplicateOrganization = errors.New("organization already exists")

// CreateOrganization creates a new Organization
// @Summary      Create an Organization
// @Description  Creates a named organization owned by the current user. Idempotent per (owner, domain): resubmitting the same domain returns the existing organization.
// @Id           CreateOrganization
// @Tags         Organizations
// @Accept       json
// @Produce      json
// @Param        Organization  body     models.AddOrganization  true  "Add Organization"
// @Success      201  {object}  models.Organization
// @Success      200  {object}  models.Organization
// @Failure      400  {object}  models.BaseError
// @Failure      401  {object}  models.BaseError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/organizations [post]
func (api *API) CreateOrganization(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "CreateOrganization")
	defer span.End()
	userId := api.GetCurrentUserID(c)

	var request models.AddOrganization
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPayloadError())
		return
	}

	if request.Name == "" {
		c.JSON(http.StatusBadRequest, models.NewFieldNotPresentError("name"))
		return
	}
	if request.Domain != nil {
		domain := strings.ToLower(strings.TrimSpace(*request.Domain))
		request.Domain = &domain
	}

	var org models.Organization
	err := api.transaction(ctx, func(tx *gorm.DB) error {
		var user models.User
		if res := tx.First(&user, "id = ?", userId); res.Error != nil {
			return errUserNotFound
		}

		org = models.Organization{
			Name:        request.Name,
			Domain:      request.Domain,
			OwnerID:     userId,
			IsActive:    true,
			Provisional: request.Provisional,
			Users:       []*models.User{&user},
		}

		if res := tx.Create(&org); res.Error != nil {
			if database.IsDuplicateError(res.Error) {
				return errDuplicateOrganization
			}
			api.logger.Errorf("failed to create organization: %v", res.Error)
			return res.Error
		}

		span.SetAttributes(attribute.String("id", org.ID.String()))
		api.logger.Infof("New organization request [ %s ]", org.Name)
		return nil
	})

	if err != nil {
		if errors.Is(err, errUserNotFound) {
			c.JSON(http.StatusNotFound, models.NewApiError(err))
		} else if errors.Is(err, errDuplicateOrganization) {
			// same owner resubmitting the same domain gets the original back
			var existing models.Organization
			res := api.db.WithContext(ctx).
				First(&existing, "owner_id = ? AND domain = ?", userId, request.Domain)
			if res.Error != nil {
				c.JSON(http.StatusConflict, models.NewConflictsError(""))
				return
			}
			c.JSON(http.StatusOK, existing)
		} else {
			api.SendInternalServerError(c, err)
		}
		return
	}

	c.JSON(http.StatusCreated, org)
}

func (api *API) OrganizationIsReadableByCurrentUser(c *gin.Context, db *gorm.DB) *gorm.DB {
	userId := api.GetCurrentUserID(c)
	if api.dialect == database.DialectSqlLite {
		return db.Where("owner_id = ? OR id in (SELECT organization_id FROM user_organizations where user_id=?)", userId, userId)
	} else {
		return db.Where("owner_id = ? OR id::text in (SELECT organization_id::text FROM user_organizations where user_id=?)", userId, userId)
	}
}

func (api *API) OrganizationIsOwnedByCurrentUser(c *gin.Context, db *gorm.DB) *gorm.DB {
	userId := api.GetCurrentUserID(c)
	return db.Where("owner_id = ?", userId)
}

// ListOrganizations lists all Organizations readable by the current user
// @Summary      List Organizations
// @Description  Lists all Organizations
// @Id           ListOrganizations
// @Tags         Organizations
// @Accept       json
// @Produce      json
// @Success      200  {object}  []models.Organization
// @Failure      401  {object}  models.BaseError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/organizations [get]
func (api *API) ListOrganizations(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "ListOrganizations")
	defer span.End()
	var orgs []models.Organization

	db := api.db.WithContext(ctx)
	db = api.OrganizationIsReadableByCurrentUser(c, db)
	db = FilterAndPaginate(db, &models.Organization{}, c, "name")
	result := db.Find(&orgs)

	if result.Error != nil {
		api.SendInternalServerError(c, result.Error)
		return
	}

	c.JSON(http.StatusOK, orgs)
}

// GetOrganization gets a specific Organization
// @Summary      Get Organization
// @Description  Gets an Organization by Organization ID
// @Id           GetOrganization
// @Tags         Organizations
// @Accept       json
// @Produce      json
// @Param        id   path      string true "Organization ID"
// @Success      200  {object}  models.Organization
// @Failure      400  {object}  models.BaseError
// @Failure      404  {object}  models.BaseError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/organizations/{id} [get]
func (api *API) GetOrganization(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "GetOrganization",
		trace.WithAttributes(
			attribute.String("id", c.Param("id")),
		))
	defer span.End()
	k, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPathParameterError("id"))
		return
	}
	var org models.Organization
	db := api.db.WithContext(ctx)
	result := api.OrganizationIsReadableByCurrentUser(c, db).
		First(&org, "id = ?", k.String())

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, models.NewNotFoundError("organization"))
		} else {
			api.SendInternalServerError(c, result.Error)
		}
		return
	}

	c.JSON(http.StatusOK, org)
}

// LookupOrganization finds the active org with an exact domain or name match
// @Summary      Lookup Organization
// @Description  Finds the active organization whose domain or name matches exactly, case-insensitively
// @Id           LookupOrganization
// @Tags         Organizations
// @Accept       json
// @Produce      json
// @Param        domain  query     string false "Domain to look up"
// @Param        name    query     string false "Name to look up"
// @Success      200  {object}  models.Organization
// @Failure      400  {object}  models.BaseError
// @Failure      404  {object}  models.BaseError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/organizations/lookup [get]
func (api *API) LookupOrganization(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "LookupOrganization")
	defer span.End()

	domain := strings.ToLower(strings.TrimSpace(c.Query("domain")))
	name := strings.ToLower(strings.TrimSpace(c.Query("name")))
	if domain == "" && name == "" {
		c.JSON(http.StatusBadRequest, models.NewFieldNotPresentError("domain"))
		return
	}

	db := api.db.WithContext(ctx).Where("is_active = ?", true)
	if domain != "" {
		db = db.Where("LOWER(domain) = ?", domain)
	} else {
		db = db.Where("LOWER(name) = ?", name)
	}

	var org models.Organization
	result := db.First(&org)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, models.NewNotFoundError("organization"))
		} else {
			api.SendInternalServerError(c, result.Error)
		}
		return
	}

	c.JSON(http.StatusOK, org)
}

const maxSimilarResults = 25

// ListSimilarOrganizations ranks active orgs by similarity to a query
// @Summary      List similar Organizations
// @Description  Ranks active organizations by Jaro-Winkler similarity against a domain or name
// @Id           ListSimilarOrganizations
// @Tags         Organizations
// @Accept       json
// @Produce      json
// @Param        domain  query    string false "Domain to match"
// @Param        name    query    string false "Name to match"
// @Param        limit   query    int    false "Maximum number of candidates, default 5"
// @Success      200  {object}  []models.OrganizationCandidate
// @Failure      400  {object}  models.BaseError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/organizations/similar [get]
func (api *API) ListSimilarOrganizations(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "ListSimilarOrganizations")
	defer span.End()

	domain := strings.ToLower(strings.TrimSpace(c.Query("domain")))
	name := strings.ToLower(strings.TrimSpace(c.Query("name")))
	if domain == "" && name == "" {
		c.JSON(http.StatusBadRequest, models.NewFieldNotPresentError("domain"))
		return
	}

	limit := 5
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, models.NewFieldValidationError("limit", "must be a positive integer"))
			return
		}
		limit = parsed
	}
	if limit > maxSimilarResults {
		limit = maxSimilarResults
	}

	var orgs []models.Organization
	result := api.db.WithContext(ctx).
		Where("is_active = ?", true).
		Find(&orgs)
	if result.Error != nil {
		api.SendInternalServerError(c, result.Error)
		return
	}

	candidates := make([]models.OrganizationCandidate, 0, len(orgs))
	for _, org := range orgs {
		var score float64
		if domain != "" {
			if org.Domain == nil {
				continue
			}
			score = similarity(domain, strings.ToLower(*org.Domain))
		} else {
			score = similarity(name, strings.ToLower(org.Name))
		}
		if score <= 0 {
			continue
		}
		candidates = append(candidates, models.OrganizationCandidate{
			ID:              org.ID,
			Name:            org.Name,
			Domain:          org.Domain,
			SimilarityScore: score,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].SimilarityScore > candidates[j].SimilarityScore
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	c.JSON(http.StatusOK, candidates)
}

// similarity scores two strings 0..1. Equality is pinned to 1 so exact name
// matches always rank first.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	return smetrics.JaroWinkler(a, b, 0.7, 4)
}

// DeleteOrganization deletes an existing organization owned by the caller
// @Summary      Delete Organization
// @Description  Deletes an existing organization
// @Id           DeleteOrganization
// @Tags         Organizations
// @Accept       json
// @Produce      json
// @Param        id   path      string  true "Organization ID"
// @Success      200  {object}  models.Organization
// @Failure      400  {object}  models.BaseError
// @Failure      404  {object}  models.BaseError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/organizations/{id} [delete]
func (api *API) DeleteOrganization(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "DeleteOrganization",
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
	result := api.OrganizationIsOwnedByCurrentUser(c, db).
		First(&org, "id = ?", orgID)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, models.NewNotFoundError("organization"))
		} else {
			api.SendInternalServerError(c, result.Error)
		}
		return
	}

	if res := db.Delete(&org); res.Error != nil {
		api.SendInternalServerError(c, fmt.Errorf("failed to delete the organization: %w", res.Error))
		return
	}

	c.JSON(http.StatusOK, org)
}
