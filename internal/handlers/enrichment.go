package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/salesforge-io/salesforge/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// StartEnrichment starts an enrichment job for an organization
// @Summary      Start Enrichment
// @Description  Starts an enrichment job. If one is already in flight the existing record is returned unless force is set, which supersedes it with a fresh job.
// @Id           StartEnrichment
// @Tags         Enrichment
// @Accept       json
// @Produce      json
// @Param        id          path  string                  true "Organization ID"
// @Param        Enrichment  body  models.StartEnrichment  true "Start Enrichment"
// @Success      201  {object}  models.EnrichmentRecord
// @Success      200  {object}  models.EnrichmentRecord
// @Failure      400  {object}  models.BaseError
// @Failure      404  {object}  models.BaseError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/organizations/{id}/enrichments [post]
func (api *API) StartEnrichment(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "StartEnrichment",
		trace.WithAttributes(
			attribute.String("id", c.Param("id")),
		))
	defer span.End()

	orgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPathParameterError("id"))
		return
	}

	var request models.StartEnrichment
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPayloadError())
		return
	}

	var sourceRef string
	switch request.Source {
	case models.EnrichmentSourceWebsite:
		if request.WebsiteURL == "" {
			c.JSON(http.StatusBadRequest, models.NewFieldNotPresentError("website_url"))
			return
		}
		sourceRef = request.WebsiteURL
	case models.EnrichmentSourceManual:
		if len(request.Facts) == 0 {
			c.JSON(http.StatusBadRequest, models.NewFieldNotPresentError("facts"))
			return
		}
		facts, _ := json.Marshal(request.Facts)
		sourceRef = string(facts)
	default:
		c.JSON(http.StatusBadRequest, models.NewFieldValidationError("source", "must be website or manual"))
		return
	}

	var record models.EnrichmentRecord
	var reused bool
	err = api.transaction(ctx, func(tx *gorm.DB) error {
		var org models.Organization
		if res := tx.First(&org, "id = ?", orgID); res.Error != nil {
			return errOrgNotFound
		}

		var inFlight models.EnrichmentRecord
		res := tx.Where("organization_id = ? AND status in ?", orgID,
			[]models.EnrichmentStatus{models.EnrichmentPending, models.EnrichmentScraping, models.EnrichmentAnalyzing}).
			Order("created_at desc").
			First(&inFlight)
		if res.Error == nil {
			if !request.Force {
				record = inFlight
				reused = true
				return nil
			}
			// force supersedes the running job
			inFlight.Status = models.EnrichmentFailed
			inFlight.ErrorMessage = "superseded by a forced retry"
			if r := tx.Save(&inFlight); r.Error != nil {
				return r.Error
			}
		} else if !errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return res.Error
		}

		record = models.EnrichmentRecord{
			OrganizationID: orgID,
			Source:         request.Source,
			SourceRef:      sourceRef,
			Status:         models.EnrichmentPending,
		}
		if r := tx.Create(&record); r.Error != nil {
			return r.Error
		}
		span.SetAttributes(attribute.String("enrichment_id", record.ID.String()))
		return nil
	})

	if err != nil {
		if errors.Is(err, errOrgNotFound) {
			c.JSON(http.StatusNotFound, models.NewNotFoundError("organization"))
		} else {
			api.SendInternalServerError(c, err)
		}
		return
	}

	if reused {
		c.JSON(http.StatusOK, record)
		return
	}
	c.JSON(http.StatusCreated, record)
}

// ListEnrichments lists an organization's enrichment records, newest first
// @Summary      List Enrichments
// @Description  Lists enrichment records for an organization, newest first
// @Id           ListEnrichments
// @Tags         Enrichment
// @Accept       json
// @Produce      json
// @Param        id   path      string true "Organization ID"
// @Success      200  {object}  []models.EnrichmentRecord
// @Failure      400  {object}  models.BaseError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/organizations/{id}/enrichments [get]
func (api *API) ListEnrichments(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "ListEnrichments",
		trace.WithAttributes(
			attribute.String("id", c.Param("id")),
		))
	defer span.End()

	orgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPathParameterError("id"))
		return
	}

	var records []models.EnrichmentRecord
	db := api.db.WithContext(ctx).Where("organization_id = ?", orgID)
	db = FilterAndPaginate(db, &models.EnrichmentRecord{}, c, "created_at desc")
	if res := db.Find(&records); res.Error != nil {
		api.SendInternalServerError(c, res.Error)
		return
	}

	c.JSON(http.StatusOK, records)
}

// GetEnrichment returns the status of an enrichment job
// @Summary      Get Enrichment
// @Description  Gets an enrichment record with generated skills once completed
// @Id           GetEnrichment
// @Tags         Enrichment
// @Accept       json
// @Produce      json
// @Param        id            path  string true "Organization ID"
// @Param        enrichment    path  string true "Enrichment ID"
// @Success      200  {object}  models.EnrichmentStatusResponse
// @Failure      400  {object}  models.BaseError
// @Failure      404  {object}  models.BaseError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/organizations/{id}/enrichments/{enrichment} [get]
func (api *API) GetEnrichment(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "GetEnrichment",
		trace.WithAttributes(
			attribute.String("id", c.Param("id")),
			attribute.String("enrichment", c.Param("enrichment")),
		))
	defer span.End()

	orgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPathParameterError("id"))
		return
	}
	enrichmentID, err := uuid.Parse(c.Param("enrichment"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPathParameterError("enrichment"))
		return
	}

	var record models.EnrichmentRecord
	result := api.db.WithContext(ctx).
		First(&record, "id = ? AND organization_id = ?", enrichmentID, orgID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, models.NewNotFoundError("enrichment"))
		} else {
			api.SendInternalServerError(c, result.Error)
		}
		return
	}

	response := models.EnrichmentStatusResponse{
		Status: record.Status,
		Record: &record,
	}
	if record.Status == models.EnrichmentCompleted && len(record.ResultPayload) > 0 {
		var parsed models.EnrichmentResult
		if err := json.Unmarshal(record.ResultPayload, &parsed); err == nil {
			response.GeneratedSkills = parsed.GeneratedSkills
		}
	}

	c.JSON(http.StatusOK, response)
}

var errStatusRegression = errors.New("enrichment status may not move backwards")

// UpdateEnrichment is the analyzer callback reporting job progress
// @Summary      Update Enrichment
// @Description  Updates an enrichment record. Status transitions are monotonic and a completed update must carry a result payload.
// @Id           UpdateEnrichment
// @Tags         Enrichment
// @Accept       json
// @Produce      json
// @Param        id          path  string                   true "Enrichment ID"
// @Param        Enrichment  body  models.UpdateEnrichment  true "Update Enrichment"
// @Success      200  {object}  models.EnrichmentRecord
// @Failure      400  {object}  models.BaseError
// @Failure      404  {object}  models.BaseError
// @Failure      409  {object}  models.ConflictsError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/enrichments/{id} [patch]
func (api *API) UpdateEnrichment(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "UpdateEnrichment",
		trace.WithAttributes(
			attribute.String("id", c.Param("id")),
		))
	defer span.End()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPathParameterError("id"))
		return
	}

	var request models.UpdateEnrichment
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPayloadError())
		return
	}
	if !request.Status.CanTransitionTo(request.Status) {
		c.JSON(http.StatusBadRequest, models.NewFieldValidationError("status", "unknown status"))
		return
	}
	if request.Status == models.EnrichmentCompleted && len(request.ResultPayload) == 0 {
		c.JSON(http.StatusBadRequest, models.NewFieldNotPresentError("result_payload"))
		return
	}

	var record models.EnrichmentRecord
	err = api.transaction(ctx, func(tx *gorm.DB) error {
		if res := tx.First(&record, "id = ?", id); res.Error != nil {
			return res.Error
		}
		if !record.Status.CanTransitionTo(request.Status) {
			return errStatusRegression
		}
		record.Status = request.Status
		record.ErrorMessage = request.ErrorMessage
		if len(request.ResultPayload) > 0 {
			record.ResultPayload = request.ResultPayload
		}
		if request.ConfidenceScore != nil {
			record.ConfidenceScore = request.ConfidenceScore
		}
		return tx.Save(&record).Error
	})

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, models.NewNotFoundError("enrichment"))
		} else if errors.Is(err, errStatusRegression) {
			c.JSON(http.StatusConflict, models.NewConflictsError(record.ID.String()))
		} else {
			api.SendInternalServerError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, record)
}
