package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/salesforge-io/salesforge/internal/models"
	"github.com/salesforge-io/salesforge/internal/util"
	"gorm.io/gorm"
)

const gcRetention = 7 * 24 * time.Hour

// GarbageCollectResponse reports how many rows each table dropped.
type GarbageCollectResponse struct {
	Organizations int64 `json:"organizations"`
	JoinRequests  int64 `json:"join_requests"`
	Enrichments   int64 `json:"enrichments"`
	SkillConfigs  int64 `json:"skill_configs"`
}

// garbageCollect hard-deletes soft-deleted rows older than the retention
// window. Provisional organizations flagged for cleanup but not deletable at
// the time (e.g. a membership race) age out through this path too.
func (api *API) garbageCollect(ctx context.Context, retention time.Duration) (GarbageCollectResponse, error) {
	cutoff := time.Now().Add(-retention)
	var response GarbageCollectResponse

	err := api.transaction(ctx, func(tx *gorm.DB) error {
		purge := func(model interface{}, count *int64) error {
			res := tx.Unscoped().
				Where("deleted_at IS NOT NULL AND deleted_at < ?", cutoff).
				Delete(model)
			if res.Error != nil {
				return res.Error
			}
			*count = res.RowsAffected
			return nil
		}

		if err := purge(&models.SkillConfig{}, &response.SkillConfigs); err != nil {
			return err
		}
		if err := purge(&models.EnrichmentRecord{}, &response.Enrichments); err != nil {
			return err
		}
		if err := purge(&models.JoinRequest{}, &response.JoinRequests); err != nil {
			return err
		}
		return purge(&models.Organization{}, &response.Organizations)
	})
	return response, err
}

// RunGarbageCollector purges on a fixed interval until ctx is done.
func (api *API) RunGarbageCollector(ctx context.Context, interval time.Duration) {
	util.RunPeriodically(ctx, interval, func() {
		response, err := api.garbageCollect(ctx, gcRetention)
		if err != nil {
			api.logger.Errorf("gc run failed: %v", err)
			return
		}
		total := response.Organizations + response.JoinRequests + response.Enrichments + response.SkillConfigs
		if total > 0 {
			api.logger.Infof("gc purged %d organizations, %d join requests, %d enrichments, %d skill configs",
				response.Organizations, response.JoinRequests, response.Enrichments, response.SkillConfigs)
		}
	})
}

// GarbageCollect purges soft-deleted rows past retention
// @Summary      Garbage collect
// @Description  Hard-deletes soft-deleted rows older than the retention window
// @Id           GarbageCollect
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        retention  query  string  false  "Retention window override, e.g. 168h"
// @Success      200  {object}  GarbageCollectResponse
// @Failure      400  {object}  models.BaseError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/admin/gc [post]
func (api *API) GarbageCollect(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "GarbageCollect")
	defer span.End()

	retention := gcRetention
	if v := c.Query("retention"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, models.NewBadPathParameterError("retention"))
			return
		}
		retention = parsed
	}

	response, err := api.garbageCollect(ctx, retention)
	if err != nil {
		api.SendInternalServerError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}
