package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/salesforge-io/salesforge/internal/models"
)

func (suite *HandlerTestSuite) TestGarbageCollectPurgesOldSoftDeletes() {
	assert := suite.Assert()
	require := suite.Require()

	old := suite.createOrganization(models.AddOrganization{Name: "old", Domain: ptr("old.com")})
	recent := suite.createOrganization(models.AddOrganization{Name: "recent", Domain: ptr("recent.com")})

	require.NoError(suite.api.db.Delete(&models.Organization{}, "id = ?", old.ID).Error)
	require.NoError(suite.api.db.Delete(&models.Organization{}, "id = ?", recent.ID).Error)

	// age one of the tombstones past retention
	aged := time.Now().Add(-gcRetention - time.Hour)
	require.NoError(suite.api.db.Unscoped().
		Model(&models.Organization{}).
		Where("id = ?", old.ID).
		Update("deleted_at", aged).Error)

	_, res, err := suite.ServeRequest(
		http.MethodPost,
		"/gc", "/gc",
		suite.api.GarbageCollect, nil,
	)
	require.NoError(err)
	require.Equal(http.StatusOK, res.Code, res.Body.String())

	var response GarbageCollectResponse
	require.NoError(json.Unmarshal(res.Body.Bytes(), &response))
	assert.Equal(int64(1), response.Organizations)

	var count int64
	suite.api.db.Unscoped().Model(&models.Organization{}).
		Where("id = ?", old.ID).Count(&count)
	assert.Equal(int64(0), count)

	// the fresh tombstone survives for a possible restore
	var kept models.Organization
	err = suite.api.db.Unscoped().First(&kept, "id = ?", recent.ID).Error
	assert.NoError(err)
}
