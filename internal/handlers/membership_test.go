package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/salesforge-io/salesforge/internal/models"
)

func (suite *HandlerTestSuite) resolveMembership(orgID string) ResolveMembershipResponse {
	require := suite.Require()
	_, res, err := suite.ServeRequest(
		http.MethodPost,
		"/:id/memberships/resolve", "/"+orgID+"/memberships/resolve",
		func(c *gin.Context) { suite.api.ResolveMembership(c) },
		bytes.NewBufferString("{}"),
	)
	require.NoError(err)
	require.Equal(http.StatusOK, res.Code, res.Body.String())
	var response ResolveMembershipResponse
	require.NoError(json.Unmarshal(res.Body.Bytes(), &response))
	return response
}

func (suite *HandlerTestSuite) TestResolveMembershipDeletesEmptyProvisionalOrg() {
	assert := suite.Assert()
	require := suite.Require()

	org := suite.createOrganization(models.AddOrganization{
		Name:        "acme",
		Domain:      ptr("acme.com"),
		Provisional: true,
	})

	response := suite.resolveMembership(org.ID.String())
	assert.True(response.ProvisionalOrgDeleted)
	assert.False(response.ProvisionalOrgRetained)

	var count int64
	suite.api.db.Model(&models.Organization{}).Where("id = ?", org.ID).Count(&count)
	require.Equal(int64(0), count)
}

func (suite *HandlerTestSuite) TestResolveMembershipKeepsOrgWithMembers() {
	assert := suite.Assert()
	require := suite.Require()

	org := suite.createOrganization(models.AddOrganization{
		Name:        "acme",
		Domain:      ptr("acme.com"),
		Provisional: true,
	})

	// a second member joins the provisional org
	other := suite.createSecondUser("other-sub")
	require.NoError(suite.api.db.Create(&models.UserOrganization{
		UserID:         other.ID,
		OrganizationID: org.ID,
		Role:           "member",
	}).Error)

	response := suite.resolveMembership(org.ID.String())
	assert.False(response.ProvisionalOrgDeleted)
	assert.True(response.ProvisionalOrgRetained)

	var count int64
	suite.api.db.Model(&models.Organization{}).Where("id = ?", org.ID).Count(&count)
	assert.Equal(int64(1), count)

	// only the caller's membership was removed
	var memberships int64
	suite.api.db.Model(&models.UserOrganization{}).Where("organization_id = ?", org.ID).Count(&memberships)
	assert.Equal(int64(1), memberships)
}

func (suite *HandlerTestSuite) TestResolveMembershipKeepsNonProvisionalOrg() {
	assert := suite.Assert()

	org := suite.createOrganization(models.AddOrganization{
		Name:   "acme",
		Domain: ptr("acme.com"),
	})

	response := suite.resolveMembership(org.ID.String())
	assert.False(response.ProvisionalOrgDeleted)
	assert.True(response.ProvisionalOrgRetained)

	var count int64
	suite.api.db.Model(&models.Organization{}).Where("id = ?", org.ID).Count(&count)
	assert.Equal(int64(1), count)
}

func (suite *HandlerTestSuite) TestResolveMembershipIsIdempotent() {
	assert := suite.Assert()

	org := suite.createOrganization(models.AddOrganization{
		Name:        "acme",
		Domain:      ptr("acme.com"),
		Provisional: true,
	})

	first := suite.resolveMembership(org.ID.String())
	assert.True(first.ProvisionalOrgDeleted)

	// resolving an already-deleted org is a no-op, not an error
	second := suite.resolveMembership(org.ID.String())
	assert.False(second.ProvisionalOrgDeleted)
}
