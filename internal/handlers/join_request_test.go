package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/salesforge-io/salesforge/internal/models"
)

func (suite *HandlerTestSuite) createSecondUser(sub string) *models.User {
	user, err := suite.api.createUserIfNotExists(context.Background(), sub, sub, sub+"@example.com")
	suite.Require().NoError(err)
	return user
}

func (suite *HandlerTestSuite) createJoinRequestAs(userID uuid.UUID, orgID uuid.UUID) *httptest.ResponseRecorder {
	require := suite.Require()
	reqBody, err := json.Marshal(models.AddJoinRequest{
		OrganizationID: orgID,
		Profile:        map[string]string{"email": "joiner@example.com"},
	})
	require.NoError(err)
	_, res, err := suite.ServeRequestAs(
		userID,
		http.MethodPost,
		"/", "/",
		suite.api.CreateJoinRequest,
		bytes.NewBuffer(reqBody),
	)
	require.NoError(err)
	return res
}

func (suite *HandlerTestSuite) TestCreateJoinRequestPendingConflict() {
	assert := suite.Assert()
	require := suite.Require()

	org := suite.createOrganization(models.AddOrganization{Name: "Acme", Domain: ptr("acme.com")})
	joiner := suite.createSecondUser("joiner-sub")

	res := suite.createJoinRequestAs(joiner.ID, org.ID)
	require.Equal(http.StatusCreated, res.Code, res.Body.String())

	var created models.JoinRequest
	require.NoError(json.Unmarshal(res.Body.Bytes(), &created))
	assert.Equal(models.JoinRequestPending, created.Status)

	// a second pending request for the same pair conflicts, returning the
	// existing request's id
	res = suite.createJoinRequestAs(joiner.ID, org.ID)
	require.Equal(http.StatusConflict, res.Code)
	var conflict models.ConflictsError
	require.NoError(json.Unmarshal(res.Body.Bytes(), &conflict))
	assert.Equal(created.ID.String(), conflict.ID)
}

func (suite *HandlerTestSuite) TestCreateJoinRequestUnknownOrg() {
	res := suite.createJoinRequestAs(suite.testUserID, uuid.New())
	suite.Assert().Equal(http.StatusNotFound, res.Code)
}

func (suite *HandlerTestSuite) TestApproveJoinRequestAddsMembership() {
	assert := suite.Assert()
	require := suite.Require()

	org := suite.createOrganization(models.AddOrganization{Name: "Acme", Domain: ptr("acme.com")})
	joiner := suite.createSecondUser("joiner-sub")

	res := suite.createJoinRequestAs(joiner.ID, org.ID)
	require.Equal(http.StatusCreated, res.Code)
	var created models.JoinRequest
	require.NoError(json.Unmarshal(res.Body.Bytes(), &created))

	// only the owner may approve
	_, res2, err := suite.ServeRequestAs(
		joiner.ID,
		http.MethodPost,
		"/:id/approve", "/"+created.ID.String()+"/approve",
		func(c *gin.Context) { suite.api.ApproveJoinRequest(c) }, nil,
	)
	require.NoError(err)
	assert.Equal(http.StatusForbidden, res2.Code)

	_, res2, err = suite.ServeRequest(
		http.MethodPost,
		"/:id/approve", "/"+created.ID.String()+"/approve",
		func(c *gin.Context) { suite.api.ApproveJoinRequest(c) }, nil,
	)
	require.NoError(err)
	require.Equal(http.StatusOK, res2.Code, res2.Body.String())

	var membership models.UserOrganization
	result := suite.api.db.First(&membership, "user_id = ? AND organization_id = ?", joiner.ID, org.ID)
	require.NoError(result.Error)
	assert.Equal("member", membership.Role)

	// approving twice conflicts
	_, res2, err = suite.ServeRequest(
		http.MethodPost,
		"/:id/approve", "/"+created.ID.String()+"/approve",
		func(c *gin.Context) { suite.api.ApproveJoinRequest(c) }, nil,
	)
	require.NoError(err)
	assert.Equal(http.StatusConflict, res2.Code)
}

func (suite *HandlerTestSuite) TestRejectJoinRequest() {
	assert := suite.Assert()
	require := suite.Require()

	org := suite.createOrganization(models.AddOrganization{Name: "Acme", Domain: ptr("acme.com")})
	joiner := suite.createSecondUser("joiner-sub")

	res := suite.createJoinRequestAs(joiner.ID, org.ID)
	require.Equal(http.StatusCreated, res.Code)
	var created models.JoinRequest
	require.NoError(json.Unmarshal(res.Body.Bytes(), &created))

	_, res2, err := suite.ServeRequest(
		http.MethodPost,
		"/:id/reject", "/"+created.ID.String()+"/reject",
		func(c *gin.Context) { suite.api.RejectJoinRequest(c) }, nil,
	)
	require.NoError(err)
	require.Equal(http.StatusOK, res2.Code)

	var settled models.JoinRequest
	require.NoError(json.Unmarshal(res2.Body.Bytes(), &settled))
	assert.Equal(models.JoinRequestRejected, settled.Status)

	// rejection must not create a membership
	var count int64
	suite.api.db.Model(&models.UserOrganization{}).
		Where("user_id = ? AND organization_id = ?", joiner.ID, org.ID).
		Count(&count)
	assert.Equal(int64(0), count)

	// a rejected request no longer blocks a new pending one
	res = suite.createJoinRequestAs(joiner.ID, org.ID)
	assert.Equal(http.StatusCreated, res.Code)
}
