package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/salesforge-io/salesforge/internal/models"
)

func (suite *HandlerTestSuite) TestCreateUserIfNotExistsIsIdempotent() {
	require := suite.Require()

	first, err := suite.api.createUserIfNotExists(context.Background(), "sub-a", "usera", "usera@acme.com")
	require.NoError(err)
	second, err := suite.api.createUserIfNotExists(context.Background(), "sub-a", "usera", "usera@acme.com")
	require.NoError(err)
	require.Equal(first.ID, second.ID)

	var count int64
	suite.api.db.Model(&models.User{}).Where("idp_id = ?", "sub-a").Count(&count)
	require.Equal(int64(1), count)
}

func (suite *HandlerTestSuite) TestGetCurrentUser() {
	assert := suite.Assert()
	require := suite.Require()

	_, res, err := suite.ServeRequest(
		http.MethodGet,
		"/me", "/me",
		suite.api.GetCurrentUser, nil,
	)
	require.NoError(err)
	require.Equal(http.StatusOK, res.Code)

	var user models.User
	require.NoError(json.Unmarshal(res.Body.Bytes(), &user))
	assert.Equal(suite.testUserID, user.ID)
	assert.Equal(TestUserEmail, user.Email)
	assert.False(user.OnboardingCompleted)
}

func (suite *HandlerTestSuite) TestCompleteOnboarding() {
	assert := suite.Assert()
	require := suite.Require()

	_, res, err := suite.ServeRequest(
		http.MethodPost,
		"/onboarding-complete", "/onboarding-complete",
		suite.api.CompleteOnboarding, nil,
	)
	require.NoError(err)
	require.Equal(http.StatusOK, res.Code)

	var user models.User
	require.NoError(json.Unmarshal(res.Body.Bytes(), &user))
	assert.True(user.OnboardingCompleted)

	// idempotent
	_, res, err = suite.ServeRequest(
		http.MethodPost,
		"/onboarding-complete", "/onboarding-complete",
		suite.api.CompleteOnboarding, nil,
	)
	require.NoError(err)
	assert.Equal(http.StatusOK, res.Code)
}

func (suite *HandlerTestSuite) TestListUserOrganizations() {
	assert := suite.Assert()
	require := suite.Require()

	suite.createOrganization(models.AddOrganization{Name: "acme", Domain: ptr("acme.com")})

	_, res, err := suite.ServeRequest(
		http.MethodGet,
		"/me/organizations", "/me/organizations",
		suite.api.ListUserOrganizations, nil,
	)
	require.NoError(err)
	require.Equal(http.StatusOK, res.Code)

	var orgs []models.Organization
	require.NoError(json.Unmarshal(res.Body.Bytes(), &orgs))
	require.Len(orgs, 1)
	assert.Equal("acme", orgs[0].Name)
}
