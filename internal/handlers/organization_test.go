package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/salesforge-io/salesforge/internal/models"
)

func ptr(s string) *string {
	return &s
}

func (suite *HandlerTestSuite) createOrganization(add models.AddOrganization) models.Organization {
	require := suite.Require()
	reqBody, err := json.Marshal(add)
	require.NoError(err)
	_, res, err := suite.ServeRequest(
		http.MethodPost,
		"/", "/",
		suite.api.CreateOrganization,
		bytes.NewBuffer(reqBody),
	)
	require.NoError(err)
	body, err := io.ReadAll(res.Body)
	require.NoError(err)
	require.Contains([]int{http.StatusCreated, http.StatusOK}, res.Code, string(body))

	var org models.Organization
	require.NoError(json.Unmarshal(body, &org))
	return org
}

func (suite *HandlerTestSuite) TestCreateOrganizationIdempotentPerDomain() {
	require := suite.Require()

	first := suite.createOrganization(models.AddOrganization{
		Name:        "Acme Corp",
		Domain:      ptr("acme.com"),
		Provisional: true,
	})
	require.NotEqual("", first.ID.String())

	// resubmitting the same domain returns the original, not a duplicate
	second := suite.createOrganization(models.AddOrganization{
		Name:   "Acme Corp Again",
		Domain: ptr("acme.com"),
	})
	require.Equal(first.ID, second.ID)

	var count int64
	suite.api.db.Model(&models.Organization{}).Where("owner_id = ?", suite.testUserID).Count(&count)
	require.Equal(int64(1), count)
}

func (suite *HandlerTestSuite) TestCreateOrganizationRequiresName() {
	assert := suite.Assert()
	reqBody, _ := json.Marshal(models.AddOrganization{Domain: ptr("acme.com")})
	_, res, err := suite.ServeRequest(
		http.MethodPost,
		"/", "/",
		suite.api.CreateOrganization,
		bytes.NewBuffer(reqBody),
	)
	assert.NoError(err)
	assert.Equal(http.StatusBadRequest, res.Code)
}

func (suite *HandlerTestSuite) TestLookupOrganization() {
	assert := suite.Assert()
	require := suite.Require()

	org := suite.createOrganization(models.AddOrganization{
		Name:   "Globex",
		Domain: ptr("globex.io"),
	})

	// domain lookup is case-insensitive
	_, res, err := suite.ServeRequest(
		http.MethodGet,
		"/lookup", "/lookup?domain=GLOBEX.IO",
		suite.api.LookupOrganization, nil,
	)
	require.NoError(err)
	require.Equal(http.StatusOK, res.Code)
	var found models.Organization
	require.NoError(json.Unmarshal(res.Body.Bytes(), &found))
	assert.Equal(org.ID, found.ID)

	// name lookup
	_, res, err = suite.ServeRequest(
		http.MethodGet,
		"/lookup", "/lookup?name=globex",
		suite.api.LookupOrganization, nil,
	)
	require.NoError(err)
	require.Equal(http.StatusOK, res.Code)

	// no match is a 404
	_, res, err = suite.ServeRequest(
		http.MethodGet,
		"/lookup", "/lookup?domain=nowhere.example",
		suite.api.LookupOrganization, nil,
	)
	require.NoError(err)
	assert.Equal(http.StatusNotFound, res.Code)
}

func (suite *HandlerTestSuite) TestListSimilarOrganizationsRanking() {
	assert := suite.Assert()
	require := suite.Require()

	suite.createOrganization(models.AddOrganization{Name: "Acme Corp", Domain: ptr("acme.com")})
	suite.createOrganization(models.AddOrganization{Name: "Acme Labs", Domain: ptr("acmelabs.com")})
	suite.createOrganization(models.AddOrganization{Name: "Initech", Domain: ptr("initech.com")})

	_, res, err := suite.ServeRequest(
		http.MethodGet,
		"/similar", "/similar?name=acme+corp",
		suite.api.ListSimilarOrganizations, nil,
	)
	require.NoError(err)
	require.Equal(http.StatusOK, res.Code)

	var candidates []models.OrganizationCandidate
	require.NoError(json.Unmarshal(res.Body.Bytes(), &candidates))
	require.NotEmpty(candidates)

	// exact name match pins score 1.0 and ranks first
	assert.Equal("Acme Corp", candidates[0].Name)
	assert.Equal(1.0, candidates[0].SimilarityScore)
	for i := 1; i < len(candidates); i++ {
		assert.LessOrEqual(candidates[i].SimilarityScore, candidates[i-1].SimilarityScore)
	}
}

func (suite *HandlerTestSuite) TestListSimilarOrganizationsLimit() {
	require := suite.Require()

	suite.createOrganization(models.AddOrganization{Name: "Acme One", Domain: ptr("acme1.com")})
	suite.createOrganization(models.AddOrganization{Name: "Acme Two", Domain: ptr("acme2.com")})
	suite.createOrganization(models.AddOrganization{Name: "Acme Three", Domain: ptr("acme3.com")})

	_, res, err := suite.ServeRequest(
		http.MethodGet,
		"/similar", "/similar?name=acme&limit=2",
		suite.api.ListSimilarOrganizations, nil,
	)
	require.NoError(err)
	require.Equal(http.StatusOK, res.Code)

	var candidates []models.OrganizationCandidate
	require.NoError(json.Unmarshal(res.Body.Bytes(), &candidates))
	require.LessOrEqual(len(candidates), 2)
}

func (suite *HandlerTestSuite) TestGetAndDeleteOrganization() {
	assert := suite.Assert()
	require := suite.Require()

	org := suite.createOrganization(models.AddOrganization{Name: "Hooli", Domain: ptr("hooli.com")})

	_, res, err := suite.ServeRequest(
		http.MethodGet,
		"/:id", "/"+org.ID.String(),
		func(c *gin.Context) { suite.api.GetOrganization(c) }, nil,
	)
	require.NoError(err)
	assert.Equal(http.StatusOK, res.Code)

	_, res, err = suite.ServeRequest(
		http.MethodDelete,
		"/:id", "/"+org.ID.String(),
		func(c *gin.Context) { suite.api.DeleteOrganization(c) }, nil,
	)
	require.NoError(err)
	assert.Equal(http.StatusOK, res.Code)

	_, res, err = suite.ServeRequest(
		http.MethodGet,
		"/:id", "/"+org.ID.String(),
		func(c *gin.Context) { suite.api.GetOrganization(c) }, nil,
	)
	require.NoError(err)
	assert.Equal(http.StatusNotFound, res.Code)
}
