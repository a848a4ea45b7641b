package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	"github.com/salesforge-io/salesforge/internal/models"
)

func (suite *HandlerTestSuite) startEnrichment(orgID string, body models.StartEnrichment) *httptest.ResponseRecorder {
	require := suite.Require()
	reqBody, err := json.Marshal(body)
	require.NoError(err)
	_, res, err := suite.ServeRequest(
		http.MethodPost,
		"/:id/enrichments", "/"+orgID+"/enrichments",
		func(c *gin.Context) { suite.api.StartEnrichment(c) },
		bytes.NewBuffer(reqBody),
	)
	require.NoError(err)
	return res
}

func (suite *HandlerTestSuite) patchEnrichment(id string, update models.UpdateEnrichment) *httptest.ResponseRecorder {
	require := suite.Require()
	reqBody, err := json.Marshal(update)
	require.NoError(err)
	_, res, err := suite.ServeRequest(
		http.MethodPatch,
		"/:id", "/"+id,
		func(c *gin.Context) { suite.api.UpdateEnrichment(c) },
		bytes.NewBuffer(reqBody),
	)
	require.NoError(err)
	return res
}

func (suite *HandlerTestSuite) TestStartEnrichmentIdempotentWhileInFlight() {
	assert := suite.Assert()
	require := suite.Require()

	org := suite.createOrganization(models.AddOrganization{Name: "acme", Domain: ptr("acme.com")})

	res := suite.startEnrichment(org.ID.String(), models.StartEnrichment{
		Source:     models.EnrichmentSourceWebsite,
		WebsiteURL: "https://acme.com",
	})
	require.Equal(http.StatusCreated, res.Code, res.Body.String())
	var first models.EnrichmentRecord
	require.NoError(json.Unmarshal(res.Body.Bytes(), &first))
	assert.Equal(models.EnrichmentPending, first.Status)

	// starting again without force returns the in-flight record
	res = suite.startEnrichment(org.ID.String(), models.StartEnrichment{
		Source:     models.EnrichmentSourceWebsite,
		WebsiteURL: "https://acme.com",
	})
	require.Equal(http.StatusOK, res.Code)
	var second models.EnrichmentRecord
	require.NoError(json.Unmarshal(res.Body.Bytes(), &second))
	assert.Equal(first.ID, second.ID)
}

func (suite *HandlerTestSuite) TestStartEnrichmentForceSupersedes() {
	assert := suite.Assert()
	require := suite.Require()

	org := suite.createOrganization(models.AddOrganization{Name: "acme", Domain: ptr("acme.com")})

	res := suite.startEnrichment(org.ID.String(), models.StartEnrichment{
		Source:     models.EnrichmentSourceWebsite,
		WebsiteURL: "https://acme.com",
	})
	require.Equal(http.StatusCreated, res.Code)
	var first models.EnrichmentRecord
	require.NoError(json.Unmarshal(res.Body.Bytes(), &first))

	res = suite.startEnrichment(org.ID.String(), models.StartEnrichment{
		Source:     models.EnrichmentSourceWebsite,
		WebsiteURL: "https://acme.com",
		Force:      true,
	})
	require.Equal(http.StatusCreated, res.Code)
	var second models.EnrichmentRecord
	require.NoError(json.Unmarshal(res.Body.Bytes(), &second))
	assert.NotEqual(first.ID, second.ID)

	// the superseded job is terminally failed
	var old models.EnrichmentRecord
	require.NoError(suite.api.db.First(&old, "id = ?", first.ID).Error)
	assert.Equal(models.EnrichmentFailed, old.Status)
}

func (suite *HandlerTestSuite) TestUpdateEnrichmentMonotonicStatus() {
	assert := suite.Assert()
	require := suite.Require()

	org := suite.createOrganization(models.AddOrganization{Name: "acme", Domain: ptr("acme.com")})
	res := suite.startEnrichment(org.ID.String(), models.StartEnrichment{
		Source:     models.EnrichmentSourceWebsite,
		WebsiteURL: "https://acme.com",
	})
	require.Equal(http.StatusCreated, res.Code)
	var record models.EnrichmentRecord
	require.NoError(json.Unmarshal(res.Body.Bytes(), &record))

	res = suite.patchEnrichment(record.ID.String(), models.UpdateEnrichment{Status: models.EnrichmentAnalyzing})
	require.Equal(http.StatusOK, res.Code, res.Body.String())

	// moving back to scraping would be a regression
	res = suite.patchEnrichment(record.ID.String(), models.UpdateEnrichment{Status: models.EnrichmentScraping})
	assert.Equal(http.StatusConflict, res.Code)

	// completed requires a payload
	res = suite.patchEnrichment(record.ID.String(), models.UpdateEnrichment{Status: models.EnrichmentCompleted})
	assert.Equal(http.StatusBadRequest, res.Code)

	payload, _ := json.Marshal(models.EnrichmentResult{CompanyName: "Acme"})
	res = suite.patchEnrichment(record.ID.String(), models.UpdateEnrichment{
		Status:        models.EnrichmentCompleted,
		ResultPayload: payload,
	})
	require.Equal(http.StatusOK, res.Code, res.Body.String())
}

func (suite *HandlerTestSuite) TestGetEnrichmentReturnsGeneratedSkills() {
	assert := suite.Assert()
	require := suite.Require()

	org := suite.createOrganization(models.AddOrganization{Name: "acme", Domain: ptr("acme.com")})
	res := suite.startEnrichment(org.ID.String(), models.StartEnrichment{
		Source: models.EnrichmentSourceManual,
		Facts:  map[string]string{"industry": "robotics"},
	})
	require.Equal(http.StatusCreated, res.Code)
	var record models.EnrichmentRecord
	require.NoError(json.Unmarshal(res.Body.Bytes(), &record))

	payload, _ := json.Marshal(models.EnrichmentResult{
		CompanyName: "Acme",
		GeneratedSkills: []models.SkillBlock{
			{Kind: models.SkillBrandVoice, Content: json.RawMessage(`{"tone":"direct"}`)},
		},
	})
	res = suite.patchEnrichment(record.ID.String(), models.UpdateEnrichment{
		Status:        models.EnrichmentCompleted,
		ResultPayload: payload,
	})
	require.Equal(http.StatusOK, res.Code)

	_, res2, err := suite.ServeRequest(
		http.MethodGet,
		"/:id/enrichments/:enrichment", "/"+org.ID.String()+"/enrichments/"+record.ID.String(),
		func(c *gin.Context) { suite.api.GetEnrichment(c) }, nil,
	)
	require.NoError(err)
	require.Equal(http.StatusOK, res2.Code)

	var status models.EnrichmentStatusResponse
	require.NoError(json.Unmarshal(res2.Body.Bytes(), &status))
	assert.Equal(models.EnrichmentCompleted, status.Status)
	require.Len(status.GeneratedSkills, 1)
	assert.Equal(models.SkillBrandVoice, status.GeneratedSkills[0].Kind)
}

func (suite *HandlerTestSuite) TestListEnrichmentsNewestFirst() {
	assert := suite.Assert()
	require := suite.Require()

	org := suite.createOrganization(models.AddOrganization{Name: "acme", Domain: ptr("acme.com")})
	res := suite.startEnrichment(org.ID.String(), models.StartEnrichment{
		Source:     models.EnrichmentSourceWebsite,
		WebsiteURL: "https://acme.com",
	})
	require.Equal(http.StatusCreated, res.Code)
	res = suite.startEnrichment(org.ID.String(), models.StartEnrichment{
		Source:     models.EnrichmentSourceWebsite,
		WebsiteURL: "https://acme.com",
		Force:      true,
	})
	require.Equal(http.StatusCreated, res.Code)
	var latest models.EnrichmentRecord
	require.NoError(json.Unmarshal(res.Body.Bytes(), &latest))

	_, res2, err := suite.ServeRequest(
		http.MethodGet,
		"/:id/enrichments", "/"+org.ID.String()+"/enrichments",
		func(c *gin.Context) { suite.api.ListEnrichments(c) }, nil,
	)
	require.NoError(err)
	require.Equal(http.StatusOK, res2.Code)

	var records []models.EnrichmentRecord
	require.NoError(json.Unmarshal(res2.Body.Bytes(), &records))
	require.Len(records, 2)
	assert.Equal(latest.ID, records[0].ID)
}
