package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	"github.com/salesforge-io/salesforge/internal/models"
)

func fullSkillSet() []models.SkillBlock {
	blocks := make([]models.SkillBlock, 0, len(models.SkillKinds))
	for _, kind := range models.SkillKinds {
		blocks = append(blocks, models.SkillBlock{
			Kind:    kind,
			Source:  models.SkillSourceAIDefault,
			Content: json.RawMessage(`{"value":"` + string(kind) + `"}`),
		})
	}
	return blocks
}

func (suite *HandlerTestSuite) replaceSkills(orgID string, blocks []models.SkillBlock) *httptest.ResponseRecorder {
	require := suite.Require()
	reqBody, err := json.Marshal(ReplaceSkillConfigs{Skills: blocks})
	require.NoError(err)
	_, res, err := suite.ServeRequest(
		http.MethodPut,
		"/:id/skills", "/"+orgID+"/skills",
		func(c *gin.Context) { suite.api.ReplaceOrganizationSkills(c) },
		bytes.NewBuffer(reqBody),
	)
	require.NoError(err)
	return res
}

func (suite *HandlerTestSuite) TestReplaceOrganizationSkills() {
	assert := suite.Assert()
	require := suite.Require()

	org := suite.createOrganization(models.AddOrganization{Name: "acme", Domain: ptr("acme.com")})

	res := suite.replaceSkills(org.ID.String(), fullSkillSet())
	require.Equal(http.StatusOK, res.Code, res.Body.String())

	var configs []models.SkillConfig
	require.NoError(json.Unmarshal(res.Body.Bytes(), &configs))
	assert.Len(configs, len(models.SkillKinds))

	// a second save replaces, it does not accumulate
	blocks := fullSkillSet()
	blocks[0].Source = models.SkillSourceUserSkipped
	blocks[0].Content = nil
	res = suite.replaceSkills(org.ID.String(), blocks)
	require.Equal(http.StatusOK, res.Code)

	var count int64
	suite.api.db.Model(&models.SkillConfig{}).Where("organization_id = ?", org.ID).Count(&count)
	assert.Equal(int64(len(models.SkillKinds)), count)

	var saved models.SkillConfig
	require.NoError(suite.api.db.First(&saved, "organization_id = ? AND kind = ?", org.ID, blocks[0].Kind).Error)
	assert.Equal(models.SkillSourceUserSkipped, saved.Source)
}

func (suite *HandlerTestSuite) TestReplaceOrganizationSkillsRejectsPartialSet() {
	assert := suite.Assert()

	org := suite.createOrganization(models.AddOrganization{Name: "acme", Domain: ptr("acme.com")})

	// missing kinds
	res := suite.replaceSkills(org.ID.String(), fullSkillSet()[:3])
	assert.Equal(http.StatusBadRequest, res.Code)

	// duplicate kind
	blocks := fullSkillSet()
	blocks[1].Kind = blocks[0].Kind
	res = suite.replaceSkills(org.ID.String(), blocks)
	assert.Equal(http.StatusBadRequest, res.Code)

	// unknown kind
	blocks = fullSkillSet()
	blocks[0].Kind = "mystery"
	res = suite.replaceSkills(org.ID.String(), blocks)
	assert.Equal(http.StatusBadRequest, res.Code)
}

func (suite *HandlerTestSuite) TestListOrganizationSkills() {
	require := suite.Require()

	org := suite.createOrganization(models.AddOrganization{Name: "acme", Domain: ptr("acme.com")})
	res := suite.replaceSkills(org.ID.String(), fullSkillSet())
	require.Equal(http.StatusOK, res.Code)

	_, res2, err := suite.ServeRequest(
		http.MethodGet,
		"/:id/skills", "/"+org.ID.String()+"/skills",
		func(c *gin.Context) { suite.api.ListOrganizationSkills(c) }, nil,
	)
	require.NoError(err)
	require.Equal(http.StatusOK, res2.Code)

	var configs []models.SkillConfig
	require.NoError(json.Unmarshal(res2.Body.Bytes(), &configs))
	require.Len(configs, len(models.SkillKinds))
}
