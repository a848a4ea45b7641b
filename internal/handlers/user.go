package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/salesforge-io/salesforge/internal/database"
	"github.com/salesforge-io/salesforge/internal/models"
	"github.com/salesforge-io/salesforge/internal/util"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

var errUserNotFound = errors.New("user not found")

// Headers populated by the authenticating proxy in front of the api server.
const (
	identityHeaderSub      = "X-Auth-Sub"
	identityHeaderEmail    = "X-Auth-Email"
	identityHeaderUserName = "X-Auth-Username"
)

// CreateUserIfNotExists returns a middleware that resolves the proxy
// identity headers to a local user row, creating it on first sight, and
// stores the user id under gin.AuthUserKey for downstream handlers.
func (api *API) CreateUserIfNotExists() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "CreateUserIfNotExists")
		defer span.End()

		idpID := c.GetHeader(identityHeaderSub)
		if idpID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.NewApiError(errors.New("no identity")))
			return
		}
		email := c.GetHeader(identityHeaderEmail)
		userName := c.GetHeader(identityHeaderUserName)
		if userName == "" {
			userName = email
		}

		user, err := api.createUserIfNotExists(ctx, idpID, userName, email)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, models.NewApiInternalError(err))
			return
		}

		c.Set(gin.AuthUserKey, user.ID)
		c.Set(AuthUserEmail, user.Email)
		c.Set(AuthUserName, user.UserName)
		c.Next()
	}
}

// createUserIfNotExists retries on duplicate key errors since two requests
// for a brand new user can race on the insert.
func (api *API) createUserIfNotExists(ctx context.Context, idpID string, userName string, email string) (*models.User, error) {
	var user models.User
	err := util.RetryOperationForErrors(ctx, time.Millisecond*10, 1,
		[]error{gorm.ErrDuplicatedKey}, func() error {
			return api.transaction(ctx, func(tx *gorm.DB) error {
				res := tx.First(&user, "idp_id = ?", idpID)
				if res.Error == nil {
					return nil
				}
				if !errors.Is(res.Error, gorm.ErrRecordNotFound) {
					return res.Error
				}
				user = models.User{
					IdpID:    idpID,
					UserName: userName,
					Email:    email,
				}
				if res := tx.Create(&user); res.Error != nil {
					if database.IsDuplicateError(res.Error) {
						return gorm.ErrDuplicatedKey
					}
					return res.Error
				}
				api.logger.Infof("created user [ %s ] for identity [ %s ]", user.ID, idpID)
				return nil
			})
		})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetCurrentUser gets the current user
// @Summary      Get current User
// @Description  Gets the user record behind the current identity
// @Id           GetCurrentUser
// @Tags         Users
// @Accept       json
// @Produce      json
// @Success      200  {object}  models.User
// @Failure      401  {object}  models.BaseError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/users/me [get]
func (api *API) GetCurrentUser(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "GetCurrentUser")
	defer span.End()
	userId := api.GetCurrentUserID(c)

	var user models.User
	result := api.db.WithContext(ctx).First(&user, "id = ?", userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, models.NewNotFoundError("user"))
		} else {
			api.SendInternalServerError(c, result.Error)
		}
		return
	}

	c.JSON(http.StatusOK, user)
}

// CompleteOnboarding marks the current user's onboarding as finished
// @Summary      Complete onboarding
// @Description  Sets the onboarding completed flag on the current user
// @Id           CompleteOnboarding
// @Tags         Users
// @Accept       json
// @Produce      json
// @Success      200  {object}  models.User
// @Failure      401  {object}  models.BaseError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/users/onboarding-complete [post]
func (api *API) CompleteOnboarding(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "CompleteOnboarding")
	defer span.End()
	userId := api.GetCurrentUserID(c)
	span.SetAttributes(attribute.String("id", userId.String()))

	var user models.User
	err := api.transaction(ctx, func(tx *gorm.DB) error {
		if res := tx.First(&user, "id = ?", userId); res.Error != nil {
			return res.Error
		}
		if user.OnboardingCompleted {
			return nil
		}
		user.OnboardingCompleted = true
		return tx.Save(&user).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, models.NewNotFoundError("user"))
		} else {
			api.SendInternalServerError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, user)
}

// ListUserOrganizations lists the organizations the current user belongs to
// @Summary      List current User's Organizations
// @Description  Lists organizations the current user is a member of
// @Id           ListUserOrganizations
// @Tags         Users
// @Accept       json
// @Produce      json
// @Success      200  {object}  []models.Organization
// @Failure      401  {object}  models.BaseError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/users/me/organizations [get]
func (api *API) ListUserOrganizations(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "ListUserOrganizations")
	defer span.End()
	userId := api.GetCurrentUserID(c)

	var orgs []models.Organization
	result := api.db.WithContext(ctx).
		Where("id in (SELECT organization_id FROM user_organizations WHERE user_id = ?)", userId).
		Order("name").
		Find(&orgs)
	if result.Error != nil {
		api.SendInternalServerError(c, result.Error)
		return
	}

	c.JSON(http.StatusOK, orgs)
}
