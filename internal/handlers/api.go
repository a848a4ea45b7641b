package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/salesforge-io/salesforge/internal/database"
	"github.com/salesforge-io/salesforge/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var tracer trace.Tracer

func init() {
	tracer = otel.Tracer("github.com/salesforge-io/salesforge/internal/handlers")
}

// AuthUserEmail is the gin.Context key carrying the authenticated user's
// email, set by the identity middleware alongside gin.AuthUserKey.
const AuthUserEmail string = "_salesforge.UserEmail"

// AuthUserName is the gin.Context key carrying the username.
const AuthUserName string = "_salesforge.UserName"

type API struct {
	logger      *zap.SugaredLogger
	db          *gorm.DB
	transaction database.TransactionFunc
	dialect     database.Dialect
	URL         string
}

func NewAPI(
	parent context.Context,
	logger *zap.SugaredLogger,
	db *gorm.DB,
) (*API, error) {
	_, span := tracer.Start(parent, "NewAPI")
	defer span.End()

	transactionFunc, dialect, err := database.GetTransactionFunc(db)
	if err != nil {
		return nil, err
	}

	api := &API{
		logger:      logger,
		db:          db,
		transaction: transactionFunc,
		dialect:     dialect,
	}
	return api, nil
}

func (api *API) Logger(ctx context.Context) *zap.SugaredLogger {
	return api.logger
}

func (api *API) GetCurrentUserID(c *gin.Context) uuid.UUID {
	userId, found := c.Get(gin.AuthUserKey)
	if !found {
		api.SendInternalServerError(c, fmt.Errorf("no current user found"))
		panic("no current user found")
	}
	return userId.(uuid.UUID)
}

func (api *API) SendInternalServerError(c *gin.Context, err error) {
	api.logger.Errorf("request failed: %v", err)
	c.JSON(http.StatusInternalServerError, models.NewApiInternalError(err))
}
