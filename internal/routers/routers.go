package routers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/salesforge-io/salesforge/internal/handlers"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const name = "github.com/salesforge-io/salesforge/internal/routers"

type APIRouterOptions struct {
	Logger         *zap.SugaredLogger
	Api            *handlers.API
	AllowedOrigins []string
}

func NewAPIRouter(o APIRouterOptions) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	loggerMiddleware := ginzap.GinzapWithConfig(o.Logger.Desugar(), &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		Context: func(c *gin.Context) []zapcore.Field {
			return []zapcore.Field{
				zap.String("traceID", trace.SpanFromContext(c.Request.Context()).SpanContext().TraceID().String()),
			}
		},
	})

	r.Use(otelgin.Middleware(name, otelgin.WithPropagators(
		propagation.TraceContext{},
	)))
	r.Use(ginzap.RecoveryWithZap(o.Logger.Desugar(), true))

	if len(o.AllowedOrigins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = o.AllowedOrigins
		corsConfig.AllowCredentials = true
		corsConfig.AddAllowHeaders("Authorization", "X-Auth-Sub", "X-Auth-Email", "X-Auth-Username")
		r.Use(cors.New(corsConfig))
	}

	newPrometheus().Use(r)

	private := r.Group("/api", loggerMiddleware)
	{
		api := o.Api
		private.Use(api.CreateUserIfNotExists())

		// Users
		private.GET("/users/me", api.GetCurrentUser)
		private.GET("/users/me/organizations", api.ListUserOrganizations)
		private.POST("/users/onboarding-complete", api.CompleteOnboarding)

		// Organizations
		private.GET("/organizations", api.ListOrganizations)
		private.POST("/organizations", api.CreateOrganization)
		private.GET("/organizations/lookup", api.LookupOrganization)
		private.GET("/organizations/similar", api.ListSimilarOrganizations)
		private.GET("/organizations/:id", api.GetOrganization)
		private.DELETE("/organizations/:id", api.DeleteOrganization)
		private.POST("/organizations/:id/memberships/resolve", api.ResolveMembership)

		// Join Requests
		private.GET("/join-requests", api.ListJoinRequests)
		private.POST("/join-requests", api.CreateJoinRequest)
		private.POST("/join-requests/:id/approve", api.ApproveJoinRequest)
		private.POST("/join-requests/:id/reject", api.RejectJoinRequest)

		// Enrichment
		private.POST("/organizations/:id/enrichments", api.StartEnrichment)
		private.GET("/organizations/:id/enrichments", api.ListEnrichments)
		private.GET("/organizations/:id/enrichments/:enrichment", api.GetEnrichment)
		private.PATCH("/enrichments/:id", api.UpdateEnrichment)

		// Skills
		private.GET("/organizations/:id/skills", api.ListOrganizationSkills)
		private.PUT("/organizations/:id/skills", api.ReplaceOrganizationSkills)

		// Admin
		private.POST("/admin/gc", api.GarbageCollect)
	}

	// Don't log the health/readiness checks.
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "UP",
		})
	})
	r.GET("/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "UP",
		})
	})

	return r, nil
}

func newPrometheus() *ginprometheus.Prometheus {
	p := ginprometheus.NewPrometheus("apiserver")
	p.ReqCntURLLabelMappingFn = func(c *gin.Context) string {
		url := c.Request.URL.Path
		for _, p := range c.Params {
			if p.Key == "id" {
				url = strings.Replace(url, p.Value, ":id", 1)
				break
			}
		}
		return url
	}
	return p
}
