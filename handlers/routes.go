package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"tma-generator/middleware"
	"tma-generator/models"
	"tma-generator/session"
	"tma-generator/settings"
)

// WriterRoles may save settings and generate files when auth is enabled.
var WriterRoles = []string{"author", "admin"}

// RunLister lists recorded generation attempts.
type RunLister interface {
	RecentRuns(ctx context.Context, limit int) ([]models.GenerationRun, error)
}

// Dependencies are the collaborators shared by every handler.
type Dependencies struct {
	Session *session.Session
	Store   settings.Store
	Runs    RunLister       // nil when no database is configured
	Auth    gin.HandlerFunc // nil disables authentication
	Log     logrus.FieldLogger
}

// RegisterRoutes mounts the form page and the JSON API on router.
func RegisterRoutes(router *gin.Engine, d Dependencies) {
	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	var guard []gin.HandlerFunc
	var writer []gin.HandlerFunc
	if d.Auth != nil {
		guard = append(guard, d.Auth)
		writer = append(writer, middleware.RoleCheckMiddleware(WriterRoles))
	}

	form := router.Group("/", guard...)
	{
		form.GET("", FormPage(d.Store))
		form.POST("", with(writer, FormAction(d.Session, d.Store, d.Log))...)
	}

	apiV1 := router.Group("/api/v1", guard...)
	{
		apiV1.GET("/settings", GetSettings(d.Store))
		apiV1.PUT("/settings", with(writer, SaveSettings(d.Store))...)
		apiV1.POST("/validate", ValidateStructure(d.Session))
		apiV1.POST("/project-name", ProjectName())
		apiV1.POST("/generate", with(writer, Generate(d.Session))...)
		apiV1.POST("/archive", with(writer, Archive(d.Session))...)
		if d.Runs != nil {
			apiV1.GET("/runs", ListRuns(d.Runs))
		}
	}
}

func with(middlewares []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	return append(append([]gin.HandlerFunc(nil), middlewares...), h)
}
