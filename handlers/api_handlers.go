package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tma-generator/generator"
	"tma-generator/models"
	"tma-generator/session"
	"tma-generator/settings"
)

// GetSettings returns the persisted settings merged over the defaults.
// GET /api/v1/settings
func GetSettings(store settings.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := store.Load(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load settings"})
			return
		}
		c.JSON(http.StatusOK, s)
	}
}

// SaveSettings overlays the supplied keys on the current settings and persists them.
// PUT /api/v1/settings
func SaveSettings(store settings.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var values map[string]string
		if err := c.ShouldBindJSON(&values); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		current, err := store.Load(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load settings"})
			return
		}
		for key, value := range values {
			if err := current.Set(key, value); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		if err := store.Save(c.Request.Context(), current); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Could not save settings: %v", err)})
			return
		}
		c.JSON(http.StatusOK, current)
	}
}

// ValidateStructure checks the question rows without writing anything.
// POST /api/v1/validate
func ValidateStructure(sess *session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.GenerateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		result := sess.Validate(req)
		c.JSON(resultStatus(result), result)
	}
}

// ProjectName composes the suggested online project name for the given settings.
// POST /api/v1/project-name
func ProjectName() gin.HandlerFunc {
	return func(c *gin.Context) {
		var s models.Settings
		if err := c.ShouldBindJSON(&s); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"project_name": generator.ComposeExternalProjectName(s)})
	}
}

// Generate runs a full generation into the configured output directory.
// POST /api/v1/generate
func Generate(sess *session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.GenerateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if _, err := sess.CheckTarget(req.Settings); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		result := sess.Generate(c.Request.Context(), req)
		c.JSON(resultStatus(result), result)
	}
}

// Archive generates the files and streams the output directory back as a zip.
// POST /api/v1/archive
func Archive(sess *session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.GenerateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if _, err := sess.CheckTarget(req.Settings); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		result := sess.Generate(c.Request.Context(), req)
		if !result.Success {
			c.JSON(resultStatus(result), result)
			return
		}

		c.Header("Content-Type", "application/zip")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", generator.ArchiveName(req.Settings)))
		c.Header("X-Project-Name", result.ProjectName)
		c.Status(http.StatusOK)
		if err := generator.WriteArchive(sess.Fs, result.OutputDir, c.Writer); err != nil {
			sess.Log.WithError(err).WithField("run_id", result.RunID).Error("failed to stream archive")
		}
	}
}

// ListRuns returns the most recent generation attempts.
// GET /api/v1/runs?limit=20
func ListRuns(runs RunLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
		if err != nil || limit < 1 || limit > 500 {
			limit = 20
		}
		list, err := runs.RecentRuns(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve generation runs"})
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func resultStatus(result models.GenerationResult) int {
	switch {
	case result.Success:
		return http.StatusOK
	case result.NeedsConfirm:
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}
