package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"tma-generator/models"
	"tma-generator/session"
	"tma-generator/settings"
)

const pageTitle = "TMA LaTeX Generator"

// FormPage renders the generator form with the persisted settings and one default question.
// GET /
func FormPage(store settings.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := store.Load(c.Request.Context())
		if err != nil {
			c.HTML(http.StatusInternalServerError, "form", gin.H{
				"Title":     pageTitle,
				"Settings":  models.DefaultSettings(),
				"Questions": []models.RawQuestion{models.DefaultRawQuestion()},
				"Error":     "Failed to load settings",
			})
			return
		}
		c.HTML(http.StatusOK, "form", gin.H{
			"Title":     pageTitle,
			"Settings":  s,
			"Questions": []models.RawQuestion{models.DefaultRawQuestion()},
		})
	}
}

// FormAction handles every button on the form. The question rows round-trip
// through the page, so edits survive add, remove and failed generations.
// POST /
func FormAction(sess *session.Session, store settings.Store, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var s models.Settings
		if err := c.ShouldBind(&s); err != nil {
			c.HTML(http.StatusBadRequest, "form", gin.H{
				"Title":     pageTitle,
				"Settings":  models.DefaultSettings(),
				"Questions": []models.RawQuestion{models.DefaultRawQuestion()},
				"Error":     err.Error(),
			})
			return
		}
		questions := questionRows(c)
		data := gin.H{"Title": pageTitle, "Settings": s}
		status := http.StatusOK

		action := c.PostForm("action")
		switch {
		case action == "add":
			questions = append(questions, models.DefaultRawQuestion())
		case action == "clear":
			questions = nil
		case strings.HasPrefix(action, "remove-"):
			i, err := strconv.Atoi(strings.TrimPrefix(action, "remove-"))
			if err == nil && i >= 0 && i < len(questions) {
				questions = append(questions[:i], questions[i+1:]...)
			}
		case action == "save":
			if err := store.Save(c.Request.Context(), s); err != nil {
				log.WithError(err).Warn("Could not save settings")
				data["Error"] = "Could not save settings: " + err.Error()
				status = http.StatusInternalServerError
			} else {
				data["Output"] = []string{"Settings saved successfully!"}
			}
		case action == "generate":
			result := sess.Generate(c.Request.Context(), models.GenerateRequest{
				Settings:            s,
				Questions:           questions,
				AcceptMarksMismatch: c.PostForm("accept_marks_mismatch") == "true",
			})
			if result.NeedsConfirm {
				data["Warning"] = result.Warning
			}
			if !result.Success {
				data["Error"] = result.Message
				status = resultStatus(result)
			}
			data["Output"] = session.Report(result)
		default:
			data["Error"] = "Unknown action."
			status = http.StatusBadRequest
		}

		data["Questions"] = questions
		c.HTML(status, "form", data)
	}
}

// questionRows zips the repeated marks, parts and subparts fields back into rows.
func questionRows(c *gin.Context) []models.RawQuestion {
	marks := c.PostFormArray("marks")
	parts := c.PostFormArray("parts")
	subparts := c.PostFormArray("subparts")

	n := max(len(marks), len(parts), len(subparts))
	rows := make([]models.RawQuestion, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, models.RawQuestion{
			Marks:    at(marks, i),
			Parts:    at(parts, i),
			Subparts: at(subparts, i),
		})
	}
	return rows
}

func at(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}
