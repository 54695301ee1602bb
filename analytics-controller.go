package surveyforge

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/surveyforge/surveyforge/dashboard"
	"github.com/surveyforge/surveyforge/surveys"
	"github.com/surveyforge/surveyforge/votes"
)

// AnalyticsController Main Object
type AnalyticsController struct {
	dashboard  *dashboard.Dashboard
	repository *votes.Repository
	auth       *Auth
}

// NewAnalyticsController constructor
func NewAnalyticsController(
	dashboardService *dashboard.Dashboard, repository *votes.Repository, auth *Auth,
) (*AnalyticsController, error) {
	if dashboardService == nil {
		return nil, fmt.Errorf("dashboard.Dashboard is nil")
	}

	s := &AnalyticsController{
		dashboard:  dashboardService,
		repository: repository,
		auth:       auth,
	}

	return s, nil
}

// requireAdmin resolves the request identity and rejects everything below
// the admin role. Viewers can read analytics but not raw votes. A missing
// credential is 401, a bad token or insufficient role is 403.
func requireAdmin(c *gin.Context, auth *Auth, allowViewer bool) bool {
	_, role, err := auth.ValidateREST(c)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Invalid or expired token"})

		return false
	}

	if role == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Access token required"})

		return false
	}

	switch {
	case role == RoleAdmin:
		return true
	case allowViewer && role == RoleViewer:
		return true
	}

	c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})

	return false
}

func queryID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Query(name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s is required", name)
	}

	return id, nil
}

func (s *AnalyticsController) SetupRouter(apiGroup *gin.RouterGroup) {
	group := apiGroup.Group("/analytics")

	group.GET("/realtime", func(c *gin.Context) {
		if !requireAdmin(c, s.auth, true) {
			return
		}

		surveyID, err := queryID(c, "survey_id")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

			return
		}

		payload, err := s.dashboard.RealtimePayload(c, surveyID)
		if err != nil {
			if errors.Is(err, surveys.ErrSurveyNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Survey not found"})

				return
			}

			c.String(http.StatusInternalServerError, err.Error())

			return
		}

		c.JSON(http.StatusOK, payload)
	})

	group.GET("/aggregate", func(c *gin.Context) {
		if !requireAdmin(c, s.auth, true) {
			return
		}

		questionID, err := queryID(c, "question_id")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

			return
		}

		aggregate, err := s.repository.AggregateByQuestion(c, questionID)
		if err != nil {
			c.String(http.StatusInternalServerError, err.Error())

			return
		}

		c.JSON(http.StatusOK, gin.H{
			"question_id": questionID,
			"aggregate":   aggregate,
		})
	})

	group.GET("/timeseries", func(c *gin.Context) {
		if !requireAdmin(c, s.auth, true) {
			return
		}

		surveyID, err := queryID(c, "survey_id")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

			return
		}

		var startDate, endDate time.Time

		if value := c.Query("date_from"); value != "" {
			if startDate, err = time.Parse(time.RFC3339, value); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date_from"})

				return
			}
		}

		if value := c.Query("date_to"); value != "" {
			if endDate, err = time.Parse(time.RFC3339, value); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date_to"})

				return
			}
		}

		items, err := s.repository.TimeSeries(c, surveyID, startDate, endDate)
		if err != nil {
			c.String(http.StatusInternalServerError, err.Error())

			return
		}

		c.JSON(http.StatusOK, gin.H{
			"survey_id":   surveyID,
			"time_series": items,
		})
	})

	group.GET("/crosstab", func(c *gin.Context) {
		if !requireAdmin(c, s.auth, true) {
			return
		}

		questionID1, err := queryID(c, "question1_id")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

			return
		}

		questionID2, err := queryID(c, "question2_id")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

			return
		}

		items, err := s.repository.CrossTabulation(c, questionID1, questionID2)
		if err != nil {
			c.String(http.StatusInternalServerError, err.Error())

			return
		}

		c.JSON(http.StatusOK, gin.H{
			"question1_id": questionID1,
			"question2_id": questionID2,
			"crosstab":     items,
		})
	})

	group.GET("/heatmap", func(c *gin.Context) {
		if !requireAdmin(c, s.auth, true) {
			return
		}

		surveyID, err := queryID(c, "survey_id")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

			return
		}

		questionID, err := queryID(c, "question_id")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

			return
		}

		items, err := s.repository.Heatmap(c, surveyID, questionID)
		if err != nil {
			c.String(http.StatusInternalServerError, err.Error())

			return
		}

		c.JSON(http.StatusOK, gin.H{
			"survey_id":   surveyID,
			"question_id": questionID,
			"heatmap":     items,
		})
	})
}
